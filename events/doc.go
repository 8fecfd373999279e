// Package events is the subscription-and-dispatch core of the mock Firebolt
// server. Apps under test subscribe to named events over persistent
// connections; harness code later dispatches those events back into the
// apps, either to one user or to every member of the user's broadcast
// group, with pre/post triggers able to observe or rewrite the payload
// before it goes out in one of two wire shapes.
//
// Design decisions:
//   - Instance state: the listener directory and the correlation counter are
//     owned by explicit values, never package globals, so independent
//     engines (one per test) cannot interfere
//   - Two-stage matching: a coarse regexp pre-filter runs before the gjson
//     method query, so clearly-irrelevant traffic is rejected without a parse
//   - Flat collaborator interfaces: group resolution, validation, call
//     recording, interaction logging and trigger running are consumed
//     through small interfaces declared here with basic-typed signatures,
//     satisfied structurally by the sibling packages
//   - One outcome per attempt: every dispatch resolves to exactly one of
//     success, a typed error (registration or validation) or a fatal error;
//     nothing escapes a dispatch as a panic
//   - Best effort fan-out: sends are at-most-once and per-connection
//     failures are isolated from the rest of the fan-out
//
// Components, leaf first:
//   - Directory: (user key, method) to listener record bookkeeping
//   - Matcher: recognizes subscribe/unsubscribe control messages
//   - AckEmitter: renders and sends (un)subscription acknowledgments
//   - Correlator / ToRequestMethod: the bidirectional protocol translation
//   - Engine: orchestrates one delivery attempt end to end
//
// Control flow, inbound: Engine.HandleListen feeds the Matcher, mutates the
// Directory and answers through the AckEmitter. Outbound: SendEvent or
// SendBroadcast runs triggers, optionally validates the payload, resolves
// listeners and fans the rendered message out per connection.
package events
