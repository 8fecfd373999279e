// Package interactions forwards interaction-log entries (subscription
// acknowledgments, delivered events, plain mock calls) to any number of
// attached sinks, for the users interaction logging is enabled for.
//
// Design decisions:
//   - Fire and forget: LogInteraction never blocks the send path that
//     produced the entry; each sink drains its own buffered channel and a
//     sink that cannot keep up loses entries, not the caller
//   - Per-user gate: entries for users without interaction logging enabled
//     are discarded before any sink sees them
//   - Pluggable sinks: a live websocket connection, a NATS subject and any
//     test double all attach through the same single-method interface
//   - Explicit lifecycle: sinks are attached and detached by id, and
//     Close tears every drain goroutine down
package interactions
