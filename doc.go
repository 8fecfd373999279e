/*
Package mockfirebolt assembles a mock Firebolt RPC event server: a websocket
endpoint that lets clients subscribe to Firebolt events, a dispatch core
that fans mocked events out to those subscriptions, and a mock responder
answering ordinary method calls from configurable overrides.

The package wires the parts together; the parts themselves live in focused
packages:

  - events: subscription directory, control-message matcher, acknowledgment
    emitter and the dispatch engine
  - users: connection directory and group membership derived from user keys
  - state: per-user and per-group scratch state plus method-result overrides
  - sessions: per-user call recording
  - interactions: fan-out of interaction log entries to pluggable sinks
  - schema: JSON Schema validation of event payloads
  - triggers: user-supplied pre/post hooks around event dispatch
  - config: defaults, config-file and environment resolution

A Server is built from functional options and serves its websocket endpoint
on /api/v1/ws. Events are pushed from test code or tooling through SendEvent
and SendBroadcast:

	srv, err := mockfirebolt.New(mockfirebolt.WithConfig(cfg))
	if err != nil {
		...
	}
	go srv.ListenAndServe(ctx)

	srv.SendEvent(ctx, "12345", "lifecycle.onInactive",
		map[string]any{"state": "inactive"}, events.Report{})

Design decisions:
  - The server owns one instance of every collaborator and hands them to the
    dispatch engine as narrow interfaces; nothing in this package is global
  - Configuration is compiled once at construction into the regexes and
    templates dispatch uses, so a bad pattern fails New rather than the
    first message
  - Trigger pipelines dispatch through the engine itself, late-bound after
    construction, so hooks can emit follow-up events without a cycle
  - Shutdown closes every client websocket before stopping the HTTP server,
    because hijacked connections outlive Server.Shutdown
*/
package mockfirebolt
