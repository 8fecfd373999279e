package api

// Connection is the transport handle the event core fans messages out to.
// Framing and socket I/O live behind it; the core only ever identifies a
// connection, writes one serialized message at a time, and asks for it to
// be closed.
//
// Design decisions:
//   - Identity-based membership: listener records deduplicate connections
//     by ID, so IDs must be stable and unique for the connection lifetime
//   - Fire-and-forget sends: Send reports the immediate write error only;
//     there is no delivery guarantee and callers never retry
//   - Implementation-agnostic: websocket adapters, test recorders and
//     in-process pipes all satisfy the same three methods
type Connection interface {
	// ID returns the stable unique identifier of this connection.
	ID() string

	// Send writes one complete serialized message to the peer.
	Send(payload []byte) error

	// Close tears the connection down. Safe to call more than once.
	Close() error
}

// ConnInfo is a short human-readable description of a connection used in
// interaction-log entries, typically "<remote-addr> (<id>)".
func ConnInfo(c Connection) string {
	if c == nil {
		return ""
	}
	if d, ok := c.(interface{ RemoteAddr() string }); ok {
		return d.RemoteAddr() + " (" + c.ID() + ")"
	}
	return c.ID()
}
