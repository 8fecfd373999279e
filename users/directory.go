// Package users tracks which websocket connections belong to which user and
// resolves broadcast groups. A user key is either a plain identifier
// ("12345") or an identifier with a group suffix ("456~A"); users sharing a
// suffix form one broadcast group and receive group-addressed events
// together.
package users

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/Nandana-NNR/mock-firebolt/api"
	"github.com/Nandana-NNR/mock-firebolt/pkg/slogx"
)

// GroupSeparator splits the user portion of a key from its group suffix.
const GroupSeparator = "~"

// Group returns the broadcast group token of a user key, or "" when the key
// carries none.
func Group(userKey string) string {
	if i := strings.Index(userKey, GroupSeparator); i >= 0 {
		return userKey[i+1:]
	}
	return ""
}

// Directory is the in-memory connection directory. It is safe for
// concurrent use; every compound mutation happens under one lock so no
// caller ever observes a user with a half-updated connection list.
type Directory struct {
	mu    sync.RWMutex
	conns map[string][]api.Connection
}

// NewDirectory constructs an empty connection directory.
func NewDirectory() *Directory {
	return &Directory{conns: make(map[string][]api.Connection)}
}

// AddConnection associates conn with userKey. Adding the same connection id
// twice is a no-op, and connection order is preserved as insertion order.
func (d *Directory) AddConnection(userKey string, conn api.Connection) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, c := range d.conns[userKey] {
		if c.ID() == conn.ID() {
			return
		}
	}
	d.conns[userKey] = append(d.conns[userKey], conn)
}

// RemoveConnection forgets the connection with the given id. The user entry
// disappears together with its last connection.
func (d *Directory) RemoveConnection(userKey, connID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	kept := d.conns[userKey][:0:0]
	for _, c := range d.conns[userKey] {
		if c.ID() != connID {
			kept = append(kept, c)
		}
	}
	if len(kept) == 0 {
		delete(d.conns, userKey)
		return
	}
	d.conns[userKey] = kept
}

// ListConnectionsForUser returns the user's connections in insertion order.
func (d *Directory) ListConnectionsForUser(userKey string) []api.Connection {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]api.Connection, len(d.conns[userKey]))
	copy(out, d.conns[userKey])
	return out
}

// ListUsersInGroup returns every known user sharing userKey's group token,
// userKey itself first. A key without a group token forms a group of one,
// and userKey is reported even when it has no connections yet.
func (d *Directory) ListUsersInGroup(userKey string) []string {
	group := Group(userKey)
	if group == "" {
		return []string{userKey}
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	members := []string{userKey}
	var rest []string
	for key := range d.conns {
		if key != userKey && Group(key) == group {
			rest = append(rest, key)
		}
	}
	sort.Strings(rest)
	return append(members, rest...)
}

// CloseConnection closes conn and removes it from userKey's entry.
func (d *Directory) CloseConnection(userKey string, conn api.Connection) error {
	if conn == nil {
		return fmt.Errorf("no connection to close for user %s", userKey)
	}
	d.RemoveConnection(userKey, conn.ID())
	return conn.Close()
}

// CloseAllConnections closes every connection the user currently has. Close
// failures are logged and do not stop the sweep.
func (d *Directory) CloseAllConnections(userKey string) {
	d.mu.Lock()
	conns := d.conns[userKey]
	delete(d.conns, userKey)
	d.mu.Unlock()

	for _, c := range conns {
		if err := c.Close(); err != nil {
			slog.Warn("failed to close connection", slogx.User(userKey), slogx.Conn(c.ID()), slogx.Error(err))
		}
	}
}

// Users returns every user key that currently has at least one connection,
// sorted for deterministic iteration.
func (d *Directory) Users() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]string, 0, len(d.conns))
	for key := range d.conns {
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}
