package events

import (
	"sync"

	"github.com/Nandana-NNR/mock-firebolt/api"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Listener is the read-only view of one listener record: the stored
// association between a user, an event method and the connections
// currently subscribed under it, in subscription order.
type Listener struct {
	Method      string
	Metadata    Metadata
	Connections []api.Connection
}

// record is the mutable directory entry behind a Listener view. The
// connection set is keyed by connection ID, deduplicated, insertion
// ordered.
type record struct {
	metadata Metadata
	conns    *orderedmap.OrderedMap[string, api.Connection]
}

func (r *record) listener() Listener {
	conns := make([]api.Connection, 0, r.conns.Len())
	for pair := r.conns.Oldest(); pair != nil; pair = pair.Next() {
		conns = append(conns, pair.Value)
	}
	return Listener{Method: r.metadata.Method, Metadata: r.metadata, Connections: conns}
}

// Directory tracks which connections, for which user, are listening for
// which methods. An entry exists iff at least one connection is
// subscribed; entries are deleted the instant their connection set
// empties. Safe for concurrent use: every compound mutation runs in a
// single critical section.
type Directory struct {
	mu     sync.RWMutex
	users  map[string]map[string]*record
	groups GroupResolver
}

// NewDirectory constructs an empty directory. groups resolves broadcast
// membership; nil confines every user to a group of one.
func NewDirectory(groups GroupResolver) *Directory {
	return &Directory{
		users:  make(map[string]map[string]*record),
		groups: groups,
	}
}

// Register subscribes conn under (userKey, md.Method). Re-registering
// replaces the stored metadata, so later acknowledgments reflect the
// latest subscribe message, while existing connections are preserved and
// conn is appended only if not already a member.
func (d *Directory) Register(userKey string, md Metadata, conn api.Connection) {
	d.mu.Lock()
	defer d.mu.Unlock()

	methods, ok := d.users[userKey]
	if !ok {
		methods = make(map[string]*record)
		d.users[userKey] = methods
	}
	rec, ok := methods[md.Method]
	if !ok {
		rec = &record{conns: orderedmap.New[string, api.Connection]()}
		methods[md.Method] = rec
	}
	rec.metadata = md
	rec.conns.Set(conn.ID(), conn)
}

// Deregister removes conn from (userKey, md.Method). Unknown entries and
// connections not in the set are no-ops. The method entry is deleted
// entirely when its last connection leaves.
func (d *Directory) Deregister(userKey string, md Metadata, conn api.Connection) {
	d.mu.Lock()
	defer d.mu.Unlock()

	methods, ok := d.users[userKey]
	if !ok {
		return
	}
	rec, ok := methods[md.Method]
	if !ok {
		return
	}
	rec.conns.Delete(conn.ID())
	if rec.conns.Len() == 0 {
		delete(methods, md.Method)
		if len(methods) == 0 {
			delete(d.users, userKey)
		}
	}
}

// DropConnection removes the connection with connID from every listener
// record held for userKey, deleting records that empty out. Transports
// call this when a socket closes so dead connections do not linger.
func (d *Directory) DropConnection(userKey, connID string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	methods := d.users[userKey]
	for method, rec := range methods {
		rec.conns.Delete(connID)
		if rec.conns.Len() == 0 {
			delete(methods, method)
		}
	}
	if len(methods) == 0 {
		delete(d.users, userKey)
	}
}

// IsRegistered reports whether at least one connection of userKey is
// listening for method.
func (d *Directory) IsRegistered(userKey, method string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.users[userKey][method]
	return ok
}

// Get returns a snapshot of the listener record for (userKey, method).
func (d *Directory) Get(userKey, method string) (Listener, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	rec, ok := d.users[userKey][method]
	if !ok {
		return Listener{}, false
	}
	return rec.listener(), true
}

// IsRegisteredInGroup reports whether any user in userKey's broadcast
// group, userKey included, is listening for method.
func (d *Directory) IsRegisteredInGroup(userKey, method string) bool {
	return len(d.GroupRegistrants(userKey, method)) > 0
}

// GroupRegistrants returns the user keys in userKey's broadcast group that
// are listening for method, in group resolution order.
func (d *Directory) GroupRegistrants(userKey, method string) []string {
	members := d.groupMembers(userKey)

	d.mu.RLock()
	defer d.mu.RUnlock()
	var registered []string
	for _, member := range members {
		if _, ok := d.users[member][method]; ok {
			registered = append(registered, member)
		}
	}
	return registered
}

// groupMembers resolves membership outside the directory lock. The
// resolver's answer always covers userKey itself.
func (d *Directory) groupMembers(userKey string) []string {
	if d.groups == nil {
		return []string{userKey}
	}
	members := d.groups.ListUsersInGroup(userKey)
	if len(members) == 0 {
		return []string{userKey}
	}
	return members
}
