// Package state holds the mutable per-user mock state: the scratch space
// triggers read and write, and the canned method results the websocket
// responder answers non-event calls with. Nothing here survives a process
// restart.
package state

import (
	"sync"

	"github.com/Nandana-NNR/mock-firebolt/users"
)

// Scope qualifies which slice of the scratch space an operation touches.
type Scope string

const (
	// ScopeUser is the default: state private to one user key.
	ScopeUser Scope = "user"
	// ScopeGroup shares state between every user in a broadcast group.
	ScopeGroup Scope = "group"
)

// globalKey is the methods bucket consulted when neither the user nor the
// group carries an override.
const globalKey = "global"

// Store is the in-memory state store. Safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	scratch map[string]map[string]any
	methods map[string]map[string]any
}

// New constructs an empty store.
func New() *Store {
	return &Store{
		scratch: make(map[string]map[string]any),
		methods: make(map[string]map[string]any),
	}
}

func scopeKey(scope Scope, userKey string) string {
	if scope == ScopeGroup {
		if g := users.Group(userKey); g != "" {
			return users.GroupSeparator + g
		}
	}
	return userKey
}

// Get reads a user-scoped scratch value.
func (s *Store) Get(userKey, key string) (any, bool) {
	return s.GetScoped(ScopeUser, userKey, key)
}

// Set writes a user-scoped scratch value.
func (s *Store) Set(userKey, key string, value any) {
	s.SetScoped(ScopeUser, userKey, key, value)
}

// Delete removes a user-scoped scratch value.
func (s *Store) Delete(userKey, key string) {
	s.DeleteScoped(ScopeUser, userKey, key)
}

// GetScoped reads a scratch value under an explicit scope.
func (s *Store) GetScoped(scope Scope, userKey, key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.scratch[scopeKey(scope, userKey)][key]
	return v, ok
}

// SetScoped writes a scratch value under an explicit scope.
func (s *Store) SetScoped(scope Scope, userKey, key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sk := scopeKey(scope, userKey)
	if s.scratch[sk] == nil {
		s.scratch[sk] = make(map[string]any)
	}
	s.scratch[sk][key] = value
}

// DeleteScoped removes a scratch value under an explicit scope. Deleting a
// key that was never set is a no-op.
func (s *Store) DeleteScoped(scope Scope, userKey, key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sk := scopeKey(scope, userKey)
	delete(s.scratch[sk], key)
	if len(s.scratch[sk]) == 0 {
		delete(s.scratch, sk)
	}
}

// SetMethodResult installs a canned result for method, visible to userKey
// only.
func (s *Store) SetMethodResult(userKey, method string, result any) {
	s.setMethod(userKey, method, result)
}

// SetGlobalMethodResult installs a canned result for method, visible to
// every user that has no more specific override.
func (s *Store) SetGlobalMethodResult(method string, result any) {
	s.setMethod(globalKey, method, result)
}

func (s *Store) setMethod(bucket, method string, result any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.methods[bucket] == nil {
		s.methods[bucket] = make(map[string]any)
	}
	s.methods[bucket][method] = result
}

// MethodResult resolves the canned result for a method call, most specific
// bucket first: the user, then the user's group, then the global bucket.
func (s *Store) MethodResult(userKey, method string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	buckets := []string{userKey}
	if g := users.Group(userKey); g != "" {
		buckets = append(buckets, users.GroupSeparator+g)
	}
	buckets = append(buckets, globalKey)
	for _, b := range buckets {
		if v, ok := s.methods[b][method]; ok {
			return v, true
		}
	}
	return nil, false
}

// ClearUser drops every user-scoped value for userKey, scratch and method
// overrides alike. Group and global state stays.
func (s *Store) ClearUser(userKey string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.scratch, userKey)
	delete(s.methods, userKey)
}
