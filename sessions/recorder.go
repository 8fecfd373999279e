// Package sessions records the responses a user's connections were sent
// (acknowledgments, mock call results, delivered events) while a recording
// session is active for that user. Test harnesses start a session, drive
// the app under test, then stop it and inspect the captured calls.
package sessions

import (
	"sync"
	"time"

	"github.com/go-openapi/strfmt"
)

// Kinds a recorded response is filed under.
const (
	KindResult = "result"
	KindError  = "error"
	KindEvent  = "event"
)

// Call is one recorded response.
type Call struct {
	Method    string          `json:"method"`
	Body      any             `json:"body"`
	Kind      string          `json:"kind"`
	Timestamp strfmt.DateTime `json:"timestamp"`
}

// Recorder captures calls per user while a session is active. Safe for
// concurrent use.
type Recorder struct {
	mu     sync.Mutex
	active map[string]bool
	calls  map[string][]Call
}

// NewRecorder constructs a Recorder with no active sessions.
func NewRecorder() *Recorder {
	return &Recorder{
		active: make(map[string]bool),
		calls:  make(map[string][]Call),
	}
}

// Start begins (or restarts) a recording session for userKey, discarding
// anything captured earlier.
func (r *Recorder) Start(userKey string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active[userKey] = true
	delete(r.calls, userKey)
}

// Stop ends the session and returns everything captured, oldest first.
func (r *Recorder) Stop(userKey string) []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.active, userKey)
	captured := r.calls[userKey]
	delete(r.calls, userKey)
	return captured
}

// IsActive reports whether a session is currently recording for userKey.
func (r *Recorder) IsActive(userKey string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active[userKey]
}

// RecordResponse files one response under the user's session. Calls made
// while no session is active are dropped.
func (r *Recorder) RecordResponse(method string, result any, kind string, userKey string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.active[userKey] {
		return
	}
	r.calls[userKey] = append(r.calls[userKey], Call{
		Method:    method,
		Body:      result,
		Kind:      kind,
		Timestamp: strfmt.DateTime(time.Now()),
	})
}

// Calls returns a snapshot of what the active session has captured so far.
func (r *Recorder) Calls(userKey string) []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Call, len(r.calls[userKey]))
	copy(out, r.calls[userKey])
	return out
}
