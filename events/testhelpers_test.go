package events

import (
	"context"
	"regexp"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Nandana-NNR/mock-firebolt/api"
	"github.com/Nandana-NNR/mock-firebolt/internal/render"
)

type fakeConn struct {
	id   string
	fail error

	mu   sync.Mutex
	sent [][]byte
}

func newFakeConn(id string) *fakeConn {
	return &fakeConn{id: id}
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail != nil {
		return c.fail
	}
	cp := make([]byte, len(payload))
	copy(cp, payload)
	c.sent = append(c.sent, cp)
	return nil
}

func (c *fakeConn) Close() error { return nil }

func (c *fakeConn) messages() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.sent))
	for i, b := range c.sent {
		out[i] = string(b)
	}
	return out
}

// outcome captures which Report callbacks fired for one dispatch attempt.
type outcome struct {
	mu        sync.Mutex
	successes int
	errors    int
	errKind   ErrorKind
	errMethod string
	fatals    []error
}

func (o *outcome) report() Report {
	return Report{
		OnSuccess: func() {
			o.mu.Lock()
			defer o.mu.Unlock()
			o.successes++
		},
		OnError: func(kind ErrorKind, method string) {
			o.mu.Lock()
			defer o.mu.Unlock()
			o.errors++
			o.errKind = kind
			o.errMethod = method
		},
		OnFatal: func(err error) {
			o.mu.Lock()
			defer o.mu.Unlock()
			o.fatals = append(o.fatals, err)
		},
	}
}

func (o *outcome) total() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.successes + o.errors + len(o.fatals)
}

type fakeGroups struct {
	groups map[string][]string
}

func (f *fakeGroups) ListUsersInGroup(userKey string) []string {
	if f.groups == nil {
		return []string{userKey}
	}
	return f.groups[userKey]
}

type fakeTriggers struct {
	replace  func(result any) any
	onPost   func()
	panicPre bool

	mu   sync.Mutex
	pre  []string
	post []string
}

func (f *fakeTriggers) RunPre(_ context.Context, userKey, method string, _ api.Connection) {
	if f.panicPre {
		panic("pre trigger exploded")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pre = append(f.pre, userKey+"/"+method)
}

func (f *fakeTriggers) RunPost(_ context.Context, userKey, method string, _ api.Connection, result any) any {
	f.mu.Lock()
	f.post = append(f.post, userKey+"/"+method)
	f.mu.Unlock()
	if f.onPost != nil {
		f.onPost()
	}
	if f.replace != nil {
		return f.replace(result)
	}
	return result
}

type fakeValidator struct {
	errs []error

	mu    sync.Mutex
	calls int
}

func (f *fakeValidator) Validate(any, string) []error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.errs
}

type recordedCall struct {
	method  string
	result  any
	kind    string
	userKey string
}

type fakeRecorder struct {
	mu    sync.Mutex
	calls []recordedCall
}

func (f *fakeRecorder) RecordResponse(method string, result any, kind string, userKey string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, recordedCall{method: method, result: result, kind: kind, userKey: userKey})
}

func (f *fakeRecorder) snapshot() []recordedCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]recordedCall, len(f.calls))
	copy(out, f.calls)
	return out
}

type loggedInteraction struct {
	message  string
	method   string
	params   any
	connInfo string
	userKey  string
}

type fakeInteractions struct {
	mu   sync.Mutex
	logs []loggedInteraction
}

func (f *fakeInteractions) LogInteraction(_ context.Context, message, method string, params any, connInfo, userKey string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logs = append(f.logs, loggedInteraction{
		message:  message,
		method:   method,
		params:   params,
		connInfo: connInfo,
		userKey:  userKey,
	})
}

func (f *fakeInteractions) snapshot() []loggedInteraction {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]loggedInteraction, len(f.logs))
	copy(out, f.logs)
	return out
}

const (
	subscribeAckText   = `{"jsonrpc":"2.0","id":{{.registration.id}},"result":{"listening":true,"event":"{{.method}}"}}`
	unsubscribeAckText = `{"jsonrpc":"2.0","id":{{.unRegistration.id}},"result":{"listening":false,"event":"{{.method}}"}}`
	eventText          = `{"result":{{.resultAsJson}},"id":{{.registration.id}},"jsonrpc":"2.0"}`
)

func testConfig(t *testing.T) Config {
	t.Helper()

	subscribeAck, err := render.Parse("subscribeAck", subscribeAckText)
	require.NoError(t, err)
	unsubscribeAck, err := render.Parse("unsubscribeAck", unsubscribeAckText)
	require.NoError(t, err)
	event, err := render.Parse("event", eventText)
	require.NoError(t, err)

	return Config{
		EventType:      "event",
		Subscribe:      MatchProfile{Search: regexp.MustCompile(`"listen"\s*:\s*true`), MethodQuery: "method"},
		Unsubscribe:    MatchProfile{Search: regexp.MustCompile(`"listen"\s*:\s*false`), MethodQuery: "method"},
		EventMethod:    regexp.MustCompile(`\.on[A-Z]`),
		SubscribeAck:   subscribeAck,
		UnsubscribeAck: unsubscribeAck,
		Event:          event,
	}
}
