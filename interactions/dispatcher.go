package interactions

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/alphadose/haxmap"
	"github.com/go-openapi/strfmt"

	"github.com/Nandana-NNR/mock-firebolt/pkg/slogx"
	"github.com/Nandana-NNR/mock-firebolt/pkg/uuidx"
)

const defaultSlowSinkTimeout = 100 * time.Millisecond

// Entry is one interaction-log record.
type Entry struct {
	Message   string          `json:"message"`
	Method    string          `json:"method"`
	Params    any             `json:"params,omitempty"`
	ConnInfo  string          `json:"connInfo,omitempty"`
	UserKey   string          `json:"user"`
	Timestamp strfmt.DateTime `json:"timestamp"`
}

// Sink receives interaction-log entries. Implementations must tolerate
// being called from a single drain goroutine per attachment.
type Sink interface {
	LogInteraction(ctx context.Context, e Entry) error
}

// Dispatcher gates entries per user and fans them out to attached sinks.
type Dispatcher struct {
	enabled         *haxmap.Map[string, struct{}]
	sinks           *haxmap.Map[string, *attachment]
	slowSinkTimeout time.Duration
}

// NewDispatcher constructs a Dispatcher with no sinks and no enabled users.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		enabled:         haxmap.New[string, struct{}](),
		sinks:           haxmap.New[string, *attachment](),
		slowSinkTimeout: defaultSlowSinkTimeout,
	}
}

// WithSlowSinkTimeout configures how long a full sink buffer is waited on
// before the entry is dropped.
func (d *Dispatcher) WithSlowSinkTimeout(timeout time.Duration) *Dispatcher {
	d.slowSinkTimeout = timeout
	return d
}

// Enable turns interaction logging on for userKey.
func (d *Dispatcher) Enable(userKey string) {
	d.enabled.Set(userKey, struct{}{})
}

// Disable turns interaction logging off for userKey.
func (d *Dispatcher) Disable(userKey string) {
	d.enabled.Del(userKey)
}

// Enabled reports whether entries for userKey are being forwarded.
func (d *Dispatcher) Enabled(userKey string) bool {
	_, ok := d.enabled.Get(userKey)
	return ok
}

// AddSink attaches a sink and returns the attachment id used to detach it.
// Each sink drains its own buffered channel on a dedicated goroutine.
func (d *Dispatcher) AddSink(sink Sink) string {
	id := uuidx.NewString()
	att := &attachment{
		id:      id,
		channel: make(chan Entry, 50),
		onClose: func() { d.sinks.Del(id) },
		sink:    sink,
	}
	d.sinks.Set(id, att)
	go att.drain()
	return id
}

// RemoveSink detaches the sink with the given attachment id.
func (d *Dispatcher) RemoveSink(id string) {
	if att, ok := d.sinks.Get(id); ok {
		att.close()
	}
}

// Close detaches every sink and stops their drain goroutines.
func (d *Dispatcher) Close() {
	d.sinks.ForEach(func(_ string, att *attachment) bool {
		att.close()
		return true
	})
}

// LogInteraction builds an Entry and offers it to every attached sink,
// provided interaction logging is enabled for userKey. The call returns as
// soon as every sink buffer has accepted or refused the entry; it never
// waits on sink I/O.
func (d *Dispatcher) LogInteraction(ctx context.Context, message, method string, params any, connInfo, userKey string) {
	if !d.Enabled(userKey) {
		return
	}

	e := Entry{
		Message:   message,
		Method:    method,
		Params:    params,
		ConnInfo:  connInfo,
		UserKey:   userKey,
		Timestamp: strfmt.DateTime(time.Now()),
	}

	d.sinks.ForEach(func(id string, att *attachment) bool {
		select {
		case <-ctx.Done():
			return false
		case att.channel <- e:
		case <-time.After(d.slowSinkTimeout):
			// Buffer still full after the grace period: the entry is lost,
			// the sink stays attached.
			slog.Warn("interaction sink too slow, entry dropped",
				slogx.User(userKey), slogx.Method(method), slog.String("sink", id))
		}
		return true
	})
}

type attachment struct {
	id        string
	channel   chan Entry
	closeOnce sync.Once
	onClose   func()
	sink      Sink
}

func (a *attachment) close() {
	a.closeOnce.Do(func() {
		if a.onClose != nil {
			a.onClose()
		}
		close(a.channel)
	})
}

func (a *attachment) drain() {
	for e := range a.channel {
		if err := a.sink.LogInteraction(context.Background(), e); err != nil {
			slog.Warn("interaction sink failed", slogx.User(e.UserKey), slogx.Method(e.Method), slogx.Error(err))
		}
	}
}
