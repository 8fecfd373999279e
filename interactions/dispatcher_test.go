package interactions

import (
	"context"
	"sync"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu      sync.Mutex
	entries []Entry
	block   chan struct{}
}

func (r *recordingSink) LogInteraction(_ context.Context, e Entry) error {
	if r.block != nil {
		<-r.block
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
	return nil
}

func (r *recordingSink) snapshot() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestDispatcher(t *testing.T) {
	t.Run("forwards entries for enabled users", func(t *testing.T) {
		d := NewDispatcher()
		defer d.Close()
		sink := &recordingSink{}
		d.AddSink(sink)
		d.Enable("12345")

		d.LogInteraction(context.Background(), `{"method":"account.id"}`, "account.id", nil, "conn-1", "12345")

		waitFor(t, func() bool { return len(sink.snapshot()) == 1 })
		e := sink.snapshot()[0]
		assert.Equal(t, "account.id", e.Method)
		assert.Equal(t, "12345", e.UserKey)
		assert.Equal(t, "conn-1", e.ConnInfo)
		assert.False(t, e.Timestamp.IsZero())
	})

	t.Run("drops entries for users without logging enabled", func(t *testing.T) {
		d := NewDispatcher()
		defer d.Close()
		sink := &recordingSink{}
		d.AddSink(sink)

		d.LogInteraction(context.Background(), "{}", "account.id", nil, "", "12345")

		time.Sleep(50 * time.Millisecond)
		assert.Empty(t, sink.snapshot())
	})

	t.Run("disable stops forwarding", func(t *testing.T) {
		d := NewDispatcher()
		defer d.Close()
		sink := &recordingSink{}
		d.AddSink(sink)
		d.Enable("12345")
		require.True(t, d.Enabled("12345"))
		d.Disable("12345")

		d.LogInteraction(context.Background(), "{}", "account.id", nil, "", "12345")
		time.Sleep(50 * time.Millisecond)
		assert.Empty(t, sink.snapshot())
	})

	t.Run("a slow sink loses entries without blocking the caller", func(t *testing.T) {
		d := NewDispatcher().WithSlowSinkTimeout(10 * time.Millisecond)
		defer d.Close()

		blocked := &recordingSink{block: make(chan struct{})}
		d.AddSink(blocked)
		d.Enable("12345")

		// One entry is parked in the sink call, 50 fill the buffer, the rest
		// must be dropped after the grace period rather than stalling here.
		start := time.Now()
		for i := 0; i < 55; i++ {
			d.LogInteraction(context.Background(), "{}", "account.id", nil, "", "12345")
		}
		assert.Less(t, time.Since(start), 2*time.Second)

		close(blocked.block)
		waitFor(t, func() bool { return len(blocked.snapshot()) >= 50 })
	})

	t.Run("removed sinks receive nothing further", func(t *testing.T) {
		d := NewDispatcher()
		defer d.Close()
		sink := &recordingSink{}
		id := d.AddSink(sink)
		d.Enable("12345")
		d.RemoveSink(id)

		d.LogInteraction(context.Background(), "{}", "account.id", nil, "", "12345")
		time.Sleep(50 * time.Millisecond)
		assert.Empty(t, sink.snapshot())
	})
}

type fakeConn struct {
	mu   sync.Mutex
	sent [][]byte
}

func (f *fakeConn) ID() string { return "fake" }

func (f *fakeConn) Send(p []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, p)
	return nil
}

func (f *fakeConn) Close() error { return nil }

func TestConnectionSink(t *testing.T) {
	conn := &fakeConn{}
	sink := NewConnectionSink(conn)

	err := sink.LogInteraction(context.Background(), Entry{Method: "account.id", UserKey: "12345"})
	require.NoError(t, err)

	conn.mu.Lock()
	defer conn.mu.Unlock()
	require.Len(t, conn.sent, 1)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(conn.sent[0], &decoded))
	assert.Equal(t, "account.id", decoded["method"])
	assert.Equal(t, "12345", decoded["user"])
}
