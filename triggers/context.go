package triggers

import (
	"context"
	"log/slog"
	"time"

	"github.com/Nandana-NNR/mock-firebolt/api"
	"github.com/Nandana-NNR/mock-firebolt/pkg/slogx"
	"github.com/Nandana-NNR/mock-firebolt/pkg/uuidx"
	"github.com/Nandana-NNR/mock-firebolt/state"
)

// Context is the capability bundle handed to one hook invocation. It lives
// only for that call: hooks that need to act later schedule a timer and
// capture what they need.
type Context struct {
	// Context is the dispatch context, for hooks that call context-aware
	// APIs or nested sends.
	Context context.Context
	// UserKey and Method identify the dispatch that triggered the hook.
	UserKey string
	Method  string
	// Log is pre-scoped to the user and method.
	Log *slog.Logger

	conn     api.Connection
	pipeline *Pipeline
}

func (p *Pipeline) newContext(ctx context.Context, userKey, method string, conn api.Connection) *Context {
	return &Context{
		Context:  ctx,
		UserKey:  userKey,
		Method:   method,
		Log:      slog.With(slogx.User(userKey), slogx.Method(method)),
		conn:     conn,
		pipeline: p,
	}
}

// SetTimeout schedules fn after d. The timer is returned for the hook to
// keep if it wants to cancel; the pipeline does not track it, and whatever
// fn does runs outside the current dispatch's ordering guarantees.
func (c *Context) SetTimeout(d time.Duration, fn func()) *time.Timer {
	return time.AfterFunc(d, fn)
}

// Get reads a user-scoped scratch value.
func (c *Context) Get(key string) (any, bool) {
	return c.pipeline.scratch.Get(c.UserKey, key)
}

// Set writes a user-scoped scratch value.
func (c *Context) Set(key string, value any) {
	c.pipeline.scratch.Set(c.UserKey, key, value)
}

// Delete removes a user-scoped scratch value.
func (c *Context) Delete(key string) {
	c.pipeline.scratch.Delete(c.UserKey, key)
}

// GetScoped reads a scratch value under an explicit scope qualifier.
func (c *Context) GetScoped(scope state.Scope, key string) (any, bool) {
	return c.pipeline.scratch.GetScoped(scope, c.UserKey, key)
}

// SetScoped writes a scratch value under an explicit scope qualifier.
func (c *Context) SetScoped(scope state.Scope, key string, value any) {
	c.pipeline.scratch.SetScoped(scope, c.UserKey, key, value)
}

// DeleteScoped removes a scratch value under an explicit scope qualifier.
func (c *Context) DeleteScoped(scope state.Scope, key string) {
	c.pipeline.scratch.DeleteScoped(scope, c.UserKey, key)
}

// CloseConnection closes the connection whose dispatch invoked the hook.
// Broadcast dispatches carry no single invoking connection; the call then
// logs and does nothing.
func (c *Context) CloseConnection() error {
	if c.conn == nil {
		c.Log.Warn("no invoking connection to close")
		return nil
	}
	return c.pipeline.users.CloseConnection(c.UserKey, c.conn)
}

// CloseAllConnections closes every connection of the user.
func (c *Context) CloseAllConnections() {
	c.pipeline.users.CloseAllConnections(c.UserKey)
}

// NewID returns a fresh unique identifier.
func (c *Context) NewID() string {
	return uuidx.NewString()
}

// SendEvent dispatches another event to this user from inside the hook.
// Delivery happens synchronously before this call returns.
func (c *Context) SendEvent(method string, result any) {
	d := c.pipeline.currentDispatcher()
	if d == nil {
		c.Log.Warn("no dispatcher bound, dropping nested send", slogx.Method(method))
		return
	}
	d.SendEvent(c.Context, c.UserKey, method, result)
}

// SendBroadcast dispatches another event to this user's whole broadcast
// group from inside the hook.
func (c *Context) SendBroadcast(method string, result any) {
	d := c.pipeline.currentDispatcher()
	if d == nil {
		c.Log.Warn("no dispatcher bound, dropping nested send", slogx.Method(method))
		return
	}
	d.SendBroadcast(c.Context, c.UserKey, method, result)
}
