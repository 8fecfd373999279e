// Package triggers runs the pre/post hooks registered per event method.
// Hooks observe or rewrite an event payload right before delivery and get a
// constrained capability context: logging, timers, user-scoped scratch
// state, connection control, id generation and nested dispatch. A broken
// hook can never break event delivery; every hook failure is logged and
// swallowed.
package triggers

import (
	"context"
	"log/slog"
	"sync"

	"github.com/Nandana-NNR/mock-firebolt/api"
	"github.com/Nandana-NNR/mock-firebolt/internal/registry"
	"github.com/Nandana-NNR/mock-firebolt/pkg/slogx"
	"github.com/Nandana-NNR/mock-firebolt/state"
	"github.com/Nandana-NNR/mock-firebolt/users"
)

// PreFunc runs before an event's payload is final. Errors are logged and
// otherwise ignored.
type PreFunc func(tc *Context) error

// PostFunc runs with the tentative payload. A non-nil return replaces the
// delivered result; a nil return or an error keeps the original.
type PostFunc func(tc *Context, result any) (any, error)

// Trigger is the optional hook pair for one method.
type Trigger struct {
	Pre  PreFunc
	Post PostFunc
}

// Dispatcher re-enters the event engine for sends issued from inside a
// hook. It is bound late, after the engine exists.
type Dispatcher interface {
	SendEvent(ctx context.Context, userKey, method string, result any)
	SendBroadcast(ctx context.Context, userKey, method string, result any)
}

// Pipeline is the method-indexed hook table and the runner that isolates
// hook failures from dispatch. Safe for concurrent use.
type Pipeline struct {
	triggers registry.Registry[Trigger]
	scratch  *state.Store
	users    *users.Directory

	mu         sync.RWMutex
	dispatcher Dispatcher
}

// New constructs a Pipeline over the given scratch store and connection
// directory.
func New(scratch *state.Store, userDir *users.Directory) *Pipeline {
	return &Pipeline{
		triggers: registry.New[Trigger](),
		scratch:  scratch,
		users:    userDir,
	}
}

// SetDispatcher binds the engine hooks dispatch through. Until it is
// called, nested sends are dropped with a warning.
func (p *Pipeline) SetDispatcher(d Dispatcher) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dispatcher = d
}

func (p *Pipeline) currentDispatcher() Dispatcher {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.dispatcher
}

// Register installs the hook pair for method, replacing any earlier pair.
func (p *Pipeline) Register(method string, trigger Trigger) {
	p.triggers.Add(method, trigger)
}

// Deregister removes the hook pair for method.
func (p *Pipeline) Deregister(method string) {
	p.triggers.Del(method)
}

// Registered reports whether method has a hook pair installed.
func (p *Pipeline) Registered(method string) bool {
	_, ok := p.triggers.Get(method)
	return ok
}

// RunPre invokes the pre hook for method, if any, with a fresh capability
// context. Hook errors and panics are logged and dispatch proceeds as if
// no hook existed.
func (p *Pipeline) RunPre(ctx context.Context, userKey, method string, conn api.Connection) {
	trigger, ok := p.triggers.Get(method)
	if !ok || trigger.Pre == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			slog.Error("pre trigger panicked", slogx.User(userKey), slogx.Method(method), slog.Any("panic", r))
		}
	}()
	if err := trigger.Pre(p.newContext(ctx, userKey, method, conn)); err != nil {
		slog.Error("pre trigger failed", slogx.User(userKey), slogx.Method(method), slogx.Error(err))
	}
}

// RunPost invokes the post hook for method, if any, with the tentative
// result, and returns the payload to deliver. The hook's non-nil return
// replaces the result; nil, an error or a panic keeps the original.
func (p *Pipeline) RunPost(ctx context.Context, userKey, method string, conn api.Connection, result any) (final any) {
	final = result
	trigger, ok := p.triggers.Get(method)
	if !ok || trigger.Post == nil {
		return final
	}
	defer func() {
		if r := recover(); r != nil {
			slog.Error("post trigger panicked", slogx.User(userKey), slogx.Method(method), slog.Any("panic", r))
			final = result
		}
	}()
	replacement, err := trigger.Post(p.newContext(ctx, userKey, method, conn), result)
	if err != nil {
		slog.Error("post trigger failed", slogx.User(userKey), slogx.Method(method), slogx.Error(err))
		return result
	}
	if replacement != nil {
		return replacement
	}
	return result
}
