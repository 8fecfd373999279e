package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	json "github.com/goccy/go-json"

	"github.com/Nandana-NNR/mock-firebolt/api"
	"github.com/Nandana-NNR/mock-firebolt/internal/render"
	"github.com/Nandana-NNR/mock-firebolt/pkg/slogx"
)

// ErrNoGroupRegistrants reaches Report.OnFatal when broadcast fan-out
// resolves zero registered listeners even though the registration check
// found one. That is an invariant violation caused by a registration racing
// the group resolution, and the caller must hear about it.
var ErrNoGroupRegistrants = errors.New("broadcast resolved no registered listeners")

// Engine orchestrates event delivery: trigger pipeline, validation gate,
// listener resolution, wire shape selection and per-connection fan-out. It
// owns the Directory, Matcher, AckEmitter and Correlator it dispatches
// through.
type Engine struct {
	cfg        Config
	directory  *Directory
	matcher    *Matcher
	acks       *AckEmitter
	correlator *Correlator

	triggers     TriggerRunner
	validator    Validator
	recorder     CallRecorder
	interactions InteractionLogger
}

// New assembles an Engine from cfg and its collaborators.
func New(cfg Config, collab Collaborators) *Engine {
	return &Engine{
		cfg:          cfg,
		directory:    NewDirectory(collab.Groups),
		matcher:      NewMatcher(cfg.Subscribe, cfg.Unsubscribe, cfg.EventMethod),
		acks:         NewAckEmitter(cfg.SubscribeAck, cfg.UnsubscribeAck, collab.Recorder, collab.Interactions),
		correlator:   NewCorrelator(),
		triggers:     collab.Triggers,
		validator:    collab.Validator,
		recorder:     collab.Recorder,
		interactions: collab.Interactions,
	}
}

// Directory exposes the engine's listener directory.
func (e *Engine) Directory() *Directory { return e.directory }

// Matcher exposes the engine's control message matcher.
func (e *Engine) Matcher() *Matcher { return e.matcher }

// Acks exposes the engine's acknowledgment emitter.
func (e *Engine) Acks() *AckEmitter { return e.acks }

// HandleListen processes one inbound message if it is a subscription
// control message: subscribe registers conn then acks, unsubscribe
// deregisters conn then acks. The returned bool reports whether the
// message was consumed; a true return with an error means the ack failed
// after the directory was already mutated.
func (e *Engine) HandleListen(ctx context.Context, userKey string, conn api.Connection, message []byte) (bool, error) {
	if md, ok := e.matcher.Subscribe(message); ok {
		e.directory.Register(userKey, md, conn)
		slog.Debug("registered event listener", slogx.User(userKey), slogx.Method(md.Method), slogx.Conn(conn.ID()))
		return true, e.acks.SendSubscribeAck(ctx, userKey, conn, md)
	}
	if md, ok := e.matcher.Unsubscribe(message); ok {
		e.directory.Deregister(userKey, md, conn)
		slog.Debug("deregistered event listener", slogx.User(userKey), slogx.Method(md.Method), slogx.Conn(conn.ID()))
		return true, e.acks.SendUnsubscribeAck(ctx, userKey, conn, md)
	}
	return false, nil
}

// SendEvent delivers one event to userKey's listener for method. Exactly
// one Report callback fires: OnError with RegistrationError when no
// listener exists, OnError with ValidationError when the payload fails the
// validation gate, OnFatal for anything unexpected, OnSuccess otherwise.
func (e *Engine) SendEvent(ctx context.Context, userKey, method string, result any, report Report) {
	e.dispatch(ctx, userKey, method, result, false, report)
}

// SendBroadcast delivers one event to every user in userKey's broadcast
// group that is listening for method. Outcome reporting matches SendEvent,
// with one success covering the whole fan-out.
func (e *Engine) SendBroadcast(ctx context.Context, userKey, method string, result any, report Report) {
	e.dispatch(ctx, userKey, method, result, true, report)
}

func (e *Engine) dispatch(ctx context.Context, userKey, method string, result any, broadcast bool, report Report) {
	rep := &reporter{report: report}
	defer func() {
		if p := recover(); p != nil {
			slog.Error("dispatch panicked", slogx.User(userKey), slogx.Method(method), slog.Any("panic", p))
			rep.fatal(panicError(p))
		}
	}()

	registered := e.directory.IsRegistered(userKey, method)
	if broadcast {
		registered = e.directory.IsRegisteredInGroup(userKey, method)
	}
	if !registered {
		slog.Debug("no registered listener for event", slogx.User(userKey), slogx.Method(method))
		rep.errorOut(RegistrationError, method)
		return
	}

	finalResult := result
	if e.triggers != nil {
		conn := e.invokingConnection(userKey, method, broadcast)
		e.triggers.RunPre(ctx, userKey, method, conn)
		finalResult = e.triggers.RunPost(ctx, userKey, method, conn, result)
	}

	if e.cfg.ValidateEvents && e.validator != nil {
		if errs := e.validator.Validate(finalResult, method); len(errs) > 0 {
			for _, err := range errs {
				slog.Error("event payload failed validation", slogx.Method(method), slogx.Error(err))
			}
			rep.errorOut(ValidationError, method)
			return
		}
	}

	if broadcast {
		members := e.directory.GroupRegistrants(userKey, method)
		if len(members) == 0 {
			rep.fatal(fmt.Errorf("%w: method %s for user %s", ErrNoGroupRegistrants, method, userKey))
			return
		}
		for _, member := range members {
			if err := e.emitResponse(ctx, member, method, finalResult); err != nil {
				rep.fatal(err)
				return
			}
		}
	} else {
		if err := e.emitResponse(ctx, userKey, method, finalResult); err != nil {
			rep.fatal(err)
			return
		}
	}
	rep.success()
}

// invokingConnection picks the connection handed to triggers: the first
// subscribed connection for a single-target dispatch, none for a
// broadcast.
func (e *Engine) invokingConnection(userKey, method string, broadcast bool) api.Connection {
	if broadcast {
		return nil
	}
	listener, ok := e.directory.Get(userKey, method)
	if !ok || len(listener.Connections) == 0 {
		return nil
	}
	return listener.Connections[0]
}

// emitResponse renders and sends one delivery to every connection of the
// (userKey, method) listener. A listener that disappeared since the
// registration check is tolerated: triggers may legitimately deregister it
// mid-dispatch. Per-connection send failures are logged and isolated;
// render and encode failures are returned and become fatal.
func (e *Engine) emitResponse(ctx context.Context, userKey, method string, result any) error {
	listener, ok := e.directory.Get(userKey, method)
	if !ok {
		slog.Debug("listener gone before delivery, skipping", slogx.User(userKey), slogx.Method(method))
		return nil
	}

	resultJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode result for %s: %w", method, err)
	}

	if e.cfg.Bidirectional {
		requestMethod := ToRequestMethod(method)
		payload, err := e.correlator.BuildRequest(requestMethod, result)
		if err != nil {
			return fmt.Errorf("build request for %s: %w", method, err)
		}
		for _, conn := range listener.Connections {
			if err := conn.Send(payload); err != nil {
				slog.Error("send event request", slogx.User(userKey), slogx.Method(requestMethod), slogx.Conn(conn.ID()), slogx.Error(err))
				continue
			}
			slog.Debug("sent event request", slogx.User(userKey), slogx.Method(requestMethod), slogx.Conn(conn.ID()))
		}
		return nil
	}

	message := string(resultJSON)
	if e.cfg.Event != nil {
		data := listener.Metadata.templateData(render.Data{
			"result":       result,
			"resultAsJson": string(resultJSON),
		})
		message, err = e.cfg.Event.Render(data)
		if err != nil {
			return fmt.Errorf("render event for %s: %w", method, err)
		}
	}

	if e.recorder != nil {
		e.recorder.RecordResponse(method, message, kindEvent, userKey)
	}
	if e.interactions != nil {
		e.interactions.LogInteraction(ctx, message, method, result, "", userKey)
	}

	for _, conn := range listener.Connections {
		if err := conn.Send([]byte(message)); err != nil {
			slog.Error("send event", slog.String("type", e.cfg.EventType), slogx.User(userKey), slogx.Method(method), slogx.Conn(conn.ID()), slogx.Error(err))
			continue
		}
		slog.Debug("sent event", slog.String("type", e.cfg.EventType), slogx.User(userKey), slogx.Method(method), slogx.Conn(conn.ID()))
	}
	return nil
}

func panicError(p any) error {
	if err, ok := p.(error); ok {
		return err
	}
	return fmt.Errorf("dispatch panic: %v", p)
}
