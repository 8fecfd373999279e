package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tidwall/gjson"

	"github.com/Nandana-NNR/mock-firebolt/api"
	"github.com/Nandana-NNR/mock-firebolt/internal/render"
	"github.com/Nandana-NNR/mock-firebolt/pkg/jsonx"
	"github.com/Nandana-NNR/mock-firebolt/pkg/slogx"
)

// ErrNoAckTemplate is returned when an acknowledgment is requested but the
// matching template was never configured.
var ErrNoAckTemplate = errors.New("no acknowledgment template configured")

// AckEmitter renders and sends the acknowledgment for a (un)subscription.
// Render and send failures return to the caller untouched: a subscription
// the app cannot be told about is caller-fatal.
type AckEmitter struct {
	subscribe    *render.Template
	unsubscribe  *render.Template
	recorder     CallRecorder
	interactions InteractionLogger
}

// NewAckEmitter constructs an AckEmitter. recorder and interactions may be
// nil, disabling the subscribe-ack side effects.
func NewAckEmitter(subscribe, unsubscribe *render.Template, recorder CallRecorder, interactions InteractionLogger) *AckEmitter {
	return &AckEmitter{
		subscribe:    subscribe,
		unsubscribe:  unsubscribe,
		recorder:     recorder,
		interactions: interactions,
	}
}

// SendSubscribeAck acknowledges a subscription on conn. The rendered ack
// additionally lands in the user's recording session and, for users with
// interaction logging enabled, in the interaction log. Only the subscribe
// side carries these extras; the unsubscribe ack deliberately does not.
func (a *AckEmitter) SendSubscribeAck(ctx context.Context, userKey string, conn api.Connection, md Metadata) error {
	message, err := a.renderAck(a.subscribe, md)
	if err != nil {
		return fmt.Errorf("subscribe ack for %s: %w", md.Method, err)
	}
	if err := conn.Send([]byte(message)); err != nil {
		return fmt.Errorf("send subscribe ack for %s: %w", md.Method, err)
	}
	slog.Debug("sent subscribe ack", slogx.User(userKey), slogx.Method(md.Method), slogx.Conn(conn.ID()))

	if a.recorder != nil {
		a.recorder.RecordResponse(md.Method, ackResult(message), kindResult, userKey)
	}
	if a.interactions != nil {
		a.interactions.LogInteraction(ctx, message, md.Method, md.Registration["params"], api.ConnInfo(conn), userKey)
	}
	return nil
}

// SendUnsubscribeAck acknowledges the end of a subscription on conn.
func (a *AckEmitter) SendUnsubscribeAck(_ context.Context, userKey string, conn api.Connection, md Metadata) error {
	message, err := a.renderAck(a.unsubscribe, md)
	if err != nil {
		return fmt.Errorf("unsubscribe ack for %s: %w", md.Method, err)
	}
	if err := conn.Send([]byte(message)); err != nil {
		return fmt.Errorf("send unsubscribe ack for %s: %w", md.Method, err)
	}
	slog.Debug("sent unsubscribe ack", slogx.User(userKey), slogx.Method(md.Method), slogx.Conn(conn.ID()))
	return nil
}

func (a *AckEmitter) renderAck(tmpl *render.Template, md Metadata) (string, error) {
	if tmpl == nil {
		return "", ErrNoAckTemplate
	}
	return tmpl.Render(md.templateData(nil))
}

// ackResult extracts the decoded result object from a rendered ack, so the
// recording session stores structure rather than bytes. Acks rendered by a
// template without a result field are recorded verbatim.
func ackResult(message string) any {
	result := gjson.Get(message, "result")
	if !result.Exists() {
		return message
	}
	decoded, err := jsonx.DecodeValue([]byte(result.Raw))
	if err != nil {
		return message
	}
	return decoded
}
