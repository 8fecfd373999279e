package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nandana-NNR/mock-firebolt/internal/render"
)

func TestSendSubscribeAck(t *testing.T) {
	cfg := testConfig(t)
	m := NewMatcher(cfg.Subscribe, cfg.Unsubscribe, cfg.EventMethod)
	md, ok := m.Subscribe([]byte(`{"method":"lifecycle.onInactive","params":{"listen":true},"id":1}`))
	require.True(t, ok)

	t.Run("renders and sends the exact ack", func(t *testing.T) {
		conn := newFakeConn("c1")
		acks := NewAckEmitter(cfg.SubscribeAck, cfg.UnsubscribeAck, nil, nil)

		require.NoError(t, acks.SendSubscribeAck(context.Background(), "user1", conn, md))

		messages := conn.messages()
		require.Len(t, messages, 1)
		assert.Equal(t, `{"jsonrpc":"2.0","id":1,"result":{"listening":true,"event":"lifecycle.onInactive"}}`, messages[0])
	})

	t.Run("records the parsed ack result and forwards an interaction copy", func(t *testing.T) {
		conn := newFakeConn("c1")
		recorder := &fakeRecorder{}
		interactions := &fakeInteractions{}
		acks := NewAckEmitter(cfg.SubscribeAck, cfg.UnsubscribeAck, recorder, interactions)

		require.NoError(t, acks.SendSubscribeAck(context.Background(), "user1", conn, md))

		calls := recorder.snapshot()
		require.Len(t, calls, 1)
		assert.Equal(t, "lifecycle.onInactive", calls[0].method)
		assert.Equal(t, "result", calls[0].kind)
		assert.Equal(t, "user1", calls[0].userKey)
		result, isMap := calls[0].result.(map[string]any)
		require.True(t, isMap)
		assert.Equal(t, true, result["listening"])
		assert.Equal(t, "lifecycle.onInactive", result["event"])

		logs := interactions.snapshot()
		require.Len(t, logs, 1)
		assert.Equal(t, "lifecycle.onInactive", logs[0].method)
		assert.Equal(t, "user1", logs[0].userKey)
		assert.JSONEq(t, `{"jsonrpc":"2.0","id":1,"result":{"listening":true,"event":"lifecycle.onInactive"}}`, logs[0].message)
	})

	t.Run("render failures are returned, nothing is sent", func(t *testing.T) {
		conn := newFakeConn("c1")
		acks := NewAckEmitter(cfg.SubscribeAck, cfg.UnsubscribeAck, nil, nil)

		incomplete := Metadata{
			Registration:   map[string]any{"method": "lifecycle.onInactive"},
			UnRegistration: map[string]any{},
			Method:         "lifecycle.onInactive",
		}
		err := acks.SendSubscribeAck(context.Background(), "user1", conn, incomplete)
		require.Error(t, err)
		assert.Empty(t, conn.messages())
	})

	t.Run("send failures are returned", func(t *testing.T) {
		conn := newFakeConn("c1")
		conn.fail = errors.New("socket closed")
		acks := NewAckEmitter(cfg.SubscribeAck, cfg.UnsubscribeAck, nil, nil)

		err := acks.SendSubscribeAck(context.Background(), "user1", conn, md)
		require.ErrorContains(t, err, "socket closed")
	})

	t.Run("a missing template is reported", func(t *testing.T) {
		acks := NewAckEmitter(nil, nil, nil, nil)
		err := acks.SendSubscribeAck(context.Background(), "user1", newFakeConn("c1"), md)
		require.ErrorIs(t, err, ErrNoAckTemplate)
	})
}

func TestSendUnsubscribeAck(t *testing.T) {
	cfg := testConfig(t)
	m := NewMatcher(cfg.Subscribe, cfg.Unsubscribe, cfg.EventMethod)
	md, ok := m.Unsubscribe([]byte(`{"method":"lifecycle.onInactive","params":{"listen":false},"id":2}`))
	require.True(t, ok)

	t.Run("renders and sends the exact ack", func(t *testing.T) {
		conn := newFakeConn("c1")
		acks := NewAckEmitter(cfg.SubscribeAck, cfg.UnsubscribeAck, nil, nil)

		require.NoError(t, acks.SendUnsubscribeAck(context.Background(), "user1", conn, md))

		messages := conn.messages()
		require.Len(t, messages, 1)
		assert.Equal(t, `{"jsonrpc":"2.0","id":2,"result":{"listening":false,"event":"lifecycle.onInactive"}}`, messages[0])
	})

	t.Run("has no recording or interaction side effects", func(t *testing.T) {
		conn := newFakeConn("c1")
		recorder := &fakeRecorder{}
		interactions := &fakeInteractions{}
		acks := NewAckEmitter(cfg.SubscribeAck, cfg.UnsubscribeAck, recorder, interactions)

		require.NoError(t, acks.SendUnsubscribeAck(context.Background(), "user1", conn, md))

		assert.Empty(t, recorder.snapshot())
		assert.Empty(t, interactions.snapshot())
	})
}

func TestAckResultFallback(t *testing.T) {
	t.Run("acks without a result field are recorded verbatim", func(t *testing.T) {
		tmpl, err := render.Parse("bareAck", `{"jsonrpc":"2.0","id":{{.registration.id}}}`)
		require.NoError(t, err)

		recorder := &fakeRecorder{}
		acks := NewAckEmitter(tmpl, nil, recorder, nil)
		md := Metadata{
			Registration:   map[string]any{"id": 4},
			UnRegistration: map[string]any{},
			Method:         "device.onNameChanged",
		}

		require.NoError(t, acks.SendSubscribeAck(context.Background(), "user1", newFakeConn("c1"), md))

		calls := recorder.snapshot()
		require.Len(t, calls, 1)
		assert.Equal(t, `{"jsonrpc":"2.0","id":4}`, calls[0].result)
	})
}
