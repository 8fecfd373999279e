package mockfirebolt

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nandana-NNR/mock-firebolt/config"
	"github.com/Nandana-NNR/mock-firebolt/events"
	"github.com/Nandana-NNR/mock-firebolt/schema"
	"github.com/Nandana-NNR/mock-firebolt/triggers"
)

func dialWS(t *testing.T, baseURL, userID string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(baseURL, "http") + "/api/v1/ws?userId=" + userID
	c, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func writeFrame(t *testing.T, c *websocket.Conn, message string) {
	t.Helper()
	require.NoError(t, c.WriteMessage(websocket.TextMessage, []byte(message)))
}

func readFrame(t *testing.T, c *websocket.Conn) string {
	t.Helper()
	require.NoError(t, c.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, message, err := c.ReadMessage()
	require.NoError(t, err)
	return string(message)
}

func TestNew(t *testing.T) {
	t.Run("defaults produce a working server", func(t *testing.T) {
		srv, err := New()
		require.NoError(t, err)

		assert.Equal(t, 9998, srv.Config().Port)
		assert.NotNil(t, srv.Users())
		assert.NotNil(t, srv.State())
		assert.NotNil(t, srv.Sessions())
		assert.NotNil(t, srv.Interactions())
		assert.NotNil(t, srv.Schemas())
		assert.NotNil(t, srv.Triggers())
		assert.NotNil(t, srv.Events())
		assert.NotNil(t, srv.Handler())
	})

	t.Run("a broken matcher pattern fails construction", func(t *testing.T) {
		cfg := config.Default()
		cfg.Events.Registration.SearchRegex = `(`

		_, err := New(WithConfig(cfg))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "registration profile")
	})

	t.Run("a broken message template fails construction", func(t *testing.T) {
		cfg := config.Default()
		cfg.Events.RegistrationAck = `{{.registration.id`

		_, err := New(WithConfig(cfg))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "registrationAck template")
	})
}

func TestServerEndToEnd(t *testing.T) {
	t.Run("the health probe answers ok", func(t *testing.T) {
		srv, err := New()
		require.NoError(t, err)
		ts := httptest.NewServer(srv.Handler())
		t.Cleanup(ts.Close)

		resp, err := http.Get(ts.URL + "/healthz")
		require.NoError(t, err)
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, `{"status":"ok"}`, string(body))
	})

	t.Run("subscribe and dispatch work with the stock configuration", func(t *testing.T) {
		srv, err := New()
		require.NoError(t, err)
		ts := httptest.NewServer(srv.Handler())
		t.Cleanup(ts.Close)

		c := dialWS(t, ts.URL, "123")
		writeFrame(t, c, `{"jsonrpc":"2.0","method":"lifecycle.onInactive","params":{"listen":true},"id":1}`)
		require.Equal(t,
			`{"jsonrpc":"2.0","id":1,"result":{"listening":true,"event":"lifecycle.onInactive"}}`,
			readFrame(t, c))

		srv.SendEvent(context.Background(), "123", "lifecycle.onInactive",
			map[string]any{"state": "inactive"}, events.Report{})

		require.Equal(t, `{"result":{"state":"inactive"},"id":1,"jsonrpc":"2.0"}`, readFrame(t, c))
	})

	t.Run("a trigger registered through options rewrites the payload", func(t *testing.T) {
		srv, err := New(WithTrigger("lifecycle.onInactive", triggers.Trigger{
			Post: func(_ *triggers.Context, _ any) (any, error) {
				return map[string]any{"state": "suspended"}, nil
			},
		}))
		require.NoError(t, err)
		ts := httptest.NewServer(srv.Handler())
		t.Cleanup(ts.Close)

		c := dialWS(t, ts.URL, "123")
		writeFrame(t, c, `{"jsonrpc":"2.0","method":"lifecycle.onInactive","params":{"listen":true},"id":1}`)
		readFrame(t, c)

		srv.SendEvent(context.Background(), "123", "lifecycle.onInactive",
			map[string]any{"state": "inactive"}, events.Report{})

		require.Equal(t, `{"result":{"state":"suspended"},"id":1,"jsonrpc":"2.0"}`, readFrame(t, c))
	})

	t.Run("schema validation blocks invalid payloads and passes valid ones", func(t *testing.T) {
		reg := schema.NewRegistry()
		require.NoError(t, reg.Register("lifecycle.onInactive", []byte(
			`{"type":"object","required":["state"],"properties":{"state":{"type":"string"}}}`)))

		srv, err := New(WithSchemas(reg))
		require.NoError(t, err)
		ts := httptest.NewServer(srv.Handler())
		t.Cleanup(ts.Close)

		c := dialWS(t, ts.URL, "123")
		writeFrame(t, c, `{"jsonrpc":"2.0","method":"lifecycle.onInactive","params":{"listen":true},"id":1}`)
		readFrame(t, c)

		kinds := make(chan events.ErrorKind, 1)
		srv.SendEvent(context.Background(), "123", "lifecycle.onInactive",
			map[string]any{"wrong": true},
			events.Report{OnError: func(kind events.ErrorKind, _ string) { kinds <- kind }})
		require.Equal(t, events.ValidationError, <-kinds)

		srv.SendEvent(context.Background(), "123", "lifecycle.onInactive",
			map[string]any{"state": "inactive"}, events.Report{})
		require.Equal(t, `{"result":{"state":"inactive"},"id":1,"jsonrpc":"2.0"}`, readFrame(t, c))
	})

	t.Run("the mock responder serves overrides through the full stack", func(t *testing.T) {
		srv, err := New()
		require.NoError(t, err)
		srv.State().SetMethodResult("123", "device.id", "STACK1")
		ts := httptest.NewServer(srv.Handler())
		t.Cleanup(ts.Close)

		c := dialWS(t, ts.URL, "123")
		writeFrame(t, c, `{"jsonrpc":"2.0","method":"device.id","params":{},"id":4}`)

		require.Equal(t, `{"jsonrpc":"2.0","id":4,"result":"STACK1"}`, readFrame(t, c))
	})
}

func TestListenAndServe(t *testing.T) {
	t.Run("the server drains and stops when the context is canceled", func(t *testing.T) {
		cfg := config.Default()
		cfg.Port = 0
		srv, err := New(WithConfig(cfg))
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- srv.ListenAndServe(ctx) }()

		time.Sleep(50 * time.Millisecond)
		cancel()

		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(3 * time.Second):
			t.Fatal("server did not stop after cancel")
		}
	})

	t.Run("a listener error surfaces immediately", func(t *testing.T) {
		cfg := config.Default()
		cfg.Port = -1
		srv, err := New(WithConfig(cfg))
		require.NoError(t, err)

		err = srv.ListenAndServe(context.Background())
		require.Error(t, err)
	})
}
