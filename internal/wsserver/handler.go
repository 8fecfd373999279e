// Package wsserver is the websocket transport in front of the event core.
// One endpoint upgrades each client into a connection keyed by userId, a
// read loop routes subscription traffic into the dispatch engine, and a
// mock responder answers every other call from the configured method
// overrides.
package wsserver

import (
	"context"
	"log/slog"
	"net/http"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/Nandana-NNR/mock-firebolt/api"
	"github.com/Nandana-NNR/mock-firebolt/events"
	"github.com/Nandana-NNR/mock-firebolt/interactions"
	"github.com/Nandana-NNR/mock-firebolt/pkg/jsonx"
	"github.com/Nandana-NNR/mock-firebolt/pkg/slogx"
	"github.com/Nandana-NNR/mock-firebolt/pkg/uuidx"
	"github.com/Nandana-NNR/mock-firebolt/sessions"
	"github.com/Nandana-NNR/mock-firebolt/state"
	"github.com/Nandana-NNR/mock-firebolt/users"
)

// JSON-RPC 2.0 error codes the mock responder emits.
const (
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
)

// Deps are the collaborators a Handler drives. Engine, Users, State,
// Sessions and Interactions must be non-nil.
type Deps struct {
	Engine       *events.Engine
	Users        *users.Directory
	State        *state.Store
	Sessions     *sessions.Recorder
	Interactions *interactions.Dispatcher

	// DefaultUser keys connections whose request names no userId.
	DefaultUser string
	// ValidateMethod rejects calls without an id and a string method with
	// an invalid-request error instead of guessing at intent.
	ValidateMethod bool
}

// Handler upgrades websocket clients and drives their read loops until the
// socket closes. Mount it on the ws route of the server mux.
type Handler struct {
	engine       *events.Engine
	users        *users.Directory
	state        *state.Store
	sessions     *sessions.Recorder
	interactions *interactions.Dispatcher

	defaultUser    string
	validateMethod bool

	upgrader websocket.Upgrader
}

// New builds a Handler around its collaborators.
func New(deps Deps) *Handler {
	return &Handler{
		engine:         deps.Engine,
		users:          deps.Users,
		state:          deps.State,
		sessions:       deps.Sessions,
		interactions:   deps.Interactions,
		defaultUser:    deps.DefaultUser,
		validateMethod: deps.ValidateMethod,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Mock server for local development; cross-origin pages are
			// expected callers.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// ServeHTTP upgrades the request and serves the connection until the peer
// hangs up. The userId query parameter keys the connection; absent, the
// configured default user owns it.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userKey := r.URL.Query().Get("userId")
	if userKey == "" {
		userKey = h.defaultUser
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", slogx.User(userKey), slogx.Error(err))
		return
	}

	c := &conn{id: uuidx.NewString(), remote: r.RemoteAddr, ws: ws}
	h.users.AddConnection(userKey, c)
	slog.Info("connection opened",
		slogx.User(userKey),
		slogx.Conn(c.ID()),
		slog.String("remote", c.RemoteAddr()))

	h.readLoop(r.Context(), userKey, c)
}

func (h *Handler) readLoop(ctx context.Context, userKey string, c *conn) {
	defer func() {
		h.users.RemoveConnection(userKey, c.ID())
		h.engine.Directory().DropConnection(userKey, c.ID())
		_ = c.Close()
		slog.Info("connection closed", slogx.User(userKey), slogx.Conn(c.ID()))
	}()

	for {
		kind, message, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived) {
				slog.Warn("websocket read failed",
					slogx.User(userKey), slogx.Conn(c.ID()), slogx.Error(err))
			}
			return
		}
		if kind != websocket.TextMessage {
			continue
		}
		h.handle(ctx, userKey, c, message)
	}
}

// handle routes one inbound message: subscription traffic goes to the event
// core, everything else to the mock responder.
func (h *Handler) handle(ctx context.Context, userKey string, c *conn, message []byte) {
	slog.Debug("received message",
		slogx.User(userKey), slogx.Conn(c.ID()), slog.String("message", string(message)))

	handled, err := h.engine.HandleListen(ctx, userKey, c, message)
	if err != nil {
		slog.Error("acknowledge listen message", slogx.User(userKey), slogx.Error(err))
		return
	}
	if handled {
		return
	}
	h.respond(ctx, userKey, c, message)
}

// respond answers a non-subscription call. Overridden methods reply with
// the configured result, unknown methods with a method-not-found error.
func (h *Handler) respond(ctx context.Context, userKey string, c *conn, message []byte) {
	id := gjson.GetBytes(message, "id")
	method := gjson.GetBytes(message, "method")

	if h.validateMethod && (!id.Exists() || method.Type != gjson.String || method.Str == "") {
		h.sendError(userKey, c, id, method.Str, codeInvalidRequest, "Invalid request")
		return
	}
	if method.Type != gjson.String || method.Str == "" {
		slog.Debug("ignoring message without a method", slogx.User(userKey), slogx.Conn(c.ID()))
		return
	}

	var params any
	if p := gjson.GetBytes(message, "params"); p.Exists() {
		params, _ = jsonx.DecodeValue([]byte(p.Raw))
	}
	h.interactions.LogInteraction(ctx, string(message), method.Str, params, api.ConnInfo(c), userKey)

	result, ok := h.state.MethodResult(userKey, method.Str)
	if !ok {
		h.sendError(userKey, c, id, method.Str, codeMethodNotFound, "Method not found")
		return
	}

	serialized, err := json.Marshal(result)
	if err != nil {
		slog.Error("serialize method result",
			slogx.User(userKey), slogx.Method(method.Str), slogx.Error(err))
		return
	}
	reply, err := buildReply(id, "result", serialized)
	if err != nil {
		slog.Error("assemble method response",
			slogx.User(userKey), slogx.Method(method.Str), slogx.Error(err))
		return
	}

	if err := c.Send(reply); err != nil {
		slog.Warn("send method response",
			slogx.User(userKey), slogx.Conn(c.ID()), slogx.Error(err))
		return
	}
	h.sessions.RecordResponse(method.Str, result, sessions.KindResult, userKey)
	slog.Debug("answered method call", slogx.User(userKey), slogx.Method(method.Str))
}

func (h *Handler) sendError(userKey string, c *conn, id gjson.Result, method string, code int, text string) {
	detail := map[string]any{"code": code, "message": text}
	serialized, err := json.Marshal(detail)
	if err != nil {
		slog.Error("serialize error response", slogx.User(userKey), slogx.Error(err))
		return
	}
	reply, err := buildReply(id, "error", serialized)
	if err != nil {
		slog.Error("assemble error response", slogx.User(userKey), slogx.Error(err))
		return
	}

	if err := c.Send(reply); err != nil {
		slog.Warn("send error response",
			slogx.User(userKey), slogx.Conn(c.ID()), slogx.Error(err))
		return
	}
	h.sessions.RecordResponse(method, detail, sessions.KindError, userKey)
	slog.Debug("answered with error",
		slogx.User(userKey), slogx.Method(method), slog.Int("code", code))
}

// buildReply assembles a JSON-RPC reply skeleton carrying the caller's id
// and one raw-encoded body field, either "result" or "error".
func buildReply(id gjson.Result, field string, body []byte) ([]byte, error) {
	reply, err := sjson.SetRawBytes([]byte(`{"jsonrpc":"2.0"}`), "id", rawID(id))
	if err != nil {
		return nil, err
	}
	return sjson.SetRawBytes(reply, field, body)
}

// rawID preserves the caller's id verbatim, number or string alike. A
// missing id echoes back as null.
func rawID(id gjson.Result) []byte {
	if !id.Exists() {
		return []byte("null")
	}
	return []byte(id.Raw)
}
