package mockfirebolt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"time"

	"github.com/fogfish/opts"

	"github.com/Nandana-NNR/mock-firebolt/config"
	"github.com/Nandana-NNR/mock-firebolt/events"
	"github.com/Nandana-NNR/mock-firebolt/interactions"
	"github.com/Nandana-NNR/mock-firebolt/internal/render"
	"github.com/Nandana-NNR/mock-firebolt/internal/wsserver"
	"github.com/Nandana-NNR/mock-firebolt/pkg/slogx"
	"github.com/Nandana-NNR/mock-firebolt/schema"
	"github.com/Nandana-NNR/mock-firebolt/sessions"
	"github.com/Nandana-NNR/mock-firebolt/state"
	"github.com/Nandana-NNR/mock-firebolt/triggers"
	"github.com/Nandana-NNR/mock-firebolt/users"
)

// Server is the assembled mock Firebolt server. Construct it with New and
// the functional options in this package.
type Server struct {
	cfg             config.Config
	schemas         *schema.Registry
	pendingTriggers map[string]triggers.Trigger

	users        *users.Directory
	state        *state.Store
	sessions     *sessions.Recorder
	interactions *interactions.Dispatcher
	triggers     *triggers.Pipeline
	engine       *events.Engine

	handler http.Handler
}

// New assembles a Server. Without options it runs with config.Default().
// Construction compiles the configured matcher regexes and message
// templates, so a misconfigured pattern fails here rather than on the
// first message.
func New(options ...opts.Option[Server]) (*Server, error) {
	s := &Server{cfg: config.Default()}
	if err := opts.Apply(s, options); err != nil {
		return nil, err
	}

	core, err := buildEventsConfig(s.cfg)
	if err != nil {
		return nil, err
	}

	s.users = users.NewDirectory()
	s.state = state.New()
	s.sessions = sessions.NewRecorder()
	s.interactions = interactions.NewDispatcher()
	if s.schemas == nil {
		s.schemas = schema.NewRegistry()
	}
	s.triggers = triggers.New(s.state, s.users)
	for method, trigger := range s.pendingTriggers {
		s.triggers.Register(method, trigger)
	}
	s.pendingTriggers = nil

	s.engine = events.New(core, events.Collaborators{
		Groups:       s.users,
		Triggers:     s.triggers,
		Validator:    s.schemas,
		Recorder:     s.sessions,
		Interactions: s.interactions,
	})
	s.triggers.SetDispatcher(engineDispatcher{engine: s.engine})

	mux := http.NewServeMux()
	mux.Handle("/api/v1/ws", wsserver.New(wsserver.Deps{
		Engine:         s.engine,
		Users:          s.users,
		State:          s.state,
		Sessions:       s.sessions,
		Interactions:   s.interactions,
		DefaultUser:    s.cfg.DefaultUser,
		ValidateMethod: s.cfg.Validates(config.StageMethod),
	}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	s.handler = mux

	return s, nil
}

// Config returns the resolved configuration the server was built with.
func (s *Server) Config() config.Config { return s.cfg }

// Users returns the connection directory.
func (s *Server) Users() *users.Directory { return s.users }

// State returns the scratch-state and method-override store.
func (s *Server) State() *state.Store { return s.state }

// Sessions returns the call recorder.
func (s *Server) Sessions() *sessions.Recorder { return s.sessions }

// Interactions returns the interaction-log dispatcher, for attaching sinks.
func (s *Server) Interactions() *interactions.Dispatcher { return s.interactions }

// Schemas returns the payload schema registry.
func (s *Server) Schemas() *schema.Registry { return s.schemas }

// Triggers returns the hook pipeline, for registering triggers at runtime.
func (s *Server) Triggers() *triggers.Pipeline { return s.triggers }

// Events returns the dispatch engine.
func (s *Server) Events() *events.Engine { return s.engine }

// Handler returns the HTTP handler serving the websocket endpoint and the
// health probe. Useful for mounting in tests or a larger mux.
func (s *Server) Handler() http.Handler { return s.handler }

// SendEvent dispatches an event to one user's listeners.
func (s *Server) SendEvent(ctx context.Context, userKey, method string, result any, report events.Report) {
	s.engine.SendEvent(ctx, userKey, method, result, report)
}

// SendBroadcast dispatches an event to every registered member of the
// user's group.
func (s *Server) SendBroadcast(ctx context.Context, userKey, method string, result any, report events.Report) {
	s.engine.SendBroadcast(ctx, userKey, method, result, report)
}

// ListenAndServe serves until ctx is canceled, then closes every client
// connection, drains the HTTP server and the interaction dispatcher, and
// returns. A listener error surfaces immediately.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr(),
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("mock firebolt listening", slog.String("addr", srv.Addr))
		err := srv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			return
		}
		serveErr <- nil
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	// Hijacked websockets are invisible to http.Server.Shutdown; close
	// them first so their read loops exit.
	for _, userKey := range s.users.Users() {
		s.users.CloseAllConnections(userKey)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	<-serveErr
	s.interactions.Close()
	slog.Info("mock firebolt stopped")
	return err
}

// engineDispatcher adapts the event engine to the narrow dispatch surface
// triggers see. Outcomes of trigger-initiated sends only get logged; there
// is no caller to report back to.
type engineDispatcher struct {
	engine *events.Engine
}

func (d engineDispatcher) SendEvent(ctx context.Context, userKey, method string, result any) {
	d.engine.SendEvent(ctx, userKey, method, result, loggedReport(userKey))
}

func (d engineDispatcher) SendBroadcast(ctx context.Context, userKey, method string, result any) {
	d.engine.SendBroadcast(ctx, userKey, method, result, loggedReport(userKey))
}

func loggedReport(userKey string) events.Report {
	return events.Report{
		OnError: func(kind events.ErrorKind, method string) {
			slog.Debug("trigger-sent event not delivered",
				slogx.User(userKey), slogx.Method(method), slog.String("kind", string(kind)))
		},
		OnFatal: func(err error) {
			slog.Error("trigger-sent event failed", slogx.User(userKey), slogx.Error(err))
		},
	}
}

// buildEventsConfig compiles the string-typed wire configuration into the
// matcher regexes and parsed templates dispatch runs against.
func buildEventsConfig(cfg config.Config) (events.Config, error) {
	subscribe, err := compileProfile(cfg.Events.Registration)
	if err != nil {
		return events.Config{}, fmt.Errorf("compile registration profile: %w", err)
	}
	unsubscribe, err := compileProfile(cfg.Events.UnRegistration)
	if err != nil {
		return events.Config{}, fmt.Errorf("compile unregistration profile: %w", err)
	}

	var eventMethod *regexp.Regexp
	if cfg.Events.EventMethod != "" {
		eventMethod, err = regexp.Compile(cfg.Events.EventMethod)
		if err != nil {
			return events.Config{}, fmt.Errorf("compile event method pattern: %w", err)
		}
	}

	subscribeAck, err := parseTemplate("registrationAck", cfg.Events.RegistrationAck)
	if err != nil {
		return events.Config{}, err
	}
	unsubscribeAck, err := parseTemplate("unRegistrationAck", cfg.Events.UnRegistrationAck)
	if err != nil {
		return events.Config{}, err
	}
	event, err := parseTemplate("event", cfg.Events.Event)
	if err != nil {
		return events.Config{}, err
	}

	return events.Config{
		Bidirectional:  cfg.Bidirectional,
		ValidateEvents: cfg.Validates(config.StageEvents),
		EventType:      cfg.Events.EventType,
		Subscribe:      subscribe,
		Unsubscribe:    unsubscribe,
		EventMethod:    eventMethod,
		SubscribeAck:   subscribeAck,
		UnsubscribeAck: unsubscribeAck,
		Event:          event,
	}, nil
}

func compileProfile(p config.MatchProfile) (events.MatchProfile, error) {
	if p.SearchRegex == "" {
		return events.MatchProfile{}, nil
	}
	search, err := regexp.Compile(p.SearchRegex)
	if err != nil {
		return events.MatchProfile{}, err
	}
	return events.MatchProfile{Search: search, MethodQuery: p.Method}, nil
}

// parseTemplate treats an empty template string as "not configured".
func parseTemplate(name, text string) (*render.Template, error) {
	if text == "" {
		return nil, nil
	}
	tmpl, err := render.Parse(name, text)
	if err != nil {
		return nil, fmt.Errorf("parse %s template: %w", name, err)
	}
	return tmpl, nil
}
