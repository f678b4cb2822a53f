// Package server assembles all HTTP handlers and the background workers
// and runs them until the context ends.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/matthewbaird/casedesk/internal/activity"
	"github.com/matthewbaird/casedesk/internal/apiclient"
	"github.com/matthewbaird/casedesk/internal/builder"
	"github.com/matthewbaird/casedesk/internal/config"
	"github.com/matthewbaird/casedesk/internal/eventbus"
	"github.com/matthewbaird/casedesk/internal/handler"
	"github.com/matthewbaird/casedesk/internal/live"
	"github.com/matthewbaird/casedesk/internal/notify"
	"github.com/matthewbaird/casedesk/internal/types"
)

// Upstream is everything the server needs from the external API.
type Upstream interface {
	handler.TemplateAPI
	handler.RecordAPI
	handler.AuthAPI
	notify.Registrar
}

var _ Upstream = (*apiclient.Client)(nil)

// Server owns the router and the long-running parts behind it.
type Server struct {
	cfg      *config.Config
	logger   *zap.Logger
	bus      *eventbus.Bus
	sessions *builder.Manager
	hub      *live.Hub
	feed     *activity.MemoryStore
	router   chi.Router
}

// New builds a server talking to the API configured in cfg.
func New(cfg *config.Config, logger *zap.Logger) *Server {
	api := apiclient.New(cfg.API.BaseURL, cfg.APITimeout(), apiclient.WithLogger(logger))
	return NewWithUpstream(cfg, api, logger)
}

// NewWithUpstream builds a server around an existing API implementation.
func NewWithUpstream(cfg *config.Config, api Upstream, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		cfg:      cfg,
		logger:   logger,
		bus:      eventbus.New(cfg.Server.EventBuffer, logger),
		sessions: builder.NewManager(cfg.BuilderSessionMaxAge(), cfg.BuilderSessionIdle(), logger),
		hub:      live.NewHub(cfg.Server.WSOrigins, logger),
		feed:     activity.NewMemoryStore(cfg.Activity.Capacity),
	}
	s.bus.Subscribe("log", eventbus.NewLogConsumer(logger))
	s.bus.Subscribe("activity", activity.NewConsumer(s.feed))
	s.bus.Subscribe("live", s.hub)
	s.router = s.routes(api)
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes(api Upstream) chi.Router {
	tokens := notify.NewService(notify.NewTokenCache(), api, s.logger)

	templates := handler.NewTemplateHandler(api, s.bus, s.logger)
	cases := handler.NewRecordHandler(types.KindCase, api, s.bus, s.logger)
	sources := handler.NewRecordHandler(types.KindSource, api, s.bus, s.logger)
	builders := handler.NewBuilderHandler(s.sessions, api, s.bus, s.logger)
	auth := handler.NewAuthHandler(api, tokens, handler.CookieSettings{
		Name:   s.cfg.Cookie.Name,
		Secure: s.cfg.Cookie.Secure,
		MaxAge: s.cfg.CookieMaxAge(),
	}, s.logger)
	feed := handler.NewActivityHandler(s.feed, s.logger)

	r := chi.NewRouter()
	r.Use(
		handler.RequestID,
		handler.Logging(s.logger),
		handler.Recovery(s.logger),
		handler.Locale(s.cfg.Locale.Default),
		handler.Session(s.cfg.Cookie.Name),
	)

	r.Get("/healthz", s.health)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/login", auth.Login)
		r.Post("/logout", auth.Logout)
		r.Post("/notifications/token", auth.RegisterToken)

		r.Route("/templates", func(r chi.Router) {
			templates.Routes(r)
			r.Get("/{id}/activity", feed.ForEntity("template"))
			r.Get("/{id}/activity/summary", feed.SummaryFor("template"))
		})
		r.Route("/builder/sessions", builders.Routes)

		for _, h := range []*handler.RecordHandler{cases, sources} {
			r.Route("/"+h.Kind().Collection(), func(r chi.Router) {
				h.Routes(r)
				r.Get("/{id}/activity", feed.ForEntity(string(h.Kind())))
				r.Get("/{id}/activity/summary", feed.SummaryFor(string(h.Kind())))
			})
		}

		r.Get("/activity", feed.Search)
		r.Handle("/live", s.hub)
	})
	return r
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"status":"ok","builder_sessions":%d,"live_clients":%d}`, s.sessions.Len(), s.hub.Len())
}

// Run listens on the configured port and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.cfg.Server.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve runs the HTTP server on ln together with the event bus and the
// builder session janitor. When ctx ends, live connections are closed and
// the HTTP server gets the configured shutdown timeout to drain.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.bus.Run(gctx) })
	g.Go(func() error { return s.sessions.Run(gctx, s.cfg.BuilderCleanupInterval()) })
	g.Go(func() error {
		s.logger.Info("starting server", zap.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serving http: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		s.hub.Close()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.ShutdownTimeout())
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down: %w", err)
		}
		s.logger.Info("server stopped")
		return nil
	})
	return g.Wait()
}
