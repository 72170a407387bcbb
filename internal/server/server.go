// Package server exposes the console API over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/magiconsole/magi"
	"github.com/magiconsole/magi/counter"
	servermw "github.com/magiconsole/magi/internal/server/middleware"
	"github.com/magiconsole/magi/ratelimit"
)

// MaxBodyBytes caps request bodies.
const MaxBodyBytes = 64 << 10

// Responder answers chat queries. *magi.Pipeline implements it.
type Responder interface {
	Respond(ctx context.Context, q magi.Query) magi.Reply
}

// Options wires the server to its collaborators.
type Options struct {
	Addr    string
	Version string

	Responder Responder
	Gate      magi.Gate
	Mailer    magi.Mailer
	Counter   magi.CounterStore

	// MailFrom and MailTo address relayed contact messages.
	MailFrom string
	MailTo   []string

	// CounterKey names the visit counter; CounterFallback is reported
	// when the store fails; VisitCookie suppresses double counting.
	CounterKey      string
	CounterFallback int64
	VisitCookie     string

	Logger   *zap.Logger
	Registry *prometheus.Registry
}

// Server is the HTTP front of the console.
type Server struct {
	opts    Options
	router  *chi.Mux
	server  *http.Server
	logger  *zap.Logger
	metrics *Metrics
}

// New creates a server with all routes registered.
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Registry == nil {
		opts.Registry = prometheus.NewRegistry()
	}
	if opts.Responder == nil {
		opts.Responder = magi.NewPipeline(nil)
	}
	if opts.Gate == nil {
		opts.Gate = ratelimit.NewMemoryGate()
	}
	if opts.Counter == nil {
		opts.Counter = counter.NewMemory()
	}
	if opts.Mailer == nil {
		opts.Mailer = disabledMailer{}
	}
	if opts.CounterKey == "" {
		opts.CounterKey = "portfolio_visits"
	}
	if opts.CounterFallback == 0 {
		opts.CounterFallback = 1024
	}
	if opts.VisitCookie == "" {
		opts.VisitCookie = "magi_visit"
	}

	logger := opts.Logger.With(zap.String("component", "server"))
	httpMetrics := servermw.NewHTTPMetrics(opts.Registry)

	r := chi.NewRouter()
	r.Use(servermw.RequestID)
	r.Use(httpMetrics.Middleware)
	r.Use(servermw.Logging(logger))
	r.Use(servermw.Recovery(logger, httpMetrics.RecordPanic))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	s := &Server{
		opts:    opts,
		router:  r,
		logger:  logger,
		metrics: NewMetrics(opts.Registry),
	}
	s.server = &http.Server{
		Addr:              opts.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	s.registerRoutes()
	return s
}

// Start listens on Options.Addr until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.opts.Addr))

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ErrMailerDisabled is returned when no mail delivery is configured.
var ErrMailerDisabled = errors.New("server: mail delivery not configured")

type disabledMailer struct{}

func (disabledMailer) Send(context.Context, magi.Email) (string, error) {
	return "", ErrMailerDisabled
}
