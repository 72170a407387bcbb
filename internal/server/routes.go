package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) registerRoutes() {
	s.router.Get("/healthz", s.handleHealth)
	s.router.Method(http.MethodGet, "/metrics",
		promhttp.HandlerFor(s.opts.Registry, promhttp.HandlerOpts{Registry: s.opts.Registry}))

	s.router.Route("/api", func(r chi.Router) {
		r.Post("/chat", s.handleChat)
		r.Post("/contact", s.handleContact)
		r.Post("/system/visit", s.handleVisit)
	})
}
