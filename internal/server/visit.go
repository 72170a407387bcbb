package server

import (
	"errors"
	"net/http"

	"go.uber.org/zap"
)

type visitRequest struct {
	Increment *bool `json:"increment"`
}

type visitResponse struct {
	Count int64 `json:"count"`
}

// handleVisit increments or reads the visit counter. A visitor carrying
// the session cookie is only counted once. Store failures report the
// fallback count.
func (s *Server) handleVisit(w http.ResponseWriter, r *http.Request) {
	var req visitRequest
	if err := decodeJSON(w, r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		s.logger.Info("visit body rejected", zap.Error(err))
		s.visitFallback(w)
		return
	}

	increment := req.Increment == nil || *req.Increment
	if _, err := r.Cookie(s.opts.VisitCookie); err == nil {
		increment = false
	}

	var (
		count int64
		err   error
	)
	if increment {
		count, err = s.opts.Counter.Incr(r.Context(), s.opts.CounterKey)
	} else {
		count, err = s.opts.Counter.Get(r.Context(), s.opts.CounterKey)
	}
	if err != nil {
		s.logger.Error("visit counter failed", zap.Error(err), zap.Bool("increment", increment))
		s.visitFallback(w)
		return
	}

	if increment {
		http.SetCookie(w, &http.Cookie{
			Name:     s.opts.VisitCookie,
			Value:    "1",
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}
	writeJSON(w, http.StatusOK, visitResponse{Count: count})
}

func (s *Server) visitFallback(w http.ResponseWriter) {
	s.metrics.visitFallbacks.Inc()
	writeJSON(w, http.StatusOK, visitResponse{Count: s.opts.CounterFallback})
}
