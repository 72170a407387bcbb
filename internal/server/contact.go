package server

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/magiconsole/magi/contact"
	servermw "github.com/magiconsole/magi/internal/server/middleware"
)

// RetryAfterSeconds is advertised to rate-limited contact callers.
const RetryAfterSeconds = 60

const (
	msgSent        = "Message sent successfully"
	msgRateLimited = "Too many requests. Please try again later."
	msgSendFailed  = "Failed to send email. Please try again later."
)

type contactResponse struct {
	Message string `json:"message"`
	Status  string `json:"status"`
	ID      string `json:"id,omitempty"`
}

type rateLimitedResponse struct {
	Error      string `json:"error"`
	RetryAfter int    `json:"retryAfter"`
}

type validationResponse struct {
	Error   string               `json:"error"`
	Details []contact.FieldError `json:"details"`
}

// handleContact relays a contact form submission by email. Checks run in
// order: rate gate, body parse, honeypot, validation.
func (s *Server) handleContact(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ip := ClientIP(r)
	log := s.logger.With(
		zap.String("request_id", servermw.GetRequestID(ctx)),
		zap.String("client_ip", ip),
	)

	allowed, err := s.opts.Gate.Allow(ctx, ip)
	s.metrics.recordGate(allowed, err)
	if err != nil {
		// A broken shared limiter must not take the form down.
		log.Error("rate gate failed, admitting", zap.Error(err))
		allowed = true
	}
	if !allowed {
		log.Warn("contact rate limit exceeded")
		s.metrics.recordContact(contactRateLimited)
		w.Header().Set("Retry-After", strconv.Itoa(RetryAfterSeconds))
		writeJSON(w, http.StatusTooManyRequests, rateLimitedResponse{
			Error:      msgRateLimited,
			RetryAfter: RetryAfterSeconds,
		})
		return
	}

	var sub contact.Submission
	if err := decodeJSON(w, r, &sub); err != nil {
		log.Info("contact body rejected", zap.Error(err))
		s.metrics.recordContact(contactBadRequest)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if sub.IsBot() {
		log.Warn("honeypot filled, dropping submission")
		s.metrics.recordContact(contactBot)
		writeJSON(w, http.StatusOK, contactResponse{Message: msgSent, Status: "success"})
		return
	}

	if errs := sub.Validate(); len(errs) > 0 {
		s.metrics.recordContact(contactInvalid)
		writeJSON(w, http.StatusBadRequest, validationResponse{
			Error:   "Validation failed",
			Details: errs,
		})
		return
	}

	clean := contact.Sanitize(sub)
	id, err := s.opts.Mailer.Send(ctx, contact.Compose(clean, s.opts.MailFrom, s.opts.MailTo...))
	if err != nil {
		log.Error("contact delivery failed", zap.Error(err))
		s.metrics.recordContact(contactFailed)
		writeError(w, http.StatusInternalServerError, msgSendFailed)
		return
	}

	log.Info("contact message sent",
		zap.String("reply_to", clean.Email),
		zap.String("subject", clean.Subject),
		zap.String("delivery_id", id),
	)
	s.metrics.recordContact(contactSent)
	writeJSON(w, http.StatusCreated, contactResponse{Message: msgSent, Status: "success", ID: id})
}
