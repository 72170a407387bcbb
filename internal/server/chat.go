package server

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/magiconsole/magi"
	servermw "github.com/magiconsole/magi/internal/server/middleware"
)

type chatResponse struct {
	Response string `json:"response"`
}

// handleChat answers {message, isFirstMessage} with {response}. Provider
// failures never change the status code; they show up as a local reply.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var q magi.Query
	if err := decodeJSON(w, r, &q); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(q.Text) == "" {
		writeError(w, http.StatusBadRequest, "Message is required")
		return
	}

	reply := s.opts.Responder.Respond(r.Context(), q)
	s.metrics.chatReplies.WithLabelValues(reply.Source.String()).Inc()

	s.logger.Debug("chat reply",
		zap.String("request_id", servermw.GetRequestID(r.Context())),
		zap.Stringer("source", reply.Source),
		zap.Int("attempts", reply.Attempts),
	)

	writeJSON(w, http.StatusOK, chatResponse{Response: reply.Text})
}
