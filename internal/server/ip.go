package server

import (
	"net/http"
	"strings"
)

// UnknownClient identifies callers without forwarding headers.
const UnknownClient = "unknown"

// ClientIP derives the caller identity: the first value of
// X-Forwarded-For, else X-Real-IP, else "unknown".
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if real := strings.TrimSpace(r.Header.Get("X-Real-IP")); real != "" {
		return real
	}
	return UnknownClient
}
