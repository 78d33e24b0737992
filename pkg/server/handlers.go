package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"mercator-hq/ganymede/pkg/session"
)

// askRequest is the body of POST /api/ask.
type askRequest struct {
	Prompt string `json:"prompt"`
}

// askResponse mirrors the legacy wire shape: status plus either the
// answer or an error.
type askResponse struct {
	Status string       `json:"status"`
	Answer string       `json:"answer,omitempty"`
	Error  *errorDetail `json:"error,omitempty"`
}

type errorDetail struct {
	// Tag is the stable failure class; clients branch on this.
	Tag string `json:"tag"`

	// Message is the human-readable detail.
	Message string `json:"message"`
}

// maxPromptBytes bounds the request body. Prompts are chat messages, not
// documents.
const maxPromptBytes = 1 << 20

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxPromptBytes))
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "request body must be JSON with a prompt field")
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "prompt must not be empty")
		return
	}

	result := s.querier.Query(r.Context(), req.Prompt)
	if result.Success {
		writeJSON(w, http.StatusOK, askResponse{Status: "ok", Answer: result.Text})
		return
	}

	status := statusForTag(result.Tag)
	s.logger.Info("ask request failed",
		"request_id", GetRequestID(r.Context()),
		"tag", string(result.Tag),
		"attempts", result.Attempts,
		"status", status)
	writeError(w, status, string(result.Tag), result.Detail)
}

// statusForTag maps failure classes to HTTP status codes. The session
// layer knows nothing about HTTP; this is the only place the mapping
// lives.
func statusForTag(tag session.Tag) int {
	switch tag {
	case session.TagRateLimited:
		return http.StatusTooManyRequests
	case session.TagCredentialMissing, session.TagCredentialMalformed:
		return http.StatusInternalServerError
	case session.TagTimeout:
		return http.StatusGatewayTimeout
	case session.TagAuthInvalid, session.TagContentRefused, session.TagServerUnavailable, session.TagUnknown:
		return http.StatusBadGateway
	default:
		return http.StatusBadGateway
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady reports readiness: not ready while the breaker is cooling
// down.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.breaker != nil {
		if open, remaining := s.breaker.Check(); open {
			writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
				"ready":              false,
				"cooldown_remaining": remaining.String(),
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"ready": true})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Warn("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, tag, message string) {
	writeJSON(w, status, askResponse{
		Status: "error",
		Error:  &errorDetail{Tag: tag, Message: message},
	})
}
