package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	apperrors "github.com/aezzeldin/storefront-api/pkg/errors"
)

// ApiResponse is the envelope every endpoint responds with
type ApiResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Details []string    `json:"details,omitempty"`
}

// Health represents the health check response
type Health struct {
	Status    string            `json:"status"`
	Version   string            `json:"version"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
}

// healthCheckHandler reports service health including its dependencies.
// A degraded cache is reported but does not fail the check.
func (s *Server) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	checks := map[string]string{}
	status := "ok"
	code := http.StatusOK

	if err := s.db.DB.PingContext(ctx); err != nil {
		checks["database"] = "down"
		status = "unhealthy"
		code = http.StatusServiceUnavailable
	} else {
		checks["database"] = "ok"
	}

	if err := s.policyCache.Ping(ctx); err != nil {
		checks["cache"] = "down"
		if status == "ok" {
			status = "degraded"
		}
	} else {
		checks["cache"] = "ok"
	}

	health := Health{
		Status:    status,
		Version:   "1.2.0",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
	}

	s.respondWithJSON(w, code, ApiResponse{
		Success: code == http.StatusOK,
		Data:    health,
	})
}

// respondWithError sends a JSON response with an error message
func (s *Server) respondWithError(w http.ResponseWriter, code int, message string) {
	s.respondWithJSON(w, code, ApiResponse{
		Success: false,
		Error:   message,
	})
}

// respondWithAppError maps a service error onto the response envelope
func (s *Server) respondWithAppError(w http.ResponseWriter, err error) {
	var appErr *apperrors.AppError

	if errors.As(err, &appErr) {
		s.respondWithJSON(w, appErr.StatusCode, ApiResponse{
			Success: false,
			Error:   appErr.Message,
			Details: appErr.Details,
		})
		return
	}

	s.respondWithError(w, http.StatusInternalServerError, "internal server error")
}

// respondWithJSON sends a JSON response
func (s *Server) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)

	if err != nil {
		s.logger.Error("Failed to marshal response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
