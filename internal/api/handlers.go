package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"n8n-mcp/pkg/models"
)

// HealthChecker reports whether the upstream n8n API answers.
type HealthChecker interface {
	HealthCheck(ctx context.Context) bool
}

// Handler contains the operational HTTP handlers of the server.
type Handler struct {
	checker HealthChecker
	service string
	version string
}

// NewHandler creates a new Handler with required dependencies
func NewHandler(checker HealthChecker, service, version string) *Handler {
	return &Handler{checker: checker, service: service, version: version}
}

// HandleHealth reports liveness and the reachability of n8n. An unreachable
// n8n yields 503 so load balancers can act on it.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	status := models.HealthStatus{
		Status:    "ok",
		Timestamp: time.Now(),
		Service:   h.service,
		Version:   h.version,
		Checks:    map[string]string{"n8n": "ok"},
	}
	code := http.StatusOK
	if !h.checker.HealthCheck(r.Context()) {
		status.Status = "degraded"
		status.Checks["n8n"] = "unreachable"
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, status)
}

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// headers are already sent
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// writeError writes an RFC 7807 Problem Details JSON error response
func writeError(w http.ResponseWriter, status int, title, detail string) {
	problem := models.ProblemDetails{
		Type:   "about:blank",
		Title:  title,
		Status: status,
		Detail: detail,
	}
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(problem)
}
