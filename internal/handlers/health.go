package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/sbilibin2017/gw-book-platform/internal/logger"
)

// HealthCheck probes one dependency.
type HealthCheck func(ctx context.Context) error

// HealthResponse reports dependency status.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// NewHealthHandler runs every check with a short timeout.
func NewHealthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		resp := HealthResponse{Status: "ok", Checks: make(map[string]string, len(checks))}
		status := http.StatusOK
		for name, check := range checks {
			if err := check(ctx); err != nil {
				logger.Log.Warnw("health check failed", "check", name, "error", err)
				resp.Checks[name] = err.Error()
				resp.Status = "unavailable"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[name] = "ok"
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(resp)
	}
}

// NewNotFoundHandler renders the 404 page.
func NewNotFoundHandler(rd *Renderer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rd.Render(w, r, http.StatusNotFound, PageNotFound, "Page Not Found", nil)
	}
}
