package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthHandler(t *testing.T) {
	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("connection refused") }

	tests := []struct {
		name       string
		checks     map[string]HealthCheck
		wantCode   int
		wantStatus string
	}{
		{name: "no checks", checks: nil, wantCode: http.StatusOK, wantStatus: "ok"},
		{name: "all up", checks: map[string]HealthCheck{"postgres": ok, "redis": ok}, wantCode: http.StatusOK, wantStatus: "ok"},
		{name: "one down", checks: map[string]HealthCheck{"postgres": ok, "redis": down}, wantCode: http.StatusServiceUnavailable, wantStatus: "unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := newRecorder()
			NewHealthHandler(tt.checks).ServeHTTP(rr, newGet("/health"))

			assert.Equal(t, tt.wantCode, rr.Code)
			var resp HealthResponse
			require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
			assert.Equal(t, tt.wantStatus, resp.Status)
			for name := range tt.checks {
				assert.Contains(t, resp.Checks, name)
			}
		})
	}
}

func TestNotFoundHandler(t *testing.T) {
	h := newHarness(t)
	h.router.NotFound(NewNotFoundHandler(mustRenderer(t)))

	rr := h.serve(newGet("/nope"), nil)

	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), "Page not found")
}
