package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthHandler_CheckHealth(t *testing.T) {
	tests := []struct {
		name       string
		redisErr   error
		wantStatus int
		wantBody   string
	}{
		{name: "all dependencies up", wantStatus: http.StatusOK, wantBody: statusHealthy},
		{name: "redis down", redisErr: errors.New("dial tcp: connection refused"), wantStatus: http.StatusServiceUnavailable, wantBody: statusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := testServer()
			h := NewHealthHandler(s)
			h.checks = []healthCheck{
				{name: "database", ping: func(context.Context) error { return nil }},
				{name: "redis", ping: func(context.Context) error { return tt.redisErr }},
			}

			e, _ := newTestEcho(s)
			e.GET("/status", h.CheckHealth)

			rec := serve(e, httptest.NewRequest(http.MethodGet, "/status", nil))
			require.Equal(t, tt.wantStatus, rec.Code)

			var body struct {
				Status string                       `json:"status"`
				Checks map[string]map[string]string `json:"checks"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantBody, body.Status)
			assert.Equal(t, statusHealthy, body.Checks["database"]["status"])
		})
	}
}

func TestHealthHandler_CheckRespectsTimeout(t *testing.T) {
	s := testServer()
	s.Config.Observability.HealthChecks.Timeout = 20 * time.Millisecond

	h := NewHealthHandler(s)
	h.checks = []healthCheck{{
		name: "database",
		ping: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		},
	}}

	e, _ := newTestEcho(s)
	e.GET("/status", h.CheckHealth)

	rec := serve(e, httptest.NewRequest(http.MethodGet, "/status", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "context deadline exceeded")
}

func TestNewHealthHandler_SkipsMissingDependencies(t *testing.T) {
	h := NewHealthHandler(testServer())
	assert.Empty(t, h.checks)
}

func TestOpenAPIHandler_ServesUI(t *testing.T) {
	s := testServer()
	h := NewOpenAPIHandler(s)

	e, _ := newTestEcho(s)
	e.GET("/docs", h.ServeOpenAPIUI)

	rec := serve(e, httptest.NewRequest(http.MethodGet, "/docs", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "/static/openapi.json")
}
