package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/coachpanel/backend/internal/middleware"
	"github.com/coachpanel/backend/internal/server"
	"github.com/labstack/echo/v4"
)

const (
	statusHealthy   = "healthy"
	statusUnhealthy = "unhealthy"
)

// healthCheck probes one dependency.
type healthCheck struct {
	name string
	ping func(ctx context.Context) error
}

// HealthHandler reports whether the service and its dependencies are
// reachable. Load balancers and uptime monitors poll it.
type HealthHandler struct {
	Handler
	checks []healthCheck
}

// NewHealthHandler probes the dependencies enabled in
// observability.health_checks.checks.
func NewHealthHandler(s *server.Server) *HealthHandler {
	var checks []healthCheck

	if s.DB != nil && s.Config.Observability.HasCheck("database") {
		checks = append(checks, healthCheck{name: "database", ping: s.DB.Ping})
	}

	if s.Redis != nil && s.Config.Observability.HasCheck("redis") {
		checks = append(checks, healthCheck{
			name: "redis",
			ping: func(ctx context.Context) error {
				return s.Redis.Ping(ctx).Err()
			},
		})
	}

	return &HealthHandler{
		Handler: NewHandler(s),
		checks:  checks,
	}
}

// CheckHealth answers 200 when every check passes and 503 otherwise.
func (h *HealthHandler) CheckHealth(c echo.Context) error {
	start := time.Now()
	logger := middleware.GetLogger(c).With().
		Str("operation", "health_check").
		Logger()

	results := make(map[string]interface{}, len(h.checks))
	healthy := true

	for _, check := range h.checks {
		ctx, cancel := context.WithTimeout(c.Request().Context(), h.server.Config.Observability.HealthChecks.Timeout)
		checkStart := time.Now()
		err := check.ping(ctx)
		cancel()

		elapsed := time.Since(checkStart)
		if err != nil {
			healthy = false
			results[check.name] = map[string]interface{}{
				"status":        statusUnhealthy,
				"response_time": elapsed.String(),
				"error":         err.Error(),
			}

			logger.Error().
				Err(err).
				Str("check", check.name).
				Dur("response_time", elapsed).
				Msg("health check failed")

			h.recordFailure(map[string]interface{}{
				"check_type":       check.name,
				"operation":        "health_check",
				"error_type":       check.name + "_unhealthy",
				"response_time_ms": elapsed.Milliseconds(),
				"error_message":    err.Error(),
			})
			continue
		}

		results[check.name] = map[string]interface{}{
			"status":        statusHealthy,
			"response_time": elapsed.String(),
		}
	}

	response := map[string]interface{}{
		"status":      statusHealthy,
		"timestamp":   time.Now().UTC(),
		"environment": h.server.Config.Primary.Env,
		"checks":      results,
	}

	if !healthy {
		response["status"] = statusUnhealthy

		logger.Warn().
			Dur("total_duration", time.Since(start)).
			Msg("service unhealthy")

		h.recordFailure(map[string]interface{}{
			"check_type":        "overall",
			"operation":         "health_check",
			"error_type":        "overall_unhealthy",
			"total_duration_ms": time.Since(start).Milliseconds(),
		})

		return c.JSON(http.StatusServiceUnavailable, response)
	}

	logger.Debug().
		Dur("total_duration", time.Since(start)).
		Msg("health check passed")

	return c.JSON(http.StatusOK, response)
}

func (h *HealthHandler) recordFailure(attrs map[string]interface{}) {
	if h.server.LoggerService != nil && h.server.LoggerService.GetApplication() != nil {
		h.server.LoggerService.GetApplication().RecordCustomEvent("HealthCheckError", attrs)
	}
}
