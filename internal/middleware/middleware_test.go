package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coachpanel/backend/internal/config"
	"github.com/coachpanel/backend/internal/errs"
	"github.com/coachpanel/backend/internal/server"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const frontendOrigin = "https://app.coachpanel.io"

func testServer() *server.Server {
	cfg := &config.Config{
		Primary: config.Primary{Env: "development"},
		Server: config.ServerConfig{
			FrontendURL:    frontendOrigin,
			RequestTimeout: time.Second,
			BodyLimit:      "1K",
			CORS: config.CORSConfig{
				AllowedOrigins:   []string{frontendOrigin},
				AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
				AllowedHeaders:   []string{echo.HeaderContentType, echo.HeaderAuthorization},
				AllowCredentials: true,
				MaxAge:           600,
			},
		},
		Auth: config.AuthConfig{CookieName: "access_token"},
		RateLimit: config.RateLimitConfig{
			Enabled: true,
			Max:     3,
			Window:  time.Minute,
			Store:   "memory",
		},
		Observability: config.DefaultObservabilityConfig(),
	}

	logger := zerolog.Nop()
	return &server.Server{Config: cfg, Logger: &logger}
}

// newTestEcho wires the error handler and the request plumbing every
// route gets, followed by mws.
func newTestEcho(s *server.Server, mws ...echo.MiddlewareFunc) *echo.Echo {
	e := echo.New()
	global := NewGlobalMiddlewares(s)
	e.HTTPErrorHandler = global.GlobalErrorHandler
	e.Use(global.Recover(), RequestID(), NewContextEnhancer(s).EnhanceContext())
	e.Use(mws...)
	return e
}

func ok(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func serve(e *echo.Echo, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

// decodeSingleError asserts the body holds exactly one JSON error envelope.
func decodeSingleError(t *testing.T, rec *httptest.ResponseRecorder) errs.HTTPError {
	t.Helper()

	dec := json.NewDecoder(rec.Body)
	var body errs.HTTPError
	require.NoError(t, dec.Decode(&body))
	require.False(t, dec.More(), "more than one response body written")
	return body
}
