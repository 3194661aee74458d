package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coachpanel/backend/internal/errs"
	"github.com/coachpanel/backend/internal/sqlerr"
	"github.com/jackc/pgx/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCORS(t *testing.T) {
	s := testServer()
	e := newTestEcho(s, NewGlobalMiddlewares(s).CORS())
	e.GET("/api/plans", ok)

	t.Run("allowed origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/plans", nil)
		req.Header.Set(echo.HeaderOrigin, frontendOrigin)

		rec := serve(e, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, frontendOrigin, rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
		assert.Equal(t, "true", rec.Header().Get(echo.HeaderAccessControlAllowCredentials))
	})

	t.Run("disallowed origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/plans", nil)
		req.Header.Set(echo.HeaderOrigin, "https://evil.example")

		rec := serve(e, req)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Empty(t, rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
		assert.Equal(t, "FORBIDDEN", decodeSingleError(t, rec).Code)
	})

	t.Run("no origin", func(t *testing.T) {
		rec := serve(e, httptest.NewRequest(http.MethodGet, "/api/plans", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/plans", nil)
		req.Header.Set(echo.HeaderOrigin, frontendOrigin)
		req.Header.Set(echo.HeaderAccessControlRequestMethod, http.MethodGet)

		rec := serve(e, req)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, frontendOrigin, rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
		assert.Contains(t, rec.Header().Get(echo.HeaderAccessControlAllowMethods), http.MethodPost)
	})
}

func TestTimeout(t *testing.T) {
	s := testServer()
	s.Config.Server.RequestTimeout = 50 * time.Millisecond
	e := newTestEcho(s, NewGlobalMiddlewares(s).Timeout())

	e.GET("/slow", func(c echo.Context) error {
		select {
		case <-c.Request().Context().Done():
			return c.Request().Context().Err()
		case <-time.After(2 * time.Second):
			return ok(c)
		}
	})
	e.GET("/fast", ok)

	rec := serve(e, httptest.NewRequest(http.MethodGet, "/slow", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, echo.MIMEApplicationJSON, rec.Header().Get(echo.HeaderContentType))
	body := decodeSingleError(t, rec)
	assert.Equal(t, "SERVICE_UNAVAILABLE", body.Code)
	assert.Equal(t, "Request timed out", body.Message)

	rec = serve(e, httptest.NewRequest(http.MethodGet, "/fast", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

// Slow handlers keep using their echo.Context after the deadline; the
// context must not be handed to another request until they return.
func TestTimeout_ConcurrentSlowRequests(t *testing.T) {
	s := testServer()
	s.Config.Server.RequestTimeout = 20 * time.Millisecond
	s.Config.RateLimit.Enabled = false

	global := NewGlobalMiddlewares(s)
	var returnedEarly atomic.Int32
	finished := func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			if c.Get("handler_done") != true {
				returnedEarly.Add(1)
			}
			return err
		}
	}

	e := newTestEcho(s,
		global.CORS(),
		finished,
		global.Timeout(),
		NewRateLimitMiddleware(s).Limit(),
		global.RequestLogger(),
	)
	e.GET("/slow", func(c echo.Context) error {
		<-c.Request().Context().Done()
		time.Sleep(30 * time.Millisecond)
		c.Set("handler_done", true)
		return c.Request().Context().Err()
	})
	e.GET("/ignores-deadline", func(c echo.Context) error {
		time.Sleep(50 * time.Millisecond)
		c.Set("handler_done", true)
		return c.JSON(http.StatusOK, map[string]string{"status": "late"})
	})

	const n = 20
	codes := make([]int, n)
	bodies := make([]string, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			path := "/slow"
			if i%2 == 1 {
				path = "/ignores-deadline"
			}
			rec := serve(e, httptest.NewRequest(http.MethodGet, path, nil))
			codes[i] = rec.Code
			bodies[i] = rec.Body.String()
		}(i)
	}
	wg.Wait()

	assert.Zero(t, returnedEarly.Load())
	for i := 0; i < n; i++ {
		if i%2 == 1 {
			assert.Equal(t, http.StatusOK, codes[i])
			assert.JSONEq(t, `{"status":"late"}`, bodies[i])
			continue
		}
		assert.Equal(t, http.StatusServiceUnavailable, codes[i])
		assert.Contains(t, bodies[i], `"SERVICE_UNAVAILABLE"`)
	}
}

func TestTimeout_ErrorAfterDeadline(t *testing.T) {
	s := testServer()
	s.Config.Server.RequestTimeout = 10 * time.Millisecond
	e := newTestEcho(s, NewGlobalMiddlewares(s).Timeout())

	e.GET("/query", func(c echo.Context) error {
		<-c.Request().Context().Done()
		return errs.NewBadRequestError("downstream gave up", false, nil, nil, nil)
	})
	e.GET("/fail-fast", func(echo.Context) error {
		return errs.NewBadRequestError("bad input", false, nil, nil, nil)
	})

	rec := serve(e, httptest.NewRequest(http.MethodGet, "/query", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = serve(e, httptest.NewRequest(http.MethodGet, "/fail-fast", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGlobalErrorHandler_UndefinedRoute(t *testing.T) {
	e := newTestEcho(testServer())
	e.GET("/api/plans", ok)

	rec := serve(e, httptest.NewRequest(http.MethodGet, "/api/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	body := decodeSingleError(t, rec)
	assert.Equal(t, "Route not found", body.Message)
	assert.Equal(t, http.StatusNotFound, body.Status)
}

func TestGlobalErrorHandler_PanicYieldsOneResponse(t *testing.T) {
	e := newTestEcho(testServer())
	e.GET("/boom", func(echo.Context) error {
		panic("nil map write")
	})

	rec := serve(e, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	body := decodeSingleError(t, rec)
	assert.Equal(t, "INTERNAL_SERVER_ERROR", body.Code)
	assert.False(t, body.Override)
}

func TestGlobalErrorHandler_Mapping(t *testing.T) {
	code := "PLAN_NOT_FOUND"

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantMsg    string
	}{
		{
			name:       "application error",
			err:        errs.NewNotFoundError("Plan not found", true, &code),
			wantStatus: http.StatusNotFound,
			wantCode:   "PLAN_NOT_FOUND",
			wantMsg:    "Plan not found",
		},
		{
			name:       "missing row",
			err:        sqlerr.WithTable("plans", pgx.ErrNoRows),
			wantStatus: http.StatusNotFound,
			wantCode:   "NOT_FOUND",
			wantMsg:    "Plan not found",
		},
		{
			name:       "framework error",
			err:        echo.ErrMethodNotAllowed,
			wantStatus: http.StatusMethodNotAllowed,
			wantCode:   "METHOD_NOT_ALLOWED",
		},
		{
			name:       "unknown error is hidden",
			err:        errors.New("dial tcp 10.0.0.5:5432: connection refused"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   "INTERNAL_SERVER_ERROR",
			wantMsg:    "Internal Server Error",
		},
		{
			name:       "cancelled context",
			err:        context.Canceled,
			wantStatus: http.StatusInternalServerError,
			wantCode:   "INTERNAL_SERVER_ERROR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEcho(testServer())
			e.GET("/x", func(echo.Context) error { return tt.err })

			rec := serve(e, httptest.NewRequest(http.MethodGet, "/x", nil))
			assert.Equal(t, tt.wantStatus, rec.Code)

			body := decodeSingleError(t, rec)
			assert.Equal(t, tt.wantCode, body.Code)
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, body.Message)
			}
			assert.NotContains(t, rec.Body.String(), "10.0.0.5")
		})
	}
}

func TestGlobalErrorHandler_CommittedResponseIsLeftAlone(t *testing.T) {
	e := newTestEcho(testServer())
	e.GET("/partial", func(c echo.Context) error {
		if err := c.String(http.StatusOK, "partial"); err != nil {
			return err
		}
		return errors.New("failed after writing")
	})

	rec := serve(e, httptest.NewRequest(http.MethodGet, "/partial", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "partial", rec.Body.String())
}

func TestBodyLimit(t *testing.T) {
	s := testServer()
	e := newTestEcho(s, NewGlobalMiddlewares(s).BodyLimit())
	e.POST("/upload", ok)

	req := httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader(strings.Repeat("a", 4096)))
	rec := serve(e, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, http.StatusRequestEntityTooLarge, decodeSingleError(t, rec).Status)
}

func TestRequestID(t *testing.T) {
	e := newTestEcho(testServer())
	e.GET("/id", func(c echo.Context) error {
		return c.String(http.StatusOK, GetRequestID(c))
	})

	req := httptest.NewRequest(http.MethodGet, "/id", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	rec := serve(e, req)
	assert.Equal(t, "req-123", rec.Body.String())
	assert.Equal(t, "req-123", rec.Header().Get(RequestIDHeader))

	rec = serve(e, httptest.NewRequest(http.MethodGet, "/id", nil))
	require.Len(t, rec.Body.String(), 36)
	assert.Equal(t, rec.Body.String(), rec.Header().Get(RequestIDHeader))
}
