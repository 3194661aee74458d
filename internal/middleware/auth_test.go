package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

type stubTokens map[string]uuid.UUID

func (s stubTokens) ParseToken(token string) (uuid.UUID, error) {
	if id, ok := s[token]; ok {
		return id, nil
	}
	return uuid.Nil, errors.New("invalid access token")
}

func TestRequireAuth(t *testing.T) {
	userID := uuid.New()
	s := testServer()
	auth := NewAuthMiddleware(s, stubTokens{"good": userID})

	e := newTestEcho(s)
	e.GET("/me", func(c echo.Context) error {
		id, ok := CurrentUserID(c)
		if !ok {
			return c.NoContent(http.StatusTeapot)
		}
		return c.String(http.StatusOK, id.String())
	}, auth.RequireAuth)

	t.Run("bearer header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set(echo.HeaderAuthorization, "Bearer good")

		rec := serve(e, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, userID.String(), rec.Body.String())
	})

	t.Run("cookie", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.AddCookie(&http.Cookie{Name: "access_token", Value: "good"})

		rec := serve(e, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("missing", func(t *testing.T) {
		rec := serve(e, httptest.NewRequest(http.MethodGet, "/me", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "UNAUTHORIZED", decodeSingleError(t, rec).Code)
	})

	t.Run("invalid", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set(echo.HeaderAuthorization, "Bearer forged")

		rec := serve(e, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.True(t, decodeSingleError(t, rec).Override)
	})

	t.Run("non bearer scheme", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set(echo.HeaderAuthorization, "Basic Z29vZA==")
		req.AddCookie(&http.Cookie{Name: "access_token", Value: "good"})

		rec := serve(e, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
