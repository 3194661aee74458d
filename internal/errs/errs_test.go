package errs

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstructors(t *testing.T) {
	tests := []struct {
		name       string
		err        *HTTPError
		wantStatus int
		wantCode   string
	}{
		{"unauthorized", NewUnauthorizedError("nope", false), http.StatusUnauthorized, "UNAUTHORIZED"},
		{"forbidden", NewForbiddenError("Origin not allowed", false), http.StatusForbidden, "FORBIDDEN"},
		{"bad request", NewBadRequestError("bad", false, nil, nil, nil), http.StatusBadRequest, "BAD_REQUEST"},
		{"not found", NewNotFoundError("missing", false, nil), http.StatusNotFound, "NOT_FOUND"},
		{"conflict", NewConflictError("taken", true, nil), http.StatusConflict, "CONFLICT"},
		{"too many", NewTooManyRequestsError("slow down"), http.StatusTooManyRequests, "TOO_MANY_REQUESTS"},
		{"unavailable", NewServiceUnavailableError("timed out"), http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE"},
		{"internal", NewInternalServerError(), http.StatusInternalServerError, "INTERNAL_SERVER_ERROR"},
		{"method not allowed", NewHTTPError(http.StatusMethodNotAllowed, "Method Not Allowed"), http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantStatus, tt.err.Status)
			assert.Equal(t, tt.wantCode, tt.err.Code)
		})
	}
}

func TestCustomCode(t *testing.T) {
	code := "USER_ALREADY_EXISTS"
	err := NewBadRequestError("A user with this Email already exists", true, &code, []FieldError{{Field: "email", Error: "taken"}}, nil)

	assert.Equal(t, code, err.Code)
	assert.True(t, err.Override)
	require.Len(t, err.Errors, 1)
	assert.Equal(t, "email", err.Errors[0].Field)

	nf := NewNotFoundError("Plan not found", true, &code)
	assert.Equal(t, code, nf.Code)
}

func TestInternalServerErrorHidesCause(t *testing.T) {
	err := NewInternalServerError()
	assert.Equal(t, "Internal Server Error", err.Message)
	assert.False(t, err.Override)
}

func TestErrorsAsThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("login: %w", NewUnauthorizedError("Invalid email or password", true))

	var httpErr *HTTPError
	require.True(t, errors.As(wrapped, &httpErr))
	assert.Equal(t, http.StatusUnauthorized, httpErr.Status)
	assert.True(t, errors.Is(wrapped, &HTTPError{}))
}

func TestWithMessageAndActionCopy(t *testing.T) {
	base := NewUnauthorizedError("Unauthorized", false)

	changed := base.WithMessage("Session expired").WithAction(&Action{
		Type:  ActionTypeRedirect,
		Value: "/login",
	})

	assert.Equal(t, "Unauthorized", base.Message)
	assert.Nil(t, base.Action)
	assert.Equal(t, "Session expired", changed.Message)
	require.NotNil(t, changed.Action)
	assert.Equal(t, ActionTypeRedirect, changed.Action.Type)
}

func TestValidationError(t *testing.T) {
	err := ValidationError(errors.New("email is required"))
	assert.Equal(t, http.StatusBadRequest, err.Status)
	assert.Equal(t, "Validation failed: email is required", err.Message)
}
