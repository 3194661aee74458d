package validation

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/coachpanel/backend/internal/errs"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type signupPayload struct {
	Email     string  `json:"email" validate:"required,email"`
	Password  string  `json:"password" validate:"required,min=8"`
	FirstName string  `json:"firstName" validate:"required,max=5"`
	Phone     *string `json:"phone" validate:"omitempty,e164"`
}

func (p *signupPayload) Validate() error {
	return Struct(p)
}

type codePayload struct {
	Code string `json:"code"`
}

func (p *codePayload) Validate() error {
	if p.Code != "123456" {
		return CustomValidationErrors{{Field: "code", Message: "is wrong"}}
	}
	return nil
}

func newContext(body string) echo.Context {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return e.NewContext(req, httptest.NewRecorder())
}

func TestBindAndValidate_Valid(t *testing.T) {
	payload := &signupPayload{}
	err := BindAndValidate(newContext(`{"email":"a@b.co","password":"longenough","firstName":"Ada","phone":"+905551112233"}`), payload)

	require.NoError(t, err)
	assert.Equal(t, "a@b.co", payload.Email)
	require.NotNil(t, payload.Phone)
}

func TestBindAndValidate_FieldErrorsUseJSONNames(t *testing.T) {
	err := BindAndValidate(newContext(`{"email":"nope","password":"short","firstName":"Alexandra","phone":"0555"}`), &signupPayload{})

	var httpErr *errs.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusBadRequest, httpErr.Status)
	assert.Equal(t, "Validation failed", httpErr.Message)
	assert.True(t, httpErr.Override)

	got := map[string]string{}
	for _, fe := range httpErr.Errors {
		got[fe.Field] = fe.Error
	}
	assert.Equal(t, map[string]string{
		"email":     "must be a valid email address",
		"password":  "must be at least 8 characters",
		"firstName": "must not exceed 5 characters",
		"phone":     "must be a valid phone number with country code",
	}, got)
}

func TestBindAndValidate_MissingRequired(t *testing.T) {
	err := BindAndValidate(newContext(`{}`), &signupPayload{})

	var httpErr *errs.HTTPError
	require.ErrorAs(t, err, &httpErr)
	require.Len(t, httpErr.Errors, 3)
	for _, fe := range httpErr.Errors {
		assert.Equal(t, "is required", fe.Error)
	}
}

func TestBindAndValidate_MalformedJSON(t *testing.T) {
	err := BindAndValidate(newContext(`{"email":`), &signupPayload{})

	var httpErr *errs.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusBadRequest, httpErr.Status)
	assert.False(t, httpErr.Override)
	assert.NotEmpty(t, httpErr.Message)
	assert.Nil(t, httpErr.Errors)
}

func TestBindAndValidate_CustomErrors(t *testing.T) {
	err := BindAndValidate(newContext(`{"code":"000000"}`), &codePayload{})

	var httpErr *errs.HTTPError
	require.ErrorAs(t, err, &httpErr)
	require.Len(t, httpErr.Errors, 1)
	assert.Equal(t, errs.FieldError{Field: "code", Error: "is wrong"}, httpErr.Errors[0])
}

func TestIsValidUUID(t *testing.T) {
	assert.True(t, IsValidUUID("1b4e28ba-2fa1-11d2-883f-0016d3cca427"))
	assert.False(t, IsValidUUID("not-a-uuid"))
}
