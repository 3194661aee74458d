package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coachpanel/backend/internal/config"
	"github.com/coachpanel/backend/internal/errs"
	"github.com/coachpanel/backend/internal/middleware"
	"github.com/coachpanel/backend/internal/model"
	"github.com/coachpanel/backend/internal/server"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func testServer() *server.Server {
	cfg := &config.Config{
		Primary: config.Primary{Env: "production"},
		Auth: config.AuthConfig{
			CookieName:   "access_token",
			CookieDomain: "coachpanel.io",
		},
		Observability: config.DefaultObservabilityConfig(),
	}

	logger := zerolog.Nop()
	return &server.Server{Config: cfg, Logger: &logger}
}

// stubTokens accepts "Bearer <user id>".
type stubTokens struct{}

func (stubTokens) ParseToken(token string) (uuid.UUID, error) {
	return uuid.Parse(token)
}

func newTestEcho(s *server.Server) (*echo.Echo, echo.MiddlewareFunc) {
	e := echo.New()
	e.HTTPErrorHandler = middleware.NewGlobalMiddlewares(s).GlobalErrorHandler
	return e, middleware.NewAuthMiddleware(s, stubTokens{}).RequireAuth
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

func asUser(req *http.Request, userID uuid.UUID) *http.Request {
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+userID.String())
	return req
}

func serve(e *echo.Echo, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errs.HTTPError {
	t.Helper()

	var body errs.HTTPError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

// fakeAuth records the arguments of the last call to each method.
type fakeAuth struct {
	registered []*model.RegisterRequest
	forgot     []string
	phoneUser  uuid.UUID
	phone      string
	verifyCode string
	meErr      error
}

func (f *fakeAuth) Register(_ context.Context, req *model.RegisterRequest) (*model.AuthResponse, error) {
	f.registered = append(f.registered, req)
	return &model.AuthResponse{
		User:      &model.User{Email: req.Email, FirstName: req.FirstName, LastName: req.LastName},
		Token:     "signed.jwt.token",
		ExpiresAt: time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC),
	}, nil
}

func (f *fakeAuth) Login(_ context.Context, req *model.LoginRequest) (*model.AuthResponse, error) {
	if req.Password != "correct-horse" {
		return nil, errs.NewUnauthorizedError("Invalid email or password", true)
	}
	return &model.AuthResponse{
		User:      &model.User{Email: req.Email},
		Token:     "signed.jwt.token",
		ExpiresAt: time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC),
	}, nil
}

func (f *fakeAuth) Me(_ context.Context, userID uuid.UUID) (*model.User, error) {
	if f.meErr != nil {
		return nil, f.meErr
	}
	return &model.User{Base: model.Base{ID: userID}, Email: "coach@example.com"}, nil
}

func (f *fakeAuth) VerifyEmail(_ context.Context, token string) (*model.User, error) {
	now := time.Now()
	return &model.User{Email: "coach@example.com", EmailVerifiedAt: &now}, nil
}

func (f *fakeAuth) ForgotPassword(_ context.Context, req *model.ForgotPasswordRequest) error {
	f.forgot = append(f.forgot, req.Email)
	return nil
}

func (f *fakeAuth) ResetPassword(_ context.Context, req *model.ResetPasswordRequest) error {
	if req.Token != "valid" {
		return errs.NewBadRequestError("Reset link is invalid or has expired", true, nil, nil, nil)
	}
	return nil
}

func (f *fakeAuth) SendPhoneCode(_ context.Context, userID uuid.UUID, phone string) error {
	f.phoneUser = userID
	f.phone = phone
	return nil
}

func (f *fakeAuth) VerifyPhone(_ context.Context, userID uuid.UUID, code string) (*model.User, error) {
	f.verifyCode = code
	phone := "+905551234567"
	now := time.Now()
	return &model.User{Base: model.Base{ID: userID}, Phone: &phone, PhoneVerifiedAt: &now}, nil
}

type fakeSubscriptions struct {
	plans     []model.Plan
	createdBy uuid.UUID
	planID    string
	current   *model.SubscriptionWithPlan
}

func (f *fakeSubscriptions) ListPlans(context.Context) ([]model.Plan, error) {
	return f.plans, nil
}

func (f *fakeSubscriptions) Current(context.Context, uuid.UUID) (*model.SubscriptionWithPlan, error) {
	if f.current == nil {
		return nil, errs.NewNotFoundError("You have no active subscription", true, nil)
	}
	return f.current, nil
}

func (f *fakeSubscriptions) Create(_ context.Context, userID uuid.UUID, planID string) (*model.SubscriptionWithPlan, error) {
	f.createdBy = userID
	f.planID = planID
	return &model.SubscriptionWithPlan{
		Subscription: model.Subscription{UserID: userID, PlanID: planID, Status: model.SubscriptionStatusTrialing},
		Plan:         &model.Plan{ID: planID, PriceCents: 49900},
	}, nil
}

func (f *fakeSubscriptions) Cancel(context.Context, uuid.UUID) (*model.SubscriptionWithPlan, error) {
	return nil, errors.New("not used")
}
