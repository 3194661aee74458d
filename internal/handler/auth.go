package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/coachpanel/backend/internal/model"
	"github.com/coachpanel/backend/internal/server"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// AuthService is the part of service.AuthService the HTTP layer calls.
type AuthService interface {
	Register(ctx context.Context, req *model.RegisterRequest) (*model.AuthResponse, error)
	Login(ctx context.Context, req *model.LoginRequest) (*model.AuthResponse, error)
	Me(ctx context.Context, userID uuid.UUID) (*model.User, error)
	VerifyEmail(ctx context.Context, token string) (*model.User, error)
	ForgotPassword(ctx context.Context, req *model.ForgotPasswordRequest) error
	ResetPassword(ctx context.Context, req *model.ResetPasswordRequest) error
	SendPhoneCode(ctx context.Context, userID uuid.UUID, phone string) error
	VerifyPhone(ctx context.Context, userID uuid.UUID, code string) (*model.User, error)
}

type AuthHandler struct {
	Handler
	auth AuthService
}

func NewAuthHandler(s *server.Server, auth AuthService) *AuthHandler {
	return &AuthHandler{
		Handler: NewHandler(s),
		auth:    auth,
	}
}

func (h *AuthHandler) Register(c echo.Context, req *model.RegisterRequest) (*model.AuthResponse, error) {
	res, err := h.auth.Register(c.Request().Context(), req)
	if err != nil {
		return nil, err
	}

	h.setAuthCookie(c, res.Token, res.ExpiresAt)
	return res, nil
}

func (h *AuthHandler) Login(c echo.Context, req *model.LoginRequest) (*model.AuthResponse, error) {
	res, err := h.auth.Login(c.Request().Context(), req)
	if err != nil {
		return nil, err
	}

	h.setAuthCookie(c, res.Token, res.ExpiresAt)
	return res, nil
}

// Logout clears the auth cookie. Tokens are stateless, so a bearer token
// stays valid until it expires.
func (h *AuthHandler) Logout(c echo.Context, _ *model.EmptyRequest) error {
	h.clearAuthCookie(c)
	return nil
}

func (h *AuthHandler) Me(c echo.Context, _ *model.EmptyRequest) (*model.User, error) {
	userID, err := currentUserID(c)
	if err != nil {
		return nil, err
	}
	return h.auth.Me(c.Request().Context(), userID)
}

func (h *AuthHandler) VerifyEmail(c echo.Context, req *model.VerifyEmailRequest) (*model.User, error) {
	return h.auth.VerifyEmail(c.Request().Context(), req.Token)
}

func (h *AuthHandler) ForgotPassword(c echo.Context, req *model.ForgotPasswordRequest) error {
	return h.auth.ForgotPassword(c.Request().Context(), req)
}

func (h *AuthHandler) ResetPassword(c echo.Context, req *model.ResetPasswordRequest) error {
	return h.auth.ResetPassword(c.Request().Context(), req)
}

func (h *AuthHandler) SendPhoneCode(c echo.Context, req *model.SendPhoneCodeRequest) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}
	return h.auth.SendPhoneCode(c.Request().Context(), userID, req.Phone)
}

func (h *AuthHandler) VerifyPhone(c echo.Context, req *model.VerifyPhoneRequest) (*model.User, error) {
	userID, err := currentUserID(c)
	if err != nil {
		return nil, err
	}
	return h.auth.VerifyPhone(c.Request().Context(), userID, req.Code)
}

func (h *AuthHandler) setAuthCookie(c echo.Context, token string, expiresAt time.Time) {
	c.SetCookie(h.authCookie(token, expiresAt))
}

func (h *AuthHandler) clearAuthCookie(c echo.Context) {
	cookie := h.authCookie("", time.Unix(0, 0))
	cookie.MaxAge = -1
	c.SetCookie(cookie)
}

func (h *AuthHandler) authCookie(value string, expiresAt time.Time) *http.Cookie {
	cfg := h.server.Config
	return &http.Cookie{
		Name:     cfg.Auth.CookieName,
		Value:    value,
		Path:     "/",
		Domain:   cfg.Auth.CookieDomain,
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   cfg.IsProduction(),
		SameSite: http.SameSiteLaxMode,
	}
}
