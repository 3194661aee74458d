package middleware

import (
	"strings"

	"github.com/coachpanel/backend/internal/errs"
	"github.com/coachpanel/backend/internal/server"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/newrelic/go-agent/v3/newrelic"
)

// TokenParser validates an access token and returns its user id.
// *service.AuthService satisfies it.
type TokenParser interface {
	ParseToken(token string) (uuid.UUID, error)
}

type AuthMiddleware struct {
	server *server.Server
	tokens TokenParser
}

func NewAuthMiddleware(s *server.Server, tokens TokenParser) *AuthMiddleware {
	return &AuthMiddleware{
		server: s,
		tokens: tokens,
	}
}

// RequireAuth accepts an access token from "Authorization: Bearer" or the
// auth cookie, and stores the user id for handlers.
func (auth *AuthMiddleware) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token := auth.extractToken(c)
		if token == "" {
			return errs.NewUnauthorizedError("Authentication required", false)
		}

		userID, err := auth.tokens.ParseToken(token)
		if err != nil {
			GetLogger(c).Debug().Err(err).Msg("rejected access token")
			return errs.NewUnauthorizedError("Session is invalid or has expired", true)
		}

		c.Set(UserIDKey, userID.String())
		setLogger(c, GetLogger(c).With().Str("user_id", userID.String()).Logger())

		if txn := newrelic.FromContext(c.Request().Context()); txn != nil {
			txn.AddAttribute("user.id", userID.String())
		}

		return next(c)
	}
}

func (auth *AuthMiddleware) extractToken(c echo.Context) string {
	if header := c.Request().Header.Get(echo.HeaderAuthorization); header != "" {
		scheme, token, found := strings.Cut(header, " ")
		if found && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}

	if cookie, err := c.Cookie(auth.server.Config.Auth.CookieName); err == nil {
		return cookie.Value
	}
	return ""
}
