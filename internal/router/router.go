// Package router builds the echo instance: the middleware chain, the
// terminal error handler and every route.
package router

import (
	"net/http"

	"github.com/coachpanel/backend/internal/handler"
	"github.com/coachpanel/backend/internal/middleware"
	"github.com/coachpanel/backend/internal/model"
	"github.com/coachpanel/backend/internal/server"
	"github.com/coachpanel/backend/internal/service"
	"github.com/labstack/echo/v4"
)

// NewRouter returns the fully wired HTTP handler.
//
// Middleware order: Recover, NewRelic, RequestID, ContextEnhancer, CORS,
// Timeout, RateLimit, RequestLogger, EnhanceTracing, Secure, BodyLimit.
func NewRouter(s *server.Server, h *handler.Handlers, services *service.Services) *echo.Echo {
	middlewares := middleware.NewMiddlewares(s, services.Auth)

	router := echo.New()
	router.HideBanner = true
	router.HidePort = true
	router.HTTPErrorHandler = middlewares.Global.GlobalErrorHandler

	router.Use(
		middlewares.Global.Recover(),
		middlewares.Tracing.NewRelicMiddleware(),
		middleware.RequestID(),
		middlewares.ContextEnhancer.EnhanceContext(),
		middlewares.Global.CORS(),
		middlewares.Global.Timeout(),
		middlewares.RateLimit.Limit(),
		middlewares.Global.RequestLogger(),
		middlewares.Tracing.EnhanceTracing(),
		middlewares.Global.Secure(),
		middlewares.Global.BodyLimit(),
	)

	registerSystemRoutes(router, h)

	api := router.Group("/api")
	registerAuthRoutes(api.Group("/auth"), h.Auth, middlewares.Auth)
	registerSubscriptionRoutes(api.Group("/subscriptions"), h.Subscription, middlewares.Auth)

	return router
}

func registerAuthRoutes(g *echo.Group, h *handler.AuthHandler, auth *middleware.AuthMiddleware) {
	g.POST("/register", handler.Handle(h.Handler, h.Register, http.StatusCreated, &model.RegisterRequest{}))
	g.POST("/login", handler.Handle(h.Handler, h.Login, http.StatusOK, &model.LoginRequest{}))
	g.POST("/logout", handler.HandleNoContent(h.Handler, h.Logout, http.StatusNoContent, &model.EmptyRequest{}))
	g.POST("/verify-email", handler.Handle(h.Handler, h.VerifyEmail, http.StatusOK, &model.VerifyEmailRequest{}))
	g.POST("/forgot-password", handler.HandleNoContent(h.Handler, h.ForgotPassword, http.StatusAccepted, &model.ForgotPasswordRequest{}))
	g.POST("/reset-password", handler.HandleNoContent(h.Handler, h.ResetPassword, http.StatusNoContent, &model.ResetPasswordRequest{}))

	g.GET("/me", handler.Handle(h.Handler, h.Me, http.StatusOK, &model.EmptyRequest{}), auth.RequireAuth)
	g.POST("/phone/send-code", handler.HandleNoContent(h.Handler, h.SendPhoneCode, http.StatusAccepted, &model.SendPhoneCodeRequest{}), auth.RequireAuth)
	g.POST("/phone/verify", handler.Handle(h.Handler, h.VerifyPhone, http.StatusOK, &model.VerifyPhoneRequest{}), auth.RequireAuth)
}

func registerSubscriptionRoutes(g *echo.Group, h *handler.SubscriptionHandler, auth *middleware.AuthMiddleware) {
	g.GET("/plans", handler.Handle(h.Handler, h.ListPlans, http.StatusOK, &model.EmptyRequest{}))
	g.GET("/current", handler.Handle(h.Handler, h.Current, http.StatusOK, &model.EmptyRequest{}), auth.RequireAuth)
	g.POST("", handler.Handle(h.Handler, h.Create, http.StatusCreated, &model.CreateSubscriptionRequest{}), auth.RequireAuth)
	g.POST("/cancel", handler.Handle(h.Handler, h.Cancel, http.StatusOK, &model.EmptyRequest{}), auth.RequireAuth)
}
