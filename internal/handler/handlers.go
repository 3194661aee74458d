package handler

import (
	"github.com/coachpanel/backend/internal/server"
	"github.com/coachpanel/backend/internal/service"
)

// Handlers groups every HTTP handler so the router takes one dependency.
type Handlers struct {
	Health       *HealthHandler
	OpenAPI      *OpenAPIHandler
	Auth         *AuthHandler
	Subscription *SubscriptionHandler
}

func NewHandlers(s *server.Server, services *service.Services) *Handlers {
	return &Handlers{
		Health:       NewHealthHandler(s),
		OpenAPI:      NewOpenAPIHandler(s),
		Auth:         NewAuthHandler(s, services.Auth),
		Subscription: NewSubscriptionHandler(s, services.Subscription),
	}
}
