package handler

import (
	"context"

	"github.com/coachpanel/backend/internal/model"
	"github.com/coachpanel/backend/internal/server"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// SubscriptionService is the part of service.SubscriptionService the HTTP
// layer calls.
type SubscriptionService interface {
	ListPlans(ctx context.Context) ([]model.Plan, error)
	Current(ctx context.Context, userID uuid.UUID) (*model.SubscriptionWithPlan, error)
	Create(ctx context.Context, userID uuid.UUID, planID string) (*model.SubscriptionWithPlan, error)
	Cancel(ctx context.Context, userID uuid.UUID) (*model.SubscriptionWithPlan, error)
}

type SubscriptionHandler struct {
	Handler
	subscriptions SubscriptionService
}

func NewSubscriptionHandler(s *server.Server, subscriptions SubscriptionService) *SubscriptionHandler {
	return &SubscriptionHandler{
		Handler:       NewHandler(s),
		subscriptions: subscriptions,
	}
}

func (h *SubscriptionHandler) ListPlans(c echo.Context, _ *model.EmptyRequest) ([]model.Plan, error) {
	plans, err := h.subscriptions.ListPlans(c.Request().Context())
	if err != nil {
		return nil, err
	}
	if plans == nil {
		plans = []model.Plan{}
	}
	return plans, nil
}

func (h *SubscriptionHandler) Current(c echo.Context, _ *model.EmptyRequest) (*model.SubscriptionWithPlan, error) {
	userID, err := currentUserID(c)
	if err != nil {
		return nil, err
	}
	return h.subscriptions.Current(c.Request().Context(), userID)
}

func (h *SubscriptionHandler) Create(c echo.Context, req *model.CreateSubscriptionRequest) (*model.SubscriptionWithPlan, error) {
	userID, err := currentUserID(c)
	if err != nil {
		return nil, err
	}
	return h.subscriptions.Create(c.Request().Context(), userID, req.PlanID)
}

// Cancel stops renewal; the subscription stays live until its period ends.
func (h *SubscriptionHandler) Cancel(c echo.Context, _ *model.EmptyRequest) (*model.SubscriptionWithPlan, error) {
	userID, err := currentUserID(c)
	if err != nil {
		return nil, err
	}
	return h.subscriptions.Cancel(c.Request().Context(), userID)
}
