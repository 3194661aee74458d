package model

import (
	"time"

	"github.com/coachpanel/backend/internal/validation"
	"github.com/google/uuid"
)

type SubscriptionStatus string

const (
	SubscriptionStatusTrialing SubscriptionStatus = "trialing"
	SubscriptionStatusActive   SubscriptionStatus = "active"
	SubscriptionStatusCanceled SubscriptionStatus = "canceled"
	SubscriptionStatusExpired  SubscriptionStatus = "expired"
)

// LiveSubscriptionStatuses are the statuses that grant access. A user has
// at most one subscription in any of them.
var LiveSubscriptionStatuses = []SubscriptionStatus{
	SubscriptionStatusTrialing,
	SubscriptionStatusActive,
}

func (s SubscriptionStatus) IsLive() bool {
	return s == SubscriptionStatusTrialing || s == SubscriptionStatusActive
}

type Subscription struct {
	Base
	UserID             uuid.UUID          `json:"userId" db:"user_id"`
	PlanID             string             `json:"planId" db:"plan_id"`
	Status             SubscriptionStatus `json:"status" db:"status"`
	CurrentPeriodStart time.Time          `json:"currentPeriodStart" db:"current_period_start"`
	CurrentPeriodEnd   time.Time          `json:"currentPeriodEnd" db:"current_period_end"`
	CancelAtPeriodEnd  bool               `json:"cancelAtPeriodEnd" db:"cancel_at_period_end"`
	CanceledAt         *time.Time         `json:"canceledAt" db:"canceled_at"`
}

// SubscriptionWithPlan is the shape returned to clients.
type SubscriptionWithPlan struct {
	Subscription
	Plan *Plan `json:"plan"`
}

// ------------------------------------------------------------

type CreateSubscriptionRequest struct {
	PlanID string `json:"planId" validate:"required,max=64"`
}

func (r *CreateSubscriptionRequest) Validate() error {
	return validation.Struct(r)
}
