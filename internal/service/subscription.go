package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/coachpanel/backend/internal/database"
	"github.com/coachpanel/backend/internal/errs"
	"github.com/coachpanel/backend/internal/lib/job"
	"github.com/coachpanel/backend/internal/model"
	"github.com/coachpanel/backend/internal/repository"
	"github.com/coachpanel/backend/internal/sqlerr"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

type SubscriptionService struct {
	db     database.Querier
	users  *repository.UserRepository
	plans  *repository.PlanRepository
	subs   *repository.SubscriptionRepository
	jobs   job.Enqueuer
	logger *zerolog.Logger
	now    func() time.Time
}

func NewSubscriptionService(db database.Querier, repos *repository.Repositories, jobs job.Enqueuer, logger *zerolog.Logger) *SubscriptionService {
	return &SubscriptionService{
		db:     db,
		users:  repos.User,
		plans:  repos.Plan,
		subs:   repos.Subscription,
		jobs:   jobs,
		logger: logger,
		now:    time.Now,
	}
}

func errNoLiveSubscription() error {
	code := "SUBSCRIPTION_NOT_FOUND"
	return errs.NewNotFoundError("You have no active subscription", true, &code)
}

func errLiveSubscriptionExists() error {
	code := "SUBSCRIPTION_ALREADY_EXISTS"
	return errs.NewConflictError("You already have an active subscription", true, &code)
}

func (s *SubscriptionService) ListPlans(ctx context.Context) ([]model.Plan, error) {
	return s.plans.ListActive(ctx)
}

// Current returns the user's live subscription together with its plan.
func (s *SubscriptionService) Current(ctx context.Context, userID uuid.UUID) (*model.SubscriptionWithPlan, error) {
	sub, err := s.subs.GetLiveByUserID(ctx, userID, s.now())
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errNoLiveSubscription()
	}
	if err != nil {
		return nil, err
	}

	return s.withPlan(ctx, sub)
}

// Create starts a subscription to planID. First-time subscribers get the
// plan's trial when it has one; everyone else starts a paid period.
func (s *SubscriptionService) Create(ctx context.Context, userID uuid.UUID, planID string) (*model.SubscriptionWithPlan, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	var (
		sub  *model.Subscription
		plan *model.Plan
	)

	// The user row lock serializes concurrent subscribe calls of one user;
	// the partial unique index is the backstop.
	err = database.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		if err := s.users.WithTx(tx).LockByID(ctx, userID); err != nil {
			return err
		}

		subs := s.subs.WithTx(tx)
		now := s.now()

		if _, err := subs.ExpireDueByUserID(ctx, userID, now); err != nil {
			return err
		}

		_, err := subs.GetLiveByUserID(ctx, userID, now)
		if err == nil {
			return errLiveSubscriptionExists()
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return err
		}

		plan, err = s.plans.WithTx(tx).GetActiveByID(ctx, planID)
		if errors.Is(err, pgx.ErrNoRows) {
			code := "PLAN_NOT_FOUND"
			return errs.NewNotFoundError("Plan not found", true, &code)
		}
		if err != nil {
			return err
		}

		subscribedBefore, err := subs.HasAny(ctx, userID)
		if err != nil {
			return err
		}

		sub, err = subs.Create(ctx, newSubscription(userID, plan, !subscribedBefore, now))
		if sqlerr.IsUniqueViolation(err, repository.LiveSubscriptionConstraint) {
			return errLiveSubscriptionExists()
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("user_id", userID.String()).
		Str("plan_id", plan.ID).
		Str("status", string(sub.Status)).
		Msg("subscription created")

	s.notifyStarted(ctx, user, plan, sub)

	return &model.SubscriptionWithPlan{Subscription: *sub, Plan: plan}, nil
}

// newSubscription computes the first period. A trial lasts TrialDays, a
// paid period IntervalMonths.
func newSubscription(userID uuid.UUID, plan *model.Plan, trialEligible bool, start time.Time) *model.Subscription {
	start = start.UTC()

	sub := &model.Subscription{
		UserID:             userID,
		PlanID:             plan.ID,
		CurrentPeriodStart: start,
	}

	if trialEligible && plan.HasTrial() {
		sub.Status = model.SubscriptionStatusTrialing
		sub.CurrentPeriodEnd = start.AddDate(0, 0, plan.TrialDays)
	} else {
		sub.Status = model.SubscriptionStatusActive
		sub.CurrentPeriodEnd = start.AddDate(0, plan.IntervalMonths, 0)
	}
	return sub
}

// Cancel stops renewal of the live subscription. Access continues until
// the current period ends. Cancelling twice keeps the first canceled_at.
func (s *SubscriptionService) Cancel(ctx context.Context, userID uuid.UUID) (*model.SubscriptionWithPlan, error) {
	live, err := s.subs.GetLiveByUserID(ctx, userID, s.now())
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errNoLiveSubscription()
	}
	if err != nil {
		return nil, err
	}

	sub, err := s.subs.CancelAtPeriodEnd(ctx, live.ID, s.now())
	if errors.Is(err, pgx.ErrNoRows) {
		// Expired between the two statements.
		return nil, errNoLiveSubscription()
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("user_id", userID.String()).
		Str("subscription_id", sub.ID.String()).
		Msg("subscription set to cancel at period end")

	return s.withPlan(ctx, sub)
}

// ExpireDue ends every live subscription whose period is over.
func (s *SubscriptionService) ExpireDue(ctx context.Context) (int64, error) {
	n, err := s.subs.ExpireDue(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("expiring subscriptions: %w", err)
	}
	return n, nil
}

func (s *SubscriptionService) withPlan(ctx context.Context, sub *model.Subscription) (*model.SubscriptionWithPlan, error) {
	plan, err := s.plans.GetByID(ctx, sub.PlanID)
	if err != nil {
		return nil, err
	}
	return &model.SubscriptionWithPlan{Subscription: *sub, Plan: plan}, nil
}

func (s *SubscriptionService) notifyStarted(ctx context.Context, user *model.User, plan *model.Plan, sub *model.Subscription) {
	enqueueTask(ctx, s.jobs, s.logger, "subscription started email", func() (*asynq.Task, error) {
		return job.NewSubscriptionStartedTask(job.SubscriptionStartedPayload{
			To:        user.Email,
			FirstName: user.FirstName,
			PlanName:  plan.Name,
			Status:    string(sub.Status),
			PeriodEnd: sub.CurrentPeriodEnd,
		})
	})

	if !user.IsPhoneVerified() {
		return
	}

	message := fmt.Sprintf("Your CoachPanel %s subscription is now %s until %s.",
		plan.Name, sub.Status, sub.CurrentPeriodEnd.Format("02.01.2006"))
	enqueueTask(ctx, s.jobs, s.logger, "subscription started sms", func() (*asynq.Task, error) {
		return job.NewSMSTask(*user.Phone, message, false)
	})
}
