package job

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

// Mailer sends the transactional emails. *email.Client satisfies it.
type Mailer interface {
	SendWelcomeEmail(ctx context.Context, to, firstName string) error
	SendVerificationEmail(ctx context.Context, to, firstName, link string) error
	SendPasswordResetEmail(ctx context.Context, to, firstName, link string) error
	SendSubscriptionStartedEmail(ctx context.Context, to, firstName, planName, status, periodEnd string) error
}

// SMSSender delivers text messages. *sms.Client satisfies it.
type SMSSender interface {
	Send(ctx context.Context, phone, message string) (string, error)
}

// SubscriptionExpirer ends subscriptions whose period is over.
type SubscriptionExpirer interface {
	ExpireDue(ctx context.Context) (int64, error)
}

// Dependencies are the collaborators task handlers call into.
type Dependencies struct {
	Mailer        Mailer
	SMS           SMSSender
	Subscriptions SubscriptionExpirer
}

// InitHandlers sets the dependencies used by task handlers.
func (j *JobService) InitHandlers(deps Dependencies) {
	j.deps = deps
}

// Mux routes every task type to its handler.
func (j *JobService) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskWelcome, j.handleWelcomeEmailTask)
	mux.HandleFunc(TaskVerifyEmail, j.handleVerifyEmailTask)
	mux.HandleFunc(TaskPasswordReset, j.handlePasswordResetTask)
	mux.HandleFunc(TaskSubscriptionStarted, j.handleSubscriptionStartedTask)
	mux.HandleFunc(TaskSendSMS, j.handleSendSMSTask)
	mux.HandleFunc(TaskExpireSubscriptions, j.handleExpireSubscriptionsTask)
	return mux
}

// decode unmarshals a task payload. A malformed payload will never
// succeed, so it skips retries.
func decode(t *asynq.Task, v any) error {
	if err := json.Unmarshal(t.Payload(), v); err != nil {
		return fmt.Errorf("failed to unmarshal %s payload: %v: %w", t.Type(), err, asynq.SkipRetry)
	}
	return nil
}

func (j *JobService) handleWelcomeEmailTask(ctx context.Context, t *asynq.Task) error {
	var p WelcomeEmailPayload
	if err := decode(t, &p); err != nil {
		return err
	}

	return j.logged(t, p.To, j.deps.Mailer.SendWelcomeEmail(ctx, p.To, p.FirstName))
}

func (j *JobService) handleVerifyEmailTask(ctx context.Context, t *asynq.Task) error {
	var p LinkEmailPayload
	if err := decode(t, &p); err != nil {
		return err
	}

	return j.logged(t, p.To, j.deps.Mailer.SendVerificationEmail(ctx, p.To, p.FirstName, p.Link))
}

func (j *JobService) handlePasswordResetTask(ctx context.Context, t *asynq.Task) error {
	var p LinkEmailPayload
	if err := decode(t, &p); err != nil {
		return err
	}

	return j.logged(t, p.To, j.deps.Mailer.SendPasswordResetEmail(ctx, p.To, p.FirstName, p.Link))
}

func (j *JobService) handleSubscriptionStartedTask(ctx context.Context, t *asynq.Task) error {
	var p SubscriptionStartedPayload
	if err := decode(t, &p); err != nil {
		return err
	}

	periodEnd := p.PeriodEnd.UTC().Format("2 January 2006")
	err := j.deps.Mailer.SendSubscriptionStartedEmail(ctx, p.To, p.FirstName, p.PlanName, p.Status, periodEnd)
	return j.logged(t, p.To, err)
}

func (j *JobService) handleSendSMSTask(ctx context.Context, t *asynq.Task) error {
	var p SMSPayload
	if err := decode(t, &p); err != nil {
		return err
	}

	_, err := j.deps.SMS.Send(ctx, p.Phone, p.Message)
	return j.logged(t, p.Phone, err)
}

func (j *JobService) handleExpireSubscriptionsTask(ctx context.Context, t *asynq.Task) error {
	start := time.Now()

	expired, err := j.deps.Subscriptions.ExpireDue(ctx)
	if err != nil {
		j.logger.Error().Str("type", t.Type()).Err(err).Msg("Failed to expire subscriptions")
		return err
	}

	j.logger.Info().
		Str("type", t.Type()).
		Int64("expired", expired).
		Dur("duration", time.Since(start)).
		Msg("Expired due subscriptions")
	return nil
}

// logged records the outcome of a delivery task and passes err through,
// so a failure makes asynq schedule a retry.
func (j *JobService) logged(t *asynq.Task, recipient string, err error) error {
	if err != nil {
		j.logger.Error().
			Str("type", t.Type()).
			Str("to", recipient).
			Err(err).
			Msg("Failed to process task")
		return err
	}

	j.logger.Info().
		Str("type", t.Type()).
		Str("to", recipient).
		Msg("Successfully processed task")
	return nil
}
