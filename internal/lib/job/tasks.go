package job

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	TaskWelcome             = "email:welcome"
	TaskVerifyEmail         = "email:verify"
	TaskPasswordReset       = "email:password_reset"
	TaskSubscriptionStarted = "email:subscription_started"
	TaskSendSMS             = "sms:send"
	TaskExpireSubscriptions = "subscription:expire"
)

const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"
)

type WelcomeEmailPayload struct {
	To        string `json:"to"`
	FirstName string `json:"first_name"`
}

// LinkEmailPayload is shared by the emails that carry a single action link.
type LinkEmailPayload struct {
	To        string `json:"to"`
	FirstName string `json:"first_name"`
	Link      string `json:"link"`
}

type SubscriptionStartedPayload struct {
	To        string    `json:"to"`
	FirstName string    `json:"first_name"`
	PlanName  string    `json:"plan_name"`
	Status    string    `json:"status"`
	PeriodEnd time.Time `json:"period_end"`
}

type SMSPayload struct {
	Phone   string `json:"phone"`
	Message string `json:"message"`
}

func newTask(taskType string, payload any, opts ...asynq.Option) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	defaults := []asynq.Option{
		asynq.MaxRetry(3),
		asynq.Queue(QueueDefault),
		asynq.Timeout(30 * time.Second),
	}
	return asynq.NewTask(taskType, data, append(defaults, opts...)...), nil
}

func NewWelcomeEmailTask(to, firstName string) (*asynq.Task, error) {
	return newTask(TaskWelcome, WelcomeEmailPayload{To: to, FirstName: firstName}, asynq.Queue(QueueLow))
}

func NewVerifyEmailTask(to, firstName, link string) (*asynq.Task, error) {
	return newTask(TaskVerifyEmail, LinkEmailPayload{To: to, FirstName: firstName, Link: link}, asynq.Queue(QueueCritical))
}

func NewPasswordResetTask(to, firstName, link string) (*asynq.Task, error) {
	return newTask(TaskPasswordReset, LinkEmailPayload{To: to, FirstName: firstName, Link: link}, asynq.Queue(QueueCritical))
}

func NewSubscriptionStartedTask(p SubscriptionStartedPayload) (*asynq.Task, error) {
	return newTask(TaskSubscriptionStarted, p)
}

// NewSMSTask sends a text message. OTPs go to the critical queue and are
// not worth delivering after a few minutes, so the retention is short.
func NewSMSTask(phone, message string, critical bool) (*asynq.Task, error) {
	opts := []asynq.Option{}
	if critical {
		opts = append(opts, asynq.Queue(QueueCritical), asynq.Deadline(time.Now().Add(5*time.Minute)))
	}
	return newTask(TaskSendSMS, SMSPayload{Phone: phone, Message: message}, opts...)
}

// NewExpireSubscriptionsTask is enqueued hourly by the scheduler. Unique
// keeps overlapping runs from piling up.
func NewExpireSubscriptionsTask() *asynq.Task {
	return asynq.NewTask(TaskExpireSubscriptions, nil,
		asynq.MaxRetry(1),
		asynq.Queue(QueueLow),
		asynq.Timeout(5*time.Minute),
		asynq.Unique(time.Hour),
	)
}
