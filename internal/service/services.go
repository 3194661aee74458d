package service

import (
	"github.com/coachpanel/backend/internal/lib/email"
	"github.com/coachpanel/backend/internal/lib/job"
	"github.com/coachpanel/backend/internal/lib/sms"
	"github.com/coachpanel/backend/internal/repository"
	"github.com/coachpanel/backend/internal/server"
)

type Services struct {
	Auth         *AuthService
	Subscription *SubscriptionService
	Job          *job.JobService
}

// NewServices builds the services and hands the background worker the
// collaborators its task handlers call.
func NewServices(s *server.Server, repos *repository.Repositories) (*Services, error) {
	auth := NewAuthService(s.Config, repos.User, repos.Token, s.Job.Client, s.Logger)
	subscription := NewSubscriptionService(s.DB, repos, s.Job.Client, s.Logger)

	s.Job.InitHandlers(job.Dependencies{
		Mailer:        email.NewClient(s.Config, s.Logger),
		SMS:           sms.NewClient(s.Config, s.Logger),
		Subscriptions: subscription,
	})

	return &Services{
		Auth:         auth,
		Subscription: subscription,
		Job:          s.Job,
	}, nil
}
