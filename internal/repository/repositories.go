package repository

import (
	"github.com/coachpanel/backend/internal/server"
)

// Repositories groups every repository so services receive one dependency.
type Repositories struct {
	User         *UserRepository
	Plan         *PlanRepository
	Subscription *SubscriptionRepository
	Token        *TokenRepository
}

func NewRepositories(s *server.Server) *Repositories {
	return &Repositories{
		User:         NewUserRepository(s.DB),
		Plan:         NewPlanRepository(s.DB),
		Subscription: NewSubscriptionRepository(s.DB),
		Token:        NewTokenRepository(s.Redis),
	}
}
