package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/coachpanel/backend/internal/config"
	"github.com/coachpanel/backend/internal/errs"
	"github.com/coachpanel/backend/internal/lib/job"
	"github.com/coachpanel/backend/internal/lib/utils"
	"github.com/coachpanel/backend/internal/model"
	"github.com/coachpanel/backend/internal/repository"
	"github.com/golang-jwt/jwt/v5"
	"github.com/hibiken/asynq"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidToken is returned by ParseToken for any token that must not
// authenticate a request.
var ErrInvalidToken = errors.New("invalid access token")

const (
	// tokenBytes of randomness back email verification and reset links.
	tokenBytes    = 32
	phoneCodeSize = 6
)

// UserStore is the user persistence AuthService relies on.
type UserStore interface {
	Create(ctx context.Context, user *model.User) (*model.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	MarkEmailVerified(ctx context.Context, id uuid.UUID, at time.Time) (*model.User, error)
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	SetVerifiedPhone(ctx context.Context, id uuid.UUID, phone string, at time.Time) (*model.User, error)
}

// TokenStore keeps the short-lived verification secrets.
type TokenStore interface {
	SaveEmailVerification(ctx context.Context, token string, userID uuid.UUID, ttl time.Duration) error
	ConsumeEmailVerification(ctx context.Context, token string) (uuid.UUID, error)
	SavePasswordReset(ctx context.Context, token string, userID uuid.UUID, ttl time.Duration) error
	ConsumePasswordReset(ctx context.Context, token string) (uuid.UUID, error)
	SavePhoneCode(ctx context.Context, userID uuid.UUID, code repository.PhoneCode, ttl time.Duration) error
	GetPhoneCode(ctx context.Context, userID uuid.UUID) (*repository.PhoneCode, error)
	IncrPhoneCodeAttempts(ctx context.Context, userID uuid.UUID) (int, error)
	DeletePhoneCode(ctx context.Context, userID uuid.UUID) error
}

// AuthService owns credentials: passwords, access tokens and the email
// and phone verification flows.
type AuthService struct {
	auth        config.AuthConfig
	frontendURL string

	users  UserStore
	tokens TokenStore
	jobs   job.Enqueuer
	logger *zerolog.Logger

	bcryptCost int
	// dummyHash is compared against when the email is unknown so login
	// takes the same time either way.
	dummyHash []byte
	now       func() time.Time
}

func NewAuthService(cfg *config.Config, users UserStore, tokens TokenStore, jobs job.Enqueuer, logger *zerolog.Logger) *AuthService {
	s := &AuthService{
		auth:        cfg.Auth,
		frontendURL: strings.TrimRight(cfg.Server.FrontendURL, "/"),
		users:       users,
		tokens:      tokens,
		jobs:        jobs,
		logger:      logger,
		bcryptCost:  bcrypt.DefaultCost,
		now:         time.Now,
	}
	s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("coachpanel-unknown-user"), s.bcryptCost)
	return s
}

func (s *AuthService) Register(ctx context.Context, req *model.RegisterRequest) (*model.AuthResponse, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	// A duplicate email surfaces as a unique violation and is mapped to
	// USER_ALREADY_EXISTS by the error handler.
	user, err := s.users.Create(ctx, &model.User{
		Email:        model.NormalizeEmail(req.Email),
		Phone:        req.Phone,
		PasswordHash: string(hash),
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
	})
	if err != nil {
		return nil, err
	}

	s.enqueue(ctx, "welcome email", func() (*asynq.Task, error) {
		return job.NewWelcomeEmailTask(user.Email, user.FirstName)
	})
	if err := s.sendVerificationEmail(ctx, user); err != nil {
		s.logger.Error().Err(err).Str("user_id", user.ID.String()).Msg("failed to start email verification")
	}

	s.logger.Info().Str("user_id", user.ID.String()).Msg("user registered")

	return s.authResponse(user)
}

func (s *AuthService) Login(ctx context.Context, req *model.LoginRequest) (*model.AuthResponse, error) {
	invalid := errs.NewUnauthorizedError("Invalid email or password", true)

	user, err := s.users.GetByEmail(ctx, model.NormalizeEmail(req.Email))
	if errors.Is(err, pgx.ErrNoRows) {
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(req.Password))
		return nil, invalid
	}
	if err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, invalid
	}

	return s.authResponse(user)
}

func (s *AuthService) Me(ctx context.Context, userID uuid.UUID) (*model.User, error) {
	return s.users.GetByID(ctx, userID)
}

func (s *AuthService) VerifyEmail(ctx context.Context, token string) (*model.User, error) {
	userID, err := s.tokens.ConsumeEmailVerification(ctx, token)
	if errors.Is(err, repository.ErrTokenNotFound) {
		code := "INVALID_VERIFICATION_TOKEN"
		return nil, errs.NewBadRequestError("Verification link is invalid or has expired", true, &code, nil, nil)
	}
	if err != nil {
		return nil, err
	}

	return s.users.MarkEmailVerified(ctx, userID, s.now())
}

// ForgotPassword starts a reset for a known email. It succeeds either way
// so the response does not reveal which emails have accounts.
func (s *AuthService) ForgotPassword(ctx context.Context, req *model.ForgotPasswordRequest) error {
	user, err := s.users.GetByEmail(ctx, model.NormalizeEmail(req.Email))
	if errors.Is(err, pgx.ErrNoRows) {
		s.logger.Debug().Msg("password reset requested for unknown email")
		return nil
	}
	if err != nil {
		return err
	}

	token, err := utils.RandomToken(tokenBytes)
	if err != nil {
		return err
	}
	if err := s.tokens.SavePasswordReset(ctx, token, user.ID, s.auth.PasswordResetTTL); err != nil {
		return err
	}

	link := s.frontendURL + "/reset-password?token=" + token
	s.enqueue(ctx, "password reset email", func() (*asynq.Task, error) {
		return job.NewPasswordResetTask(user.Email, user.FirstName, link)
	})
	return nil
}

func (s *AuthService) ResetPassword(ctx context.Context, req *model.ResetPasswordRequest) error {
	userID, err := s.tokens.ConsumePasswordReset(ctx, req.Token)
	if errors.Is(err, repository.ErrTokenNotFound) {
		code := "INVALID_RESET_TOKEN"
		return errs.NewBadRequestError("Reset link is invalid or has expired", true, &code, nil, nil)
	}
	if err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}

	if err := s.users.UpdatePassword(ctx, userID, string(hash)); err != nil {
		return err
	}

	s.logger.Info().Str("user_id", userID.String()).Msg("password reset")
	return nil
}

// SendPhoneCode texts a one-time code to phone. A new request replaces
// the pending code and its attempt counter.
func (s *AuthService) SendPhoneCode(ctx context.Context, userID uuid.UUID, phone string) error {
	code, err := utils.RandomDigits(phoneCodeSize)
	if err != nil {
		return err
	}

	pending := repository.PhoneCode{Phone: phone, Code: code}
	if err := s.tokens.SavePhoneCode(ctx, userID, pending, s.auth.PhoneCodeTTL); err != nil {
		return err
	}

	task, err := job.NewSMSTask(phone, fmt.Sprintf("Your CoachPanel verification code is %s", code), true)
	if err != nil {
		return err
	}
	if _, err := s.jobs.EnqueueContext(ctx, task); err != nil {
		return fmt.Errorf("enqueueing verification sms: %w", err)
	}
	return nil
}

// VerifyPhone checks code against the pending one. Every attempt is
// counted before the comparison, so at most PhoneCodeMaxAttempts guesses
// are ever compared; the code is dropped when the limit is reached.
func (s *AuthService) VerifyPhone(ctx context.Context, userID uuid.UUID, code string) (*model.User, error) {
	expired := func() error {
		c := "PHONE_CODE_EXPIRED"
		return errs.NewBadRequestError("Verification code has expired, request a new one", true, &c, nil, nil)
	}
	tooMany := func() error {
		if err := s.tokens.DeletePhoneCode(ctx, userID); err != nil {
			return err
		}
		return errs.NewTooManyRequestsError("Too many wrong codes, request a new one")
	}

	attempts, err := s.tokens.IncrPhoneCodeAttempts(ctx, userID)
	if errors.Is(err, repository.ErrTokenNotFound) {
		return nil, expired()
	}
	if err != nil {
		return nil, err
	}
	if attempts > s.auth.PhoneCodeMaxAttempts {
		return nil, tooMany()
	}

	pending, err := s.tokens.GetPhoneCode(ctx, userID)
	if errors.Is(err, repository.ErrTokenNotFound) {
		return nil, expired()
	}
	if err != nil {
		return nil, err
	}

	if !utils.SecureCompare(pending.Code, code) {
		if attempts >= s.auth.PhoneCodeMaxAttempts {
			return nil, tooMany()
		}

		c := "INVALID_PHONE_CODE"
		return nil, errs.NewBadRequestError("Verification code is incorrect", true, &c, nil, nil)
	}

	user, err := s.users.SetVerifiedPhone(ctx, userID, pending.Phone, s.now())
	if err != nil {
		return nil, err
	}

	if err := s.tokens.DeletePhoneCode(ctx, userID); err != nil {
		s.logger.Warn().Err(err).Str("user_id", userID.String()).Msg("failed to delete used phone code")
	}
	return user, nil
}

// ParseToken validates an access token and returns its user id.
func (s *AuthService) ParseToken(tokenString string) (uuid.UUID, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return []byte(s.auth.JWTSecret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.auth.TokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: bad subject", ErrInvalidToken)
	}
	return userID, nil
}

func (s *AuthService) issueToken(userID uuid.UUID) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(s.auth.TokenTTL)

	claims := jwt.RegisteredClaims{
		Subject:   userID.String(),
		Issuer:    s.auth.TokenIssuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.auth.JWTSecret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing access token: %w", err)
	}
	return signed, expiresAt, nil
}

func (s *AuthService) authResponse(user *model.User) (*model.AuthResponse, error) {
	token, expiresAt, err := s.issueToken(user.ID)
	if err != nil {
		return nil, err
	}
	return &model.AuthResponse{User: user, Token: token, ExpiresAt: expiresAt}, nil
}

func (s *AuthService) sendVerificationEmail(ctx context.Context, user *model.User) error {
	token, err := utils.RandomToken(tokenBytes)
	if err != nil {
		return err
	}
	if err := s.tokens.SaveEmailVerification(ctx, token, user.ID, s.auth.EmailVerificationTTL); err != nil {
		return err
	}

	link := s.frontendURL + "/verify-email?token=" + token
	s.enqueue(ctx, "verification email", func() (*asynq.Task, error) {
		return job.NewVerifyEmailTask(user.Email, user.FirstName, link)
	})
	return nil
}

// enqueue schedules a notification. Failures are logged: the request that
// triggered it has already succeeded.
func (s *AuthService) enqueue(ctx context.Context, what string, build func() (*asynq.Task, error)) {
	enqueueTask(ctx, s.jobs, s.logger, what, build)
}
