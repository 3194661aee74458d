package model

import (
	"strings"
	"time"

	"github.com/coachpanel/backend/internal/validation"
)

// User is a coach account. The password hash never leaves the server.
type User struct {
	Base
	Email           string     `json:"email" db:"email"`
	Phone           *string    `json:"phone" db:"phone"`
	PasswordHash    string     `json:"-" db:"password_hash"`
	FirstName       string     `json:"firstName" db:"first_name"`
	LastName        string     `json:"lastName" db:"last_name"`
	EmailVerifiedAt *time.Time `json:"emailVerifiedAt" db:"email_verified_at"`
	PhoneVerifiedAt *time.Time `json:"phoneVerifiedAt" db:"phone_verified_at"`
}

func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

func (u *User) IsEmailVerified() bool {
	return u.EmailVerifiedAt != nil
}

func (u *User) IsPhoneVerified() bool {
	return u.Phone != nil && u.PhoneVerifiedAt != nil
}

// NormalizeEmail lower-cases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ------------------------------------------------------------

type RegisterRequest struct {
	Email     string  `json:"email" validate:"required,email,max=254"`
	Password  string  `json:"password" validate:"required,min=8,max=72"`
	FirstName string  `json:"firstName" validate:"required,max=100"`
	LastName  string  `json:"lastName" validate:"required,max=100"`
	Phone     *string `json:"phone" validate:"omitempty,e164"`
}

func (r *RegisterRequest) Validate() error {
	return validation.Struct(r)
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (r *LoginRequest) Validate() error {
	return validation.Struct(r)
}

type VerifyEmailRequest struct {
	Token string `json:"token" validate:"required,max=128"`
}

func (r *VerifyEmailRequest) Validate() error {
	return validation.Struct(r)
}

type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

func (r *ForgotPasswordRequest) Validate() error {
	return validation.Struct(r)
}

type ResetPasswordRequest struct {
	Token    string `json:"token" validate:"required,max=128"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

func (r *ResetPasswordRequest) Validate() error {
	return validation.Struct(r)
}

type SendPhoneCodeRequest struct {
	Phone string `json:"phone" validate:"required,e164"`
}

func (r *SendPhoneCodeRequest) Validate() error {
	return validation.Struct(r)
}

type VerifyPhoneRequest struct {
	Code string `json:"code" validate:"required,len=6,numeric"`
}

func (r *VerifyPhoneRequest) Validate() error {
	return validation.Struct(r)
}

// AuthResponse is returned by register and login. The token is also set
// as an HTTP-only cookie.
type AuthResponse struct {
	User      *User     `json:"user"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}
