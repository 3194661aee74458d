package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrTokenNotFound is returned for unknown, expired or already used tokens.
var ErrTokenNotFound = errors.New("token not found or expired")

const (
	emailVerificationPrefix = "auth:verify_email:"
	passwordResetPrefix     = "auth:password_reset:"
	phoneCodePrefix         = "auth:phone_code:"
)

// PhoneCode is a pending phone verification for one user.
type PhoneCode struct {
	Phone    string
	Code     string
	Attempts int
}

// TokenRepository stores short-lived, single-use auth tokens in Redis.
type TokenRepository struct {
	rdb redis.Cmdable
}

func NewTokenRepository(rdb redis.Cmdable) *TokenRepository {
	return &TokenRepository{rdb: rdb}
}

func (r *TokenRepository) SaveEmailVerification(ctx context.Context, token string, userID uuid.UUID, ttl time.Duration) error {
	return r.rdb.Set(ctx, emailVerificationPrefix+token, userID.String(), ttl).Err()
}

// ConsumeEmailVerification returns the token's user and deletes the token.
func (r *TokenRepository) ConsumeEmailVerification(ctx context.Context, token string) (uuid.UUID, error) {
	return r.consume(ctx, emailVerificationPrefix+token)
}

func (r *TokenRepository) SavePasswordReset(ctx context.Context, token string, userID uuid.UUID, ttl time.Duration) error {
	return r.rdb.Set(ctx, passwordResetPrefix+token, userID.String(), ttl).Err()
}

func (r *TokenRepository) ConsumePasswordReset(ctx context.Context, token string) (uuid.UUID, error) {
	return r.consume(ctx, passwordResetPrefix+token)
}

// consume atomically reads and deletes key so a token works exactly once.
func (r *TokenRepository) consume(ctx context.Context, key string) (uuid.UUID, error) {
	value, err := r.rdb.GetDel(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return uuid.Nil, ErrTokenNotFound
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("consuming token: %w", err)
	}

	userID, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, fmt.Errorf("stored token has invalid user id: %w", err)
	}
	return userID, nil
}

// incrAttemptsScript bumps the attempt counter of an existing phone code
// and returns -1 when there is none, so a counter never outlives its code.
var incrAttemptsScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
	return -1
end
return redis.call("HINCRBY", KEYS[1], "attempts", 1)
`)

// SavePhoneCode replaces any pending code for the user and resets its
// attempt counter.
func (r *TokenRepository) SavePhoneCode(ctx context.Context, userID uuid.UUID, code PhoneCode, ttl time.Duration) error {
	key := phoneCodePrefix + userID.String()

	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, "phone", code.Phone, "code", code.Code, "attempts", code.Attempts)
		pipe.PExpire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("saving phone code: %w", err)
	}
	return nil
}

func (r *TokenRepository) GetPhoneCode(ctx context.Context, userID uuid.UUID) (*PhoneCode, error) {
	fields, err := r.rdb.HGetAll(ctx, phoneCodePrefix+userID.String()).Result()
	if err != nil {
		return nil, fmt.Errorf("reading phone code: %w", err)
	}
	if len(fields) == 0 {
		return nil, ErrTokenNotFound
	}

	attempts, err := strconv.Atoi(fields["attempts"])
	if err != nil {
		return nil, fmt.Errorf("stored phone code has invalid attempts: %w", err)
	}
	return &PhoneCode{
		Phone:    fields["phone"],
		Code:     fields["code"],
		Attempts: attempts,
	}, nil
}

// IncrPhoneCodeAttempts atomically counts one verification attempt and
// returns the new total. Concurrent callers each see a distinct value.
func (r *TokenRepository) IncrPhoneCodeAttempts(ctx context.Context, userID uuid.UUID) (int, error) {
	n, err := incrAttemptsScript.Run(ctx, r.rdb, []string{phoneCodePrefix + userID.String()}).Int()
	if err != nil {
		return 0, fmt.Errorf("counting phone code attempt: %w", err)
	}
	if n < 0 {
		return 0, ErrTokenNotFound
	}
	return n, nil
}

func (r *TokenRepository) DeletePhoneCode(ctx context.Context, userID uuid.UUID) error {
	return r.rdb.Del(ctx, phoneCodePrefix+userID.String()).Err()
}
