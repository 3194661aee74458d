package repository

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTokenRepository(t *testing.T) (*TokenRepository, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewTokenRepository(client), mr
}

func TestTokenRepository_EmailVerificationIsSingleUse(t *testing.T) {
	repo, mr := newTokenRepository(t)
	ctx := context.Background()
	userID := uuid.New()

	require.NoError(t, repo.SaveEmailVerification(ctx, "tok", userID, time.Hour))
	assert.Equal(t, time.Hour, mr.TTL(emailVerificationPrefix+"tok"))

	got, err := repo.ConsumeEmailVerification(ctx, "tok")
	require.NoError(t, err)
	assert.Equal(t, userID, got)

	_, err = repo.ConsumeEmailVerification(ctx, "tok")
	assert.ErrorIs(t, err, ErrTokenNotFound)
}

func TestTokenRepository_PasswordResetExpires(t *testing.T) {
	repo, mr := newTokenRepository(t)
	ctx := context.Background()

	require.NoError(t, repo.SavePasswordReset(ctx, "reset", uuid.New(), time.Minute))
	mr.FastForward(2 * time.Minute)

	_, err := repo.ConsumePasswordReset(ctx, "reset")
	assert.ErrorIs(t, err, ErrTokenNotFound)
}

func TestTokenRepository_TokenKindsAreSeparate(t *testing.T) {
	repo, _ := newTokenRepository(t)
	ctx := context.Background()

	require.NoError(t, repo.SaveEmailVerification(ctx, "shared", uuid.New(), time.Hour))

	_, err := repo.ConsumePasswordReset(ctx, "shared")
	assert.ErrorIs(t, err, ErrTokenNotFound)
}

func TestTokenRepository_PhoneCode(t *testing.T) {
	repo, mr := newTokenRepository(t)
	ctx := context.Background()
	userID := uuid.New()

	_, err := repo.GetPhoneCode(ctx, userID)
	assert.ErrorIs(t, err, ErrTokenNotFound)

	code := PhoneCode{Phone: "+905551112233", Code: "123456"}
	require.NoError(t, repo.SavePhoneCode(ctx, userID, code, 5*time.Minute))

	got, err := repo.GetPhoneCode(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, code, *got)

	mr.FastForward(time.Minute)
	n, err := repo.IncrPhoneCodeAttempts(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// Counting keeps the original expiry.
	assert.Equal(t, 4*time.Minute, mr.TTL(phoneCodePrefix+userID.String()))

	got, err = repo.GetPhoneCode(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Attempts)

	// A new code starts counting again.
	require.NoError(t, repo.SavePhoneCode(ctx, userID, code, 5*time.Minute))
	got, err = repo.GetPhoneCode(ctx, userID)
	require.NoError(t, err)
	assert.Zero(t, got.Attempts)

	require.NoError(t, repo.DeletePhoneCode(ctx, userID))
	_, err = repo.GetPhoneCode(ctx, userID)
	assert.ErrorIs(t, err, ErrTokenNotFound)
}

func TestTokenRepository_IncrAttemptsWithoutCode(t *testing.T) {
	repo, mr := newTokenRepository(t)
	userID := uuid.New()

	_, err := repo.IncrPhoneCodeAttempts(context.Background(), userID)
	assert.ErrorIs(t, err, ErrTokenNotFound)

	// No counter is left behind without an expiry.
	assert.False(t, mr.Exists(phoneCodePrefix+userID.String()))
}

func TestTokenRepository_IncrAttemptsIsAtomic(t *testing.T) {
	repo, _ := newTokenRepository(t)
	ctx := context.Background()
	userID := uuid.New()

	require.NoError(t, repo.SavePhoneCode(ctx, userID, PhoneCode{Phone: "+905551112233", Code: "123456"}, 5*time.Minute))

	const n = 50
	seen := make([]int, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got, err := repo.IncrPhoneCodeAttempts(ctx, userID)
			assert.NoError(t, err)
			seen[i] = got
		}(i)
	}
	wg.Wait()

	sort.Ints(seen)
	for i, got := range seen {
		assert.Equal(t, i+1, got)
	}
}
