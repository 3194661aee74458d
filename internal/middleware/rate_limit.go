package middleware

import (
	"context"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/coachpanel/backend/internal/errs"
	"github.com/coachpanel/backend/internal/server"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	headerRetryAfter = "Retry-After"

	rateLimitKeyPrefix = "ratelimit:"
	redisStoreTimeout  = 200 * time.Millisecond
)

type RateLimitMiddleware struct {
	server *server.Server
	store  middleware.RateLimiterStore
}

// NewRateLimitMiddleware picks the store from config. The redis store
// needs a Redis client and falls back to memory without one.
func NewRateLimitMiddleware(s *server.Server) *RateLimitMiddleware {
	cfg := s.Config.RateLimit

	var store middleware.RateLimiterStore
	if cfg.Store == "redis" && s.Redis != nil {
		store = NewRedisRateLimiterStore(s.Redis, cfg.Max, cfg.Window, s.Logger)
	} else {
		store = NewMemoryRateLimiterStore(cfg.Max, cfg.Window)
	}

	return &RateLimitMiddleware{
		server: s,
		store:  store,
	}
}

// Limit allows RateLimit.Max requests per client IP per RateLimit.Window.
// Further requests get 429 with Retry-After.
func (r *RateLimitMiddleware) Limit() echo.MiddlewareFunc {
	cfg := r.server.Config.RateLimit

	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Skipper: func(echo.Context) bool {
			return !cfg.Enabled
		},
		Store: r.store,
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return errs.NewForbiddenError("Unable to identify client", false)
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			c.Response().Header().Set(headerRetryAfter, strconv.Itoa(r.retryAfterSeconds(identifier)))

			GetLogger(c).Warn().Str("client", identifier).Msg("rate limit exceeded")
			r.RecordRateLimitHit(c.Path())

			return errs.NewTooManyRequestsError("Too many requests, please try again later")
		},
	})
}

// windowStore is a RateLimiterStore that knows when a client's window
// resets.
type windowStore interface {
	middleware.RateLimiterStore
	RetryAfter(identifier string) time.Duration
}

func (r *RateLimitMiddleware) retryAfterSeconds(identifier string) int {
	wait := r.server.Config.RateLimit.Window
	if ws, ok := r.store.(windowStore); ok {
		if ttl := ws.RetryAfter(identifier); ttl > 0 {
			wait = ttl
		}
	}
	return int(math.Ceil(math.Max(wait.Seconds(), 1)))
}

// RecordRateLimitHit sends a RateLimitHit custom event to New Relic.
func (r *RateLimitMiddleware) RecordRateLimitHit(endpoint string) {
	if r.server.LoggerService != nil && r.server.LoggerService.GetApplication() != nil {
		r.server.LoggerService.GetApplication().RecordCustomEvent("RateLimitHit", map[string]interface{}{
			"endpoint": endpoint,
		})
	}
}

type counterWindow struct {
	count int
	start time.Time
}

// MemoryRateLimiterStore is a per-process fixed-window counter: at most
// max requests per identifier in each window, the window opening on the
// identifier's first request. Expired windows are swept at most once per
// window length.
type MemoryRateLimiterStore struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	windows map[string]*counterWindow
	sweep   rate.Sometimes
	now     func() time.Time
}

func NewMemoryRateLimiterStore(max int, window time.Duration) *MemoryRateLimiterStore {
	return &MemoryRateLimiterStore{
		max:     max,
		window:  window,
		windows: make(map[string]*counterWindow),
		sweep:   rate.Sometimes{Interval: window},
		now:     time.Now,
	}
}

// Allow implements middleware.RateLimiterStore.
func (s *MemoryRateLimiterStore) Allow(identifier string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.sweep.Do(func() {
		for id, w := range s.windows {
			if !now.Before(w.start.Add(s.window)) {
				delete(s.windows, id)
			}
		}
	})

	w, ok := s.windows[identifier]
	if !ok || !now.Before(w.start.Add(s.window)) {
		w = &counterWindow{start: now}
		s.windows[identifier] = w
	}
	w.count++

	return w.count <= s.max, nil
}

// RetryAfter is how long until the identifier's window resets.
func (s *MemoryRateLimiterStore) RetryAfter(identifier string) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.windows[identifier]
	if !ok {
		return 0
	}
	return w.start.Add(s.window).Sub(s.now())
}

// RedisRateLimiterStore is a fixed-window counter shared by every
// replica. Redis errors let the request through.
type RedisRateLimiterStore struct {
	rdb    redis.Cmdable
	max    int64
	window time.Duration
	logger *zerolog.Logger
}

func NewRedisRateLimiterStore(rdb redis.Cmdable, max int, window time.Duration, logger *zerolog.Logger) *RedisRateLimiterStore {
	return &RedisRateLimiterStore{
		rdb:    rdb,
		max:    int64(max),
		window: window,
		logger: logger,
	}
}

// Allow implements middleware.RateLimiterStore.
func (s *RedisRateLimiterStore) Allow(identifier string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), redisStoreTimeout)
	defer cancel()

	key := rateLimitKeyPrefix + identifier

	var incr *redis.IntCmd
	var ttl *redis.DurationCmd
	_, err := s.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		ttl = pipe.PTTL(ctx, key)
		return nil
	})
	if err != nil {
		s.logger.Warn().Err(err).Msg("rate limit store unavailable, allowing request")
		return true, nil
	}

	// A negative TTL means the window was just opened (or its expiry was
	// lost), so start it now.
	if ttl.Val() < 0 {
		if err := s.rdb.PExpire(ctx, key, s.window).Err(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to set rate limit window")
		}
	}

	return incr.Val() <= s.max, nil
}

// RetryAfter is how long until the identifier's window resets.
func (s *RedisRateLimiterStore) RetryAfter(identifier string) time.Duration {
	ctx, cancel := context.WithTimeout(context.Background(), redisStoreTimeout)
	defer cancel()

	ttl, err := s.rdb.PTTL(ctx, rateLimitKeyPrefix+identifier).Result()
	if err != nil || ttl < 0 {
		return 0
	}
	return ttl
}
