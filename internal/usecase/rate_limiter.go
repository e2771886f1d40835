package usecase

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/khushwant-singh1/bundle-market/internal/core/port"
)

// RateLimiter enforces a sliding-window attempt budget per identifier. It
// fails open on store errors so a cache outage never blocks logins.
type RateLimiter struct {
	store       port.RateLimitStore
	scope       string
	maxAttempts int
	window      time.Duration
	logger      *zap.Logger
	now         func() time.Time
}

// NewRateLimiter constructs a limiter for one scope (e.g. "send-otp").
func NewRateLimiter(store port.RateLimitStore, scope string, maxAttempts int, window time.Duration, logger *zap.Logger) *RateLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RateLimiter{
		store:       store,
		scope:       scope,
		maxAttempts: maxAttempts,
		window:      window,
		logger:      logger,
		now:         time.Now,
	}
}

// WithClock overrides the internal clock, used in tests.
func (l *RateLimiter) WithClock(clock func() time.Time) {
	if clock != nil {
		l.now = clock
	}
}

// Allow records an attempt and returns a RateLimitExceededError when the
// identifier has exhausted its budget for the window.
func (l *RateLimiter) Allow(ctx context.Context, identifier string) error {
	if l.store == nil || l.maxAttempts <= 0 {
		return nil
	}

	key := fmt.Sprintf("%s:%s", l.scope, identifier)
	now := l.now().UTC()

	if err := l.store.TrimWindow(ctx, key, l.window, now); err != nil {
		l.logger.Warn("rate limit trim failed", zap.String("scope", l.scope), zap.Error(err))
		return nil
	}

	count, err := l.store.CountAttempts(ctx, key, l.window, now)
	if err != nil {
		l.logger.Warn("rate limit count failed", zap.String("scope", l.scope), zap.Error(err))
		return nil
	}

	if count >= l.maxAttempts {
		retryAfter := l.window
		if oldest, ok, err := l.store.OldestAttempt(ctx, key, l.window, now); err == nil && ok {
			retryAfter = oldest.Add(l.window).Sub(now)
			if retryAfter < 0 {
				retryAfter = 0
			}
		}
		return &RateLimitExceededError{Scope: l.scope, RetryAfter: retryAfter}
	}

	if err := l.store.RecordAttempt(ctx, key, now); err != nil {
		l.logger.Warn("rate limit record failed", zap.String("scope", l.scope), zap.Error(err))
	}

	return nil
}
