package port

import (
	"context"

	"github.com/khushwant-singh1/bundle-market/internal/core/domain"
)

// OTPRepository persists one-time verification codes.
type OTPRepository interface {
	// CreateReplacing deletes every prior row for (email, type), spent and
	// stale ones included, and inserts the new row within one transaction, so
	// at most one actionable code exists after each issue.
	CreateReplacing(ctx context.Context, otp domain.OTPVerification) error

	// GetLatest returns the most recent row for (email, type) regardless of
	// use or expiry, so verification misses can be classified.
	GetLatest(ctx context.Context, email string, typ domain.OTPType) (*domain.OTPVerification, error)

	MarkUsed(ctx context.Context, id string, used bool) error
	IncrementAttempts(ctx context.Context, id string) (int, error)
	Delete(ctx context.Context, id string) error
}
