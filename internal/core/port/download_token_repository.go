package port

import (
	"context"
	"time"

	"github.com/khushwant-singh1/bundle-market/internal/core/domain"
)

// DownloadTokenRepository persists download capability tokens. The token text
// is stored verbatim (not hashed) because issuance reuses the live token for
// idempotent repeat requests.
type DownloadTokenRepository interface {
	Create(ctx context.Context, token domain.DownloadToken) error
	GetByToken(ctx context.Context, token string) (*domain.DownloadToken, error)
	// GetActive returns the unused, unexpired token for (userID, bundleID), or
	// repository.ErrNotFound.
	GetActive(ctx context.Context, userID, bundleID string, now time.Time) (*domain.DownloadToken, error)
	// MarkUsed spends the token only if it is still unspent; a lost race
	// surfaces as repository.ErrStale so exactly one caller wins the claim.
	MarkUsed(ctx context.Context, id string, at time.Time) error
	// Release clears the used flag, compensating a claim whose grant could not
	// be produced.
	Release(ctx context.Context, id string) error
	DeleteExpired(ctx context.Context, userID, bundleID string, now time.Time) error
}
