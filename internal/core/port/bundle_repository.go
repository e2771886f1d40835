package port

import (
	"context"

	"github.com/khushwant-singh1/bundle-market/internal/core/domain"
)

// BundleRepository reads catalog entries and maintains download counters.
// Catalog CRUD is owned by a separate subsystem.
type BundleRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Bundle, error)
	GetBySlug(ctx context.Context, slug string) (*domain.Bundle, error)
	IncrementDownloadCount(ctx context.Context, id string) error
}
