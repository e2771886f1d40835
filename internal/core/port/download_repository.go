package port

import (
	"context"

	"github.com/khushwant-singh1/bundle-market/internal/core/domain"
)

// DownloadRepository records the download audit trail.
type DownloadRepository interface {
	Create(ctx context.Context, download domain.Download) error
	CountForOrder(ctx context.Context, orderID string) (int, error)
}
