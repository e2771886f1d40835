package port

import (
	"context"
	"time"

	"github.com/khushwant-singh1/bundle-market/internal/core/domain"
)

// OrderApproval carries the audit fields written atomically with an approval.
type OrderApproval struct {
	AdminID    string
	Notes      *string
	ApprovedAt time.Time
}

// OrderRepository persists orders and their items. Orders are append-only
// audit records; there is no delete.
type OrderRepository interface {
	Create(ctx context.Context, order domain.Order) error
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	// GetByIDAndEmail supports the legacy download path where the buyer proves
	// ownership with the order id and purchase email.
	GetByIDAndEmail(ctx context.Context, id, email string) (*domain.Order, error)

	// UpdateStatusIf performs an atomic conditional transition: the status is
	// written only when the current status equals expected. It returns
	// repository.ErrNotFound when no order exists and repository.ErrStale when
	// the order exists but its status has moved on.
	UpdateStatusIf(ctx context.Context, id string, expected, next domain.OrderStatus) error

	// Approve atomically sets APPROVED plus the approval audit fields, guarded
	// on the current status being PAYMENT_UPLOADED.
	Approve(ctx context.Context, id string, approval OrderApproval) error

	// Reject atomically sets REJECTED and records the reason, guarded on the
	// current status being PAYMENT_UPLOADED.
	Reject(ctx context.Context, id string, adminID, reason string, at time.Time) error

	AttachPaymentScreenshot(ctx context.Context, id, screenshotKey string) error
}
