package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/khushwant-singh1/bundle-market/internal/core/domain"
	"github.com/khushwant-singh1/bundle-market/internal/core/port"
	"github.com/khushwant-singh1/bundle-market/internal/repository"
)

// ApprovalService applies admin decisions to orders awaiting review. The
// database guard makes the decision itself atomic; fulfilment work (access
// email, completion) rides on the published event so a broker or mail outage
// never loses an approval.
type ApprovalService struct {
	orders    port.OrderRepository
	publisher port.EventPublisher
	logger    *zap.Logger
	now       func() time.Time
}

// NewApprovalService constructs an ApprovalService.
func NewApprovalService(orders port.OrderRepository, publisher port.EventPublisher, logger *zap.Logger) *ApprovalService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ApprovalService{
		orders:    orders,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// WithClock overrides the internal clock, used in tests.
func (s *ApprovalService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// Approve transitions a PAYMENT_UPLOADED order to APPROVED and publishes the
// approval event. Only one of two concurrent approvals can win the guarded
// update; the loser gets ErrOrderNotApprovable.
func (s *ApprovalService) Approve(ctx context.Context, admin domain.User, orderID, notes string) (*domain.Order, error) {
	if !admin.IsAdmin() {
		return nil, ErrAdminRequired
	}

	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("lookup order: %w", err)
	}
	if order.Status != domain.OrderStatusPaymentUploaded {
		return nil, ErrOrderNotApprovable
	}

	now := s.now().UTC()
	approval := port.OrderApproval{AdminID: admin.ID, ApprovedAt: now}
	if trimmed := strings.TrimSpace(notes); trimmed != "" {
		approval.Notes = &trimmed
	}

	err = s.orders.Approve(ctx, orderID, approval)
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrNotFound):
		return nil, ErrOrderNotFound
	case errors.Is(err, repository.ErrStale):
		return nil, ErrOrderNotApprovable
	default:
		return nil, fmt.Errorf("approve order: %w", err)
	}

	order.Status = domain.OrderStatusApproved
	order.ApprovedBy = &admin.ID
	order.ApprovedAt = &now
	order.AdminNotes = approval.Notes
	order.UpdatedAt = now

	bundleIDs := make([]string, 0, len(order.Items))
	for _, item := range order.Items {
		bundleIDs = append(bundleIDs, item.BundleID)
	}

	event := domain.OrderApprovedEvent{
		EventID:    uuid.NewString(),
		OrderID:    order.ID,
		Email:      order.Email,
		Customer:   order.CustomerName,
		AdminID:    admin.ID,
		Notes:      notes,
		BundleIDs:  bundleIDs,
		ApprovedAt: now,
	}
	if err := s.publisher.PublishOrderApproved(ctx, event); err != nil {
		// The approval is committed; fulfilment catches up when the broker
		// recovers or via the reconciliation sweep.
		s.logger.Error("publish order approved failed",
			zap.String("order_id", order.ID), zap.Error(err))
	}

	s.logger.Info("order approved",
		zap.String("order_id", order.ID), zap.String("admin_id", admin.ID))

	return order, nil
}

// Reject transitions a PAYMENT_UPLOADED order to REJECTED with a mandatory
// reason and publishes the rejection event.
func (s *ApprovalService) Reject(ctx context.Context, admin domain.User, orderID, reason string) (*domain.Order, error) {
	if !admin.IsAdmin() {
		return nil, ErrAdminRequired
	}

	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, ErrRejectReasonRequired
	}

	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("lookup order: %w", err)
	}
	if order.Status != domain.OrderStatusPaymentUploaded {
		return nil, ErrOrderNotRejectable
	}

	now := s.now().UTC()
	err = s.orders.Reject(ctx, orderID, admin.ID, reason, now)
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrNotFound):
		return nil, ErrOrderNotFound
	case errors.Is(err, repository.ErrStale):
		return nil, ErrOrderNotRejectable
	default:
		return nil, fmt.Errorf("reject order: %w", err)
	}

	order.Status = domain.OrderStatusRejected
	order.AdminNotes = &reason
	order.UpdatedAt = now

	event := domain.OrderRejectedEvent{
		EventID:    uuid.NewString(),
		OrderID:    order.ID,
		Email:      order.Email,
		Customer:   order.CustomerName,
		AdminID:    admin.ID,
		Reason:     reason,
		RejectedAt: now,
	}
	if err := s.publisher.PublishOrderRejected(ctx, event); err != nil {
		s.logger.Error("publish order rejected failed",
			zap.String("order_id", order.ID), zap.Error(err))
	}

	s.logger.Info("order rejected",
		zap.String("order_id", order.ID), zap.String("admin_id", admin.ID))

	return order, nil
}
