package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/khushwant-singh1/bundle-market/internal/core/domain"
	"github.com/khushwant-singh1/bundle-market/internal/core/port"
	"github.com/khushwant-singh1/bundle-market/internal/repository"
)

// FulfillmentService turns an approval event into buyer-visible outcomes: the
// access email and the APPROVED -> COMPLETED transition. It is invoked by the
// broker consumer, so retries come from redelivery and must be idempotent.
type FulfillmentService struct {
	orders    port.OrderRepository
	bundles   port.BundleRepository
	mailer    port.Mailer
	publisher port.EventPublisher
	logger    *zap.Logger
	now       func() time.Time
	baseURL   string
}

// NewFulfillmentService constructs a FulfillmentService. baseURL is the public
// site root used to build download links in the access email.
func NewFulfillmentService(orders port.OrderRepository, bundles port.BundleRepository, mailer port.Mailer, publisher port.EventPublisher, baseURL string, logger *zap.Logger) *FulfillmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FulfillmentService{
		orders:    orders,
		bundles:   bundles,
		mailer:    mailer,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
		baseURL:   baseURL,
	}
}

// WithClock overrides the internal clock, used in tests.
func (s *FulfillmentService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// HandleOrderApproved processes one approval event. Redeliveries of an
// already-completed order return nil so the consumer can commit the offset.
func (s *FulfillmentService) HandleOrderApproved(ctx context.Context, event domain.OrderApprovedEvent) error {
	order, err := s.orders.GetByID(ctx, event.OrderID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// The event references an order this store never saw; retrying
			// cannot help.
			s.logger.Error("fulfilment event for unknown order",
				zap.String("order_id", event.OrderID), zap.String("event_id", event.EventID))
			return nil
		}
		return fmt.Errorf("lookup order: %w", err)
	}

	switch order.Status {
	case domain.OrderStatusApproved:
	case domain.OrderStatusCompleted:
		return nil
	default:
		s.logger.Warn("fulfilment event for order in unexpected status",
			zap.String("order_id", order.ID), zap.String("status", string(order.Status)))
		return nil
	}

	if err := s.sendAccessMail(ctx, *order); err != nil {
		// Leave the order APPROVED; redelivery retries the send.
		return fmt.Errorf("send access mail: %w", err)
	}

	now := s.now().UTC()
	err = s.orders.UpdateStatusIf(ctx, order.ID, domain.OrderStatusApproved, domain.OrderStatusCompleted)
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrStale):
		// A concurrent delivery completed it first.
		return nil
	default:
		return fmt.Errorf("complete order: %w", err)
	}

	completed := domain.OrderCompletedEvent{
		EventID:     uuid.NewString(),
		OrderID:     order.ID,
		Email:       order.Email,
		CompletedAt: now,
	}
	if err := s.publisher.PublishOrderCompleted(ctx, completed); err != nil {
		s.logger.Error("publish order completed failed",
			zap.String("order_id", order.ID), zap.Error(err))
	}

	s.logger.Info("order fulfilled",
		zap.String("order_id", order.ID), zap.String("event_id", event.EventID))

	return nil
}

func (s *FulfillmentService) sendAccessMail(ctx context.Context, order domain.Order) error {
	greeting := "there"
	if order.CustomerName != "" {
		greeting = order.CustomerName
	}

	body := fmt.Sprintf("<p>Hi %s,</p><p>Your payment for order <strong>%s</strong> has been verified. Your bundles are ready:</p><ul>", greeting, order.ID)
	for _, item := range order.Items {
		name := item.BundleID
		if bundle, err := s.bundles.GetByID(ctx, item.BundleID); err == nil {
			name = bundle.Name
		}
		body += fmt.Sprintf(`<li><a href="%s/download/%s?orderId=%s">%s</a></li>`,
			s.baseURL, item.BundleID, order.ID, name)
	}
	body += "</ul><p>Download links are personal to this order. Thanks for your purchase!</p>"

	return s.mailer.Send(ctx, port.Mail{
		To:       order.Email,
		Subject:  "Your order is ready to download",
		HTMLBody: body,
	})
}
