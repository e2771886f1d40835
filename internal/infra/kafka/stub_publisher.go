package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/khushwant-singh1/bundle-market/internal/core/domain"
	"github.com/khushwant-singh1/bundle-market/internal/core/port"
)

// StubPublisher logs events instead of sending them to Kafka. Useful for development environments.
type StubPublisher struct {
	logger *zap.Logger
}

// NewStubPublisher constructs a development-friendly event publisher.
func NewStubPublisher(logger *zap.Logger) *StubPublisher {
	return &StubPublisher{logger: logger}
}

func (p *StubPublisher) logEvent(eventType, orderID string, at time.Time, payload any) {
	if at.IsZero() {
		at = time.Now().UTC()
	}

	p.logger.Info("Stub event published",
		zap.String("event_type", eventType),
		zap.String("order_id", orderID),
		zap.Time("timestamp", at.UTC()),
		zap.Any("payload", payload),
	)
}

// PublishOrderApproved logs market.order.approved events.
func (p *StubPublisher) PublishOrderApproved(_ context.Context, event domain.OrderApprovedEvent) error {
	payload := map[string]any{
		"order_id":    event.OrderID,
		"email":       event.Email,
		"customer":    event.Customer,
		"admin_id":    event.AdminID,
		"notes":       event.Notes,
		"bundle_ids":  event.BundleIDs,
		"approved_at": event.ApprovedAt,
		"metadata":    event.Metadata,
	}
	p.logEvent(TopicOrderApproved, event.OrderID, event.ApprovedAt, payload)
	return nil
}

// PublishOrderRejected logs market.order.rejected events.
func (p *StubPublisher) PublishOrderRejected(_ context.Context, event domain.OrderRejectedEvent) error {
	payload := map[string]any{
		"order_id":    event.OrderID,
		"email":       event.Email,
		"customer":    event.Customer,
		"admin_id":    event.AdminID,
		"reason":      event.Reason,
		"rejected_at": event.RejectedAt,
		"metadata":    event.Metadata,
	}
	p.logEvent(TopicOrderRejected, event.OrderID, event.RejectedAt, payload)
	return nil
}

// PublishOrderCompleted logs market.order.completed events.
func (p *StubPublisher) PublishOrderCompleted(_ context.Context, event domain.OrderCompletedEvent) error {
	payload := map[string]any{
		"order_id":     event.OrderID,
		"email":        event.Email,
		"completed_at": event.CompletedAt,
		"metadata":     event.Metadata,
	}
	p.logEvent(TopicOrderCompleted, event.OrderID, event.CompletedAt, payload)
	return nil
}

var _ port.EventPublisher = (*StubPublisher)(nil)
