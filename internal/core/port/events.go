package port

import (
	"context"

	"github.com/khushwant-singh1/bundle-market/internal/core/domain"
)

// EventPublisher emits order lifecycle events to the message bus. Approval
// publishes before returning to the admin; fulfilment happens downstream.
type EventPublisher interface {
	PublishOrderApproved(ctx context.Context, event domain.OrderApprovedEvent) error
	PublishOrderRejected(ctx context.Context, event domain.OrderRejectedEvent) error
	PublishOrderCompleted(ctx context.Context, event domain.OrderCompletedEvent) error
}
