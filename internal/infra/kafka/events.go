package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/khushwant-singh1/bundle-market/internal/core/domain"
	"github.com/khushwant-singh1/bundle-market/internal/core/port"
	"github.com/khushwant-singh1/bundle-market/internal/infra/config"
)

const schemaVersion = "1.0"

// Topic suffixes for order lifecycle events; TopicName applies the prefix.
const (
	TopicOrderApproved  = "order.approved"
	TopicOrderRejected  = "order.rejected"
	TopicOrderCompleted = "order.completed"
)

// EventPublisher implements port.EventPublisher using Kafka.
type EventPublisher struct {
	producer *Producer
	logger   *zap.Logger
	appCfg   config.AppSettings
}

// NewEventPublisher constructs a Kafka-backed event publisher.
func NewEventPublisher(producer *Producer, appCfg config.AppSettings, logger *zap.Logger) *EventPublisher {
	return &EventPublisher{producer: producer, appCfg: appCfg, logger: logger}
}

type envelopeMetadata map[string]string

type eventEnvelope struct {
	EventID   string           `json:"event_id"`
	EventType string           `json:"event_type"`
	OrderID   string           `json:"order_id,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
	Version   string           `json:"version"`
	Payload   any              `json:"payload"`
	Metadata  envelopeMetadata `json:"metadata,omitempty"`
}

func (p *EventPublisher) publish(ctx context.Context, eventID, eventType, orderID string, ts time.Time, payload any) error {
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	id := eventID
	if id == "" {
		id = uuid.NewString()
	}

	metadata := envelopeMetadata{
		"service":     p.appCfg.Name,
		"environment": p.appCfg.Env,
	}

	envelope := eventEnvelope{
		EventID:   id,
		EventType: eventType,
		OrderID:   orderID,
		Timestamp: ts.UTC(),
		Version:   schemaVersion,
		Payload:   payload,
		Metadata:  metadata,
	}

	bytes, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.producer.TopicName(eventType),
		// Key by order id so every event for one order lands on one
		// partition and the consumer sees them in order.
		Key:   sarama.StringEncoder(orderID),
		Value: sarama.ByteEncoder(bytes),
	}

	select {
	case p.producer.Producer().Input() <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// orderApprovedPayload is the wire shape consumed by the fulfilment worker.
type orderApprovedPayload struct {
	OrderID    string         `json:"order_id"`
	Email      string         `json:"email"`
	Customer   string         `json:"customer"`
	AdminID    string         `json:"admin_id"`
	Notes      string         `json:"notes,omitempty"`
	BundleIDs  []string       `json:"bundle_ids"`
	ApprovedAt time.Time      `json:"approved_at"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// PublishOrderApproved publishes market.order.approved events.
func (p *EventPublisher) PublishOrderApproved(ctx context.Context, event domain.OrderApprovedEvent) error {
	payload := orderApprovedPayload{
		OrderID:    event.OrderID,
		Email:      event.Email,
		Customer:   event.Customer,
		AdminID:    event.AdminID,
		Notes:      event.Notes,
		BundleIDs:  event.BundleIDs,
		ApprovedAt: event.ApprovedAt.UTC(),
		Metadata:   event.Metadata,
	}

	return p.publish(ctx, event.EventID, TopicOrderApproved, event.OrderID, event.ApprovedAt, payload)
}

// PublishOrderRejected publishes market.order.rejected events.
func (p *EventPublisher) PublishOrderRejected(ctx context.Context, event domain.OrderRejectedEvent) error {
	payload := struct {
		OrderID    string         `json:"order_id"`
		Email      string         `json:"email"`
		Customer   string         `json:"customer"`
		AdminID    string         `json:"admin_id"`
		Reason     string         `json:"reason"`
		RejectedAt time.Time      `json:"rejected_at"`
		Metadata   map[string]any `json:"metadata,omitempty"`
	}{
		OrderID:    event.OrderID,
		Email:      event.Email,
		Customer:   event.Customer,
		AdminID:    event.AdminID,
		Reason:     event.Reason,
		RejectedAt: event.RejectedAt.UTC(),
		Metadata:   event.Metadata,
	}

	return p.publish(ctx, event.EventID, TopicOrderRejected, event.OrderID, event.RejectedAt, payload)
}

// PublishOrderCompleted publishes market.order.completed events.
func (p *EventPublisher) PublishOrderCompleted(ctx context.Context, event domain.OrderCompletedEvent) error {
	payload := struct {
		OrderID     string         `json:"order_id"`
		Email       string         `json:"email"`
		CompletedAt time.Time      `json:"completed_at"`
		Metadata    map[string]any `json:"metadata,omitempty"`
	}{
		OrderID:     event.OrderID,
		Email:       event.Email,
		CompletedAt: event.CompletedAt.UTC(),
		Metadata:    event.Metadata,
	}

	return p.publish(ctx, event.EventID, TopicOrderCompleted, event.OrderID, event.CompletedAt, payload)
}

var _ port.EventPublisher = (*EventPublisher)(nil)
