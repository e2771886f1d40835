package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/khushwant-singh1/bundle-market/internal/core/domain"
	"github.com/khushwant-singh1/bundle-market/internal/infra/config"
)

// OrderApprovedHandler is the fulfilment entry point invoked per event.
type OrderApprovedHandler interface {
	HandleOrderApproved(ctx context.Context, event domain.OrderApprovedEvent) error
}

// FulfillmentConsumer consumes order.approved events and drives fulfilment.
// Offsets are committed only after the handler succeeds, so a crash mid-batch
// redelivers rather than drops.
type FulfillmentConsumer struct {
	group   sarama.ConsumerGroup
	handler OrderApprovedHandler
	topic   string
	logger  *zap.Logger
}

// NewFulfillmentConsumer joins the configured consumer group.
func NewFulfillmentConsumer(cfg config.KafkaSettings, handler OrderApprovedHandler, logger *zap.Logger) (*FulfillmentConsumer, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V3_5_0_0
	saramaConfig.Consumer.Offsets.Initial = sarama.OffsetOldest
	saramaConfig.Consumer.Return.Errors = true

	group, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.ConsumerGroup, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("create kafka consumer group: %w", err)
	}

	topic := TopicOrderApproved
	if cfg.TopicPrefix != "" {
		topic = fmt.Sprintf("%s.%s", cfg.TopicPrefix, TopicOrderApproved)
	}

	return &FulfillmentConsumer{
		group:   group,
		handler: handler,
		topic:   topic,
		logger:  logger,
	}, nil
}

// Run consumes until the context is cancelled. Rebalances return from Consume
// and the loop rejoins.
func (c *FulfillmentConsumer) Run(ctx context.Context) error {
	go func() {
		for err := range c.group.Errors() {
			c.logger.Error("Kafka consumer group error", zap.Error(err))
		}
	}()

	c.logger.Info("fulfilment consumer started", zap.String("topic", c.topic))

	for {
		if err := c.group.Consume(ctx, []string{c.topic}, c); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			c.logger.Error("Kafka consume failed", zap.Error(err))
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// Close leaves the consumer group.
func (c *FulfillmentConsumer) Close() error {
	return c.group.Close()
}

// Setup implements sarama.ConsumerGroupHandler.
func (c *FulfillmentConsumer) Setup(sarama.ConsumerGroupSession) error { return nil }

// Cleanup implements sarama.ConsumerGroupHandler.
func (c *FulfillmentConsumer) Cleanup(sarama.ConsumerGroupSession) error { return nil }

// ConsumeClaim processes messages one at a time, marking offsets only after
// the handler returns without error.
func (c *FulfillmentConsumer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			if err := c.handleMessage(session.Context(), msg); err != nil {
				c.logger.Error("fulfilment event handling failed",
					zap.String("topic", msg.Topic),
					zap.Int64("offset", msg.Offset),
					zap.Error(err))
				// Leave the offset unmarked so the event is redelivered.
				continue
			}
			session.MarkMessage(msg, "")
		case <-session.Context().Done():
			return nil
		}
	}
}

func (c *FulfillmentConsumer) handleMessage(ctx context.Context, msg *sarama.ConsumerMessage) error {
	if msg == nil {
		return fmt.Errorf("message is nil")
	}

	var envelope struct {
		EventID   string               `json:"event_id"`
		EventType string               `json:"event_type"`
		Timestamp time.Time            `json:"timestamp"`
		Payload   orderApprovedPayload `json:"payload"`
	}
	if err := json.Unmarshal(msg.Value, &envelope); err != nil {
		return fmt.Errorf("decode order approved event: %w", err)
	}

	event := domain.OrderApprovedEvent{
		EventID:    envelope.EventID,
		OrderID:    envelope.Payload.OrderID,
		Email:      envelope.Payload.Email,
		Customer:   envelope.Payload.Customer,
		AdminID:    envelope.Payload.AdminID,
		Notes:      envelope.Payload.Notes,
		BundleIDs:  envelope.Payload.BundleIDs,
		ApprovedAt: envelope.Payload.ApprovedAt,
		Metadata:   envelope.Payload.Metadata,
	}

	return c.handler.HandleOrderApproved(ctx, event)
}
