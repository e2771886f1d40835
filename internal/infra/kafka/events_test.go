package kafka

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap/zaptest"

	"github.com/khushwant-singh1/bundle-market/internal/core/domain"
	"github.com/khushwant-singh1/bundle-market/internal/infra/config"
)

type fakeAsyncProducer struct {
	input  chan *sarama.ProducerMessage
	errors chan *sarama.ProducerError
}

func newFakeAsyncProducer() *fakeAsyncProducer {
	return &fakeAsyncProducer{
		input:  make(chan *sarama.ProducerMessage, 1),
		errors: make(chan *sarama.ProducerError, 1),
	}
}

func (f *fakeAsyncProducer) AsyncClose() {}

func (f *fakeAsyncProducer) Close() error { return nil }

func (f *fakeAsyncProducer) Input() chan<- *sarama.ProducerMessage { return f.input }

func (f *fakeAsyncProducer) Successes() <-chan *sarama.ProducerMessage { return nil }

func (f *fakeAsyncProducer) Errors() <-chan *sarama.ProducerError { return f.errors }

func (f *fakeAsyncProducer) IsTransactional() bool { return false }

func (f *fakeAsyncProducer) BeginTxn() error { return nil }

func (f *fakeAsyncProducer) CommitTxn() error { return nil }

func (f *fakeAsyncProducer) AbortTxn() error { return nil }

func (f *fakeAsyncProducer) AddOffsetsToTxn(offsets map[string][]*sarama.PartitionOffsetMetadata, groupID string) error {
	return nil
}

func (f *fakeAsyncProducer) AddMessageToTxn(msg *sarama.ConsumerMessage, groupID string, metadata *string) error {
	return nil
}

func (f *fakeAsyncProducer) TxnStatus() sarama.ProducerTxnStatusFlag {
	return sarama.ProducerTxnStatusFlag(0)
}

func newTestPublisher(t *testing.T) (*EventPublisher, *fakeAsyncProducer) {
	t.Helper()
	asyncProducer := newFakeAsyncProducer()

	producer := &Producer{
		producer: asyncProducer,
		logger:   zaptest.NewLogger(t),
		cfg: config.KafkaSettings{
			TopicPrefix: "market",
		},
		errChan: make(chan error, 1),
		done:    make(chan struct{}),
	}

	publisher := NewEventPublisher(producer, config.AppSettings{
		Name: "bundle-market",
		Env:  "test",
	}, zaptest.NewLogger(t))

	return publisher, asyncProducer
}

func TestPublishOrderApproved(t *testing.T) {
	publisher, asyncProducer := newTestPublisher(t)

	approvedAt := time.Date(2025, 6, 4, 12, 0, 0, 0, time.UTC)
	event := domain.OrderApprovedEvent{
		EventID:    "event-123",
		OrderID:    "order-456",
		Email:      "buyer@example.com",
		Customer:   "Buyer",
		AdminID:    "admin-1",
		Notes:      "verified",
		BundleIDs:  []string{"bundle-1", "bundle-2"},
		ApprovedAt: approvedAt,
	}

	if err := publisher.PublishOrderApproved(context.Background(), event); err != nil {
		t.Fatalf("PublishOrderApproved returned error: %v", err)
	}

	var msg *sarama.ProducerMessage
	select {
	case msg = <-asyncProducer.input:
	case <-time.After(time.Second):
		t.Fatalf("no message produced")
	}

	if msg.Topic != "market.order.approved" {
		t.Fatalf("unexpected topic %q", msg.Topic)
	}

	key, err := msg.Key.Encode()
	if err != nil {
		t.Fatalf("encode key: %v", err)
	}
	// Keyed by order id so one order's events share a partition.
	if string(key) != "order-456" {
		t.Fatalf("unexpected key %q", string(key))
	}

	value, err := msg.Value.Encode()
	if err != nil {
		t.Fatalf("encode value: %v", err)
	}

	var envelope struct {
		EventID   string               `json:"event_id"`
		EventType string               `json:"event_type"`
		OrderID   string               `json:"order_id"`
		Version   string               `json:"version"`
		Payload   orderApprovedPayload `json:"payload"`
		Metadata  map[string]string    `json:"metadata"`
	}
	if err := json.Unmarshal(value, &envelope); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}

	if envelope.EventID != "event-123" || envelope.EventType != TopicOrderApproved {
		t.Fatalf("unexpected envelope header: %+v", envelope)
	}
	if envelope.Version != "1.0" {
		t.Fatalf("unexpected schema version %q", envelope.Version)
	}
	if envelope.Payload.OrderID != "order-456" || envelope.Payload.AdminID != "admin-1" {
		t.Fatalf("unexpected payload: %+v", envelope.Payload)
	}
	if len(envelope.Payload.BundleIDs) != 2 {
		t.Fatalf("expected bundle ids in payload, got %v", envelope.Payload.BundleIDs)
	}
	if !envelope.Payload.ApprovedAt.Equal(approvedAt) {
		t.Fatalf("unexpected approved_at %v", envelope.Payload.ApprovedAt)
	}
	if envelope.Metadata["service"] != "bundle-market" || envelope.Metadata["environment"] != "test" {
		t.Fatalf("unexpected metadata: %+v", envelope.Metadata)
	}
}

func TestPublishOrderCompletedTopic(t *testing.T) {
	publisher, asyncProducer := newTestPublisher(t)

	event := domain.OrderCompletedEvent{
		EventID:     "event-1",
		OrderID:     "order-1",
		Email:       "buyer@example.com",
		CompletedAt: time.Date(2025, 6, 4, 12, 30, 0, 0, time.UTC),
	}
	if err := publisher.PublishOrderCompleted(context.Background(), event); err != nil {
		t.Fatalf("PublishOrderCompleted returned error: %v", err)
	}

	msg := <-asyncProducer.input
	if msg.Topic != "market.order.completed" {
		t.Fatalf("unexpected topic %q", msg.Topic)
	}
}

type recordingHandler struct {
	events []domain.OrderApprovedEvent
	err    error
}

func (h *recordingHandler) HandleOrderApproved(_ context.Context, event domain.OrderApprovedEvent) error {
	h.events = append(h.events, event)
	return h.err
}

func TestFulfillmentConsumerDecodesProducedEvent(t *testing.T) {
	publisher, asyncProducer := newTestPublisher(t)

	event := domain.OrderApprovedEvent{
		EventID:    "event-123",
		OrderID:    "order-456",
		Email:      "buyer@example.com",
		Customer:   "Buyer",
		AdminID:    "admin-1",
		BundleIDs:  []string{"bundle-1"},
		ApprovedAt: time.Date(2025, 6, 4, 12, 0, 0, 0, time.UTC),
	}
	if err := publisher.PublishOrderApproved(context.Background(), event); err != nil {
		t.Fatalf("PublishOrderApproved returned error: %v", err)
	}
	produced := <-asyncProducer.input
	value, _ := produced.Value.Encode()

	handler := &recordingHandler{}
	consumer := &FulfillmentConsumer{
		handler: handler,
		topic:   "market.order.approved",
		logger:  zaptest.NewLogger(t),
	}

	msg := &sarama.ConsumerMessage{Topic: produced.Topic, Value: value}
	if err := consumer.handleMessage(context.Background(), msg); err != nil {
		t.Fatalf("handleMessage returned error: %v", err)
	}

	if len(handler.events) != 1 {
		t.Fatalf("expected 1 handled event, got %d", len(handler.events))
	}
	got := handler.events[0]
	if got.EventID != event.EventID || got.OrderID != event.OrderID {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if len(got.BundleIDs) != 1 || got.BundleIDs[0] != "bundle-1" {
		t.Fatalf("bundle ids lost in transit: %v", got.BundleIDs)
	}
	if !got.ApprovedAt.Equal(event.ApprovedAt) {
		t.Fatalf("approved_at mismatch: %v", got.ApprovedAt)
	}
}

func TestHandleMessageRejectsGarbage(t *testing.T) {
	consumer := &FulfillmentConsumer{
		handler: &recordingHandler{},
		logger:  zaptest.NewLogger(t),
	}

	msg := &sarama.ConsumerMessage{Value: []byte("not json")}
	if err := consumer.handleMessage(context.Background(), msg); err == nil {
		t.Fatalf("expected decode error")
	}
}
