package domain

import "time"

// OrderApprovedEvent is published when an admin approves an order. The
// fulfilment worker consumes it to send access instructions and complete the
// order, so approval never blocks on mail delivery.
type OrderApprovedEvent struct {
	EventID    string
	OrderID    string
	Email      string
	Customer   string
	AdminID    string
	Notes      string
	BundleIDs  []string
	ApprovedAt time.Time
	Metadata   map[string]any
}

// OrderRejectedEvent is published when an admin rejects an order.
type OrderRejectedEvent struct {
	EventID    string
	OrderID    string
	Email      string
	Customer   string
	AdminID    string
	Reason     string
	RejectedAt time.Time
	Metadata   map[string]any
}

// OrderCompletedEvent records fulfilment completion for downstream analytics.
type OrderCompletedEvent struct {
	EventID     string
	OrderID     string
	Email       string
	CompletedAt time.Time
	Metadata    map[string]any
}
