package domain

import "time"

// OrderStatus enumerates the order lifecycle states.
type OrderStatus string

const (
	OrderStatusPending         OrderStatus = "PENDING"
	OrderStatusEmailVerified   OrderStatus = "EMAIL_VERIFIED"
	OrderStatusPaymentPending  OrderStatus = "PAYMENT_PENDING"
	OrderStatusPaymentUploaded OrderStatus = "PAYMENT_UPLOADED"
	OrderStatusApproved        OrderStatus = "APPROVED"
	OrderStatusCompleted       OrderStatus = "COMPLETED"
	OrderStatusRejected        OrderStatus = "REJECTED"
	OrderStatusFailed          OrderStatus = "FAILED"
)

// orderTransitions is the legal transition graph. Statuses never regress
// except through explicit rejection.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:         {OrderStatusEmailVerified, OrderStatusFailed},
	OrderStatusEmailVerified:   {OrderStatusPaymentPending, OrderStatusPaymentUploaded, OrderStatusFailed},
	OrderStatusPaymentPending:  {OrderStatusPaymentUploaded, OrderStatusFailed},
	OrderStatusPaymentUploaded: {OrderStatusApproved, OrderStatusRejected},
	OrderStatusApproved:        {OrderStatusCompleted},
	OrderStatusCompleted:       {},
	OrderStatusRejected:        {},
	OrderStatusFailed:          {},
}

// CanTransition reports whether moving from the current status to next is
// legal under the lifecycle graph.
func (s OrderStatus) CanTransition(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are possible.
func (s OrderStatus) IsTerminal() bool {
	return len(orderTransitions[s]) == 0
}

// OrderItem is a single purchased bundle line within an order.
type OrderItem struct {
	ID             string
	OrderID        string
	BundleID       string
	Quantity       int
	UnitPriceCents int64
}

// Order is the central purchase record. Orders are never deleted; they form
// the financial audit trail.
type Order struct {
	ID                string
	UserID            *string
	Email             string
	CustomerName      string
	Items             []OrderItem
	Status            OrderStatus
	PaymentScreenshot *string
	AdminNotes        *string
	ApprovedBy        *string
	ApprovedAt        *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// ContainsBundle reports whether the order includes an item for the bundle.
func (o Order) ContainsBundle(bundleID string) bool {
	for _, item := range o.Items {
		if item.BundleID == bundleID {
			return true
		}
	}
	return false
}

// TotalCents sums the order's line totals.
func (o Order) TotalCents() int64 {
	var total int64
	for _, item := range o.Items {
		total += item.UnitPriceCents * int64(item.Quantity)
	}
	return total
}
