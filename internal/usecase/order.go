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

// OrderService creates orders and drives the buyer-side lifecycle up to
// payment upload. Admin decisions live in ApprovalService.
type OrderService struct {
	orders  port.OrderRepository
	bundles port.BundleRepository
	blobs   port.BlobStore
	logger  *zap.Logger
	now     func() time.Time
}

// NewOrderService constructs an OrderService.
func NewOrderService(orders port.OrderRepository, bundles port.BundleRepository, blobs port.BlobStore, logger *zap.Logger) *OrderService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrderService{
		orders:  orders,
		bundles: bundles,
		blobs:   blobs,
		logger:  logger,
		now:     time.Now,
	}
}

// WithClock overrides the internal clock, used in tests.
func (s *OrderService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// CheckoutItem is one requested bundle line.
type CheckoutItem struct {
	BundleID string
	Quantity int
}

// CheckoutInput carries a new order request. User is nil for guest checkout.
type CheckoutInput struct {
	User         *domain.User
	Email        string
	CustomerName string
	Items        []CheckoutItem
}

// Checkout validates the requested bundles and creates the order. Prices are
// captured from the catalog at creation time so later price changes do not
// reprice open orders. Orders for a verified account start at EMAIL_VERIFIED;
// guest orders start at PENDING and verify via OTP.
func (s *OrderService) Checkout(ctx context.Context, input CheckoutInput) (*domain.Order, error) {
	email := normalizeEmail(input.Email)
	if input.User != nil {
		email = normalizeEmail(input.User.Email)
	}
	if email == "" {
		return nil, fmt.Errorf("email is required")
	}
	if len(input.Items) == 0 {
		return nil, fmt.Errorf("order must contain at least one item")
	}

	now := s.now().UTC()
	orderID := uuid.NewString()

	items := make([]domain.OrderItem, 0, len(input.Items))
	for _, line := range input.Items {
		if line.Quantity <= 0 {
			line.Quantity = 1
		}
		bundle, err := s.bundles.GetByID(ctx, line.BundleID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, fmt.Errorf("%w: %s", ErrBundleNotFound, line.BundleID)
			}
			return nil, fmt.Errorf("lookup bundle: %w", err)
		}
		if !bundle.IsActive {
			return nil, fmt.Errorf("%w: %s", ErrBundleUnavailable, bundle.Slug)
		}
		items = append(items, domain.OrderItem{
			ID:             uuid.NewString(),
			OrderID:        orderID,
			BundleID:       bundle.ID,
			Quantity:       line.Quantity,
			UnitPriceCents: bundle.PriceCents,
		})
	}

	status := domain.OrderStatusPending
	var userID *string
	if input.User != nil {
		id := input.User.ID
		userID = &id
		if input.User.EmailVerified != nil {
			status = domain.OrderStatusEmailVerified
		}
	}

	name := strings.TrimSpace(input.CustomerName)
	if name == "" && input.User != nil {
		name = input.User.Name
	}

	order := domain.Order{
		ID:           orderID,
		UserID:       userID,
		Email:        email,
		CustomerName: name,
		Items:        items,
		Status:       status,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.orders.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	s.logger.Info("order created",
		zap.String("order_id", order.ID),
		zap.String("status", string(order.Status)),
		zap.Int("items", len(order.Items)),
		zap.Int64("total_cents", order.TotalCents()))

	return &order, nil
}

// Get loads an order by id.
func (s *OrderService) Get(ctx context.Context, id string) (*domain.Order, error) {
	order, err := s.orders.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("lookup order: %w", err)
	}
	return order, nil
}

// GetForEmail loads an order, requiring the purchase email as ownership
// proof.
func (s *OrderService) GetForEmail(ctx context.Context, id, email string) (*domain.Order, error) {
	order, err := s.orders.GetByIDAndEmail(ctx, id, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("lookup order: %w", err)
	}
	return order, nil
}

// MarkEmailVerified advances a guest order past OTP verification. The verified
// email must match the order's purchase email; proving one address says
// nothing about orders placed under another.
func (s *OrderService) MarkEmailVerified(ctx context.Context, id, email string) error {
	order, err := s.orders.GetByIDAndEmail(ctx, id, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrOrderNotFound
		}
		return fmt.Errorf("lookup order: %w", err)
	}

	err = s.orders.UpdateStatusIf(ctx, order.ID, domain.OrderStatusPending, domain.OrderStatusEmailVerified)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return ErrOrderNotFound
	case errors.Is(err, repository.ErrStale):
		return ErrOrderStateInvalid
	default:
		return fmt.Errorf("advance order: %w", err)
	}
}

// AttachPaymentProof stores the payment screenshot in the blob store and
// transitions the order to PAYMENT_UPLOADED. Accepted from EMAIL_VERIFIED or
// PAYMENT_PENDING.
func (s *OrderService) AttachPaymentProof(ctx context.Context, orderID, email string, data []byte, contentType string) (*domain.Order, error) {
	order, err := s.orders.GetByIDAndEmail(ctx, orderID, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("lookup order: %w", err)
	}

	switch order.Status {
	case domain.OrderStatusEmailVerified, domain.OrderStatusPaymentPending:
	default:
		return nil, ErrOrderStateInvalid
	}

	key := paymentProofKey(order.ID, contentType)
	if _, err := s.blobs.Put(ctx, key, data); err != nil {
		return nil, fmt.Errorf("store payment proof: %w", err)
	}

	if err := s.orders.AttachPaymentScreenshot(ctx, order.ID, key); err != nil {
		return nil, fmt.Errorf("attach payment proof: %w", err)
	}

	err = s.orders.UpdateStatusIf(ctx, order.ID, order.Status, domain.OrderStatusPaymentUploaded)
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrStale):
		// A concurrent upload won the transition; the proof is attached either
		// way, so report the current state instead of failing.
		return s.Get(ctx, order.ID)
	default:
		return nil, fmt.Errorf("advance order: %w", err)
	}

	order.PaymentScreenshot = &key
	order.Status = domain.OrderStatusPaymentUploaded
	order.UpdatedAt = s.now().UTC()

	s.logger.Info("payment proof uploaded",
		zap.String("order_id", order.ID), zap.String("object_key", key))

	return order, nil
}

func paymentProofKey(orderID, contentType string) string {
	ext := ".bin"
	switch contentType {
	case "image/png":
		ext = ".png"
	case "image/jpeg":
		ext = ".jpg"
	case "image/webp":
		ext = ".webp"
	case "application/pdf":
		ext = ".pdf"
	}
	return fmt.Sprintf("payment-proofs/%s%s", orderID, ext)
}
