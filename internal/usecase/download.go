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

const defaultPresignTTL = time.Hour

// statusGuidance tells a buyer on the legacy download path what to do next
// when their order is not yet downloadable.
var statusGuidance = map[domain.OrderStatus]string{
	domain.OrderStatusPending:         "Your order is awaiting email verification. Check your inbox for the verification code.",
	domain.OrderStatusEmailVerified:   "Your order is confirmed. Complete the payment to unlock your downloads.",
	domain.OrderStatusPaymentPending:  "We are waiting for your payment. Complete the payment to unlock your downloads.",
	domain.OrderStatusPaymentUploaded: "Your payment is under review. You will receive an email once it is verified.",
	domain.OrderStatusRejected:        "Your payment could not be verified. Please contact support or place a new order.",
	domain.OrderStatusFailed:          "This order did not complete. Please place a new order.",
}

// DownloadGateway is the single authorization chokepoint for file retrieval.
// Both credential shapes, capability token and legacy (orderId, email), funnel
// through the same authorize-then-mint sequence.
type DownloadGateway struct {
	bundles   port.BundleRepository
	orders    port.OrderRepository
	downloads port.DownloadRepository
	tokens    *DownloadTokenService
	blobs     port.BlobStore
	logger    *zap.Logger
	now       func() time.Time

	presignTTL time.Duration
}

// NewDownloadGateway constructs a DownloadGateway.
func NewDownloadGateway(bundles port.BundleRepository, orders port.OrderRepository, downloads port.DownloadRepository, tokens *DownloadTokenService, blobs port.BlobStore, logger *zap.Logger) *DownloadGateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DownloadGateway{
		bundles:    bundles,
		orders:     orders,
		downloads:  downloads,
		tokens:     tokens,
		blobs:      blobs,
		logger:     logger,
		now:        time.Now,
		presignTTL: defaultPresignTTL,
	}
}

// WithPresignTTL overrides the lifetime of minted object-store URLs.
func (g *DownloadGateway) WithPresignTTL(ttl time.Duration) {
	if ttl > 0 {
		g.presignTTL = ttl
	}
}

// WithClock overrides the internal clock, used in tests.
func (g *DownloadGateway) WithClock(clock func() time.Time) {
	if clock != nil {
		g.now = clock
	}
}

// DownloadCredentials holds exactly one credential shape: a capability token,
// or the legacy order id plus purchase email.
type DownloadCredentials struct {
	Token     string
	OrderID   string
	Email     string
	IPAddress string
	UserAgent string
}

// DownloadGrant is a minted retrieval URL.
type DownloadGrant struct {
	URL       string
	ExpiresIn time.Duration
	Bundle    domain.Bundle
}

// Resolve authorizes the request and mints a retrieval URL for the bundle.
// Object-store assets get a presigned URL with a one-hour expiry; legacy
// direct URLs pass through with no expiry. Every successful resolve records
// an audit row and bumps the bundle's download counter.
func (g *DownloadGateway) Resolve(ctx context.Context, bundleID string, creds DownloadCredentials) (*DownloadGrant, error) {
	bundle, err := g.bundles.GetByID(ctx, bundleID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrBundleNotFound
		}
		return nil, fmt.Errorf("lookup bundle: %w", err)
	}

	if creds.Token != "" {
		return g.resolveWithToken(ctx, *bundle, creds)
	}
	if creds.OrderID != "" && creds.Email != "" {
		return g.resolveLegacy(ctx, *bundle, creds)
	}
	return nil, ErrDownloadUnauthorized
}

func (g *DownloadGateway) resolveWithToken(ctx context.Context, bundle domain.Bundle, creds DownloadCredentials) (*DownloadGrant, error) {
	token, err := g.tokens.Verify(ctx, creds.Token)
	if err != nil {
		return nil, err
	}
	if token == nil {
		return nil, ErrDownloadUnauthorized
	}
	if token.BundleID != bundle.ID {
		return nil, ErrBundleMismatch
	}

	// Claim before minting so concurrent redemptions of the same token cannot
	// both produce a URL; only the claimant that wins the guarded update
	// proceeds.
	if err := g.tokens.MarkUsed(ctx, token.ID); err != nil {
		if errors.Is(err, repository.ErrStale) || errors.Is(err, repository.ErrNotFound) {
			return nil, ErrDownloadUnauthorized
		}
		return nil, err
	}

	grant, err := g.mint(ctx, bundle)
	if err != nil {
		// Un-claim so a presign failure does not burn the token.
		if relErr := g.tokens.Release(ctx, token.ID); relErr != nil {
			g.logger.Error("release download token failed",
				zap.String("token_id", token.ID), zap.Error(relErr))
		}
		return nil, err
	}

	g.audit(ctx, bundle.ID, token.OrderID, "", &token.ID, creds)
	return grant, nil
}

func (g *DownloadGateway) resolveLegacy(ctx context.Context, bundle domain.Bundle, creds DownloadCredentials) (*DownloadGrant, error) {
	order, err := g.orders.GetByIDAndEmail(ctx, creds.OrderID, normalizeEmail(creds.Email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrDownloadUnauthorized
		}
		return nil, fmt.Errorf("lookup order: %w", err)
	}

	switch order.Status {
	case domain.OrderStatusApproved, domain.OrderStatusCompleted:
	default:
		guidance, ok := statusGuidance[order.Status]
		if !ok {
			guidance = "This order is not ready for download yet."
		}
		return nil, &OrderNotReadyError{Status: order.Status, Guidance: guidance}
	}

	if !order.ContainsBundle(bundle.ID) {
		return nil, ErrBundleAccessDenied
	}

	grant, err := g.mint(ctx, bundle)
	if err != nil {
		return nil, err
	}

	g.audit(ctx, bundle.ID, order.ID, order.Email, nil, creds)
	return grant, nil
}

func (g *DownloadGateway) mint(ctx context.Context, bundle domain.Bundle) (*DownloadGrant, error) {
	if !bundle.HasObjectStoreAsset() {
		return &DownloadGrant{URL: bundle.DownloadURL, Bundle: bundle}, nil
	}

	url, err := g.blobs.PresignGet(ctx, bundle.ObjectKey(), g.presignTTL)
	if err != nil {
		return nil, fmt.Errorf("presign retrieval url: %w", err)
	}

	return &DownloadGrant{URL: url, ExpiresIn: g.presignTTL, Bundle: bundle}, nil
}

// audit records the download row and bumps the counter. Both are best-effort;
// the buyer already has the URL.
func (g *DownloadGateway) audit(ctx context.Context, bundleID, orderID, email string, tokenID *string, creds DownloadCredentials) {
	row := domain.Download{
		ID:        uuid.NewString(),
		BundleID:  bundleID,
		OrderID:   orderID,
		Email:     email,
		TokenID:   tokenID,
		CreatedAt: g.now().UTC(),
	}
	if creds.IPAddress != "" {
		row.IPAddress = &creds.IPAddress
	}
	if creds.UserAgent != "" {
		row.UserAgent = &creds.UserAgent
	}

	if err := g.downloads.Create(ctx, row); err != nil {
		g.logger.Error("record download audit failed",
			zap.String("bundle_id", bundleID), zap.Error(err))
	}
	if err := g.bundles.IncrementDownloadCount(ctx, bundleID); err != nil {
		g.logger.Error("increment download counter failed",
			zap.String("bundle_id", bundleID), zap.Error(err))
	}
}
