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
	"github.com/khushwant-singh1/bundle-market/internal/infra/security"
	"github.com/khushwant-singh1/bundle-market/internal/repository"
)

const defaultDownloadTokenTTL = 24 * time.Hour

// DownloadTokenService mints and verifies download capability tokens. A token
// is a signed claim plus a persisted row: the signature proves provenance, the
// row lets the token be revoked independently of its cryptographic validity.
type DownloadTokenService struct {
	tokens port.DownloadTokenRepository
	orders port.OrderRepository
	jwt    *security.JWTManager
	logger *zap.Logger
	now    func() time.Time
	ttl    time.Duration
}

// NewDownloadTokenService constructs a DownloadTokenService.
func NewDownloadTokenService(tokens port.DownloadTokenRepository, orders port.OrderRepository, jwt *security.JWTManager, logger *zap.Logger) *DownloadTokenService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DownloadTokenService{
		tokens: tokens,
		orders: orders,
		jwt:    jwt,
		logger: logger,
		now:    time.Now,
		ttl:    defaultDownloadTokenTTL,
	}
}

// WithClock overrides the internal clock, used in tests.
func (s *DownloadTokenService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// WithTTL overrides the token lifetime, used in tests.
func (s *DownloadTokenService) WithTTL(ttl time.Duration) {
	if ttl > 0 {
		s.ttl = ttl
	}
}

// IssueInput carries a token request plus request provenance.
type IssueInput struct {
	UserID    string
	BundleID  string
	OrderID   string
	IPAddress string
	UserAgent string
}

// Issue returns a download token for the (user, bundle) pair after checking
// the authorizing order. Expired tokens for the pair are swept; a live token
// is returned unchanged so repeated requests do not churn tokens. APPROVED and
// COMPLETED orders both qualify, since fulfilment completes orders before the
// buyer typically downloads.
func (s *DownloadTokenService) Issue(ctx context.Context, input IssueInput) (*domain.DownloadToken, error) {
	order, err := s.orders.GetByID(ctx, input.OrderID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrBundleAccessDenied
		}
		return nil, fmt.Errorf("lookup order: %w", err)
	}

	if order.UserID == nil || *order.UserID != input.UserID {
		return nil, ErrBundleAccessDenied
	}
	switch order.Status {
	case domain.OrderStatusApproved, domain.OrderStatusCompleted:
	default:
		return nil, ErrBundleAccessDenied
	}
	if !order.ContainsBundle(input.BundleID) {
		return nil, ErrBundleAccessDenied
	}

	now := s.now().UTC()

	if err := s.tokens.DeleteExpired(ctx, input.UserID, input.BundleID, now); err != nil {
		s.logger.Warn("sweep expired download tokens failed",
			zap.String("user_id", input.UserID), zap.Error(err))
	}

	if existing, err := s.tokens.GetActive(ctx, input.UserID, input.BundleID, now); err == nil {
		return existing, nil
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("lookup active token: %w", err)
	}

	signed, err := s.jwt.SignDownloadToken(input.UserID, input.BundleID, input.OrderID, s.ttl)
	if err != nil {
		return nil, fmt.Errorf("sign download token: %w", err)
	}

	token := domain.DownloadToken{
		ID:        uuid.NewString(),
		Token:     signed,
		UserID:    input.UserID,
		BundleID:  input.BundleID,
		OrderID:   input.OrderID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	if input.IPAddress != "" {
		token.IPAddress = &input.IPAddress
	}
	if input.UserAgent != "" {
		token.UserAgent = &input.UserAgent
	}

	if err := s.tokens.Create(ctx, token); err != nil {
		return nil, fmt.Errorf("store download token: %w", err)
	}

	s.logger.Info("download token issued",
		zap.String("user_id", input.UserID),
		zap.String("bundle_id", input.BundleID),
		zap.String("order_id", input.OrderID))

	return &token, nil
}

// Verify checks a presented token's signature and expiry, then re-checks the
// persisted row for revocation. Every failure mode returns (nil, nil): callers
// treat a missing result as unauthenticated without learning why.
func (s *DownloadTokenService) Verify(ctx context.Context, raw string) (*domain.DownloadToken, error) {
	if raw == "" {
		return nil, nil
	}

	if _, err := s.jwt.ParseDownloadToken(raw); err != nil {
		return nil, nil
	}

	record, err := s.tokens.GetByToken(ctx, raw)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("lookup token: %w", err)
	}

	if !record.Valid(s.now().UTC()) {
		return nil, nil
	}

	return record, nil
}

// MarkUsed claims the token for a single redemption. The repository guard
// admits exactly one claimant; a lost race surfaces as repository.ErrStale.
func (s *DownloadTokenService) MarkUsed(ctx context.Context, id string) error {
	if err := s.tokens.MarkUsed(ctx, id, s.now().UTC()); err != nil {
		return fmt.Errorf("mark token used: %w", err)
	}
	return nil
}

// Release un-claims a token whose grant could not be produced.
func (s *DownloadTokenService) Release(ctx context.Context, id string) error {
	if err := s.tokens.Release(ctx, id); err != nil {
		return fmt.Errorf("release token: %w", err)
	}
	return nil
}
