package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/khushwant-singh1/bundle-market/internal/core/domain"
	"github.com/khushwant-singh1/bundle-market/internal/core/port"
	"github.com/khushwant-singh1/bundle-market/internal/infra/security"
	"github.com/khushwant-singh1/bundle-market/internal/repository"
)

const defaultSessionTTL = 15 * time.Minute

// AuthService authenticates accounts and mints API access tokens.
type AuthService struct {
	users  port.UserRepository
	jwt    *security.JWTManager
	logger *zap.Logger
	now    func() time.Time
	ttl    time.Duration
}

// NewAuthService constructs an AuthService.
func NewAuthService(users port.UserRepository, jwt *security.JWTManager, logger *zap.Logger) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		users:  users,
		jwt:    jwt,
		logger: logger,
		now:    time.Now,
		ttl:    defaultSessionTTL,
	}
}

// WithClock overrides the internal clock, used in tests.
func (s *AuthService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// WithSessionTTL overrides the access-token lifetime.
func (s *AuthService) WithSessionTTL(ttl time.Duration) {
	if ttl > 0 {
		s.ttl = ttl
	}
}

// Session is a minted access token plus the authenticated account.
type Session struct {
	AccessToken string
	ExpiresAt   time.Time
	User        domain.User
}

// Login authenticates with email and password and mints a session.
func (s *AuthService) Login(ctx context.Context, email, password string) (*Session, error) {
	email = normalizeEmail(email)

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if !user.IsActive {
		return nil, ErrAccountDisabled
	}

	ok, err := security.VerifyPassword(password, user.PasswordHash)
	if err != nil || !ok {
		return nil, ErrInvalidCredentials
	}

	now := s.now().UTC()
	if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		s.logger.Warn("update last login failed",
			zap.String("user_id", user.ID), zap.Error(err))
	}

	return s.SessionFor(*user)
}

// SessionFor mints a session for an already-authenticated account, used after
// OTP verification.
func (s *AuthService) SessionFor(user domain.User) (*Session, error) {
	token, err := s.jwt.SignAccessToken(user, s.ttl)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}
	return &Session{
		AccessToken: token,
		ExpiresAt:   s.now().UTC().Add(s.ttl),
		User:        user,
	}, nil
}

// Authenticate validates an access token and loads the live account, so
// deactivation takes effect before token expiry.
func (s *AuthService) Authenticate(ctx context.Context, accessToken string) (*domain.User, error) {
	claims, err := s.jwt.ParseAccessToken(accessToken)
	if err != nil {
		if errors.Is(err, security.ErrTokenExpired) {
			return nil, ErrExpiredAccessToken
		}
		return nil, ErrInvalidAccessToken
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidAccessToken
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if !user.IsActive {
		return nil, ErrAccountDisabled
	}

	return user, nil
}
