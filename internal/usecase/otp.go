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
	"github.com/khushwant-singh1/bundle-market/internal/infra/security"
	"github.com/khushwant-singh1/bundle-market/internal/repository"
)

const (
	defaultOTPTTL      = 10 * time.Minute
	otpCodeLength      = 6
	defaultMaxAttempts = 5
)

// OTPService issues and verifies one-time codes for email-based signup and
// login.
type OTPService struct {
	users             port.UserRepository
	otps              port.OTPRepository
	mailer            port.Mailer
	passwordValidator *security.PasswordValidator
	logger            *zap.Logger
	now               func() time.Time
	ttl               time.Duration
	maxAttempts       int
}

// NewOTPService constructs an OTPService.
func NewOTPService(users port.UserRepository, otps port.OTPRepository, mailer port.Mailer, validator *security.PasswordValidator, logger *zap.Logger) *OTPService {
	if validator == nil {
		validator = security.DefaultPasswordValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &OTPService{
		users:             users,
		otps:              otps,
		mailer:            mailer,
		passwordValidator: validator,
		logger:            logger,
		now:               time.Now,
		ttl:               defaultOTPTTL,
		maxAttempts:       defaultMaxAttempts,
	}
}

// WithClock overrides the internal clock, used in tests.
func (s *OTPService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// WithTTL overrides the code lifetime, used in tests.
func (s *OTPService) WithTTL(ttl time.Duration) {
	if ttl > 0 {
		s.ttl = ttl
	}
}

// WithMaxAttempts adjusts the failed-attempt lockout threshold.
func (s *OTPService) WithMaxAttempts(limit int) {
	if limit > 0 {
		s.maxAttempts = limit
	}
}

// IssueResult describes a freshly issued verification code.
type IssueResult struct {
	Email     string
	Type      domain.OTPType
	ExpiresAt time.Time
}

// Issue generates a six-digit code for the (email, type) pair, stores it with
// a bounded lifetime replacing any earlier rows, and emails it. A delivery
// failure rolls the stored row back so no orphaned valid code remains.
func (s *OTPService) Issue(ctx context.Context, email string, typ domain.OTPType, name string) (*IssueResult, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, fmt.Errorf("email is required")
	}

	switch typ {
	case domain.OTPTypeLogin:
		user, err := s.users.GetByEmail(ctx, email)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, ErrUserNotFound
			}
			return nil, fmt.Errorf("lookup user: %w", err)
		}
		if !user.IsActive {
			return nil, ErrAccountDisabled
		}
	case domain.OTPTypeSignup:
		if _, err := s.users.GetByEmail(ctx, email); err == nil {
			return nil, ErrEmailTaken
		} else if !errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("lookup user: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown otp type: %s", typ)
	}

	code, err := security.GenerateNumericCode(otpCodeLength)
	if err != nil {
		return nil, fmt.Errorf("generate otp code: %w", err)
	}

	now := s.now().UTC()
	otp := domain.OTPVerification{
		ID:        uuid.NewString(),
		Email:     email,
		Type:      typ,
		Code:      code,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}

	if err := s.otps.CreateReplacing(ctx, otp); err != nil {
		return nil, fmt.Errorf("store otp: %w", err)
	}

	mail := buildOTPMail(email, name, code, typ, s.ttl)
	if err := s.mailer.Send(ctx, mail); err != nil {
		if delErr := s.otps.Delete(ctx, otp.ID); delErr != nil && !errors.Is(delErr, repository.ErrNotFound) {
			s.logger.Warn("rollback undelivered otp failed",
				zap.String("otp_id", otp.ID), zap.Error(delErr))
		}
		return nil, fmt.Errorf("%w: %v", ErrOTPDeliveryFailed, err)
	}

	return &IssueResult{Email: email, Type: typ, ExpiresAt: otp.ExpiresAt}, nil
}

// VerifyInput carries the payload to redeem a verification code.
type VerifyInput struct {
	Email    string
	Code     string
	Type     domain.OTPType
	Name     string
	Password string
}

// Verify redeems a code and performs the type-specific effect: SIGNUP creates
// the account from the supplied name and password; LOGIN loads the existing
// account and stamps the login time. Misses are classified so callers can
// distinguish a wrong code from a replayed or expired one.
func (s *OTPService) Verify(ctx context.Context, input VerifyInput) (*domain.User, error) {
	email := normalizeEmail(input.Email)
	code := strings.TrimSpace(input.Code)
	if email == "" || code == "" {
		return nil, fmt.Errorf("email and otp are required")
	}

	now := s.now().UTC()

	latest, err := s.otps.GetLatest(ctx, email, input.Type)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrOTPInvalid
		}
		return nil, fmt.Errorf("lookup otp: %w", err)
	}

	if latest.Code != code {
		if latest.Actionable(now) {
			attempts, incErr := s.otps.IncrementAttempts(ctx, latest.ID)
			if incErr != nil && !errors.Is(incErr, repository.ErrNotFound) {
				s.logger.Warn("increment otp attempts failed",
					zap.String("otp_id", latest.ID), zap.Error(incErr))
			}
			if attempts >= s.maxAttempts {
				return nil, ErrOTPTooManyAttempts
			}
		}
		return nil, ErrOTPInvalid
	}

	if latest.IsUsed {
		return nil, ErrOTPAlreadyUsed
	}
	if latest.Expired(now) {
		return nil, ErrOTPExpired
	}
	if latest.Attempts >= s.maxAttempts {
		return nil, ErrOTPTooManyAttempts
	}

	if err := s.otps.MarkUsed(ctx, latest.ID, true); err != nil {
		return nil, fmt.Errorf("consume otp: %w", err)
	}

	// The spent row stays behind until the next issue for this pair replaces
	// it, so a replayed code is recognized as already used rather than merely
	// unknown.
	switch input.Type {
	case domain.OTPTypeSignup:
		user, err := s.completeSignup(ctx, email, input.Name, input.Password, now)
		if err != nil {
			// Compensating action: release the code so the buyer can retry.
			if unmarkErr := s.otps.MarkUsed(ctx, latest.ID, false); unmarkErr != nil {
				s.logger.Warn("release otp after signup failure failed",
					zap.String("otp_id", latest.ID), zap.Error(unmarkErr))
			}
			return nil, err
		}
		return user, nil
	case domain.OTPTypeLogin:
		return s.completeLogin(ctx, email, now)
	default:
		return nil, fmt.Errorf("unknown otp type: %s", input.Type)
	}
}

func (s *OTPService) completeSignup(ctx context.Context, email, name, password string, now time.Time) (*domain.User, error) {
	if err := s.passwordValidator.Validate(password, email, name); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPasswordTooWeak, err)
	}

	passwordHash, err := security.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	verifiedAt := now
	user := domain.User{
		ID:            uuid.NewString(),
		Email:         email,
		Name:          strings.TrimSpace(name),
		Role:          domain.RoleCustomer,
		PasswordHash:  passwordHash,
		IsActive:      true,
		EmailVerified: &verifiedAt,
		CreatedAt:     now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	return &user, nil
}

func (s *OTPService) completeLogin(ctx context.Context, email string, now time.Time) (*domain.User, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if !user.IsActive {
		return nil, ErrAccountDisabled
	}

	if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		s.logger.Warn("update last login failed",
			zap.String("user_id", user.ID), zap.Error(err))
	}

	loginAt := now
	user.LastLoginAt = &loginAt
	return user, nil
}

func buildOTPMail(email, name, code string, typ domain.OTPType, ttl time.Duration) port.Mail {
	greeting := "there"
	if trimmed := strings.TrimSpace(name); trimmed != "" {
		greeting = trimmed
	}

	subject := "Your login code"
	action := "log in"
	if typ == domain.OTPTypeSignup {
		subject = "Verify your email"
		action = "finish creating your account"
	}

	minutes := int(ttl / time.Minute)
	body := fmt.Sprintf(
		"<p>Hi %s,</p><p>Use the code <strong>%s</strong> to %s. It expires in %d minutes.</p><p>If you did not request this, you can ignore this email.</p>",
		greeting, code, action, minutes,
	)

	return port.Mail{To: email, Subject: subject, HTMLBody: body}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
