package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/khushwant-singh1/bundle-market/internal/core/domain"
)

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func TestOTPIssueSignupStoresAndMailsCode(t *testing.T) {
	users := &userRepoMock{}
	otps := &otpRepoMock{}
	mailer := &mailerMock{}

	svc := NewOTPService(users, otps, mailer, nil, nil)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc.WithClock(fixedClock(now))

	result, err := svc.Issue(context.Background(), " Buyer@Example.com ", domain.OTPTypeSignup, "Buyer")
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}
	if result.Email != "buyer@example.com" {
		t.Fatalf("expected normalized email, got %q", result.Email)
	}
	if want := now.Add(10 * time.Minute); !result.ExpiresAt.Equal(want) {
		t.Fatalf("expected expiry %v, got %v", want, result.ExpiresAt)
	}

	stored, err := otps.GetLatest(context.Background(), "buyer@example.com", domain.OTPTypeSignup)
	if err != nil {
		t.Fatalf("expected stored otp row: %v", err)
	}
	if len(stored.Code) != 6 {
		t.Fatalf("expected 6-digit code, got %q", stored.Code)
	}

	if len(mailer.sent) != 1 {
		t.Fatalf("expected 1 mail, got %d", len(mailer.sent))
	}
	if mailer.sent[0].To != "buyer@example.com" {
		t.Fatalf("mail sent to %q", mailer.sent[0].To)
	}
}

func TestOTPIssueSignupRejectsExistingEmail(t *testing.T) {
	users := &userRepoMock{
		byEmail: map[string]domain.User{
			"buyer@example.com": {ID: "u1", Email: "buyer@example.com", IsActive: true},
		},
	}
	svc := NewOTPService(users, &otpRepoMock{}, &mailerMock{}, nil, nil)

	_, err := svc.Issue(context.Background(), "buyer@example.com", domain.OTPTypeSignup, "")
	if !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

func TestOTPIssueLoginRequiresActiveAccount(t *testing.T) {
	users := &userRepoMock{
		byEmail: map[string]domain.User{
			"dormant@example.com": {ID: "u2", Email: "dormant@example.com", IsActive: false},
		},
	}
	svc := NewOTPService(users, &otpRepoMock{}, &mailerMock{}, nil, nil)

	if _, err := svc.Issue(context.Background(), "nobody@example.com", domain.OTPTypeLogin, ""); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	if _, err := svc.Issue(context.Background(), "dormant@example.com", domain.OTPTypeLogin, ""); !errors.Is(err, ErrAccountDisabled) {
		t.Fatalf("expected ErrAccountDisabled, got %v", err)
	}
}

func TestOTPIssueRollsBackRowOnDeliveryFailure(t *testing.T) {
	otps := &otpRepoMock{}
	mailer := &mailerMock{sendErr: errors.New("smtp down")}

	svc := NewOTPService(&userRepoMock{}, otps, mailer, nil, nil)

	_, err := svc.Issue(context.Background(), "buyer@example.com", domain.OTPTypeSignup, "")
	if !errors.Is(err, ErrOTPDeliveryFailed) {
		t.Fatalf("expected ErrOTPDeliveryFailed, got %v", err)
	}
	if len(otps.deleteCalls) != 1 {
		t.Fatalf("expected stored row to be rolled back, delete calls: %d", len(otps.deleteCalls))
	}
}

func seedOTP(otps *otpRepoMock, code string, typ domain.OTPType, now time.Time) domain.OTPVerification {
	row := domain.OTPVerification{
		ID:        "otp-1",
		Email:     "buyer@example.com",
		Type:      typ,
		Code:      code,
		CreatedAt: now,
		ExpiresAt: now.Add(10 * time.Minute),
	}
	_ = otps.CreateReplacing(context.Background(), row)
	return row
}

func TestOTPVerifyWrongCodeCountsAttemptAndLocksOut(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	otps := &otpRepoMock{}
	seedOTP(otps, "123456", domain.OTPTypeLogin, now)

	users := &userRepoMock{
		byEmail: map[string]domain.User{
			"buyer@example.com": {ID: "u1", Email: "buyer@example.com", IsActive: true},
		},
		byID: map[string]domain.User{
			"u1": {ID: "u1", Email: "buyer@example.com", IsActive: true},
		},
	}

	svc := NewOTPService(users, otps, &mailerMock{}, nil, nil)
	svc.WithClock(fixedClock(now))

	input := VerifyInput{Email: "buyer@example.com", Code: "000000", Type: domain.OTPTypeLogin}
	for i := 0; i < 4; i++ {
		if _, err := svc.Verify(context.Background(), input); !errors.Is(err, ErrOTPInvalid) {
			t.Fatalf("attempt %d: expected ErrOTPInvalid, got %v", i+1, err)
		}
	}

	// Fifth miss crosses the lockout threshold.
	if _, err := svc.Verify(context.Background(), input); !errors.Is(err, ErrOTPTooManyAttempts) {
		t.Fatalf("expected ErrOTPTooManyAttempts, got %v", err)
	}

	// Even the right code is refused once locked out.
	input.Code = "123456"
	if _, err := svc.Verify(context.Background(), input); !errors.Is(err, ErrOTPTooManyAttempts) {
		t.Fatalf("expected ErrOTPTooManyAttempts for correct code after lockout, got %v", err)
	}
}

func TestOTPVerifyReplayReturnsAlreadyUsed(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	otps := &otpRepoMock{}
	seedOTP(otps, "123456", domain.OTPTypeLogin, now)

	users := &userRepoMock{
		byEmail: map[string]domain.User{
			"buyer@example.com": {ID: "u1", Email: "buyer@example.com", IsActive: true},
		},
		byID: map[string]domain.User{
			"u1": {ID: "u1", Email: "buyer@example.com", IsActive: true},
		},
	}

	svc := NewOTPService(users, otps, &mailerMock{}, nil, nil)
	svc.WithClock(fixedClock(now))

	input := VerifyInput{Email: "buyer@example.com", Code: "123456", Type: domain.OTPTypeLogin}
	if _, err := svc.Verify(context.Background(), input); err != nil {
		t.Fatalf("first verify failed: %v", err)
	}
	if _, err := svc.Verify(context.Background(), input); !errors.Is(err, ErrOTPAlreadyUsed) {
		t.Fatalf("expected ErrOTPAlreadyUsed on replay, got %v", err)
	}

	// The spent row must survive redemption; deleting it would turn a replay
	// into an indistinguishable invalid-code miss.
	stored, err := otps.GetLatest(context.Background(), "buyer@example.com", domain.OTPTypeLogin)
	if err != nil {
		t.Fatalf("expected spent row to remain: %v", err)
	}
	if !stored.IsUsed {
		t.Fatalf("expected spent row to stay marked used")
	}
}

func TestOTPVerifyExpiredCode(t *testing.T) {
	issued := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	otps := &otpRepoMock{}
	seedOTP(otps, "123456", domain.OTPTypeLogin, issued)

	svc := NewOTPService(&userRepoMock{}, otps, &mailerMock{}, nil, nil)
	svc.WithClock(fixedClock(issued.Add(11 * time.Minute)))

	input := VerifyInput{Email: "buyer@example.com", Code: "123456", Type: domain.OTPTypeLogin}
	if _, err := svc.Verify(context.Background(), input); !errors.Is(err, ErrOTPExpired) {
		t.Fatalf("expected ErrOTPExpired, got %v", err)
	}
}

func TestOTPVerifySignupCreatesVerifiedAccount(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	otps := &otpRepoMock{}
	seedOTP(otps, "123456", domain.OTPTypeSignup, now)

	users := &userRepoMock{}
	svc := NewOTPService(users, otps, &mailerMock{}, nil, nil)
	svc.WithClock(fixedClock(now))

	user, err := svc.Verify(context.Background(), VerifyInput{
		Email:    "buyer@example.com",
		Code:     "123456",
		Type:     domain.OTPTypeSignup,
		Name:     "Buyer",
		Password: "correct-horse-battery-staple-42",
	})
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if user.Email != "buyer@example.com" || user.Name != "Buyer" {
		t.Fatalf("unexpected user: %+v", user)
	}
	if user.Role != domain.RoleCustomer {
		t.Fatalf("expected customer role, got %s", user.Role)
	}
	if user.EmailVerified == nil || !user.EmailVerified.Equal(now) {
		t.Fatalf("expected email verified at %v, got %v", now, user.EmailVerified)
	}
	if len(users.created) != 1 {
		t.Fatalf("expected 1 created user, got %d", len(users.created))
	}
	if users.created[0].PasswordHash == "" || users.created[0].PasswordHash == "correct-horse-battery-staple-42" {
		t.Fatalf("password was not hashed")
	}
}

func TestOTPVerifySignupWeakPasswordReleasesCode(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	otps := &otpRepoMock{}
	row := seedOTP(otps, "123456", domain.OTPTypeSignup, now)

	svc := NewOTPService(&userRepoMock{}, otps, &mailerMock{}, nil, nil)
	svc.WithClock(fixedClock(now))

	_, err := svc.Verify(context.Background(), VerifyInput{
		Email:    "buyer@example.com",
		Code:     "123456",
		Type:     domain.OTPTypeSignup,
		Password: "password",
	})
	if !errors.Is(err, ErrPasswordTooWeak) {
		t.Fatalf("expected ErrPasswordTooWeak, got %v", err)
	}

	// The compensating un-mark keeps the code redeemable for a retry.
	stored, getErr := otps.GetLatest(context.Background(), row.Email, row.Type)
	if getErr != nil {
		t.Fatalf("lookup after failed signup: %v", getErr)
	}
	if stored.IsUsed {
		t.Fatalf("expected code released after signup failure")
	}
}

func TestOTPVerifyLoginStampsLastLogin(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	otps := &otpRepoMock{}
	seedOTP(otps, "123456", domain.OTPTypeLogin, now)

	users := &userRepoMock{
		byEmail: map[string]domain.User{
			"buyer@example.com": {ID: "u1", Email: "buyer@example.com", IsActive: true},
		},
		byID: map[string]domain.User{
			"u1": {ID: "u1", Email: "buyer@example.com", IsActive: true},
		},
	}

	svc := NewOTPService(users, otps, &mailerMock{}, nil, nil)
	svc.WithClock(fixedClock(now))

	user, err := svc.Verify(context.Background(), VerifyInput{
		Email: "buyer@example.com", Code: "123456", Type: domain.OTPTypeLogin,
	})
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if user.LastLoginAt == nil || !user.LastLoginAt.Equal(now) {
		t.Fatalf("expected login stamp %v, got %v", now, user.LastLoginAt)
	}
	if users.lastLoginCalls != 1 {
		t.Fatalf("expected 1 UpdateLastLogin call, got %d", users.lastLoginCalls)
	}
}
