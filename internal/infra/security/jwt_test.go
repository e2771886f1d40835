package security

import (
	"errors"
	"testing"
	"time"

	"github.com/khushwant-singh1/bundle-market/internal/core/domain"
)

func newTestManager(t *testing.T) *JWTManager {
	t.Helper()
	provider, err := NewEphemeralKeyProvider("test")
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	manager, err := NewJWTManager(provider, "test", "bundle-market-test")
	if err != nil {
		t.Fatalf("init manager: %v", err)
	}
	return manager
}

func TestAccessTokenRoundTrip(t *testing.T) {
	manager := newTestManager(t)

	user := domain.User{ID: "u1", Email: "buyer@example.com", Role: domain.RoleCustomer}
	token, err := manager.SignAccessToken(user, 15*time.Minute)
	if err != nil {
		t.Fatalf("SignAccessToken returned error: %v", err)
	}

	claims, err := manager.ParseAccessToken(token)
	if err != nil {
		t.Fatalf("ParseAccessToken returned error: %v", err)
	}
	if claims.UserID != "u1" || claims.Email != "buyer@example.com" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if claims.Role != domain.RoleCustomer {
		t.Fatalf("expected role claim, got %q", claims.Role)
	}
	if claims.Issuer != "bundle-market-test" {
		t.Fatalf("expected issuer claim, got %q", claims.Issuer)
	}
}

func TestAccessTokenExpiry(t *testing.T) {
	manager := newTestManager(t)
	issueAt := time.Date(2025, 6, 4, 9, 0, 0, 0, time.UTC)
	manager.WithClock(func() time.Time { return issueAt })

	token, err := manager.SignAccessToken(domain.User{ID: "u1"}, 15*time.Minute)
	if err != nil {
		t.Fatalf("SignAccessToken returned error: %v", err)
	}

	manager.WithClock(func() time.Time { return issueAt.Add(14 * time.Minute) })
	if _, err := manager.ParseAccessToken(token); err != nil {
		t.Fatalf("token should still be valid: %v", err)
	}

	manager.WithClock(func() time.Time { return issueAt.Add(16 * time.Minute) })
	if _, err := manager.ParseAccessToken(token); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestDownloadTokenRoundTrip(t *testing.T) {
	manager := newTestManager(t)

	token, err := manager.SignDownloadToken("u1", "bundle-1", "order-1", 24*time.Hour)
	if err != nil {
		t.Fatalf("SignDownloadToken returned error: %v", err)
	}

	claims, err := manager.ParseDownloadToken(token)
	if err != nil {
		t.Fatalf("ParseDownloadToken returned error: %v", err)
	}
	if claims.UserID != "u1" || claims.BundleID != "bundle-1" || claims.OrderID != "order-1" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestParseRejectsForeignSignature(t *testing.T) {
	signer := newTestManager(t)
	verifier := newTestManager(t)

	token, err := signer.SignAccessToken(domain.User{ID: "u1"}, time.Minute)
	if err != nil {
		t.Fatalf("SignAccessToken returned error: %v", err)
	}

	if _, err := verifier.ParseAccessToken(token); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for foreign key, got %v", err)
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	manager := newTestManager(t)
	if _, err := manager.ParseAccessToken("definitely.not.ajwt"); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestNewJWTManagerRequiresKid(t *testing.T) {
	provider, err := NewEphemeralKeyProvider("test")
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	if _, err := NewJWTManager(provider, "  ", "issuer"); !errors.Is(err, ErrKeyIDMissing) {
		t.Fatalf("expected ErrKeyIDMissing, got %v", err)
	}
}
