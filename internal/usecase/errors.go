package usecase

import (
	"errors"
	"fmt"
	"time"

	"github.com/khushwant-singh1/bundle-market/internal/core/domain"
)

var (
	// ErrUserNotFound indicates no account exists for the supplied identity.
	ErrUserNotFound = errors.New("user not found")
	// ErrAccountDisabled indicates the account exists but is deactivated.
	ErrAccountDisabled = errors.New("account disabled")
	// ErrEmailTaken indicates a signup collides with an existing account.
	ErrEmailTaken = errors.New("email already registered")
	// ErrInvalidCredentials indicates a failed password login.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidAccessToken indicates the access token failed validation.
	ErrInvalidAccessToken = errors.New("invalid access token")
	// ErrExpiredAccessToken indicates the access token is past its expiry.
	ErrExpiredAccessToken = errors.New("access token expired")

	// ErrOTPInvalid indicates the code does not match any live verification row.
	ErrOTPInvalid = errors.New("verification code invalid")
	// ErrOTPExpired indicates the code matched but is past its expiry.
	ErrOTPExpired = errors.New("verification code expired")
	// ErrOTPAlreadyUsed indicates the code matched but was redeemed before.
	ErrOTPAlreadyUsed = errors.New("verification code already used")
	// ErrOTPTooManyAttempts indicates the live code accumulated too many failed
	// attempts and is locked out.
	ErrOTPTooManyAttempts = errors.New("too many verification attempts")
	// ErrOTPDeliveryFailed indicates the code could not be emailed; the stored
	// row is rolled back so the caller can retry cleanly.
	ErrOTPDeliveryFailed = errors.New("verification code delivery failed")
	// ErrPasswordTooWeak indicates the signup password fails policy.
	ErrPasswordTooWeak = errors.New("password does not meet requirements")

	// ErrOrderNotFound indicates the order does not exist.
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderNotApprovable indicates the order is not in PAYMENT_UPLOADED.
	ErrOrderNotApprovable = errors.New("order cannot be approved in current status")
	// ErrOrderNotRejectable indicates the order is not in PAYMENT_UPLOADED.
	ErrOrderNotRejectable = errors.New("order cannot be rejected in current status")
	// ErrRejectReasonRequired indicates a rejection with a blank reason.
	ErrRejectReasonRequired = errors.New("rejection reason is required")
	// ErrAdminRequired indicates the caller lacks the admin role.
	ErrAdminRequired = errors.New("admin role required")
	// ErrOrderStateInvalid indicates a lifecycle transition is not legal from
	// the order's current status.
	ErrOrderStateInvalid = errors.New("order is not in a valid state for this operation")
	// ErrBundleUnavailable indicates a checkout referenced an inactive bundle.
	ErrBundleUnavailable = errors.New("bundle is not available for purchase")

	// ErrBundleNotFound indicates the requested bundle does not exist.
	ErrBundleNotFound = errors.New("bundle not found")
	// ErrBundleAccessDenied indicates the caller holds no approved order for
	// the bundle.
	ErrBundleAccessDenied = errors.New("user does not have access to this bundle")
	// ErrDownloadUnauthorized indicates missing, invalid, expired, or spent
	// download credentials.
	ErrDownloadUnauthorized = errors.New("download token invalid or expired")
	// ErrBundleMismatch indicates a valid token presented for a different
	// bundle than it was minted for.
	ErrBundleMismatch = errors.New("token was not issued for this bundle")
)

// RateLimitExceededError reports a throttled request and when to retry.
type RateLimitExceededError struct {
	Scope      string
	RetryAfter time.Duration
}

func (e *RateLimitExceededError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s", e.Scope)
}

// OrderNotReadyError surfaces the legacy download path's status guidance: the
// order exists for the supplied credentials but is not yet downloadable.
type OrderNotReadyError struct {
	Status   domain.OrderStatus
	Guidance string
}

func (e *OrderNotReadyError) Error() string {
	return e.Guidance
}
