package domain

import "time"

// OTPType distinguishes the flows an OTP can authorise.
type OTPType string

const (
	OTPTypeLogin  OTPType = "LOGIN"
	OTPTypeSignup OTPType = "SIGNUP"
)

// OTPVerification is an ephemeral one-time-code record keyed by (email, type).
// Rows are deleted opportunistically once used or expired.
type OTPVerification struct {
	ID        string
	Email     string
	Type      OTPType
	Code      string
	Attempts  int
	IsUsed    bool
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the code is past its expiry at the given instant.
func (o OTPVerification) Expired(now time.Time) bool {
	return now.After(o.ExpiresAt)
}

// Actionable reports whether the code can still be redeemed.
func (o OTPVerification) Actionable(now time.Time) bool {
	return !o.IsUsed && !o.Expired(now)
}
