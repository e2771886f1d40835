package security

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	uuid "github.com/google/uuid"

	"github.com/khushwant-singh1/bundle-market/internal/core/domain"
)

// ErrKeyIDMissing indicates no kid is associated with the supplied key.
var ErrKeyIDMissing = errors.New("jwt: missing key identifier")

// ErrTokenInvalid indicates the token failed signature or claim validation.
var ErrTokenInvalid = errors.New("jwt: token invalid")

// ErrTokenExpired indicates the token's expiry claim has passed.
var ErrTokenExpired = errors.New("jwt: token expired")

const defaultAccessTokenTTL = 15 * time.Minute

// AccessTokenClaims carries the session identity for API authentication.
type AccessTokenClaims struct {
	UserID string      `json:"uid"`
	Email  string      `json:"email,omitempty"`
	Role   domain.Role `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// DownloadTokenClaims embeds the grant a download token was minted for.
type DownloadTokenClaims struct {
	UserID   string `json:"uid"`
	BundleID string `json:"bid"`
	OrderID  string `json:"oid"`
	jwt.RegisteredClaims
}

// JWTManager signs and verifies tokens using the configured key provider.
type JWTManager struct {
	provider KeyProvider
	kid      string
	issuer   string
	now      func() time.Time
}

// NewJWTManager constructs a manager signing with the given kid.
func NewJWTManager(provider KeyProvider, kid, issuer string) (*JWTManager, error) {
	kid = strings.TrimSpace(kid)
	if kid == "" {
		return nil, ErrKeyIDMissing
	}
	if provider == nil {
		return nil, errors.New("jwt: key provider is required")
	}
	return &JWTManager{provider: provider, kid: kid, issuer: issuer, now: time.Now}, nil
}

// WithClock overrides the internal clock, used in tests.
func (m *JWTManager) WithClock(clock func() time.Time) {
	if clock != nil {
		m.now = clock
	}
}

// SignAccessToken issues an RS256 access token for the user.
func (m *JWTManager) SignAccessToken(user domain.User, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = defaultAccessTokenTTL
	}

	now := m.now().UTC()
	claims := &AccessTokenClaims{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}

	return m.sign(claims)
}

// ParseAccessToken validates an access token and returns its claims.
func (m *JWTManager) ParseAccessToken(token string) (*AccessTokenClaims, error) {
	claims := &AccessTokenClaims{}
	if err := m.parse(token, claims); err != nil {
		return nil, err
	}
	if strings.TrimSpace(claims.UserID) == "" {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// SignDownloadToken issues an RS256 download token embedding the grant.
func (m *JWTManager) SignDownloadToken(userID, bundleID, orderID string, ttl time.Duration) (string, error) {
	now := m.now().UTC()
	claims := &DownloadTokenClaims{
		UserID:   userID,
		BundleID: bundleID,
		OrderID:  orderID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}

	return m.sign(claims)
}

// ParseDownloadToken validates a download token's signature and expiry and
// returns the embedded grant. Signature validity alone does not authorise a
// download; callers must also check the persisted row.
func (m *JWTManager) ParseDownloadToken(token string) (*DownloadTokenClaims, error) {
	claims := &DownloadTokenClaims{}
	if err := m.parse(token, claims); err != nil {
		return nil, err
	}
	if strings.TrimSpace(claims.UserID) == "" || strings.TrimSpace(claims.BundleID) == "" {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

func (m *JWTManager) sign(claims jwt.Claims) (string, error) {
	signingKey, err := m.provider.GetSigningKey()
	if err != nil {
		return "", fmt.Errorf("jwt: get signing key: %w", err)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = m.kid

	signed, err := token.SignedString(signingKey)
	if err != nil {
		return "", fmt.Errorf("jwt: sign token: %w", err)
	}

	return signed, nil
}

func (m *JWTManager) parse(raw string, claims jwt.Claims) error {
	parsed, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("jwt: unexpected signing method %v", t.Header["alg"])
		}
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			kid = m.kid
		}
		return m.provider.GetVerificationKey(kid)
	}, jwt.WithTimeFunc(func() time.Time { return m.now() }))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrTokenExpired
		}
		return fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if !parsed.Valid {
		return ErrTokenInvalid
	}
	return nil
}
