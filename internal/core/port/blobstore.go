package port

import (
	"context"
	"time"
)

// BlobStore is the object-storage collaborator. Bundle assets and payment
// screenshots are addressed by key; retrieval happens through presigned URLs
// whose expiry the store enforces itself.
type BlobStore interface {
	PresignGet(ctx context.Context, objectKey string, ttl time.Duration) (string, error)
	Put(ctx context.Context, objectKey string, data []byte) (string, error)
}
