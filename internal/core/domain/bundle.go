package domain

import (
	"strings"
	"time"
)

const objectStorePrefix = "s3://"

// Bundle is a purchasable catalog entry. The catalog subsystem owns the full
// record; this core reads the fields needed for fulfilment and download.
type Bundle struct {
	ID            string
	Slug          string
	Name          string
	PriceCents    int64
	DownloadURL   string
	IsActive      bool
	DownloadCount int64
	CreatedAt     time.Time
}

// HasObjectStoreAsset reports whether the bundle's asset lives in the blob
// store (as opposed to a legacy direct URL).
func (b Bundle) HasObjectStoreAsset() bool {
	return strings.HasPrefix(b.DownloadURL, objectStorePrefix)
}

// ObjectKey strips the object-store prefix from the asset reference.
func (b Bundle) ObjectKey() string {
	return strings.TrimPrefix(b.DownloadURL, objectStorePrefix)
}
