package domain

import "time"

// Download is an audit row recorded each time the gateway authorises a
// retrieval URL for a bundle.
type Download struct {
	ID        string
	BundleID  string
	OrderID   string
	Email     string
	TokenID   *string
	IPAddress *string
	UserAgent *string
	CreatedAt time.Time
}
