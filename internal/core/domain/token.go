package domain

import "time"

// DownloadToken is the capability object authorising one retrieval-URL mint
// for a single bundle. The token string is itself a signed claim; the row
// exists so the token can be revoked independently of its signature validity.
type DownloadToken struct {
	ID        string
	Token     string
	UserID    string
	BundleID  string
	OrderID   string
	IsUsed    bool
	UsedAt    *time.Time
	IPAddress *string
	UserAgent *string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Valid reports whether the persisted row still authorises a download.
func (t DownloadToken) Valid(now time.Time) bool {
	return !t.IsUsed && now.Before(t.ExpiresAt)
}
