package postgres

import "github.com/jackc/pgx/v5/pgxpool"

// Repositories groups concrete PostgreSQL repository implementations.
type Repositories struct {
	Users          *UserRepository
	Bundles        *BundleRepository
	Orders         *OrderRepository
	OTPs           *OTPRepository
	DownloadTokens *DownloadTokenRepository
	Downloads      *DownloadRepository
}

// NewRepositories wires all repositories backed by the provided pool.
func NewRepositories(pool *pgxpool.Pool) *Repositories {
	return &Repositories{
		Users:          NewUserRepository(pool),
		Bundles:        NewBundleRepository(pool),
		Orders:         NewOrderRepository(pool),
		OTPs:           NewOTPRepository(pool),
		DownloadTokens: NewDownloadTokenRepository(pool),
		Downloads:      NewDownloadRepository(pool),
	}
}
