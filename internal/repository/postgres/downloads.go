package postgres

import (
	"context"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/khushwant-singh1/bundle-market/internal/core/domain"
)

// DownloadRepository implements port.DownloadRepository using PostgreSQL.
// Rows are append-only audit records.
type DownloadRepository struct {
	pool    *pgxpool.Pool
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewDownloadRepository wires a PostgreSQL-backed download audit repository.
func NewDownloadRepository(pool *pgxpool.Pool) *DownloadRepository {
	return &DownloadRepository{
		pool:    pool,
		exec:    pool,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Create appends an audit row.
func (r *DownloadRepository) Create(ctx context.Context, download domain.Download) error {
	stmt, args, err := r.builder.
		Insert("market.downloads").
		Columns("id", "bundle_id", "order_id", "email", "token_id", "ip_address", "user_agent", "created_at").
		Values(
			download.ID,
			download.BundleID,
			download.OrderID,
			download.Email,
			download.TokenID,
			download.IPAddress,
			download.UserAgent,
			download.CreatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert download sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert download: %w", err)
	}

	return nil
}

// CountForOrder returns how many downloads an order has accumulated.
func (r *DownloadRepository) CountForOrder(ctx context.Context, orderID string) (int, error) {
	stmt, args, err := r.builder.
		Select("count(*)").
		From("market.downloads").
		Where(squirrel.Eq{"order_id": orderID}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count downloads sql: %w", err)
	}

	var count int
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count downloads: %w", err)
	}

	return count, nil
}
