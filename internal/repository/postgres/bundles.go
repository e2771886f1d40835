package postgres

import (
	"context"
	"errors"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/khushwant-singh1/bundle-market/internal/core/domain"
	"github.com/khushwant-singh1/bundle-market/internal/repository"
)

// BundleRepository implements port.BundleRepository using PostgreSQL.
type BundleRepository struct {
	pool    *pgxpool.Pool
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewBundleRepository wires a PostgreSQL-backed bundle repository.
func NewBundleRepository(pool *pgxpool.Pool) *BundleRepository {
	return &BundleRepository{
		pool:    pool,
		exec:    pool,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

var bundleColumns = []string{
	"id",
	"slug",
	"name",
	"price_cents",
	"download_url",
	"is_active",
	"download_count",
	"created_at",
}

// GetByID retrieves a bundle by identifier.
func (r *BundleRepository) GetByID(ctx context.Context, id string) (*domain.Bundle, error) {
	return r.getOne(ctx, squirrel.Eq{"id": id}, "bundle by id")
}

// GetBySlug retrieves a bundle by its unique slug.
func (r *BundleRepository) GetBySlug(ctx context.Context, slug string) (*domain.Bundle, error) {
	return r.getOne(ctx, squirrel.Eq{"slug": slug}, "bundle by slug")
}

func (r *BundleRepository) getOne(ctx context.Context, pred squirrel.Eq, label string) (*domain.Bundle, error) {
	stmt, args, err := r.builder.
		Select(bundleColumns...).
		From("market.bundles").
		Where(pred).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select %s sql: %w", label, err)
	}

	row := r.exec.QueryRow(ctx, stmt, args...)

	var bundle domain.Bundle
	if err := row.Scan(
		&bundle.ID,
		&bundle.Slug,
		&bundle.Name,
		&bundle.PriceCents,
		&bundle.DownloadURL,
		&bundle.IsActive,
		&bundle.DownloadCount,
		&bundle.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan %s: %w", label, err)
	}

	return &bundle, nil
}

// IncrementDownloadCount bumps the bundle's lifetime download counter.
func (r *BundleRepository) IncrementDownloadCount(ctx context.Context, id string) error {
	stmt, args, err := r.builder.
		Update("market.bundles").
		Set("download_count", squirrel.Expr("download_count + 1")).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build increment download count sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("increment download count: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}
