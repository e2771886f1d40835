package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/khushwant-singh1/bundle-market/internal/core/domain"
	"github.com/khushwant-singh1/bundle-market/internal/repository"
)

// DownloadTokenRepository implements port.DownloadTokenRepository using
// PostgreSQL. The token column is unique-indexed for the lookup on redemption.
type DownloadTokenRepository struct {
	pool    *pgxpool.Pool
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewDownloadTokenRepository wires a PostgreSQL-backed token repository.
func NewDownloadTokenRepository(pool *pgxpool.Pool) *DownloadTokenRepository {
	return &DownloadTokenRepository{
		pool:    pool,
		exec:    pool,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

var downloadTokenColumns = []string{
	"id",
	"token",
	"user_id",
	"bundle_id",
	"order_id",
	"is_used",
	"used_at",
	"ip_address",
	"user_agent",
	"created_at",
	"expires_at",
}

// Create inserts a new token row.
func (r *DownloadTokenRepository) Create(ctx context.Context, token domain.DownloadToken) error {
	stmt, args, err := r.builder.
		Insert("market.download_tokens").
		Columns(downloadTokenColumns...).
		Values(
			token.ID,
			token.Token,
			token.UserID,
			token.BundleID,
			token.OrderID,
			token.IsUsed,
			token.UsedAt,
			token.IPAddress,
			token.UserAgent,
			token.CreatedAt,
			token.ExpiresAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert download token sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		if isUniqueViolation(err) {
			return repository.ErrDuplicate
		}
		return fmt.Errorf("insert download token: %w", err)
	}

	return nil
}

// GetByToken retrieves a token row by its exact token string.
func (r *DownloadTokenRepository) GetByToken(ctx context.Context, token string) (*domain.DownloadToken, error) {
	return r.getOne(ctx, squirrel.Eq{"token": token}, "download token by value")
}

// GetActive returns the unused, unexpired token for (userID, bundleID).
func (r *DownloadTokenRepository) GetActive(ctx context.Context, userID, bundleID string, now time.Time) (*domain.DownloadToken, error) {
	pred := squirrel.And{
		squirrel.Eq{"user_id": userID, "bundle_id": bundleID, "is_used": false},
		squirrel.Gt{"expires_at": now},
	}
	return r.getOne(ctx, pred, "active download token")
}

func (r *DownloadTokenRepository) getOne(ctx context.Context, pred squirrel.Sqlizer, label string) (*domain.DownloadToken, error) {
	stmt, args, err := r.builder.
		Select(downloadTokenColumns...).
		From("market.download_tokens").
		Where(pred).
		OrderBy("created_at DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select %s sql: %w", label, err)
	}

	row := r.exec.QueryRow(ctx, stmt, args...)

	var token domain.DownloadToken
	if err := row.Scan(
		&token.ID,
		&token.Token,
		&token.UserID,
		&token.BundleID,
		&token.OrderID,
		&token.IsUsed,
		&token.UsedAt,
		&token.IPAddress,
		&token.UserAgent,
		&token.CreatedAt,
		&token.ExpiresAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan %s: %w", label, err)
	}

	return &token, nil
}

// MarkUsed spends the token, recording when. The update is guarded on the
// unspent state so concurrent redemptions cannot both claim it; the loser sees
// ErrStale.
func (r *DownloadTokenRepository) MarkUsed(ctx context.Context, id string, at time.Time) error {
	stmt, args, err := r.builder.
		Update("market.download_tokens").
		Set("is_used", true).
		Set("used_at", at).
		Where(squirrel.Eq{"id": id, "is_used": false}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build mark download token used sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("mark download token used: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return r.classifyMiss(ctx, id)
	}

	return nil
}

// Release clears the used flag after a failed grant so the token remains
// redeemable.
func (r *DownloadTokenRepository) Release(ctx context.Context, id string) error {
	stmt, args, err := r.builder.
		Update("market.download_tokens").
		Set("is_used", false).
		Set("used_at", nil).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build release download token sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("release download token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// classifyMiss distinguishes a vanished row from one already spent.
func (r *DownloadTokenRepository) classifyMiss(ctx context.Context, id string) error {
	stmt, args, err := r.builder.
		Select("1").
		From("market.download_tokens").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build token existence sql: %w", err)
	}

	var one int
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(&one); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return repository.ErrNotFound
		}
		return fmt.Errorf("check token existence: %w", err)
	}

	return repository.ErrStale
}

// DeleteExpired sweeps expired tokens for the (user, bundle) pair.
func (r *DownloadTokenRepository) DeleteExpired(ctx context.Context, userID, bundleID string, now time.Time) error {
	stmt, args, err := r.builder.
		Delete("market.download_tokens").
		Where(squirrel.Eq{"user_id": userID, "bundle_id": bundleID}).
		Where(squirrel.LtOrEq{"expires_at": now}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete expired tokens sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("delete expired tokens: %w", err)
	}

	return nil
}
