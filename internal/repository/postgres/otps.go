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

// OTPRepository implements port.OTPRepository using PostgreSQL.
type OTPRepository struct {
	pool    *pgxpool.Pool
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewOTPRepository wires a PostgreSQL-backed OTP repository.
func NewOTPRepository(pool *pgxpool.Pool) *OTPRepository {
	return &OTPRepository{
		pool:    pool,
		exec:    pool,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

var otpColumns = []string{
	"id",
	"email",
	"otp_type",
	"code",
	"attempts",
	"is_used",
	"created_at",
	"expires_at",
}

// CreateReplacing deletes every prior row for (email, type) and inserts the
// new one inside a single transaction, so at most one actionable code exists
// after each issue.
func (r *OTPRepository) CreateReplacing(ctx context.Context, otp domain.OTPVerification) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin replace otp tx: %w", err)
	}
	defer tx.Rollback(ctx)

	delStmt, delArgs, err := r.builder.
		Delete("market.otp_verifications").
		Where(squirrel.Eq{"email": otp.Email, "otp_type": otp.Type}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete prior otps sql: %w", err)
	}
	if _, err := tx.Exec(ctx, delStmt, delArgs...); err != nil {
		return fmt.Errorf("delete prior otps: %w", err)
	}

	insStmt, insArgs, err := r.builder.
		Insert("market.otp_verifications").
		Columns(otpColumns...).
		Values(
			otp.ID,
			otp.Email,
			otp.Type,
			otp.Code,
			otp.Attempts,
			otp.IsUsed,
			otp.CreatedAt,
			otp.ExpiresAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert otp sql: %w", err)
	}
	if _, err := tx.Exec(ctx, insStmt, insArgs...); err != nil {
		return fmt.Errorf("insert otp: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit replace otp tx: %w", err)
	}

	return nil
}

// GetLatest returns the most recent row for (email, type) regardless of use
// or expiry.
func (r *OTPRepository) GetLatest(ctx context.Context, email string, typ domain.OTPType) (*domain.OTPVerification, error) {
	return r.getOne(ctx, squirrel.Eq{"email": email, "otp_type": typ}, "latest otp")
}

func (r *OTPRepository) getOne(ctx context.Context, pred squirrel.Sqlizer, label string) (*domain.OTPVerification, error) {
	stmt, args, err := r.builder.
		Select(otpColumns...).
		From("market.otp_verifications").
		Where(pred).
		OrderBy("created_at DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select %s sql: %w", label, err)
	}

	row := r.exec.QueryRow(ctx, stmt, args...)

	var otp domain.OTPVerification
	if err := row.Scan(
		&otp.ID,
		&otp.Email,
		&otp.Type,
		&otp.Code,
		&otp.Attempts,
		&otp.IsUsed,
		&otp.CreatedAt,
		&otp.ExpiresAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan %s: %w", label, err)
	}

	return &otp, nil
}

// MarkUsed sets or clears the used flag; clearing supports the signup
// compensation path.
func (r *OTPRepository) MarkUsed(ctx context.Context, id string, used bool) error {
	stmt, args, err := r.builder.
		Update("market.otp_verifications").
		Set("is_used", used).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build mark otp used sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("mark otp used: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// IncrementAttempts bumps the failed-attempt counter and returns the new value.
func (r *OTPRepository) IncrementAttempts(ctx context.Context, id string) (int, error) {
	stmt, args, err := r.builder.
		Update("market.otp_verifications").
		Set("attempts", squirrel.Expr("attempts + 1")).
		Where(squirrel.Eq{"id": id}).
		Suffix("RETURNING attempts").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build increment otp attempts sql: %w", err)
	}

	var attempts int
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(&attempts); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, repository.ErrNotFound
		}
		return 0, fmt.Errorf("increment otp attempts: %w", err)
	}

	return attempts, nil
}

// Delete removes a single row by id.
func (r *OTPRepository) Delete(ctx context.Context, id string) error {
	stmt, args, err := r.builder.
		Delete("market.otp_verifications").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete otp sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("delete otp: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}
