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
	"github.com/khushwant-singh1/bundle-market/internal/core/port"
	"github.com/khushwant-singh1/bundle-market/internal/repository"
)

// OrderRepository implements port.OrderRepository using PostgreSQL. Status
// transitions are guarded UPDATEs keyed on the expected current status, so
// concurrent writers serialise through the database rather than a lock.
type OrderRepository struct {
	pool    *pgxpool.Pool
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewOrderRepository wires a PostgreSQL-backed order repository.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{
		pool:    pool,
		exec:    pool,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// WithTx returns a repository instance operating within the supplied transaction.
func (r *OrderRepository) WithTx(tx pgx.Tx) *OrderRepository {
	if tx == nil {
		return r
	}
	return &OrderRepository{
		pool:    r.pool,
		exec:    tx,
		builder: r.builder,
	}
}

var orderColumns = []string{
	"id",
	"user_id",
	"email",
	"customer_name",
	"status",
	"payment_screenshot",
	"admin_notes",
	"approved_by",
	"approved_at",
	"created_at",
	"updated_at",
}

// Create inserts the order and its items within one transaction.
func (r *OrderRepository) Create(ctx context.Context, order domain.Order) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin create order tx: %w", err)
	}
	defer tx.Rollback(ctx)

	stmt, args, err := r.builder.Insert("market.orders").
		Columns(orderColumns...).
		Values(
			order.ID,
			order.UserID,
			order.Email,
			order.CustomerName,
			order.Status,
			order.PaymentScreenshot,
			order.AdminNotes,
			order.ApprovedBy,
			order.ApprovedAt,
			order.CreatedAt,
			order.UpdatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert order sql: %w", err)
	}
	if _, err := tx.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	for _, item := range order.Items {
		stmt, args, err := r.builder.Insert("market.order_items").
			Columns("id", "order_id", "bundle_id", "quantity", "unit_price_cents").
			Values(item.ID, order.ID, item.BundleID, item.Quantity, item.UnitPriceCents).
			ToSql()
		if err != nil {
			return fmt.Errorf("build insert order item sql: %w", err)
		}
		if _, err := tx.Exec(ctx, stmt, args...); err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit create order tx: %w", err)
	}

	return nil
}

// GetByID retrieves an order with its items.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	return r.getOne(ctx, squirrel.Eq{"id": id}, "order by id")
}

// GetByIDAndEmail retrieves an order matching both identifier and purchase
// email, used by the legacy download path as a weak ownership proof.
func (r *OrderRepository) GetByIDAndEmail(ctx context.Context, id, email string) (*domain.Order, error) {
	return r.getOne(ctx, squirrel.Eq{"id": id, "email": email}, "order by id and email")
}

func (r *OrderRepository) getOne(ctx context.Context, pred squirrel.Eq, label string) (*domain.Order, error) {
	stmt, args, err := r.builder.
		Select(orderColumns...).
		From("market.orders").
		Where(pred).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select %s sql: %w", label, err)
	}

	row := r.exec.QueryRow(ctx, stmt, args...)

	var order domain.Order
	if err := row.Scan(
		&order.ID,
		&order.UserID,
		&order.Email,
		&order.CustomerName,
		&order.Status,
		&order.PaymentScreenshot,
		&order.AdminNotes,
		&order.ApprovedBy,
		&order.ApprovedAt,
		&order.CreatedAt,
		&order.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan %s: %w", label, err)
	}

	items, err := r.loadItems(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	order.Items = items

	return &order, nil
}

func (r *OrderRepository) loadItems(ctx context.Context, orderID string) ([]domain.OrderItem, error) {
	stmt, args, err := r.builder.
		Select("id", "order_id", "bundle_id", "quantity", "unit_price_cents").
		From("market.order_items").
		Where(squirrel.Eq{"order_id": orderID}).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select order items sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("select order items: %w", err)
	}
	defer rows.Close()

	var items []domain.OrderItem
	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.BundleID, &item.Quantity, &item.UnitPriceCents); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order items: %w", err)
	}

	return items, nil
}

// UpdateStatusIf performs the atomic conditional transition. Zero rows
// affected means either the order is missing or its status moved on; a
// follow-up existence check distinguishes the two.
func (r *OrderRepository) UpdateStatusIf(ctx context.Context, id string, expected, next domain.OrderStatus) error {
	stmt, args, err := r.builder.
		Update("market.orders").
		Set("status", next).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": id, "status": expected}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build conditional status update sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("conditional status update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return r.classifyMiss(ctx, id)
	}

	return nil
}

// Approve atomically writes the approval fields, guarded on PAYMENT_UPLOADED.
func (r *OrderRepository) Approve(ctx context.Context, id string, approval port.OrderApproval) error {
	stmt, args, err := r.builder.
		Update("market.orders").
		Set("status", domain.OrderStatusApproved).
		Set("approved_by", approval.AdminID).
		Set("approved_at", approval.ApprovedAt).
		Set("admin_notes", approval.Notes).
		Set("updated_at", approval.ApprovedAt).
		Where(squirrel.Eq{"id": id, "status": domain.OrderStatusPaymentUploaded}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build approve order sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("approve order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return r.classifyMiss(ctx, id)
	}

	return nil
}

// Reject atomically records the rejection, guarded on PAYMENT_UPLOADED.
func (r *OrderRepository) Reject(ctx context.Context, id string, adminID, reason string, at time.Time) error {
	stmt, args, err := r.builder.
		Update("market.orders").
		Set("status", domain.OrderStatusRejected).
		Set("approved_by", adminID).
		Set("admin_notes", reason).
		Set("updated_at", at).
		Where(squirrel.Eq{"id": id, "status": domain.OrderStatusPaymentUploaded}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build reject order sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("reject order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return r.classifyMiss(ctx, id)
	}

	return nil
}

// AttachPaymentScreenshot stores the proof's object key on the order.
func (r *OrderRepository) AttachPaymentScreenshot(ctx context.Context, id, screenshotKey string) error {
	stmt, args, err := r.builder.
		Update("market.orders").
		Set("payment_screenshot", screenshotKey).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build attach payment screenshot sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("attach payment screenshot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

func (r *OrderRepository) classifyMiss(ctx context.Context, id string) error {
	stmt, args, err := r.builder.
		Select("1").
		From("market.orders").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build order existence sql: %w", err)
	}

	var one int
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(&one); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return repository.ErrNotFound
		}
		return fmt.Errorf("check order existence: %w", err)
	}

	return repository.ErrStale
}
