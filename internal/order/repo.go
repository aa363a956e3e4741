package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"saga_fulfillment/internal/pgerr"
	"saga_fulfillment/internal/sagaerr"
)

var ErrNotFound = errors.New("order: not found")

// ErrDuplicateIdempotencyKey is returned by Insert when a concurrent
// request already committed a row for this idempotency key — the
// losing side of the race the spec's "N parallel /order/start calls"
// testable property names (spec.md §8).
var ErrDuplicateIdempotencyKey = errors.New("order: idempotency key already in use")

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// FindByIdempotencyKey supports the forward protocol's replay
// short-circuit (spec.md §4.4 step 1).
func (r *Repository) FindByIdempotencyKey(ctx context.Context, idempotencyKey string) (*Order, error) {
	return scanOne(r.db.QueryRowContext(ctx, selectColumns+`WHERE idempotency_key = $1`, idempotencyKey))
}

func (r *Repository) FindByOrderID(ctx context.Context, orderID string) (*Order, error) {
	return scanOne(r.db.QueryRowContext(ctx, selectColumns+`WHERE order_id = $1`, orderID))
}

func (r *Repository) FindBySagaID(ctx context.Context, sagaID string) (*Order, error) {
	return scanOne(r.db.QueryRowContext(ctx, selectColumns+`WHERE saga_id = $1`, sagaID))
}

// Insert writes the order row within tx — the caller's local
// transaction, shared with the saga log update and outbox append.
func (r *Repository) Insert(ctx context.Context, tx *sql.Tx, o *Order) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO orders (order_id, idempotency_key, saga_id, customer_id, product_id,
		                     quantity, total_price, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
	`, o.OrderID, o.IdempotencyKey, o.SagaID, o.CustomerID, o.ProductID, o.Quantity,
		o.TotalPrice, string(o.Status), o.CreatedAt)
	if pgerr.IsUniqueViolation(err, "idempotency_key") {
		return sagaerr.Validation(ErrDuplicateIdempotencyKey)
	}
	if err != nil {
		return sagaerr.Terminal(fmt.Errorf("insert order: %w", err))
	}
	return nil
}

// Compensate marks the order compensated within tx.
func (r *Repository) Compensate(ctx context.Context, tx *sql.Tx, orderID string) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE orders SET status = $2, updated_at = NOW() WHERE order_id = $1
	`, orderID, string(StatusCompensated))
	if err != nil {
		return sagaerr.Terminal(fmt.Errorf("compensate order: %w", err))
	}
	return nil
}

const selectColumns = `
	SELECT order_id, idempotency_key, compensation_key, saga_id, customer_id, product_id,
	       quantity, total_price, status, created_at, updated_at
	FROM orders
`

func scanOne(row *sql.Row) (*Order, error) {
	var (
		o            Order
		status       string
		compensation sql.NullString
	)
	err := row.Scan(&o.OrderID, &o.IdempotencyKey, &compensation, &o.SagaID, &o.CustomerID,
		&o.ProductID, &o.Quantity, &o.TotalPrice, &status, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, sagaerr.Terminal(fmt.Errorf("scan order: %w", err))
	}
	if compensation.Valid {
		o.CompensationKey = &compensation.String
	}
	o.Status = Status(status)
	return &o, nil
}
