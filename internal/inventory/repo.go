package inventory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"saga_fulfillment/internal/pgerr"
	"saga_fulfillment/internal/sagaerr"
)

var ErrNotFound = errors.New("inventory: not found")

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// FindItem reads the stock aggregate for productId outside any
// transaction — used by the read model.
func (r *Repository) FindItem(ctx context.Context, productID string) (*Item, error) {
	return scanItem(r.db.QueryRowContext(ctx, itemColumns+`WHERE product_id = $1`, productID))
}

// LoadOrInitItem returns the Item row for productID within tx, creating
// it at the default 100 units first if absent (spec.md §4.4
// "Inventory": "auto-creates inventory at 100 units if absent").
func (r *Repository) LoadOrInitItem(ctx context.Context, tx *sql.Tx, productID string) (*Item, error) {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO inventory_items (product_id, quantity, reserved_quantity, updated_at)
		VALUES ($1, $2, 0, NOW())
		ON CONFLICT (product_id) DO NOTHING
	`, productID, defaultStock)
	if err != nil {
		return nil, sagaerr.Terminal(fmt.Errorf("init inventory item: %w", err))
	}
	return scanItem(tx.QueryRowContext(ctx, itemColumns+`WHERE product_id = $1 FOR UPDATE`, productID))
}

const defaultStock = 100

// SetStock overwrites the quantity for productID, used only by the
// operator-facing /inventories/initialize endpoint (outside the saga
// protocol).
func (r *Repository) SetStock(ctx context.Context, productID string, quantity int) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO inventory_items (product_id, quantity, reserved_quantity, updated_at)
		VALUES ($1, $2, 0, NOW())
		ON CONFLICT (product_id) DO UPDATE SET quantity = EXCLUDED.quantity, updated_at = NOW()
	`, productID, quantity)
	if err != nil {
		return sagaerr.Terminal(fmt.Errorf("set inventory stock: %w", err))
	}
	return nil
}

// Reserve decrements quantity and increments reservedQuantity by qty
// within tx.
func (r *Repository) Reserve(ctx context.Context, tx *sql.Tx, productID string, qty int) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE inventory_items
		SET quantity = quantity - $2, reserved_quantity = reserved_quantity + $2, updated_at = NOW()
		WHERE product_id = $1
	`, productID, qty)
	if err != nil {
		return sagaerr.Terminal(fmt.Errorf("reserve inventory: %w", err))
	}
	return nil
}

// Release restores quantity and reservedQuantity on compensation,
// clamping reservedQuantity at zero (spec.md §4.4 "compensate").
func (r *Repository) Release(ctx context.Context, tx *sql.Tx, productID string, qty int) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE inventory_items
		SET quantity = quantity + $2,
		    reserved_quantity = GREATEST(0, reserved_quantity - $2),
		    updated_at = NOW()
		WHERE product_id = $1
	`, productID, qty)
	if err != nil {
		return sagaerr.Terminal(fmt.Errorf("release inventory: %w", err))
	}
	return nil
}

const itemColumns = `SELECT product_id, quantity, reserved_quantity, updated_at FROM inventory_items `

func scanItem(row *sql.Row) (*Item, error) {
	var item Item
	err := row.Scan(&item.ProductID, &item.Quantity, &item.ReservedQuantity, &item.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, sagaerr.Terminal(fmt.Errorf("scan inventory item: %w", err))
	}
	return &item, nil
}

func (r *Repository) FindReservationByIdempotencyKey(ctx context.Context, idempotencyKey string) (*Reservation, error) {
	return scanReservation(r.db.QueryRowContext(ctx, reservationColumns+`WHERE idempotency_key = $1`, idempotencyKey))
}

func (r *Repository) FindReservationByOrderAndProduct(ctx context.Context, orderID, productID string) (*Reservation, error) {
	return scanReservation(r.db.QueryRowContext(ctx, reservationColumns+`WHERE order_id = $1 AND product_id = $2`, orderID, productID))
}

func (r *Repository) InsertReservation(ctx context.Context, tx *sql.Tx, res *Reservation) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO inventory_reservations (reservation_id, idempotency_key, saga_id, order_id,
		                                     product_id, quantity, status, failure_reason,
		                                     created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
	`, res.ReservationID, res.IdempotencyKey, res.SagaID, res.OrderID, res.ProductID,
		res.Quantity, string(res.Status), res.FailureReason, res.CreatedAt)
	if pgerr.IsUniqueViolation(err, "idempotency_key") {
		return sagaerr.Validation(fmt.Errorf("duplicate idempotency key"))
	}
	if err != nil {
		return sagaerr.Terminal(fmt.Errorf("insert inventory reservation: %w", err))
	}
	return nil
}

func (r *Repository) CompensateReservation(ctx context.Context, tx *sql.Tx, reservationID, compensationKey string) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE inventory_reservations
		SET status = $2, compensation_key = $3, updated_at = NOW()
		WHERE reservation_id = $1
	`, reservationID, string(ReservationCompensated), compensationKey)
	if err != nil {
		return sagaerr.Terminal(fmt.Errorf("compensate inventory reservation: %w", err))
	}
	return nil
}

const reservationColumns = `
	SELECT reservation_id, idempotency_key, compensation_key, saga_id, order_id, product_id,
	       quantity, status, failure_reason, created_at, updated_at
	FROM inventory_reservations
`

func scanReservation(row *sql.Row) (*Reservation, error) {
	var (
		res           Reservation
		status        string
		compensation  sql.NullString
		failureReason sql.NullString
	)
	err := row.Scan(&res.ReservationID, &res.IdempotencyKey, &compensation, &res.SagaID,
		&res.OrderID, &res.ProductID, &res.Quantity, &status, &failureReason,
		&res.CreatedAt, &res.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, sagaerr.Terminal(fmt.Errorf("scan inventory reservation: %w", err))
	}
	if compensation.Valid {
		res.CompensationKey = &compensation.String
	}
	if failureReason.Valid {
		res.FailureReason = &failureReason.String
	}
	res.Status = ReservationStatus(status)
	return &res, nil
}
