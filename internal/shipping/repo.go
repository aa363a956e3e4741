package shipping

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"saga_fulfillment/internal/pgerr"
	"saga_fulfillment/internal/sagaerr"
)

var ErrNotFound = errors.New("shipping: not found")

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) FindByIdempotencyKey(ctx context.Context, idempotencyKey string) (*Shipment, error) {
	return scanOne(r.db.QueryRowContext(ctx, selectColumns+`WHERE idempotency_key = $1`, idempotencyKey))
}

func (r *Repository) FindByOrderID(ctx context.Context, orderID string) (*Shipment, error) {
	return scanOne(r.db.QueryRowContext(ctx, selectColumns+`WHERE order_id = $1`, orderID))
}

func (r *Repository) FindByID(ctx context.Context, shipmentID string) (*Shipment, error) {
	return scanOne(r.db.QueryRowContext(ctx, selectColumns+`WHERE shipment_id = $1`, shipmentID))
}

func (r *Repository) Insert(ctx context.Context, tx *sql.Tx, s *Shipment) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO shipments (shipment_id, idempotency_key, saga_id, order_id, customer_id,
		                        status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
	`, s.ShipmentID, s.IdempotencyKey, s.SagaID, s.OrderID, s.CustomerID, string(s.Status), s.CreatedAt)
	if pgerr.IsUniqueViolation(err, "idempotency_key") {
		return sagaerr.Validation(fmt.Errorf("duplicate idempotency key"))
	}
	if err != nil {
		return sagaerr.Terminal(fmt.Errorf("insert shipment: %w", err))
	}
	return nil
}

func (r *Repository) Cancel(ctx context.Context, tx *sql.Tx, orderID, compensationKey string) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE shipments SET status = $2, compensation_key = $3, updated_at = NOW() WHERE order_id = $1
	`, orderID, string(StatusCancelled), compensationKey)
	if err != nil {
		return sagaerr.Terminal(fmt.Errorf("cancel shipment: %w", err))
	}
	return nil
}

const selectColumns = `
	SELECT shipment_id, idempotency_key, compensation_key, saga_id, order_id, customer_id,
	       status, created_at, updated_at
	FROM shipments
`

func scanOne(row *sql.Row) (*Shipment, error) {
	var (
		s            Shipment
		status       string
		compensation sql.NullString
	)
	err := row.Scan(&s.ShipmentID, &s.IdempotencyKey, &compensation, &s.SagaID, &s.OrderID,
		&s.CustomerID, &status, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, sagaerr.Terminal(fmt.Errorf("scan shipment: %w", err))
	}
	if compensation.Valid {
		s.CompensationKey = &compensation.String
	}
	s.Status = Status(status)
	return &s, nil
}
