package payment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"saga_fulfillment/internal/pgerr"
	"saga_fulfillment/internal/sagaerr"
)

var ErrNotFound = errors.New("payment: not found")

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) FindByIdempotencyKey(ctx context.Context, idempotencyKey string) (*Payment, error) {
	return scanOne(r.db.QueryRowContext(ctx, selectColumns+`WHERE idempotency_key = $1`, idempotencyKey))
}

func (r *Repository) FindByOrderID(ctx context.Context, orderID string) (*Payment, error) {
	return scanOne(r.db.QueryRowContext(ctx, selectColumns+`WHERE order_id = $1`, orderID))
}

func (r *Repository) FindByID(ctx context.Context, paymentID string) (*Payment, error) {
	return scanOne(r.db.QueryRowContext(ctx, selectColumns+`WHERE payment_id = $1`, paymentID))
}

func (r *Repository) Insert(ctx context.Context, tx *sql.Tx, p *Payment) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO payments (payment_id, idempotency_key, saga_id, order_id, customer_id,
		                       amount, status, failure_reason, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
	`, p.PaymentID, p.IdempotencyKey, p.SagaID, p.OrderID, p.CustomerID, p.Amount,
		string(p.Status), p.FailureReason, p.CreatedAt)
	if pgerr.IsUniqueViolation(err, "idempotency_key") {
		return sagaerr.Validation(fmt.Errorf("duplicate idempotency key"))
	}
	if err != nil {
		return sagaerr.Terminal(fmt.Errorf("insert payment: %w", err))
	}
	return nil
}

func (r *Repository) Refund(ctx context.Context, tx *sql.Tx, orderID, compensationKey string) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE payments SET status = $2, compensation_key = $3, updated_at = NOW() WHERE order_id = $1
	`, orderID, string(StatusRefunded), compensationKey)
	if err != nil {
		return sagaerr.Terminal(fmt.Errorf("refund payment: %w", err))
	}
	return nil
}

const selectColumns = `
	SELECT payment_id, idempotency_key, compensation_key, saga_id, order_id, customer_id,
	       amount, status, failure_reason, created_at, updated_at
	FROM payments
`

func scanOne(row *sql.Row) (*Payment, error) {
	var (
		p             Payment
		status        string
		compensation  sql.NullString
		failureReason sql.NullString
	)
	err := row.Scan(&p.PaymentID, &p.IdempotencyKey, &compensation, &p.SagaID, &p.OrderID,
		&p.CustomerID, &p.Amount, &status, &failureReason, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, sagaerr.Terminal(fmt.Errorf("scan payment: %w", err))
	}
	if compensation.Valid {
		p.CompensationKey = &compensation.String
	}
	if failureReason.Valid {
		p.FailureReason = &failureReason.String
	}
	p.Status = Status(status)
	return &p, nil
}
