// Package sagalog implements the Saga Log Store (spec.md §4.1, C1): the
// persistent, durable record of saga progress that every participant
// loads and mutates in place. Grounded on the teacher's repository
// style (infrastructure/repository/order_repository.go) — load, apply,
// save — but backed by plain rows instead of an event stream, per
// SPEC_FULL.md's data model.
package sagalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"saga_fulfillment/internal/pgerr"
	"saga_fulfillment/internal/sagaerr"
	"saga_fulfillment/internal/sagamodel"
)

// ErrDuplicateIdempotencyKey is returned by Save when the idempotency
// key already belongs to a different saga — the distinguished error
// Order uses to detect a retried /order/start (spec.md §4.1).
var ErrDuplicateIdempotencyKey = errors.New("sagalog: idempotency key already in use")

// ErrNotFound is returned by FindByID/FindByIdempotencyKey when no row
// matches.
var ErrNotFound = errors.New("sagalog: saga not found")

// Store is the Saga Log Store. Save and the finder methods accept an
// optional *sql.Tx (querier) so a participant handler can read/mutate
// the saga log in the same local transaction as its own state change
// and outbox append — the critical invariant of spec.md §4.2 extends
// to saga log writes too, since a step transition and the outbox event
// it produces must be atomic together.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// Querier exposes the interface participant repositories use when they
// want to read/write the saga log within their own transaction.
type Querier = querier

// DB returns the underlying *sql.DB for callers that need a plain
// (non-transactional) querier.
func (s *Store) DB() *sql.DB { return s.db }

// FindByIdempotencyKey looks up a saga by its initiation idempotency
// key — used by Order to dedupe saga starts.
func (s *Store) FindByIdempotencyKey(ctx context.Context, q querier, idempotencyKey string) (*sagamodel.SagaLog, error) {
	if q == nil {
		q = s.db
	}
	row := q.QueryRowContext(ctx, `
		SELECT saga_id, idempotency_key, customer_id, product_id, quantity, total_price,
		       order_id, status, steps, created_at
		FROM saga_logs
		WHERE idempotency_key = $1
	`, idempotencyKey)
	return scanSagaLog(row)
}

// FindByID loads a saga by its primary key — used by every participant
// to load and mutate step state.
func (s *Store) FindByID(ctx context.Context, q querier, sagaID string) (*sagamodel.SagaLog, error) {
	if q == nil {
		q = s.db
	}
	row := q.QueryRowContext(ctx, `
		SELECT saga_id, idempotency_key, customer_id, product_id, quantity, total_price,
		       order_id, status, steps, created_at
		FROM saga_logs
		WHERE saga_id = $1
	`, sagaID)
	return scanSagaLog(row)
}

// FindByOrderID loads a saga by the order it produced — used by
// Order.compensate, whose request body carries only {orderId} with no
// sagaLogId (spec.md §6).
func (s *Store) FindByOrderID(ctx context.Context, q querier, orderID string) (*sagamodel.SagaLog, error) {
	if q == nil {
		q = s.db
	}
	row := q.QueryRowContext(ctx, `
		SELECT saga_id, idempotency_key, customer_id, product_id, quantity, total_price,
		       order_id, status, steps, created_at
		FROM saga_logs
		WHERE order_id = $1
	`, orderID)
	return scanSagaLog(row)
}

// Save upserts a SagaLog keyed by saga_id. Inserting a row whose
// idempotency_key collides with an existing, different saga surfaces as
// ErrDuplicateIdempotencyKey.
func (s *Store) Save(ctx context.Context, q querier, log *sagamodel.SagaLog) error {
	if q == nil {
		q = s.db
	}
	stepsJSON, err := json.Marshal(log.Steps)
	if err != nil {
		return sagaerr.Terminal(fmt.Errorf("marshal steps: %w", err))
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO saga_logs (saga_id, idempotency_key, customer_id, product_id, quantity,
		                        total_price, order_id, status, steps, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (saga_id) DO UPDATE SET
			order_id = EXCLUDED.order_id,
			status   = EXCLUDED.status,
			steps    = EXCLUDED.steps
	`, log.SagaID, log.IdempotencyKey, log.CustomerID, log.ProductID, log.Quantity,
		log.TotalPrice, log.OrderID, string(log.Status), stepsJSON, log.CreatedAt)

	if pgerr.IsUniqueViolation(err, "idempotency_key") {
		return ErrDuplicateIdempotencyKey
	}
	if err != nil {
		return sagaerr.Terminal(fmt.Errorf("save saga log: %w", err))
	}
	return nil
}

func scanSagaLog(row *sql.Row) (*sagamodel.SagaLog, error) {
	var (
		log       sagamodel.SagaLog
		status    string
		stepsJSON []byte
		orderID   sql.NullString
	)

	err := row.Scan(&log.SagaID, &log.IdempotencyKey, &log.CustomerID, &log.ProductID,
		&log.Quantity, &log.TotalPrice, &orderID, &status, &stepsJSON, &log.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, sagaerr.Terminal(fmt.Errorf("scan saga log: %w", err))
	}

	if orderID.Valid {
		log.OrderID = &orderID.String
	}
	log.Status = sagamodel.SagaStatus(status)

	if err := json.Unmarshal(stepsJSON, &log.Steps); err != nil {
		return nil, sagaerr.Terminal(fmt.Errorf("unmarshal steps: %w", err))
	}
	return &log, nil
}
