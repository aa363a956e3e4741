// Package outbox implements the Outbox Store (C2) and Outbox Publisher
// (C3) from spec.md §4.2-4.3. The store's Append is grounded on the
// teacher's transactional-outbox intent (cmd/main.go wires a publisher
// reading the same table the handlers write to); FindUnpublished's
// locking is grounded on the other_examples baechuer-real-time-ressys
// outbox worker's "FOR UPDATE SKIP LOCKED" claim query.
package outbox

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"saga_fulfillment/internal/sagaerr"
	"saga_fulfillment/internal/sagamodel"
)

// Store is the per-service outbox table accessor, scoped to one
// ownerService.
type Store struct {
	db           *sql.DB
	ownerService sagamodel.TargetService
}

func New(db *sql.DB, owner sagamodel.TargetService) *Store {
	return &Store{db: db, ownerService: owner}
}

// Append inserts a new outbox event within tx — the caller's local
// transaction that also writes the state-change row. This is the
// critical invariant of spec.md §4.2: if either write fails, both fail.
func (s *Store) Append(ctx context.Context, tx *sql.Tx, event sagamodel.OutboxEvent) error {
	if event.MaxRetries == 0 {
		event.MaxRetries = 3
	}
	event.OwnerService = s.ownerService

	_, err := tx.ExecContext(ctx, `
		INSERT INTO outbox_events (id, aggregate_id, event_type, payload, target_service,
		                            target_endpoint, owner_service, is_published,
		                            publish_attempts, max_retries, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, FALSE, 0, $8, $9)
	`, event.ID, event.AggregateID, string(event.EventType), []byte(event.Payload),
		string(event.TargetService), event.TargetEndpoint, string(event.OwnerService),
		event.MaxRetries, event.CreatedAt)
	if err != nil {
		return sagaerr.Terminal(fmt.Errorf("append outbox event: %w", err))
	}
	return nil
}

// FindUnpublished returns up to batchSize unpublished, not-yet-exhausted
// events owned by this service, oldest first, scanned with
// FOR UPDATE SKIP LOCKED (§9's flagged upgrade over the teacher's
// lock-free scan). The row locks last only for the scan's own
// transaction, which commits before the events are dispatched, so a
// second publisher process that scans after that commit can pick up the
// same rows.
func (s *Store) FindUnpublished(ctx context.Context, batchSize int) ([]sagamodel.OutboxEvent, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, sagaerr.Transient(fmt.Errorf("begin outbox scan: %w", err))
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, `
		SELECT id, aggregate_id, event_type, payload, target_service, target_endpoint,
		       owner_service, is_published, publish_attempts, max_retries, last_error,
		       published_at, created_at
		FROM outbox_events
		WHERE owner_service = $1 AND is_published = FALSE AND publish_attempts < max_retries
		ORDER BY created_at ASC
		LIMIT $2
		FOR UPDATE SKIP LOCKED
	`, string(s.ownerService), batchSize)
	if err != nil {
		return nil, sagaerr.Transient(fmt.Errorf("scan outbox: %w", err))
	}

	events, err := scanEvents(rows)
	rows.Close()
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, sagaerr.Transient(fmt.Errorf("commit outbox scan: %w", err))
	}
	return events, nil
}

// Save updates the publish metadata (publish_attempts, last_error,
// published_at, is_published) of a single event. This is the only kind
// of write the publisher ever performs.
func (s *Store) Save(ctx context.Context, event sagamodel.OutboxEvent) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE outbox_events
		SET is_published = $2, publish_attempts = $3, last_error = $4, published_at = $5
		WHERE id = $1
	`, event.ID, event.IsPublished, event.PublishAttempts, event.LastError, event.PublishedAt)
	if err != nil {
		return sagaerr.Transient(fmt.Errorf("save outbox event: %w", err))
	}
	return nil
}

// FindTerminallyFailed lists events that exhausted their retry budget —
// the operator-visible surface SPEC_FULL.md §12 adds at
// GET /api/v1/outbox/failed.
func (s *Store) FindTerminallyFailed(ctx context.Context) ([]sagamodel.OutboxEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, aggregate_id, event_type, payload, target_service, target_endpoint,
		       owner_service, is_published, publish_attempts, max_retries, last_error,
		       published_at, created_at
		FROM outbox_events
		WHERE owner_service = $1 AND is_published = FALSE AND publish_attempts >= max_retries
		ORDER BY created_at ASC
	`, string(s.ownerService))
	if err != nil {
		return nil, sagaerr.Transient(fmt.Errorf("scan terminally failed outbox events: %w", err))
	}
	defer rows.Close()
	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]sagamodel.OutboxEvent, error) {
	var events []sagamodel.OutboxEvent
	for rows.Next() {
		var (
			e               sagamodel.OutboxEvent
			eventType       string
			targetService   string
			ownerService    string
			payload         []byte
			lastError       sql.NullString
			publishedAt     sql.NullTime
		)
		if err := rows.Scan(&e.ID, &e.AggregateID, &eventType, &payload, &targetService,
			&e.TargetEndpoint, &ownerService, &e.IsPublished, &e.PublishAttempts,
			&e.MaxRetries, &lastError, &publishedAt, &e.CreatedAt); err != nil {
			return nil, sagaerr.Terminal(fmt.Errorf("scan outbox event: %w", err))
		}
		e.EventType = sagamodel.EventType(eventType)
		e.TargetService = sagamodel.TargetService(targetService)
		e.OwnerService = sagamodel.TargetService(ownerService)
		e.Payload = json.RawMessage(payload)
		if lastError.Valid {
			e.LastError = &lastError.String
		}
		if publishedAt.Valid {
			t := publishedAt.Time
			e.PublishedAt = &t
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, sagaerr.Terminal(fmt.Errorf("iterate outbox rows: %w", err))
	}
	return events, nil
}
