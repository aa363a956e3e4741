package outbox

// Schema is the DDL for the single, physically-shared outbox_events
// table (SPEC_FULL.md §13: "Outbox table is physically shared,
// logically partitioned"). owner_service scopes each service's
// publisher to the rows it appended; target_service/target_endpoint
// carry the routing the publisher dispatches on.
const Schema = `
CREATE TABLE IF NOT EXISTS outbox_events (
	id               UUID PRIMARY KEY,
	aggregate_id     TEXT NOT NULL,
	event_type       TEXT NOT NULL,
	payload          JSONB NOT NULL,
	target_service   TEXT NOT NULL,
	target_endpoint  TEXT NOT NULL,
	owner_service    TEXT NOT NULL,
	is_published     BOOLEAN NOT NULL DEFAULT FALSE,
	publish_attempts INTEGER NOT NULL DEFAULT 0,
	max_retries      INTEGER NOT NULL DEFAULT 3,
	last_error       TEXT,
	published_at     TIMESTAMPTZ,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_outbox_owner_unpublished
	ON outbox_events (owner_service, is_published);
`
