package sagalog

// Schema is the DDL for the saga_logs table, owned logically by the
// Order service but readable/writable by every participant to advance
// step state (spec.md §4.1, §3). Every service runs this at startup
// with CREATE TABLE IF NOT EXISTS, the same "regenerate the schema from
// §3" approach §9 calls for in place of the source's invalid SQL.
const Schema = `
CREATE TABLE IF NOT EXISTS saga_logs (
	saga_id         UUID PRIMARY KEY,
	idempotency_key UUID NOT NULL UNIQUE,
	customer_id     TEXT NOT NULL,
	product_id      TEXT NOT NULL,
	quantity        INTEGER NOT NULL,
	total_price     NUMERIC NOT NULL,
	order_id        UUID,
	status          TEXT NOT NULL,
	steps           JSONB NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`
