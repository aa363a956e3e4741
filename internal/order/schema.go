package order

// Schema is the DDL for the orders table (spec.md §3 "Participant
// records"). Rows are created on the first successful /order/start call
// keyed by idempotency_key and updated in place on compensation; never
// deleted.
const Schema = `
CREATE TABLE IF NOT EXISTS orders (
	order_id         UUID PRIMARY KEY,
	idempotency_key  UUID NOT NULL UNIQUE,
	compensation_key UUID,
	saga_id          UUID NOT NULL,
	customer_id      TEXT NOT NULL,
	product_id       TEXT NOT NULL,
	quantity         INTEGER NOT NULL,
	total_price      NUMERIC NOT NULL,
	status           TEXT NOT NULL,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`
