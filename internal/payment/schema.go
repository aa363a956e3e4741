package payment

const Schema = `
CREATE TABLE IF NOT EXISTS payments (
	payment_id       UUID PRIMARY KEY,
	idempotency_key  TEXT NOT NULL UNIQUE,
	compensation_key TEXT,
	saga_id          UUID NOT NULL,
	order_id         UUID NOT NULL,
	customer_id      TEXT NOT NULL,
	amount           NUMERIC NOT NULL,
	status           TEXT NOT NULL,
	failure_reason   TEXT,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`
