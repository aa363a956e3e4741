package shipping

const Schema = `
CREATE TABLE IF NOT EXISTS shipments (
	shipment_id      UUID PRIMARY KEY,
	idempotency_key  TEXT NOT NULL UNIQUE,
	compensation_key TEXT,
	saga_id          UUID NOT NULL,
	order_id         UUID NOT NULL,
	customer_id      TEXT NOT NULL,
	status           TEXT NOT NULL,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`
