package inventory

const Schema = `
CREATE TABLE IF NOT EXISTS inventory_items (
	product_id        TEXT PRIMARY KEY,
	quantity          INTEGER NOT NULL,
	reserved_quantity INTEGER NOT NULL DEFAULT 0,
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS inventory_reservations (
	reservation_id   UUID PRIMARY KEY,
	idempotency_key  TEXT NOT NULL UNIQUE,
	compensation_key TEXT,
	saga_id          UUID NOT NULL,
	order_id         UUID NOT NULL,
	product_id       TEXT NOT NULL,
	quantity         INTEGER NOT NULL,
	status           TEXT NOT NULL,
	failure_reason   TEXT,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`
