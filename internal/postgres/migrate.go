package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema is applied statement by statement; every statement is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS products (
		id              TEXT PRIMARY KEY,
		name            TEXT NOT NULL,
		description     TEXT NOT NULL DEFAULT '',
		price_cents     INTEGER NOT NULL CHECK (price_cents >= 0),
		available_stock INTEGER NOT NULL DEFAULT 0 CHECK (available_stock >= 0),
		reserved_stock  INTEGER NOT NULL DEFAULT 0 CHECK (reserved_stock >= 0),
		created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id          TEXT PRIMARY KEY,
		user_id     TEXT NOT NULL,
		status      TEXT NOT NULL CHECK (status IN ('PENDING_PAYMENT','PAID','SHIPPED','DELIVERED','CANCELLED')),
		total_cents INTEGER NOT NULL CHECK (total_cents >= 0),
		created_at  TIMESTAMPTZ NOT NULL,
		updated_at  TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS orders_user_created_idx ON orders (user_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS orders_status_created_idx ON orders (status, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS orders_pending_created_idx ON orders (created_at) WHERE status = 'PENDING_PAYMENT'`,
	`CREATE TABLE IF NOT EXISTS order_items (
		order_id                TEXT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
		line_no                 INTEGER NOT NULL,
		product_id              TEXT NOT NULL REFERENCES products(id),
		quantity                INTEGER NOT NULL CHECK (quantity > 0),
		price_at_purchase_cents INTEGER NOT NULL CHECK (price_at_purchase_cents >= 0),
		PRIMARY KEY (order_id, line_no)
	)`,
	`CREATE TABLE IF NOT EXISTS payments (
		id             TEXT PRIMARY KEY,
		order_id       TEXT NOT NULL UNIQUE REFERENCES orders(id),
		transaction_id TEXT NOT NULL UNIQUE,
		amount_cents   INTEGER NOT NULL CHECK (amount_cents >= 0),
		status         TEXT NOT NULL CHECK (status IN ('SUCCESS','FAILED')),
		created_at     TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS carts (
		user_id    TEXT PRIMARY KEY,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS cart_items (
		user_id    TEXT NOT NULL REFERENCES carts(user_id) ON DELETE CASCADE,
		product_id TEXT NOT NULL REFERENCES products(id),
		quantity   INTEGER NOT NULL CHECK (quantity > 0),
		added_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (user_id, product_id)
	)`,
}

func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for i, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate step %d: %w", i+1, err)
		}
	}
	return nil
}
