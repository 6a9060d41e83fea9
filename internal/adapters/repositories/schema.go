package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Initialize the Postgres schema for depots, orders and the matrix cache.
func InitSchema(ctx context.Context, db *sql.DB) error {
	if db == nil {
		return errors.New("init schema: DB is nil")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("init schema: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	createDepotsQuery := `
	CREATE TABLE IF NOT EXISTS depots (
		depot_id BIGINT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		lat DOUBLE PRECISION NOT NULL,
		lon DOUBLE PRECISION NOT NULL,
		available_vehicles INTEGER NOT NULL DEFAULT 0,
		vehicle_capacity INTEGER NOT NULL DEFAULT 0
	);
	`

	createOrdersQuery := `
	CREATE TABLE IF NOT EXISTS orders (
		order_id BIGINT PRIMARY KEY,
		depot_id BIGINT NOT NULL REFERENCES depots(depot_id),
		order_number TEXT NOT NULL DEFAULT '',
		customer_name TEXT NOT NULL DEFAULT '',
		lat DOUBLE PRECISION NOT NULL,
		lon DOUBLE PRECISION NOT NULL,
		weight_kg DOUBLE PRECISION,
		volume_m3 DOUBLE PRECISION,
		status TEXT NOT NULL DEFAULT 'pending'
	);
	`

	createMatrixCacheQuery := `
	CREATE TABLE IF NOT EXISTS matrix_cache (
		depot_id BIGINT NOT NULL,
		day TEXT NOT NULL DEFAULT '',
		fingerprint TEXT NOT NULL,
		node_count INTEGER NOT NULL,
		payload BYTEA NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (depot_id, day, fingerprint)
	);
	`

	createIndexQuery := `
	CREATE INDEX IF NOT EXISTS idx_orders_depot_status
	ON orders(depot_id, status);
	`

	statements := []string{
		createDepotsQuery,
		createOrdersQuery,
		createMatrixCacheQuery,
		createIndexQuery,
	}

	for i, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: exec statement #%d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("init schema: commit tx: %w", err)
	}

	return nil
}
