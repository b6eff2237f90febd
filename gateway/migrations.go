// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package gateway

import (
	"database/sql"
	"fmt"
)

// migrations holds the gateway schema. Statements are idempotent so a
// restart can always re-run the full list.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS accounts (
		id              TEXT PRIMARY KEY,
		email           TEXT UNIQUE NOT NULL,
		api_key_hash    TEXT UNIQUE NOT NULL,
		tier            TEXT NOT NULL,
		tokens_included BIGINT NOT NULL,
		tokens_used     BIGINT NOT NULL DEFAULT 0,
		period_end      TIMESTAMPTZ NOT NULL,
		active          BOOLEAN NOT NULL DEFAULT TRUE,
		admin           BOOLEAN NOT NULL DEFAULT FALSE,
		created_at      TIMESTAMPTZ NOT NULL,
		updated_at      TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS usage_records (
		request_id      TEXT PRIMARY KEY,
		account_id      TEXT NOT NULL,
		provider        TEXT NOT NULL,
		model           TEXT NOT NULL,
		tokens          BIGINT NOT NULL,
		cost            DOUBLE PRECISION NOT NULL,
		endpoint        TEXT NOT NULL,
		latency_seconds DOUBLE PRECISION NOT NULL,
		created_at      TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_usage_records_account_created
		ON usage_records (account_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS daily_aggregates (
		date                DATE NOT NULL,
		account_id          TEXT NOT NULL,
		requests            BIGINT NOT NULL,
		tokens              BIGINT NOT NULL,
		cost                DOUBLE PRECISION NOT NULL,
		avg_latency_seconds DOUBLE PRECISION NOT NULL,
		PRIMARY KEY (date, account_id)
	)`,
}

// runMigrations applies the schema statements in order.
func runMigrations(db *sql.DB) error {
	for i, stmt := range migrations {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
