// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package usage

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// PostgresStore implements Store using PostgreSQL
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL usage store
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Settle writes the record, debits the account, and folds the call into the
// daily aggregate inside one transaction. The record insert is the
// idempotency gate: when the request ID already settled, the remaining
// steps are skipped and the call reports success.
func (s *PostgresStore) Settle(ctx context.Context, rec *Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin settlement: %w", err)
	}
	defer tx.Rollback()

	insertRecord := `
		INSERT INTO usage_records (
			request_id, account_id, provider, model, tokens, cost,
			endpoint, latency_seconds, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (request_id) DO NOTHING
	`

	result, err := tx.ExecContext(ctx, insertRecord,
		rec.RequestID, rec.AccountID, rec.Provider, rec.Model,
		rec.Tokens, rec.Cost, rec.Endpoint, rec.LatencySeconds, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert usage record: %w", err)
	}

	inserted, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check settlement state: %w", err)
	}
	if inserted == 0 {
		// A previous attempt already settled this request.
		return tx.Commit()
	}

	debit := `
		UPDATE accounts
		SET tokens_used = tokens_used + $2, updated_at = $3
		WHERE id = $1
	`

	if _, err := tx.ExecContext(ctx, debit, rec.AccountID, rec.Tokens, rec.CreatedAt); err != nil {
		return fmt.Errorf("failed to debit account: %w", err)
	}

	upsertAggregate := `
		INSERT INTO daily_aggregates (date, account_id, requests, tokens, cost, avg_latency_seconds)
		VALUES ($1, $2, 1, $3, $4, $5)
		ON CONFLICT (date, account_id) DO UPDATE SET
			requests = daily_aggregates.requests + 1,
			tokens = daily_aggregates.tokens + EXCLUDED.tokens,
			cost = daily_aggregates.cost + EXCLUDED.cost,
			avg_latency_seconds = (daily_aggregates.avg_latency_seconds * daily_aggregates.requests + EXCLUDED.avg_latency_seconds) / (daily_aggregates.requests + 1)
	`

	if _, err := tx.ExecContext(ctx, upsertAggregate,
		rec.Day(), rec.AccountID, rec.Tokens, rec.Cost, rec.LatencySeconds,
	); err != nil {
		return fmt.Errorf("failed to update daily aggregate: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit settlement: %w", err)
	}

	return nil
}

// RecentRecords returns the account's newest records, most recent first
func (s *PostgresStore) RecentRecords(ctx context.Context, accountID string, limit int) ([]*Record, error) {
	query := `
		SELECT request_id, account_id, provider, model, tokens, cost,
		       endpoint, latency_seconds, created_at
		FROM usage_records
		WHERE account_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := s.db.QueryContext(ctx, query, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query usage records: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(
			&rec.RequestID, &rec.AccountID, &rec.Provider, &rec.Model,
			&rec.Tokens, &rec.Cost, &rec.Endpoint, &rec.LatencySeconds,
			&rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan usage record: %w", err)
		}
		records = append(records, &rec)
	}

	return records, rows.Err()
}

// DailyAggregates returns per-day rollups for the trailing window
func (s *PostgresStore) DailyAggregates(ctx context.Context, accountID string, days int) ([]*DailyAggregate, error) {
	query := `
		SELECT date::text, account_id, requests, tokens, cost, avg_latency_seconds
		FROM daily_aggregates
		WHERE account_id = $1 AND date >= CURRENT_DATE - $2::int
		ORDER BY date DESC
	`

	rows, err := s.db.QueryContext(ctx, query, accountID, days)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily aggregates: %w", err)
	}
	defer rows.Close()

	var aggregates []*DailyAggregate
	for rows.Next() {
		var agg DailyAggregate
		if err := rows.Scan(
			&agg.Date, &agg.AccountID, &agg.Requests, &agg.Tokens,
			&agg.Cost, &agg.AvgLatencySeconds,
		); err != nil {
			return nil, fmt.Errorf("failed to scan daily aggregate: %w", err)
		}
		aggregates = append(aggregates, &agg)
	}

	return aggregates, rows.Err()
}

// TotalsSince sums traffic across all accounts from the given time
func (s *PostgresStore) TotalsSince(ctx context.Context, since time.Time) (*Totals, error) {
	query := `
		SELECT COUNT(*), COALESCE(SUM(tokens), 0), COALESCE(SUM(cost), 0)
		FROM usage_records
		WHERE created_at >= $1
	`

	var totals Totals
	err := s.db.QueryRowContext(ctx, query, since).Scan(
		&totals.Requests, &totals.Tokens, &totals.Cost,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query usage totals: %w", err)
	}

	return &totals, nil
}

// Ping checks the database connection
func (s *PostgresStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.db.PingContext(ctx)
}
