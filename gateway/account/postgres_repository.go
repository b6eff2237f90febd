// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package account

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// PostgresStore implements Store using PostgreSQL
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL account store
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const accountColumns = `id, email, tier, tokens_included, tokens_used, period_end, active, admin, created_at, updated_at`

// GetByAPIKey resolves the account owning the opaque credential
func (s *PostgresStore) GetByAPIKey(ctx context.Context, apiKey string) (*Account, error) {
	query := `
		SELECT ` + accountColumns + `
		FROM accounts
		WHERE api_key_hash = $1
	`

	acct, err := s.scanAccount(s.db.QueryRowContext(ctx, query, HashAPIKey(apiKey)))
	if err != nil {
		return nil, err
	}

	if !acct.Active {
		return nil, ErrInactive
	}

	return acct, nil
}

// GetByID retrieves an account by its identifier
func (s *PostgresStore) GetByID(ctx context.Context, id string) (*Account, error) {
	query := `
		SELECT ` + accountColumns + `
		FROM accounts
		WHERE id = $1
	`

	return s.scanAccount(s.db.QueryRowContext(ctx, query, id))
}

// Admit applies the billing-period rollover when due, then evaluates the
// quota gate against the post-rollover counters. The rollover UPDATE is a
// single atomic statement keyed on the stale boundary, so concurrent
// requests apply it at most once and the gate never sees a stale period.
func (s *PostgresStore) Admit(ctx context.Context, accountID string, now time.Time) (*Account, error) {
	rollover := `
		UPDATE accounts
		SET tokens_used = 0, period_end = $2, updated_at = $3
		WHERE id = $1 AND period_end < $3
	`

	if _, err := s.db.ExecContext(ctx, rollover, accountID, now.Add(PeriodLength), now); err != nil {
		return nil, fmt.Errorf("failed to apply period rollover: %w", err)
	}

	acct, err := s.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}

	if !acct.Active {
		return nil, ErrInactive
	}

	if acct.TokensUsed >= acct.TokensIncluded {
		return nil, ErrQuotaExceeded
	}

	return acct, nil
}

// ApplyPlanChange sets the account's tier and quota ceiling
func (s *PostgresStore) ApplyPlanChange(ctx context.Context, accountID, tier string, tokensIncluded int64) error {
	query := `
		UPDATE accounts
		SET tier = $2, tokens_included = $3, updated_at = $4
		WHERE id = $1
	`

	result, err := s.db.ExecContext(ctx, query, accountID, tier, tokensIncluded, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to apply plan change: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check plan change result: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// Create inserts a new account with its credential
func (s *PostgresStore) Create(ctx context.Context, acct *Account, apiKey string) error {
	query := `
		INSERT INTO accounts (
			id, email, api_key_hash, tier, tokens_included, tokens_used,
			period_end, active, admin, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := s.db.ExecContext(ctx, query,
		acct.ID, acct.Email, HashAPIKey(apiKey), acct.Tier,
		acct.TokensIncluded, acct.TokensUsed, acct.PeriodEnd,
		acct.Active, acct.Admin, acct.CreatedAt, acct.UpdatedAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create account: %w", err)
	}

	return nil
}

// Count returns the number of accounts
func (s *PostgresStore) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM accounts`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count accounts: %w", err)
	}
	return count, nil
}

// Ping verifies the database is reachable
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (s *PostgresStore) scanAccount(row rowScanner) (*Account, error) {
	var acct Account
	err := row.Scan(
		&acct.ID, &acct.Email, &acct.Tier, &acct.TokensIncluded,
		&acct.TokensUsed, &acct.PeriodEnd, &acct.Active, &acct.Admin,
		&acct.CreatedAt, &acct.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan account: %w", err)
	}

	return &acct, nil
}
