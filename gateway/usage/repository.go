// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package usage

import (
	"context"
	"time"
)

// Store persists usage records and their derived views.
type Store interface {
	// Settle applies a completed call's bookkeeping atomically: the usage
	// record, the account's token debit, and the daily aggregate. Calling
	// Settle again with the same RequestID is a no-op, so callers retry
	// freely on failure.
	Settle(ctx context.Context, rec *Record) error

	// RecentRecords returns the account's newest records, most recent first.
	RecentRecords(ctx context.Context, accountID string, limit int) ([]*Record, error)

	// DailyAggregates returns the account's per-day rollups for the last
	// given number of days, most recent first.
	DailyAggregates(ctx context.Context, accountID string, days int) ([]*DailyAggregate, error)

	// TotalsSince sums requests, tokens, and cost across all accounts for
	// records created at or after the given time.
	TotalsSince(ctx context.Context, since time.Time) (*Totals, error)

	// Ping verifies the backing store is reachable.
	Ping(ctx context.Context) error
}
