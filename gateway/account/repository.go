// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package account

import (
	"context"
	"time"
)

// Store is the Account Store abstraction injected into the gateway.
// Implementations must serialize mutations per account so concurrent
// requests never lose a quota update.
type Store interface {
	// GetByAPIKey resolves the account owning the opaque credential.
	// Returns ErrNotFound for unknown keys and ErrInactive for
	// deactivated accounts.
	GetByAPIKey(ctx context.Context, apiKey string) (*Account, error)

	// GetByID retrieves an account by its identifier.
	GetByID(ctx context.Context, id string) (*Account, error)

	// Admit applies the billing-period rollover if now is past the
	// account's boundary, then evaluates the quota gate, and returns the
	// post-rollover snapshot. Returns ErrQuotaExceeded when period usage
	// has reached the ceiling. The rollover is atomic per account and
	// always happens before the gate is evaluated.
	Admit(ctx context.Context, accountID string, now time.Time) (*Account, error)

	// ApplyPlanChange sets the account's tier and quota ceiling. The
	// gateway trusts the event; payment validation happens upstream.
	ApplyPlanChange(ctx context.Context, accountID, tier string, tokensIncluded int64) error

	// Create inserts a new account with its credential. Used by
	// provisioning glue and demo seeding.
	Create(ctx context.Context, acct *Account, apiKey string) error

	// Count returns the number of accounts.
	Count(ctx context.Context) (int64, error)

	// Ping verifies the store is reachable.
	Ping(ctx context.Context) error
}
