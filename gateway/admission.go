// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package gateway

import (
	"context"
	"time"

	"axonflow/gateway/gateway/account"
)

// Resolve runs the first two admission checks: authenticate the credential,
// then apply the account tier's hourly rate limit. The threshold comes from
// the plan table on every call, so a plan change takes effect on the next
// request. Tiers missing from the table get DefaultRateLimit.
func (s *Service) Resolve(ctx context.Context, apiKey string) (*account.Account, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	acct, err := s.accounts.GetByAPIKey(ctx, apiKey)
	if err != nil {
		return nil, err
	}

	limit := DefaultRateLimit
	if plan, ok := s.plans.Lookup(acct.Tier); ok {
		limit = plan.RateLimitPerHour
	}
	if err := s.limiter.Allow(ctx, acct.ID, limit); err != nil {
		return nil, err
	}

	return acct, nil
}

// Admit runs the final admission check: apply the billing-period rollover
// if one is due, then evaluate the token quota. Returns the post-rollover
// snapshot whose TokensUsed feeds the response's period-to-date figures.
func (s *Service) Admit(ctx context.Context, accountID string, now time.Time) (*account.Account, error) {
	return s.accounts.Admit(ctx, accountID, now)
}
