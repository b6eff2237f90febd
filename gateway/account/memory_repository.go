// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package account

import (
	"context"
	"sync"
	"time"
)

// MemoryStore implements Store with in-process maps. It backs local
// development and tests when no database is configured.
type MemoryStore struct {
	mu       sync.RWMutex
	accounts map[string]*Account
	byKey    map[string]string // api key hash -> account ID
}

// NewMemoryStore creates an empty in-memory account store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts: make(map[string]*Account),
		byKey:    make(map[string]string),
	}
}

// GetByAPIKey resolves the account owning the opaque credential
func (s *MemoryStore) GetByAPIKey(ctx context.Context, apiKey string) (*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byKey[HashAPIKey(apiKey)]
	if !ok {
		return nil, ErrNotFound
	}

	acct := s.accounts[id]
	if !acct.Active {
		return nil, ErrInactive
	}

	copied := *acct
	return &copied, nil
}

// GetByID retrieves an account by its identifier
func (s *MemoryStore) GetByID(ctx context.Context, id string) (*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acct, ok := s.accounts[id]
	if !ok {
		return nil, ErrNotFound
	}

	copied := *acct
	return &copied, nil
}

// Admit applies the billing-period rollover when due, then evaluates the
// quota gate against the post-rollover counters under a single lock.
func (s *MemoryStore) Admit(ctx context.Context, accountID string, now time.Time) (*Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[accountID]
	if !ok {
		return nil, ErrNotFound
	}

	if acct.PeriodEnd.Before(now) {
		acct.TokensUsed = 0
		acct.PeriodEnd = now.Add(PeriodLength)
		acct.UpdatedAt = now
	}

	if !acct.Active {
		return nil, ErrInactive
	}

	if acct.TokensUsed >= acct.TokensIncluded {
		return nil, ErrQuotaExceeded
	}

	copied := *acct
	return &copied, nil
}

// Debit adds consumed tokens to the account's running counter. The usage
// store calls this while settling a call so billed and recorded totals
// move together.
func (s *MemoryStore) Debit(accountID string, tokens int64, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[accountID]
	if !ok {
		return ErrNotFound
	}

	acct.TokensUsed += tokens
	acct.UpdatedAt = now
	return nil
}

// ApplyPlanChange sets the account's tier and quota ceiling
func (s *MemoryStore) ApplyPlanChange(ctx context.Context, accountID, tier string, tokensIncluded int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[accountID]
	if !ok {
		return ErrNotFound
	}

	acct.Tier = tier
	acct.TokensIncluded = tokensIncluded
	acct.UpdatedAt = time.Now().UTC()
	return nil
}

// Create inserts a new account with its credential
func (s *MemoryStore) Create(ctx context.Context, acct *Account, apiKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	hash := HashAPIKey(apiKey)
	if _, ok := s.accounts[acct.ID]; ok {
		return ErrDuplicate
	}
	if _, ok := s.byKey[hash]; ok {
		return ErrDuplicate
	}

	copied := *acct
	s.accounts[acct.ID] = &copied
	s.byKey[hash] = acct.ID
	return nil
}

// Count returns the number of accounts
func (s *MemoryStore) Count(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return int64(len(s.accounts)), nil
}

// Ping always succeeds for the in-memory store
func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}
