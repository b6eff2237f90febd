// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package usage

import (
	"context"
	"sort"
	"sync"
	"time"

	"axonflow/gateway/gateway/account"
)

// MemoryStore implements Store with in-process state. Settlement debits
// through the in-memory account store so token counters and usage records
// stay in step, mirroring the Postgres transaction.
type MemoryStore struct {
	mu       sync.RWMutex
	accounts *account.MemoryStore
	records  []*Record
	settled  map[string]struct{}
	daily    map[string]*DailyAggregate // date + "|" + account ID
}

// NewMemoryStore creates an in-memory usage store bound to an account store
func NewMemoryStore(accounts *account.MemoryStore) *MemoryStore {
	return &MemoryStore{
		accounts: accounts,
		settled:  make(map[string]struct{}),
		daily:    make(map[string]*DailyAggregate),
	}
}

// Settle applies the record, debit, and aggregate under one lock. A request
// ID that already settled is a no-op.
func (s *MemoryStore) Settle(ctx context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, done := s.settled[rec.RequestID]; done {
		return nil
	}

	if err := s.accounts.Debit(rec.AccountID, rec.Tokens, rec.CreatedAt); err != nil {
		return err
	}

	copied := *rec
	s.records = append(s.records, &copied)
	s.settled[rec.RequestID] = struct{}{}

	key := rec.Day() + "|" + rec.AccountID
	agg, ok := s.daily[key]
	if !ok {
		agg = &DailyAggregate{Date: rec.Day(), AccountID: rec.AccountID}
		s.daily[key] = agg
	}
	agg.AvgLatencySeconds = (agg.AvgLatencySeconds*float64(agg.Requests) + rec.LatencySeconds) / float64(agg.Requests+1)
	agg.Requests++
	agg.Tokens += rec.Tokens
	agg.Cost += rec.Cost

	return nil
}

// RecentRecords returns the account's newest records, most recent first
func (s *MemoryStore) RecentRecords(ctx context.Context, accountID string, limit int) ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var records []*Record
	for i := len(s.records) - 1; i >= 0 && len(records) < limit; i-- {
		if s.records[i].AccountID != accountID {
			continue
		}
		copied := *s.records[i]
		records = append(records, &copied)
	}

	return records, nil
}

// DailyAggregates returns per-day rollups for the trailing window
func (s *MemoryStore) DailyAggregates(ctx context.Context, accountID string, days int) ([]*DailyAggregate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cutoff := time.Now().UTC().AddDate(0, 0, -days).Format("2006-01-02")

	var aggregates []*DailyAggregate
	for _, agg := range s.daily {
		if agg.AccountID != accountID || agg.Date < cutoff {
			continue
		}
		copied := *agg
		aggregates = append(aggregates, &copied)
	}

	sort.Slice(aggregates, func(i, j int) bool {
		return aggregates[i].Date > aggregates[j].Date
	})

	return aggregates, nil
}

// TotalsSince sums traffic across all accounts from the given time
func (s *MemoryStore) TotalsSince(ctx context.Context, since time.Time) (*Totals, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var totals Totals
	for _, rec := range s.records {
		if rec.CreatedAt.Before(since) {
			continue
		}
		totals.Requests++
		totals.Tokens += rec.Tokens
		totals.Cost += rec.Cost
	}

	return &totals, nil
}

// Ping always succeeds for the in-memory store
func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}
