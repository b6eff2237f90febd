// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package gateway

import (
	"context"
	"sync"
	"time"
)

// rateLimitWindow is the counting window for per-account request limits.
const rateLimitWindow = time.Hour

// DefaultRateLimit is the requests-per-hour threshold applied when an
// account's tier is missing from the plan table.
const DefaultRateLimit = 100

// Limiter admits or denies requests per account. Allow counts the request
// and returns a *RateLimitError once the account holds more than limit
// requests in the current window. The threshold is resolved by the caller
// on every request, so a plan change takes effect immediately. Denied
// requests still count toward the window.
type Limiter interface {
	Allow(ctx context.Context, accountID string, limit int) error
}

type windowEntry struct {
	count   int64
	resetAt time.Time
}

// MemoryLimiter is a fixed-window in-process limiter. It is the fallback
// when Redis is not configured; counts are per instance, so multi-instance
// deployments should use the Redis limiter.
type MemoryLimiter struct {
	mu      sync.Mutex
	window  time.Duration
	entries map[string]*windowEntry
}

// NewMemoryLimiter creates an in-memory limiter with the standard hourly
// window.
func NewMemoryLimiter() *MemoryLimiter {
	return newMemoryLimiter(rateLimitWindow)
}

func newMemoryLimiter(window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		window:  window,
		entries: make(map[string]*windowEntry),
	}
}

// Allow counts the request against the account's current window and denies
// once the count exceeds limit. A fresh window starts when the previous one
// expires.
func (l *MemoryLimiter) Allow(ctx context.Context, accountID string, limit int) error {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.entries[accountID]
	if !ok || now.After(entry.resetAt) {
		entry = &windowEntry{resetAt: now.Add(l.window)}
		l.entries[accountID] = entry
	}

	entry.count++
	if entry.count > int64(limit) {
		return &RateLimitError{
			Count:      entry.count,
			Limit:      limit,
			RetryAfter: time.Until(entry.resetAt),
		}
	}
	return nil
}
