// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package usage

import "time"

// Record is one settled API call. Records are immutable once written;
// RequestID is the idempotency key for settlement retries.
type Record struct {
	RequestID      string    `json:"request_id"`
	AccountID      string    `json:"account_id"`
	Provider       string    `json:"provider"`
	Model          string    `json:"model"`
	Tokens         int64     `json:"tokens"`
	Cost           float64   `json:"cost"`
	Endpoint       string    `json:"endpoint"`
	LatencySeconds float64   `json:"latency_seconds"`
	CreatedAt      time.Time `json:"created_at"`
}

// Day returns the UTC calendar date the record aggregates under.
func (r *Record) Day() string {
	return r.CreatedAt.UTC().Format("2006-01-02")
}

// DailyAggregate is a per-account, per-day rollup. AvgLatencySeconds is a
// simple running average over the day's calls.
type DailyAggregate struct {
	Date              string  `json:"date"`
	AccountID         string  `json:"account_id"`
	Requests          int64   `json:"requests"`
	Tokens            int64   `json:"tokens"`
	Cost              float64 `json:"cost"`
	AvgLatencySeconds float64 `json:"avg_latency_seconds"`
}

// Totals summarizes traffic across all accounts since a point in time.
type Totals struct {
	Requests int64   `json:"requests"`
	Tokens   int64   `json:"tokens"`
	Cost     float64 `json:"cost"`
}
