// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package account

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestRemainingQuota tests that the remaining balance never goes negative.
func TestRemainingQuota(t *testing.T) {
	tests := []struct {
		name     string
		included int64
		used     int64
		want     int64
	}{
		{"unused", 100000, 0, 100000},
		{"partially used", 100000, 2500, 97500},
		{"fully used", 100000, 100000, 0},
		{"overshot by final call", 100000, 100450, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acct := &Account{TokensIncluded: tt.included, TokensUsed: tt.used}
			assert.Equal(t, tt.want, acct.RemainingQuota())
		})
	}
}

// TestQuotaPercentage tests the consumption ratio, capped at 100.
func TestQuotaPercentage(t *testing.T) {
	tests := []struct {
		name     string
		included int64
		used     int64
		want     float64
	}{
		{"unused", 100000, 0, 0},
		{"quarter used", 100000, 25000, 25},
		{"fully used", 100000, 100000, 100},
		{"overshot capped", 100000, 120000, 100},
		{"zero ceiling", 0, 0, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acct := &Account{TokensIncluded: tt.included, TokensUsed: tt.used}
			assert.InDelta(t, tt.want, acct.QuotaPercentage(), 0.0001)
		})
	}
}

// TestHashAPIKey tests that hashing is deterministic and collision-sensitive.
func TestHashAPIKey(t *testing.T) {
	h1 := HashAPIKey("demo_fe01ce2a7fbac8fa")
	h2 := HashAPIKey("demo_fe01ce2a7fbac8fa")
	h3 := HashAPIKey("demo_fe01ce2a7fbac8fb")

	assert.Len(t, h1, 64)
	assert.Equal(t, h1, h2)
	assert.NotEqual(t, h1, h3)
}
