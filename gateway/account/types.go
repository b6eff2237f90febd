// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package account

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Built-in subscription tiers. Custom tier names are allowed; they resolve
// through the plan table or fall back to defaults.
const (
	TierFree       = "free"
	TierStarter    = "starter"
	TierPro        = "pro"
	TierEnterprise = "enterprise"
)

// PeriodLength is the fixed billing-period window. When a request arrives
// past PeriodEnd, usage resets and a new boundary is set this far ahead.
const PeriodLength = 30 * 24 * time.Hour

// Account is the durable per-account record. TokensUsed only grows within
// a period and may exceed TokensIncluded by at most one in-flight call's
// tokens. The credential itself is never stored, only its SHA-256 hash.
type Account struct {
	ID             string    `json:"id"`
	Email          string    `json:"email"`
	Tier           string    `json:"tier"`
	TokensIncluded int64     `json:"tokens_included"`
	TokensUsed     int64     `json:"tokens_used"`
	PeriodEnd      time.Time `json:"period_end"`
	Active         bool      `json:"active"`
	Admin          bool      `json:"admin"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// RemainingQuota returns the unused tokens for the current period, never
// negative even when usage overshot the ceiling.
func (a *Account) RemainingQuota() int64 {
	remaining := a.TokensIncluded - a.TokensUsed
	if remaining < 0 {
		return 0
	}
	return remaining
}

// QuotaPercentage returns period usage as a percentage capped at 100.
func (a *Account) QuotaPercentage() float64 {
	if a.TokensIncluded <= 0 {
		return 100
	}
	pct := float64(a.TokensUsed) / float64(a.TokensIncluded) * 100
	if pct > 100 {
		return 100
	}
	return pct
}

// HashAPIKey returns the hex SHA-256 digest under which a credential is
// stored and looked up.
func HashAPIKey(apiKey string) string {
	sum := sha256.Sum256([]byte(apiKey))
	return hex.EncodeToString(sum[:])
}
