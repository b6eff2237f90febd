// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package llm

import (
	"context"
	"fmt"
	"math"
	"strings"
)

// Provider name constants used in routing, pricing, and usage records.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderAuto      = "auto"
)

// ModelAuto is the caller-supplied sentinel asking the router to pick.
const ModelAuto = "auto"

// Result is the outcome of one completion call, live or fallback.
// It is consumed immediately by quota debiting and usage recording and is
// never persisted as-is.
type Result struct {
	Text           string  `json:"response"`
	Provider       string  `json:"provider"`
	Model          string  `json:"model"`
	Tokens         int64   `json:"tokens"`
	Cost           float64 `json:"cost"`
	LatencySeconds float64 `json:"response_time"`
	Fallback       bool    `json:"-"`
}

// Provider is the uniform completion capability the gateway routes to.
// Implementations must be safe for concurrent use.
//
// Complete never returns an upstream failure: a missing API key, transport
// error, non-success status, or timeout degrades to the implementation's
// deterministic fallback responder. The only error Complete may return is
// the context's own cancellation, so abandoned requests are never billed.
type Provider interface {
	// Name returns the provider identifier ("openai", "anthropic").
	Name() string

	// Complete generates a completion for prompt using model.
	Complete(ctx context.Context, prompt, model string) (*Result, error)
}

// FallbackText synthesizes the fixed-format placeholder returned by the
// deterministic fallback responders. The prompt is truncated to its first
// 50 characters.
func FallbackText(model, prompt string) string {
	runes := []rune(prompt)
	if len(runes) > 50 {
		runes = runes[:50]
	}
	return fmt.Sprintf("[MOCK] This is a simulated response from %s to: '%s...'", model, string(runes))
}

// EstimateTokens approximates billable tokens for a prompt using a
// provider-specific multiplier over the whitespace-separated word count.
// The result is truncated, not rounded, so estimates are reproducible.
func EstimateTokens(prompt string, multiplier float64) int64 {
	words := len(strings.Fields(prompt))
	return int64(float64(words) * multiplier)
}

// RoundCost rounds a billed cost to 6 decimal places, the resolution the
// gateway stores and reports.
func RoundCost(cost float64) float64 {
	return math.Round(cost*1e6) / 1e6
}
