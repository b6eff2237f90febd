// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

/*
Package llm provides the provider abstraction the gateway routes completion
requests through.

# Overview

The package defines the Provider capability, the pure routing function that
maps a caller's (model, provider) hints to a concrete upstream target, and
the per-token pricing table used to bill each call.

# Provider Interface

All upstream integrations implement the same minimal capability:

	type Provider interface {
		Name() string
		Complete(ctx context.Context, prompt, model string) (*Result, error)
	}

Complete never surfaces upstream failures to its caller. When the live
backend is not configured, errors, or times out, the implementation degrades
to its deterministic fallback responder and marks the Result accordingly.
The only errors Complete returns are context cancellation, so an abandoned
request is never billed.

# Routing

Select is a pure function and is fully table-testable:

	provider, model := llm.Select("gpt-4", "auto")   // "openai", "gpt-4"
	provider, model = llm.Select("auto", "auto")     // "openai", "gpt-3.5-turbo"

# Pricing

Per-token rates are static configuration with a "*" wildcard default per
provider, optionally overridden from a YAML file:

	table := llm.LoadPricingFromFile("/etc/gateway/pricing.yaml")
	cost := table.CostFor("openai", "gpt-4", 1200)

# Thread Safety

Providers and the pricing table are safe for concurrent use.
*/
package llm
