// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

// Package main is the entry point for the AxonFlow Gateway service.
//
// The Gateway is a metered LLM routing service that:
// - Authenticates callers by opaque API key
// - Enforces per-plan token quotas and hourly rate limits
// - Routes prompts to OpenAI or Anthropic, with deterministic fallbacks
// - Settles usage records for billing and analytics
//
// Usage:
//
//	./gateway
//
// Environment Variables:
//
//	PORT - HTTP server port (default: 8080)
//	DATABASE_URL - PostgreSQL connection string (in-memory stores when unset)
//	REDIS_URL - Redis connection string for distributed rate limiting
//	OPENAI_API_KEY - upstream OpenAI credential (fallback responder when unset)
//	ANTHROPIC_API_KEY - upstream Anthropic credential (fallback responder when unset)
//	GATEWAY_PLANS_FILE - YAML plan table override
//	GATEWAY_PRICING_FILE - YAML pricing table override
//	SEED_DEMO_ACCOUNT - "true" seeds the demo account at startup
//	ENVIRONMENT - deployment environment label (default: local)
package main

import (
	"axonflow/gateway/gateway"
)

func main() {
	gateway.Run()
}
