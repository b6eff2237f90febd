// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

// Package gateway implements the metered LLM gateway service: admission,
// provider routing, and usage settlement behind a small HTTP API.
//
// Every metered request passes an ordered admission pipeline before any
// provider is called: authenticate the API key, apply the account tier's
// hourly rate limit, then evaluate the token quota with billing-period
// rollover. Each check produces a distinct denial so callers can tell an
// exhausted quota from a throttled burst.
//
// After a provider call completes, the gateway settles usage (token debit,
// usage record, daily aggregate) before writing the response. Settlement
// runs detached from the request context and is retried: a result the
// caller abandoned mid-call is never billed, a result the caller observed
// always is.
package gateway
