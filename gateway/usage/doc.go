// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

// Package usage persists the billing trail for metered LLM calls.
//
// Every completed call settles exactly once: an immutable usage record,
// the account's token debit, and the day's rolling aggregate are applied
// together, keyed by the call's request ID. Retrying a settlement after a
// partial failure is safe; a request ID that already settled is a no-op.
//
// Records are write-once. Daily aggregates keep per-account request and
// token counts, summed cost, and a running average latency, so the
// analytics endpoints never scan the full record table.
//
// Two implementations are provided: PostgresStore for production and
// MemoryStore for local development and tests. The memory store debits
// through the in-memory account store so both counters stay in step, the
// same coupling the Postgres transaction provides.
package usage
