// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

/*
Package account owns the durable per-account record: identity, plan tier,
quota counters, billing-period boundary, and activation state.

# Store

All access goes through the Store interface. Two implementations are
provided: PostgresStore for production and MemoryStore for development runs
and tests. Credentials are opaque API keys, SHA-256 hashed before storage
and lookup.

The quota-sensitive operation is Admit: it applies the 30-day billing-period
rollover when due and only then evaluates the quota gate, so a request is
never denied because the period boundary was stale. Admission is a pre-call
gate over the pre-call counter; the debit after a completed call may push
usage past the ceiling by at most that call's tokens.

# Plans

Plan policy (tokens per period, hourly rate limit, price) is data-driven:
a built-in tier table optionally merged with a YAML file, so new tiers need
no code change. Tiers not present in the table fall back to conservative
defaults at the call sites that resolve them.
*/
package account
