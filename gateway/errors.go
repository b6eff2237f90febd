// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package gateway

import (
	"errors"
	"fmt"
	"time"
)

// ErrMissingAPIKey is returned when a request carries no credential at all,
// neither in the X-API-Key header nor the api_key query parameter.
var ErrMissingAPIKey = errors.New("API key required")

// RateLimitError reports an admission denial because the account exhausted
// its hourly request allowance. RetryAfter hints when the window frees up.
type RateLimitError struct {
	Count      int64
	Limit      int
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded: %d requests/hour (limit: %d)", e.Count, e.Limit)
}
