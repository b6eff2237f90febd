// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package account

import "errors"

var (
	// ErrNotFound is returned when no account owns the given credential or ID
	ErrNotFound = errors.New("account not found")

	// ErrInactive is returned for deactivated accounts
	ErrInactive = errors.New("account inactive")

	// ErrQuotaExceeded is returned by Admit when period usage has reached the ceiling
	ErrQuotaExceeded = errors.New("token quota exceeded")

	// ErrDuplicate is returned when creating an account whose email or credential already exists
	ErrDuplicate = errors.New("account already exists")

	// ErrUnknownTier is returned when a plan change names a tier missing from the plan table
	ErrUnknownTier = errors.New("unknown plan tier")
)
