// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package account

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedMemoryStore(t *testing.T, acct *Account, apiKey string) *MemoryStore {
	t.Helper()
	store := NewMemoryStore()
	require.NoError(t, store.Create(context.Background(), acct, apiKey))
	return store
}

// TestMemoryStore_GetByAPIKey tests credential resolution against the map store.
func TestMemoryStore_GetByAPIKey(t *testing.T) {
	ctx := context.Background()
	store := seedMemoryStore(t, testAccount(), "ak_mem")

	acct, err := store.GetByAPIKey(ctx, "ak_mem")
	require.NoError(t, err)
	assert.Equal(t, "acct-1", acct.ID)

	_, err = store.GetByAPIKey(ctx, "ak_wrong")
	assert.ErrorIs(t, err, ErrNotFound)
}

// TestMemoryStore_ReturnsCopies tests that callers cannot mutate store state
// through returned accounts.
func TestMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := seedMemoryStore(t, testAccount(), "ak_mem")

	first, err := store.GetByID(ctx, "acct-1")
	require.NoError(t, err)
	first.TokensUsed = 999999

	second, err := store.GetByID(ctx, "acct-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2500), second.TokensUsed)
}

// TestMemoryStore_Admit tests the gate against the quota ceiling.
func TestMemoryStore_Admit(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		mutate  func(acct *Account)
		wantErr error
	}{
		{
			name:   "under quota admits",
			mutate: func(acct *Account) {},
		},
		{
			name: "one token below ceiling admits",
			mutate: func(acct *Account) {
				acct.TokensUsed = acct.TokensIncluded - 1
			},
		},
		{
			name: "exactly at ceiling denied",
			mutate: func(acct *Account) {
				acct.TokensUsed = acct.TokensIncluded
			},
			wantErr: ErrQuotaExceeded,
		},
		{
			name: "over ceiling denied",
			mutate: func(acct *Account) {
				acct.TokensUsed = acct.TokensIncluded + 5000
			},
			wantErr: ErrQuotaExceeded,
		},
		{
			name: "deactivated account rejected",
			mutate: func(acct *Account) {
				acct.Active = false
			},
			wantErr: ErrInactive,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acct := testAccount()
			tt.mutate(acct)
			store := seedMemoryStore(t, acct, "ak_mem")

			got, err := store.Admit(context.Background(), "acct-1", now)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, got)
			} else {
				require.NoError(t, err)
				assert.Equal(t, acct.TokensUsed, got.TokensUsed)
			}
		})
	}
}

// TestMemoryStore_AdmitRollover tests that an expired billing period resets
// the counter before the gate is evaluated.
func TestMemoryStore_AdmitRollover(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	acct := testAccount()
	acct.TokensUsed = acct.TokensIncluded + 40000
	acct.PeriodEnd = now.Add(-time.Hour)
	store := seedMemoryStore(t, acct, "ak_mem")

	got, err := store.Admit(context.Background(), "acct-1", now)
	require.NoError(t, err)
	assert.Equal(t, int64(0), got.TokensUsed)
	assert.Equal(t, now.Add(PeriodLength), got.PeriodEnd)

	// Rollover persists: the next admit sees the fresh period.
	again, err := store.Admit(context.Background(), "acct-1", now.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, now.Add(PeriodLength), again.PeriodEnd)
}

// TestMemoryStore_DebitConcurrent tests that concurrent debits never lose
// updates.
func TestMemoryStore_DebitConcurrent(t *testing.T) {
	acct := testAccount()
	acct.TokensUsed = 0
	store := seedMemoryStore(t, acct, "ak_mem")

	const workers = 50
	const debitsPerWorker = 20
	const tokensPerDebit = int64(7)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < debitsPerWorker; j++ {
				if err := store.Debit("acct-1", tokensPerDebit, time.Now()); err != nil {
					t.Error(err)
					return
				}
			}
		}()
	}
	wg.Wait()

	got, err := store.GetByID(context.Background(), "acct-1")
	require.NoError(t, err)
	assert.Equal(t, int64(workers*debitsPerWorker)*tokensPerDebit, got.TokensUsed)
}

// TestMemoryStore_DebitUnknownAccount tests the missing-account error path.
func TestMemoryStore_DebitUnknownAccount(t *testing.T) {
	store := NewMemoryStore()
	err := store.Debit("acct-missing", 10, time.Now())
	assert.ErrorIs(t, err, ErrNotFound)
}

// TestMemoryStore_ApplyPlanChange tests tier upgrades.
func TestMemoryStore_ApplyPlanChange(t *testing.T) {
	ctx := context.Background()
	store := seedMemoryStore(t, testAccount(), "ak_mem")

	require.NoError(t, store.ApplyPlanChange(ctx, "acct-1", TierPro, 1000000))

	acct, err := store.GetByID(ctx, "acct-1")
	require.NoError(t, err)
	assert.Equal(t, TierPro, acct.Tier)
	assert.Equal(t, int64(1000000), acct.TokensIncluded)

	assert.ErrorIs(t, store.ApplyPlanChange(ctx, "acct-missing", TierPro, 1000000), ErrNotFound)
}

// TestMemoryStore_CreateDuplicate tests duplicate detection on both the ID
// and the credential.
func TestMemoryStore_CreateDuplicate(t *testing.T) {
	ctx := context.Background()
	store := seedMemoryStore(t, testAccount(), "ak_mem")

	dup := testAccount()
	assert.ErrorIs(t, store.Create(ctx, dup, "ak_other"), ErrDuplicate)

	other := testAccount()
	other.ID = "acct-2"
	assert.ErrorIs(t, store.Create(ctx, other, "ak_mem"), ErrDuplicate)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}
