// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package gateway

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"axonflow/gateway/gateway/account"
	"axonflow/gateway/gateway/llm"
	"axonflow/gateway/gateway/usage"
	"axonflow/gateway/shared/logger"
)

// Tool batch metering: every named tool in a batch bills a flat token and
// cost amount, and the batch reports a fixed nominal execution time.
const (
	toolTokens       = 10
	toolCost         = 0.0001
	toolBatchLatency = 1.2
)

// Settlement retry policy. The token spend already happened by the time we
// settle, so transient store failures are retried before giving up.
const (
	settleAttempts = 3
	settleBackoff  = 100 * time.Millisecond
	settleTimeout  = 10 * time.Second
)

// Usage report bounds: the analytics view shows the last month of daily
// aggregates and the most recent records.
const (
	usageReportDays    = 30
	usageReportRecords = 50
)

// Service wires the admission pipeline, provider routing, and usage
// settlement behind the HTTP handlers.
type Service struct {
	accounts  account.Store
	usage     usage.Store
	limiter   Limiter
	plans     *account.PlanTable
	providers map[string]llm.Provider
	log       *logger.Logger
}

// NewService creates the gateway service. Providers are indexed by name
// for the router.
func NewService(accounts account.Store, usageStore usage.Store, limiter Limiter, plans *account.PlanTable, providers ...llm.Provider) *Service {
	byName := make(map[string]llm.Provider, len(providers))
	for _, p := range providers {
		byName[p.Name()] = p
	}
	return &Service{
		accounts:  accounts,
		usage:     usageStore,
		limiter:   limiter,
		plans:     plans,
		providers: byName,
		log:       logger.New("gateway"),
	}
}

// Chat routes the prompt to a provider, lets the adapter degrade to its
// fallback on upstream trouble, and settles usage before returning. The
// only error it propagates is the caller's own cancellation, which leaves
// quota and usage untouched.
func (s *Service) Chat(ctx context.Context, acct *account.Account, req *ChatRequest) (*ChatResponse, error) {
	providerName, model := llm.Select(req.Model, req.Provider)
	provider, ok := s.providers[providerName]
	if !ok {
		return nil, fmt.Errorf("no adapter registered for provider %q", providerName)
	}

	result, err := provider.Complete(ctx, req.Prompt, model)
	if err != nil {
		return nil, err
	}

	if result.Fallback {
		gatewayFallbackTotal.WithLabelValues(result.Provider).Inc()
	}

	rec := &usage.Record{
		RequestID:      uuid.New().String(),
		AccountID:      acct.ID,
		Provider:       result.Provider,
		Model:          result.Model,
		Tokens:         result.Tokens,
		Cost:           result.Cost,
		Endpoint:       "/api/chat",
		LatencySeconds: result.LatencySeconds,
		CreatedAt:      time.Now().UTC(),
	}
	s.settle(acct.ID, rec)

	return s.chatResponse(acct, result), nil
}

// chatResponse builds the caller-facing payload from the admitted snapshot
// and the call result. Quota figures derive from the snapshot, not a
// re-read, so concurrent calls each report their own consistent view.
func (s *Service) chatResponse(acct *account.Account, result *llm.Result) *ChatResponse {
	newUsage := acct.TokensUsed + result.Tokens
	return &ChatResponse{
		Response:        result.Text,
		ModelUsed:       result.Model,
		Provider:        result.Provider,
		TokensUsed:      result.Tokens,
		Cost:            result.Cost,
		ResponseTime:    result.LatencySeconds,
		TotalTokensUsed: newUsage,
		RemainingQuota:  remainingQuota(acct.TokensIncluded, newUsage),
		QuotaPercentage: quotaPercentage(acct.TokensIncluded, newUsage),
	}
}

func remainingQuota(included, used int64) int64 {
	if remaining := included - used; remaining > 0 {
		return remaining
	}
	return 0
}

func quotaPercentage(included, used int64) float64 {
	if included <= 0 {
		return 100
	}
	pct := float64(used) / float64(included) * 100
	if pct > 100 {
		return 100
	}
	return pct
}

// ToolBatch executes a metered batch of tool calls. Execution is a
// deterministic stub: each named tool bills a flat token and cost amount,
// and unnamed entries are skipped. The batch settles as a single usage
// record under the toolchain provider.
func (s *Service) ToolBatch(ctx context.Context, acct *account.Account, req *ToolBatchRequest) (*ToolBatchResponse, error) {
	results := make([]ToolResult, 0, len(req.Tools))
	var totalTokens int64
	var totalCost float64

	for _, call := range req.Tools {
		if call.Tool == "" {
			continue
		}
		results = append(results, ToolResult{
			Tool:    call.Tool,
			Success: true,
			Data:    fmt.Sprintf("[MOCK] Simulated result from %s", call.Tool),
			Tokens:  toolTokens,
			Cost:    toolCost,
		})
		totalTokens += toolTokens
		totalCost += toolCost
	}
	totalCost = llm.RoundCost(totalCost)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rec := &usage.Record{
		RequestID:      uuid.New().String(),
		AccountID:      acct.ID,
		Provider:       "toolchain",
		Model:          "batch",
		Tokens:         totalTokens,
		Cost:           totalCost,
		Endpoint:       "/api/tools",
		LatencySeconds: toolBatchLatency,
		CreatedAt:      time.Now().UTC(),
	}
	s.settle(acct.ID, rec)

	return &ToolBatchResponse{
		Results:       results,
		ExecutionTime: toolBatchLatency,
		TokensUsed:    totalTokens,
		Cost:          totalCost,
	}, nil
}

// settle persists the debit, usage record, and daily aggregate. It runs on
// a fresh context because the result was already produced: the caller may
// abandon the response, the spend still has to be recorded. Settlement is
// idempotent by request ID, so retries never double-bill. A final failure
// is logged and counted but never surfaces to the caller.
func (s *Service) settle(accountID string, rec *usage.Record) {
	ctx, cancel := context.WithTimeout(context.Background(), settleTimeout)
	defer cancel()

	var err error
	for attempt := 1; attempt <= settleAttempts; attempt++ {
		if err = s.usage.Settle(ctx, rec); err == nil {
			return
		}
		if attempt < settleAttempts {
			time.Sleep(time.Duration(attempt) * settleBackoff)
		}
	}

	gatewaySettleFailures.Inc()
	s.log.Error(accountID, rec.RequestID, "usage settlement failed", map[string]interface{}{
		"error":    err.Error(),
		"attempts": settleAttempts,
		"tokens":   rec.Tokens,
		"cost":     rec.Cost,
	})
}

// AccountSnapshot assembles the caller's account, plan, and quota position.
func (s *Service) AccountSnapshot(acct *account.Account) *AccountSnapshot {
	snap := &AccountSnapshot{
		ID:              acct.ID,
		Email:           acct.Email,
		Tier:            acct.Tier,
		TokensIncluded:  acct.TokensIncluded,
		TokensUsed:      acct.TokensUsed,
		RemainingQuota:  acct.RemainingQuota(),
		QuotaPercentage: acct.QuotaPercentage(),
		PeriodEnd:       acct.PeriodEnd,
		Active:          acct.Active,
	}
	if plan, ok := s.plans.Lookup(acct.Tier); ok {
		snap.Plan = &plan
	}
	return snap
}

// UsageReport returns the caller's recent daily aggregates and newest
// usage records.
func (s *Service) UsageReport(ctx context.Context, accountID string) (*UsageReport, error) {
	daily, err := s.usage.DailyAggregates(ctx, accountID, usageReportDays)
	if err != nil {
		return nil, fmt.Errorf("failed to load daily aggregates: %w", err)
	}
	records, err := s.usage.RecentRecords(ctx, accountID, usageReportRecords)
	if err != nil {
		return nil, fmt.Errorf("failed to load usage records: %w", err)
	}
	return &UsageReport{DailyStats: daily, RecentUsage: records}, nil
}

// ChangePlan applies a plan-change event: the account takes the named
// tier's quota ceiling. Unknown tiers are rejected so a typo cannot zero
// out an account's quota.
func (s *Service) ChangePlan(ctx context.Context, accountID, tier string) (*PlanChange, error) {
	tier = strings.ToLower(tier)
	plan, ok := s.plans.Lookup(tier)
	if !ok {
		return nil, account.ErrUnknownTier
	}
	if err := s.accounts.ApplyPlanChange(ctx, accountID, tier, plan.TokensPerPeriod); err != nil {
		return nil, err
	}
	s.log.Info(accountID, "", "plan changed", map[string]interface{}{
		"tier":            tier,
		"tokens_included": plan.TokensPerPeriod,
	})
	return &PlanChange{
		AccountID:      accountID,
		Tier:           tier,
		TokensIncluded: plan.TokensPerPeriod,
	}, nil
}

// AdminStats summarizes the system for the admin panel: account count and
// the trailing day's metered totals.
func (s *Service) AdminStats(ctx context.Context) (*AdminStats, error) {
	total, err := s.accounts.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count accounts: %w", err)
	}
	totals, err := s.usage.TotalsSince(ctx, time.Now().UTC().Add(-24*time.Hour))
	if err != nil {
		return nil, fmt.Errorf("failed to load usage totals: %w", err)
	}
	return &AdminStats{
		TotalAccounts: total,
		RequestsToday: totals.Requests,
		TokensToday:   totals.Tokens,
		CostToday:     totals.Cost,
	}, nil
}
