// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package gateway

import (
	"time"

	"axonflow/gateway/gateway/account"
	"axonflow/gateway/gateway/usage"
)

// ChatRequest is the body for POST /api/chat. Model and provider default
// to "auto", which delegates the choice to the router.
type ChatRequest struct {
	Prompt   string `json:"prompt"`
	Model    string `json:"model"`
	Provider string `json:"provider"`
}

// ChatResponse carries the completion plus the caller's quota position
// after this call. TotalTokensUsed is period-to-date including this call.
type ChatResponse struct {
	Response        string  `json:"response"`
	ModelUsed       string  `json:"model_used"`
	Provider        string  `json:"provider"`
	TokensUsed      int64   `json:"tokens_used"`
	Cost            float64 `json:"cost"`
	ResponseTime    float64 `json:"response_time"`
	TotalTokensUsed int64   `json:"total_tokens_used"`
	RemainingQuota  int64   `json:"remaining_quota"`
	QuotaPercentage float64 `json:"quota_percentage"`
}

// ToolCall names one tool to execute in a batch.
type ToolCall struct {
	Tool string `json:"tool"`
}

// ToolBatchRequest is the body for POST /api/tools.
type ToolBatchRequest struct {
	Tools []ToolCall `json:"tools"`
}

// ToolResult is the outcome of one tool execution within a batch.
type ToolResult struct {
	Tool    string  `json:"tool"`
	Success bool    `json:"success"`
	Data    string  `json:"data"`
	Tokens  int64   `json:"tokens"`
	Cost    float64 `json:"cost"`
}

// ToolBatchResponse aggregates a batch's results and its metered totals.
type ToolBatchResponse struct {
	Results       []ToolResult `json:"results"`
	ExecutionTime float64      `json:"execution_time"`
	TokensUsed    int64        `json:"tokens_used"`
	Cost          float64      `json:"cost"`
}

// AccountSnapshot is the caller's account and quota position returned by
// GET /api/account. Plan is omitted when the account's tier is not in the
// plan table.
type AccountSnapshot struct {
	ID              string        `json:"id"`
	Email           string        `json:"email"`
	Tier            string        `json:"tier"`
	TokensIncluded  int64         `json:"tokens_included"`
	TokensUsed      int64         `json:"tokens_used"`
	RemainingQuota  int64         `json:"remaining_quota"`
	QuotaPercentage float64       `json:"quota_percentage"`
	PeriodEnd       time.Time     `json:"period_end"`
	Active          bool          `json:"active"`
	Plan            *account.Plan `json:"plan,omitempty"`
}

// UsageReport is the caller's recent usage returned by GET /api/usage.
type UsageReport struct {
	DailyStats  []*usage.DailyAggregate `json:"daily_stats"`
	RecentUsage []*usage.Record         `json:"recent_usage"`
}

// PlanChangeRequest is the admin body for POST /api/account/plan.
type PlanChangeRequest struct {
	AccountID string `json:"account_id"`
	Tier      string `json:"tier"`
}

// PlanChange echoes the applied plan change.
type PlanChange struct {
	AccountID      string `json:"account_id"`
	Tier           string `json:"tier"`
	TokensIncluded int64  `json:"tokens_included"`
}

// AdminStats is the system-wide summary returned by GET /api/admin/stats.
type AdminStats struct {
	TotalAccounts int64   `json:"total_accounts"`
	RequestsToday int64   `json:"requests_today"`
	TokensToday   int64   `json:"tokens_today"`
	CostToday     float64 `json:"cost_today"`
}
