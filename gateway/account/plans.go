// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package account

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Plan is the read-only policy a tier maps to.
type Plan struct {
	TokensPerPeriod  int64   `yaml:"tokens_per_period" json:"tokens_per_period"`
	RateLimitPerHour int     `yaml:"rate_limit_per_hour" json:"rate_limit_per_hour"`
	PricePerMonth    float64 `yaml:"price_per_month" json:"price_per_month"`
}

// PlanTable holds plan policy keyed by tier name.
type PlanTable struct {
	Plans map[string]Plan `yaml:"plans"`
	mu    sync.RWMutex
}

// DefaultPlans contains the built-in tier policies.
var DefaultPlans = &PlanTable{
	Plans: map[string]Plan{
		TierFree:       {TokensPerPeriod: 10000, RateLimitPerHour: 100, PricePerMonth: 0},
		TierStarter:    {TokensPerPeriod: 100000, RateLimitPerHour: 1000, PricePerMonth: 9.99},
		TierPro:        {TokensPerPeriod: 1000000, RateLimitPerHour: 5000, PricePerMonth: 49.99},
		TierEnterprise: {TokensPerPeriod: 10000000, RateLimitPerHour: 20000, PricePerMonth: 199.99},
	},
}

// NewPlanTable creates a plan table seeded with the built-in tiers.
func NewPlanTable() *PlanTable {
	plans := make(map[string]Plan, len(DefaultPlans.Plans))
	for tier, plan := range DefaultPlans.Plans {
		plans[tier] = plan
	}
	return &PlanTable{Plans: plans}
}

// LoadPlansFromFile loads tier overrides from a YAML file and merges them
// over the built-in tiers, so new tiers need no code change.
func LoadPlansFromFile(path string) (*PlanTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plans file: %w", err)
	}

	var custom PlanTable
	if err := yaml.Unmarshal(data, &custom); err != nil {
		return nil, fmt.Errorf("failed to parse plans file: %w", err)
	}

	table := NewPlanTable()
	for tier, plan := range custom.Plans {
		table.Plans[strings.ToLower(tier)] = plan
	}

	return table, nil
}

// Lookup resolves the policy for a tier name.
func (t *PlanTable) Lookup(tier string) (Plan, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	plan, ok := t.Plans[strings.ToLower(tier)]
	return plan, ok
}

// Set adds or replaces a tier's policy at runtime.
func (t *PlanTable) Set(tier string, plan Plan) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.Plans[strings.ToLower(tier)] = plan
}

// List returns a copy of all tier policies.
func (t *PlanTable) List() map[string]Plan {
	t.mu.RLock()
	defer t.mu.RUnlock()

	plans := make(map[string]Plan, len(t.Plans))
	for tier, plan := range t.Plans {
		plans[tier] = plan
	}
	return plans
}
