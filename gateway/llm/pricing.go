// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package llm

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// PricingTable holds per-token billing rates keyed by provider then model.
// The "*" model entry is the provider's default rate for unknown models.
type PricingTable struct {
	Rates map[string]map[string]float64 `yaml:"rates"`
	mu    sync.RWMutex
}

// DefaultPricing contains the built-in per-token rates in USD.
var DefaultPricing = &PricingTable{
	Rates: map[string]map[string]float64{
		ProviderOpenAI: {
			"gpt-4":         0.00003,
			"gpt-4-turbo":   0.00001,
			"gpt-3.5-turbo": 0.000002,
			// Default for unknown OpenAI models
			"*": 0.000002,
		},
		ProviderAnthropic: {
			"claude-3-opus-20240229":   0.000075,
			"claude-3-sonnet-20240229": 0.000015,
			"claude-3-haiku-20240307":  0.000001,
			// Default for unknown Anthropic models
			"*": 0.000015,
		},
	},
}

// NewPricingTable creates a pricing table seeded with the built-in rates.
func NewPricingTable() *PricingTable {
	return &PricingTable{Rates: copyRates(DefaultPricing.Rates)}
}

// LoadPricingFromFile loads rate overrides from a YAML file and merges them
// over the built-in defaults. Unknown providers and models in the file are
// added as-is, so new rates need no code change.
func LoadPricingFromFile(path string) (*PricingTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read pricing file: %w", err)
	}

	var custom PricingTable
	if err := yaml.Unmarshal(data, &custom); err != nil {
		return nil, fmt.Errorf("failed to parse pricing file: %w", err)
	}

	table := NewPricingTable()
	for provider, models := range custom.Rates {
		provider = strings.ToLower(provider)
		if table.Rates[provider] == nil {
			table.Rates[provider] = make(map[string]float64)
		}
		for model, rate := range models {
			table.Rates[provider][model] = rate
		}
	}

	return table, nil
}

// CostFor returns tokens multiplied by the per-token rate for the model,
// falling back to the provider's "*" rate for unknown models. Unknown
// providers cost zero.
func (p *PricingTable) CostFor(provider, model string, tokens int64) float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()

	rates, ok := p.Rates[strings.ToLower(provider)]
	if !ok {
		return 0
	}

	rate, ok := rates[model]
	if !ok {
		rate, ok = rates[strings.ToLower(model)]
		if !ok {
			rate = rates["*"]
		}
	}

	return float64(tokens) * rate
}

// SetRate sets the per-token rate for a provider/model pair at runtime.
func (p *PricingTable) SetRate(provider, model string, rate float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	provider = strings.ToLower(provider)
	if p.Rates[provider] == nil {
		p.Rates[provider] = make(map[string]float64)
	}
	p.Rates[provider][model] = rate
}

// ListModels returns the explicitly priced models for a provider.
func (p *PricingTable) ListModels(provider string) []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	rates, ok := p.Rates[strings.ToLower(provider)]
	if !ok {
		return nil
	}

	models := make([]string, 0, len(rates))
	for model := range rates {
		if model != "*" {
			models = append(models, model)
		}
	}
	return models
}

func copyRates(src map[string]map[string]float64) map[string]map[string]float64 {
	dst := make(map[string]map[string]float64)
	for provider, models := range src {
		dst[provider] = make(map[string]float64)
		for model, rate := range models {
			dst[provider][model] = rate
		}
	}
	return dst
}
