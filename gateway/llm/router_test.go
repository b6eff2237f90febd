// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestSelect tests provider and model resolution for every routing shape.
func TestSelect(t *testing.T) {
	tests := []struct {
		name         string
		model        string
		provider     string
		wantProvider string
		wantModel    string
	}{
		{
			name:         "explicit openai with model",
			model:        "gpt-4",
			provider:     "openai",
			wantProvider: ProviderOpenAI,
			wantModel:    "gpt-4",
		},
		{
			name:         "explicit openai with auto model",
			model:        "auto",
			provider:     "openai",
			wantProvider: ProviderOpenAI,
			wantModel:    DefaultOpenAIModel,
		},
		{
			name:         "explicit openai with empty model",
			model:        "",
			provider:     "openai",
			wantProvider: ProviderOpenAI,
			wantModel:    DefaultOpenAIModel,
		},
		{
			name:         "explicit anthropic with model",
			model:        "claude-3-opus-20240229",
			provider:     "anthropic",
			wantProvider: ProviderAnthropic,
			wantModel:    "claude-3-opus-20240229",
		},
		{
			name:         "explicit anthropic with auto model",
			model:        "auto",
			provider:     "anthropic",
			wantProvider: ProviderAnthropic,
			wantModel:    DefaultAnthropicModel,
		},
		{
			name:         "explicit provider keeps foreign model name",
			model:        "claude-3-sonnet-20240229",
			provider:     "openai",
			wantProvider: ProviderOpenAI,
			wantModel:    "claude-3-sonnet-20240229",
		},
		{
			name:         "auto infers openai from gpt prefix",
			model:        "gpt-4",
			provider:     "auto",
			wantProvider: ProviderOpenAI,
			wantModel:    "gpt-4",
		},
		{
			name:         "auto infers openai from turbo variant",
			model:        "gpt-4-turbo",
			provider:     "auto",
			wantProvider: ProviderOpenAI,
			wantModel:    "gpt-4-turbo",
		},
		{
			name:         "auto infers anthropic from claude prefix",
			model:        "claude-3-haiku-20240307",
			provider:     "auto",
			wantProvider: ProviderAnthropic,
			wantModel:    "claude-3-haiku-20240307",
		},
		{
			name:         "auto everything falls to default",
			model:        "auto",
			provider:     "auto",
			wantProvider: ProviderOpenAI,
			wantModel:    DefaultOpenAIModel,
		},
		{
			name:         "unrecognized model family falls to default",
			model:        "mistral-7b",
			provider:     "auto",
			wantProvider: ProviderOpenAI,
			wantModel:    DefaultOpenAIModel,
		},
		{
			name:         "unknown provider falls to default",
			model:        "llama-3",
			provider:     "bedrock",
			wantProvider: ProviderOpenAI,
			wantModel:    DefaultOpenAIModel,
		},
		{
			name:         "empty provider behaves like auto",
			model:        "gpt-4",
			provider:     "",
			wantProvider: ProviderOpenAI,
			wantModel:    "gpt-4",
		},
		{
			name:         "empty provider infers anthropic from model",
			model:        "claude-3-opus-20240229",
			provider:     "",
			wantProvider: ProviderAnthropic,
			wantModel:    "claude-3-opus-20240229",
		},
		{
			name:         "empty everything falls to default",
			model:        "",
			provider:     "",
			wantProvider: ProviderOpenAI,
			wantModel:    DefaultOpenAIModel,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider, model := Select(tt.model, tt.provider)
			assert.Equal(t, tt.wantProvider, provider)
			assert.Equal(t, tt.wantModel, model)
		})
	}
}

// TestSelect_Deterministic tests that identical inputs always resolve the
// same way.
func TestSelect_Deterministic(t *testing.T) {
	p1, m1 := Select("claude-3-haiku-20240307", "auto")
	p2, m2 := Select("claude-3-haiku-20240307", "auto")
	assert.Equal(t, p1, p2)
	assert.Equal(t, m1, m2)
}
