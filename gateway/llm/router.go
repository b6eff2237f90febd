// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package llm

import "strings"

// Designated default models substituted when a caller names a provider but
// leaves the model on "auto".
const (
	DefaultOpenAIModel    = "gpt-3.5-turbo"
	DefaultAnthropicModel = "claude-3-sonnet-20240229"
)

// Model family prefixes used for provider inference under "auto" routing.
const (
	openAIModelPrefix    = "gpt"
	anthropicModelPrefix = "claude"
)

// Select maps a caller's (model, provider) hints to a concrete upstream
// target. Pure and deterministic: no state, no I/O. An empty hint means
// "auto", matching the request schema defaults.
//
// An explicitly named provider is always honored, substituting its default
// model when the model is "auto". Under "auto" the provider is inferred from
// the model family prefix; anything unrecognized falls back to the
// cost-effective default, OpenAI with gpt-3.5-turbo.
func Select(requestedModel, requestedProvider string) (provider, model string) {
	switch requestedProvider {
	case ProviderOpenAI:
		return ProviderOpenAI, modelOrDefault(requestedModel, DefaultOpenAIModel)
	case ProviderAnthropic:
		return ProviderAnthropic, modelOrDefault(requestedModel, DefaultAnthropicModel)
	case ProviderAuto, "":
		switch {
		case strings.HasPrefix(requestedModel, openAIModelPrefix):
			return ProviderOpenAI, requestedModel
		case strings.HasPrefix(requestedModel, anthropicModelPrefix):
			return ProviderAnthropic, requestedModel
		}
	}
	return ProviderOpenAI, DefaultOpenAIModel
}

func modelOrDefault(model, fallback string) string {
	if model == "" || model == ModelAuto {
		return fallback
	}
	return model
}
