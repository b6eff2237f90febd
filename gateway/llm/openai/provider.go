// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

// Package openai provides the gateway's provider implementation for OpenAI
// chat models, including the deterministic fallback responder used when no
// live upstream is available.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"axonflow/gateway/gateway/llm"
	"axonflow/gateway/shared/logger"
)

const (
	// DefaultBaseURL is the default OpenAI API endpoint
	DefaultBaseURL = "https://api.openai.com"

	// DefaultTimeout is the default HTTP timeout; expirations degrade to
	// the fallback responder rather than surfacing to the caller
	DefaultTimeout = 30 * time.Second

	// DefaultMaxTokens caps completion length per call
	DefaultMaxTokens = 500
)

// Fallback responder constants. The token multiplier and nominal latency
// are fixed so repeated fallbacks for the same prompt are reproducible.
const (
	fallbackTokenMultiplier = 1.3
	fallbackLatencySeconds  = 0.5
)

// HTTPClient is an interface for HTTP client operations (enables testing)
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Provider implements llm.Provider for OpenAI chat models. With an empty
// API key the provider runs in fallback-only mode.
type Provider struct {
	apiKey  string
	baseURL string
	pricing *llm.PricingTable
	client  HTTPClient
	log     *logger.Logger
	healthy bool
	mu      sync.RWMutex
}

// Config contains configuration for the OpenAI provider
type Config struct {
	APIKey  string            // Optional: empty key means fallback-only mode
	BaseURL string            // Optional: API base URL (default: https://api.openai.com)
	Timeout time.Duration     // Optional: HTTP timeout (default: 30s)
	Pricing *llm.PricingTable // Optional: billing rates (default: built-in table)
	Logger  *logger.Logger    // Optional: structured logger
}

// NewProvider creates a new OpenAI provider instance
func NewProvider(cfg Config) *Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}

	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	if cfg.Pricing == nil {
		cfg.Pricing = llm.NewPricingTable()
	}

	if cfg.Logger == nil {
		cfg.Logger = logger.New("openai-provider")
	}

	return &Provider{
		apiKey:  cfg.APIKey,
		baseURL: cfg.BaseURL,
		pricing: cfg.Pricing,
		client:  &http.Client{Timeout: cfg.Timeout},
		log:     cfg.Logger,
		healthy: true,
	}
}

// Name returns the provider name
func (p *Provider) Name() string {
	return llm.ProviderOpenAI
}

// IsLive reports whether the provider is configured for live calls and the
// last upstream interaction succeeded.
func (p *Provider) IsLive() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.healthy && p.apiKey != ""
}

func (p *Provider) setHealthy(healthy bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.healthy = healthy
}

// Complete generates a completion for prompt using model. Upstream failures
// never propagate: an unconfigured key, transport error, bad status, or
// decode failure degrades to the deterministic fallback. The only error
// returned is the context's cancellation.
func (p *Provider) Complete(ctx context.Context, prompt, model string) (*llm.Result, error) {
	if p.apiKey == "" {
		return p.fallback(prompt, model), nil
	}

	result, err := p.complete(ctx, prompt, model)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		p.log.Warn("", "", "OpenAI API unavailable, using fallback responder", map[string]interface{}{
			"model": model,
			"error": err.Error(),
		})
		return p.fallback(prompt, model), nil
	}

	return result, nil
}

// fallback is the deterministic stand-in responder. Same prompt and model
// always produce the same tokens, cost, and text.
func (p *Provider) fallback(prompt, model string) *llm.Result {
	tokens := llm.EstimateTokens(prompt, fallbackTokenMultiplier)
	return &llm.Result{
		Text:           llm.FallbackText(model, prompt),
		Provider:       llm.ProviderOpenAI,
		Model:          model,
		Tokens:         tokens,
		Cost:           llm.RoundCost(p.pricing.CostFor(llm.ProviderOpenAI, model, tokens)),
		LatencySeconds: fallbackLatencySeconds,
		Fallback:       true,
	}
}

// complete performs the live chat completions call.
func (p *Provider) complete(ctx context.Context, prompt, model string) (*llm.Result, error) {
	start := time.Now()

	apiReq := chatRequest{
		Model:     model,
		MaxTokens: DefaultMaxTokens,
		Messages: []chatMessage{
			{Role: "user", Content: prompt},
		},
	}

	reqBody, err := json.Marshal(apiReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", p.baseURL+"/v1/chat/completions", bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		p.setHealthy(false)
		return nil, fmt.Errorf("openai API error: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode >= 500 {
			p.setHealthy(false)
		}
		return nil, parseAPIError(resp.StatusCode, body)
	}

	p.setHealthy(true)

	var apiResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if len(apiResp.Choices) == 0 {
		return nil, fmt.Errorf("openai API returned no choices")
	}

	tokens := int64(apiResp.Usage.TotalTokens)

	return &llm.Result{
		Text:           apiResp.Choices[0].Message.Content,
		Provider:       llm.ProviderOpenAI,
		Model:          model,
		Tokens:         tokens,
		Cost:           llm.RoundCost(p.pricing.CostFor(llm.ProviderOpenAI, model, tokens)),
		LatencySeconds: time.Since(start).Seconds(),
	}, nil
}

// parseAPIError parses an API error response
func parseAPIError(statusCode int, body []byte) error {
	var errResp struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
			Code    string `json:"code"`
		} `json:"error"`
	}

	if err := json.Unmarshal(body, &errResp); err != nil {
		return fmt.Errorf("openai API error (status %d): %s", statusCode, string(body))
	}

	return &APIError{
		StatusCode: statusCode,
		Type:       errResp.Error.Type,
		Code:       errResp.Error.Code,
		Message:    errResp.Error.Message,
	}
}

// APIError represents an OpenAI API error
type APIError struct {
	StatusCode int
	Type       string
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("openai API error (status %d, type %s): %s", e.StatusCode, e.Type, e.Message)
}

// IsRateLimitError returns true if this is a rate limit error
func (e *APIError) IsRateLimitError() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.Type == "rate_limit_error"
}

// IsAuthError returns true if this is an authentication error
func (e *APIError) IsAuthError() bool {
	return e.StatusCode == http.StatusUnauthorized || e.Code == "invalid_api_key"
}

// Internal API types

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Model   string `json:"model"`
	Choices []struct {
		Index   int `json:"index"`
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}
