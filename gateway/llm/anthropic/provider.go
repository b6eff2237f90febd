// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

// Package anthropic provides the gateway's provider implementation for
// Anthropic's Claude models, including the deterministic fallback responder
// used when no live upstream is available.
package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"axonflow/gateway/gateway/llm"
	"axonflow/gateway/shared/logger"
)

const (
	// DefaultBaseURL is the default Anthropic API endpoint
	DefaultBaseURL = "https://api.anthropic.com"

	// DefaultAPIVersion is the Anthropic API version
	DefaultAPIVersion = "2023-06-01"

	// DefaultTimeout is the default HTTP timeout; expirations degrade to
	// the fallback responder rather than surfacing to the caller
	DefaultTimeout = 30 * time.Second

	// DefaultMaxTokens caps completion length per call
	DefaultMaxTokens = 500
)

// Fallback responder constants. The token multiplier and nominal latency
// are fixed so repeated fallbacks for the same prompt are reproducible.
const (
	fallbackTokenMultiplier = 1.2
	fallbackLatencySeconds  = 0.7
)

// HTTPClient is an interface for HTTP client operations (enables testing)
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Provider implements llm.Provider for Anthropic Claude. With an empty API
// key the provider runs in fallback-only mode.
type Provider struct {
	apiKey     string
	baseURL    string
	apiVersion string
	pricing    *llm.PricingTable
	client     HTTPClient
	log        *logger.Logger
	healthy    bool
	mu         sync.RWMutex
}

// Config contains configuration for the Anthropic provider
type Config struct {
	APIKey     string            // Optional: empty key means fallback-only mode
	BaseURL    string            // Optional: API base URL (default: https://api.anthropic.com)
	APIVersion string            // Optional: API version (default: 2023-06-01)
	Timeout    time.Duration     // Optional: HTTP timeout (default: 30s)
	Pricing    *llm.PricingTable // Optional: billing rates (default: built-in table)
	Logger     *logger.Logger    // Optional: structured logger
}

// NewProvider creates a new Anthropic provider instance
func NewProvider(cfg Config) *Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}

	if cfg.APIVersion == "" {
		cfg.APIVersion = DefaultAPIVersion
	}

	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	if cfg.Pricing == nil {
		cfg.Pricing = llm.NewPricingTable()
	}

	if cfg.Logger == nil {
		cfg.Logger = logger.New("anthropic-provider")
	}

	return &Provider{
		apiKey:     cfg.APIKey,
		baseURL:    cfg.BaseURL,
		apiVersion: cfg.APIVersion,
		pricing:    cfg.Pricing,
		client:     &http.Client{Timeout: cfg.Timeout},
		log:        cfg.Logger,
		healthy:    true,
	}
}

// Name returns the provider name
func (p *Provider) Name() string {
	return llm.ProviderAnthropic
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
		p.log.Warn("", "", "Anthropic API unavailable, using fallback responder", map[string]interface{}{
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
		Provider:       llm.ProviderAnthropic,
		Model:          model,
		Tokens:         tokens,
		Cost:           llm.RoundCost(p.pricing.CostFor(llm.ProviderAnthropic, model, tokens)),
		LatencySeconds: fallbackLatencySeconds,
		Fallback:       true,
	}
}

// complete performs the live messages API call.
func (p *Provider) complete(ctx context.Context, prompt, model string) (*llm.Result, error) {
	start := time.Now()

	apiReq := anthropicRequest{
		Model:     model,
		MaxTokens: DefaultMaxTokens,
		Messages: []anthropicMessage{
			{Role: "user", Content: prompt},
		},
	}

	reqBody, err := json.Marshal(apiReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", p.baseURL+"/v1/messages", bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", p.apiKey)
	httpReq.Header.Set("anthropic-version", p.apiVersion)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		p.setHealthy(false)
		return nil, fmt.Errorf("anthropic API error: %w", err)
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

	var apiResp anthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	var contentBuilder strings.Builder
	for _, block := range apiResp.Content {
		if block.Type == "text" {
			contentBuilder.WriteString(block.Text)
		}
	}

	tokens := int64(apiResp.Usage.InputTokens + apiResp.Usage.OutputTokens)

	return &llm.Result{
		Text:           contentBuilder.String(),
		Provider:       llm.ProviderAnthropic,
		Model:          model,
		Tokens:         tokens,
		Cost:           llm.RoundCost(p.pricing.CostFor(llm.ProviderAnthropic, model, tokens)),
		LatencySeconds: time.Since(start).Seconds(),
	}, nil
}

// parseAPIError parses an API error response
func parseAPIError(statusCode int, body []byte) error {
	var errResp struct {
		Type  string `json:"type"`
		Error struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"error"`
	}

	if err := json.Unmarshal(body, &errResp); err != nil {
		return fmt.Errorf("anthropic API error (status %d): %s", statusCode, string(body))
	}

	return &APIError{
		StatusCode: statusCode,
		Type:       errResp.Error.Type,
		Message:    errResp.Error.Message,
	}
}

// APIError represents an Anthropic API error
type APIError struct {
	StatusCode int
	Type       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("anthropic API error (status %d, type %s): %s", e.StatusCode, e.Type, e.Message)
}

// IsRateLimitError returns true if this is a rate limit error
func (e *APIError) IsRateLimitError() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.Type == "rate_limit_error"
}

// IsAuthError returns true if this is an authentication error
func (e *APIError) IsAuthError() bool {
	return e.StatusCode == http.StatusUnauthorized || e.Type == "authentication_error"
}

// Internal API types

type anthropicRequest struct {
	Model     string             `json:"model"`
	Messages  []anthropicMessage `json:"messages"`
	MaxTokens int                `json:"max_tokens"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	Role       string `json:"role"`
	Model      string `json:"model"`
	StopReason string `json:"stop_reason"`
	Content    []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}
