// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"axonflow/gateway/gateway/llm"
	"axonflow/gateway/shared/logger"
)

// MockHTTPClient is a mock implementation of HTTPClient
type MockHTTPClient struct {
	mock.Mock
}

func (m *MockHTTPClient) Do(req *http.Request) (*http.Response, error) {
	args := m.Called(req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*http.Response), args.Error(1)
}

func newTestProvider(apiKey string, client HTTPClient) *Provider {
	return &Provider{
		apiKey:  apiKey,
		baseURL: DefaultBaseURL,
		pricing: llm.NewPricingTable(),
		client:  client,
		log:     logger.New("openai-provider-test"),
		healthy: true,
	}
}

func chatResponseBody(t *testing.T, content string, totalTokens int) []byte {
	t.Helper()

	apiResp := chatResponse{
		ID:     "chatcmpl-123",
		Object: "chat.completion",
		Model:  "gpt-3.5-turbo",
	}
	apiResp.Choices = []struct {
		Index   int `json:"index"`
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	}{
		{FinishReason: "stop"},
	}
	apiResp.Choices[0].Message.Role = "assistant"
	apiResp.Choices[0].Message.Content = content
	apiResp.Usage.TotalTokens = totalTokens

	body, err := json.Marshal(apiResp)
	require.NoError(t, err)
	return body
}

// =============================================================================
// Provider Creation Tests
// =============================================================================

func TestNewProvider_Defaults(t *testing.T) {
	provider := NewProvider(Config{})

	assert.NotNil(t, provider)
	assert.Equal(t, "openai", provider.Name())
	assert.Equal(t, DefaultBaseURL, provider.baseURL)
	assert.False(t, provider.IsLive())
}

func TestNewProvider_CustomConfig(t *testing.T) {
	provider := NewProvider(Config{
		APIKey:  "sk-test",
		BaseURL: "https://proxy.internal",
		Timeout: 60 * time.Second,
	})

	assert.Equal(t, "https://proxy.internal", provider.baseURL)
	assert.True(t, provider.IsLive())
}

// =============================================================================
// Fallback Tests
// =============================================================================

func TestProvider_Complete_FallbackWithoutKey(t *testing.T) {
	mockClient := new(MockHTTPClient)
	provider := newTestProvider("", mockClient)

	result, err := provider.Complete(context.Background(), "hello world this is a test", "gpt-3.5-turbo")

	require.NoError(t, err)
	assert.True(t, result.Fallback)
	assert.Equal(t, "openai", result.Provider)
	assert.Equal(t, "gpt-3.5-turbo", result.Model)
	assert.Equal(t, int64(7), result.Tokens)
	assert.InDelta(t, 0.000014, result.Cost, 1e-9)
	assert.InDelta(t, 0.5, result.LatencySeconds, 1e-9)
	assert.Equal(t, "[MOCK] This is a simulated response from gpt-3.5-turbo to: 'hello world this is a test...'", result.Text)

	mockClient.AssertNotCalled(t, "Do")
}

func TestProvider_Complete_FallbackDeterminism(t *testing.T) {
	provider := newTestProvider("", nil)

	first, err := provider.Complete(context.Background(), "same prompt every time", "gpt-4")
	require.NoError(t, err)
	second, err := provider.Complete(context.Background(), "same prompt every time", "gpt-4")
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

// =============================================================================
// Live Completion Tests
// =============================================================================

func TestProvider_Complete_LiveSuccess(t *testing.T) {
	mockClient := new(MockHTTPClient)
	provider := newTestProvider("sk-test", mockClient)

	mockClient.On("Do", mock.MatchedBy(func(req *http.Request) bool {
		if req.URL.String() != DefaultBaseURL+"/v1/chat/completions" {
			return false
		}
		if req.Header.Get("Authorization") != "Bearer sk-test" {
			return false
		}

		body, _ := io.ReadAll(req.Body)
		req.Body = io.NopCloser(bytes.NewReader(body))

		var apiReq chatRequest
		if err := json.Unmarshal(body, &apiReq); err != nil {
			return false
		}
		return apiReq.Model == "gpt-4" &&
			apiReq.MaxTokens == DefaultMaxTokens &&
			len(apiReq.Messages) == 1 &&
			apiReq.Messages[0].Role == "user"
	})).Return(&http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(bytes.NewReader(chatResponseBody(t, "Paris is the capital of France.", 450))),
	}, nil)

	result, err := provider.Complete(context.Background(), "What is the capital of France?", "gpt-4")

	require.NoError(t, err)
	assert.False(t, result.Fallback)
	assert.Equal(t, "Paris is the capital of France.", result.Text)
	assert.Equal(t, "openai", result.Provider)
	assert.Equal(t, "gpt-4", result.Model)
	assert.Equal(t, int64(450), result.Tokens)
	assert.InDelta(t, 0.0135, result.Cost, 1e-9)
	assert.GreaterOrEqual(t, result.LatencySeconds, 0.0)
	assert.True(t, provider.IsLive())

	mockClient.AssertExpectations(t)
}

func TestProvider_Complete_UpstreamErrorFallsBack(t *testing.T) {
	mockClient := new(MockHTTPClient)
	provider := newTestProvider("sk-test", mockClient)

	errorResp := `{"error":{"message":"The server is overloaded","type":"server_error"}}`
	mockClient.On("Do", mock.Anything).Return(&http.Response{
		StatusCode: http.StatusInternalServerError,
		Body:       io.NopCloser(bytes.NewReader([]byte(errorResp))),
	}, nil)

	result, err := provider.Complete(context.Background(), "hello world", "gpt-3.5-turbo")

	require.NoError(t, err)
	assert.True(t, result.Fallback)
	assert.Equal(t, int64(2), result.Tokens)
	assert.False(t, provider.IsLive())

	mockClient.AssertExpectations(t)
}

func TestProvider_Complete_NetworkErrorFallsBack(t *testing.T) {
	mockClient := new(MockHTTPClient)
	provider := newTestProvider("sk-test", mockClient)

	mockClient.On("Do", mock.Anything).Return(nil, errors.New("connection refused"))

	result, err := provider.Complete(context.Background(), "hello world", "gpt-3.5-turbo")

	require.NoError(t, err)
	assert.True(t, result.Fallback)
	assert.False(t, provider.IsLive())

	mockClient.AssertExpectations(t)
}

func TestProvider_Complete_AuthErrorFallsBack(t *testing.T) {
	mockClient := new(MockHTTPClient)
	provider := newTestProvider("sk-bad", mockClient)

	errorResp := `{"error":{"message":"Incorrect API key provided","type":"invalid_request_error","code":"invalid_api_key"}}`
	mockClient.On("Do", mock.Anything).Return(&http.Response{
		StatusCode: http.StatusUnauthorized,
		Body:       io.NopCloser(bytes.NewReader([]byte(errorResp))),
	}, nil)

	result, err := provider.Complete(context.Background(), "hello world", "gpt-3.5-turbo")

	require.NoError(t, err)
	assert.True(t, result.Fallback)

	mockClient.AssertExpectations(t)
}

func TestProvider_Complete_NoChoicesFallsBack(t *testing.T) {
	mockClient := new(MockHTTPClient)
	provider := newTestProvider("sk-test", mockClient)

	mockClient.On("Do", mock.Anything).Return(&http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(bytes.NewReader([]byte(`{"id":"chatcmpl-1","choices":[],"usage":{"total_tokens":0}}`))),
	}, nil)

	result, err := provider.Complete(context.Background(), "hello world", "gpt-3.5-turbo")

	require.NoError(t, err)
	assert.True(t, result.Fallback)

	mockClient.AssertExpectations(t)
}

func TestProvider_Complete_ContextCancellation(t *testing.T) {
	mockClient := new(MockHTTPClient)
	provider := newTestProvider("sk-test", mockClient)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	mockClient.On("Do", mock.Anything).Return(nil, context.Canceled)

	result, err := provider.Complete(ctx, "hello world", "gpt-3.5-turbo")

	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, result)

	mockClient.AssertExpectations(t)
}

// =============================================================================
// API Error Tests
// =============================================================================

func TestAPIError_Error(t *testing.T) {
	err := &APIError{
		StatusCode: 429,
		Type:       "rate_limit_error",
		Message:    "Too many requests",
	}

	assert.Contains(t, err.Error(), "429")
	assert.Contains(t, err.Error(), "rate_limit_error")
	assert.Contains(t, err.Error(), "Too many requests")
}

func TestAPIError_IsRateLimitError(t *testing.T) {
	tests := []struct {
		name     string
		err      *APIError
		expected bool
	}{
		{
			name:     "rate limit by status code",
			err:      &APIError{StatusCode: http.StatusTooManyRequests, Type: "error"},
			expected: true,
		},
		{
			name:     "rate limit by type",
			err:      &APIError{StatusCode: 400, Type: "rate_limit_error"},
			expected: true,
		},
		{
			name:     "not rate limit",
			err:      &APIError{StatusCode: 500, Type: "server_error"},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.IsRateLimitError())
		})
	}
}

func TestAPIError_IsAuthError(t *testing.T) {
	tests := []struct {
		name     string
		err      *APIError
		expected bool
	}{
		{
			name:     "auth error by status code",
			err:      &APIError{StatusCode: http.StatusUnauthorized, Type: "error"},
			expected: true,
		},
		{
			name:     "auth error by code",
			err:      &APIError{StatusCode: 400, Type: "invalid_request_error", Code: "invalid_api_key"},
			expected: true,
		},
		{
			name:     "not auth error",
			err:      &APIError{StatusCode: 500, Type: "server_error"},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.IsAuthError())
		})
	}
}

// =============================================================================
// Concurrency Tests
// =============================================================================

func TestProvider_HealthStatusConcurrency(t *testing.T) {
	provider := newTestProvider("sk-test", nil)

	const numGoroutines = 100
	done := make(chan bool, numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func(i int) {
			if i%2 == 0 {
				provider.setHealthy(true)
			} else {
				provider.setHealthy(false)
			}
			_ = provider.IsLive()
			done <- true
		}(i)
	}

	for i := 0; i < numGoroutines; i++ {
		<-done
	}
}
