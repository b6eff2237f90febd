// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package gateway

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus metrics for the gateway API.
var (
	gatewayRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "axonflow_gateway_requests_total",
			Help: "Total number of gateway API requests",
		},
		[]string{"endpoint", "status"},
	)

	gatewayRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "axonflow_gateway_request_duration_milliseconds",
			Help:    "Gateway request duration in milliseconds",
			Buckets: []float64{1, 2, 5, 10, 20, 50, 100, 200, 500, 1000, 2000},
		},
		[]string{"endpoint"},
	)

	gatewayTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "axonflow_gateway_llm_tokens_total",
			Help: "Total LLM tokens metered, by provider and model",
		},
		[]string{"provider", "model"},
	)

	gatewayCostTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "axonflow_gateway_llm_cost_usd_total",
			Help: "Total LLM cost metered in USD, by provider and model",
		},
		[]string{"provider", "model"},
	)

	gatewayFallbackTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "axonflow_gateway_fallback_responses_total",
			Help: "Completions served by the deterministic fallback responder",
		},
		[]string{"provider"},
	)

	gatewaySettleFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "axonflow_gateway_settlement_failures_total",
			Help: "Usage settlements that failed after all retries",
		},
	)
)

var gatewayMetricsOnce sync.Once

// registerGatewayMetrics registers all gateway metrics with the default
// Prometheus registry. Uses sync.Once so tests and multiple constructions
// never double-register.
func registerGatewayMetrics() {
	gatewayMetricsOnce.Do(func() {
		_ = prometheus.Register(gatewayRequestsTotal)
		_ = prometheus.Register(gatewayRequestDuration)
		_ = prometheus.Register(gatewayTokensTotal)
		_ = prometheus.Register(gatewayCostTotal)
		_ = prometheus.Register(gatewayFallbackTotal)
		_ = prometheus.Register(gatewaySettleFailures)
	})
}

func init() {
	registerGatewayMetrics()
}
