// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"axonflow/gateway/gateway/account"
	"axonflow/gateway/shared/logger"
)

// Handler provides the HTTP surface of the gateway.
type Handler struct {
	service *Service
	log     *logger.Logger
}

// NewHandler creates the gateway HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{
		service: service,
		log:     logger.New("gateway-http"),
	}
}

// RegisterRoutes registers the metered API on a gorilla/mux router.
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/chat", h.Chat).Methods("POST")
	r.HandleFunc("/api/tools", h.ToolBatch).Methods("POST")
	r.HandleFunc("/api/account", h.Account).Methods("GET")
	r.HandleFunc("/api/usage", h.Usage).Methods("GET")
	r.HandleFunc("/api/account/plan", h.ChangePlan).Methods("POST")
	r.HandleFunc("/api/admin/stats", h.AdminStats).Methods("GET")
	r.HandleFunc("/ping", h.Ping).Methods("GET")
}

// apiKeyFromRequest extracts the caller's credential: the X-API-Key header
// wins, the api_key query parameter is the fallback.
func apiKeyFromRequest(r *http.Request) string {
	if key := r.Header.Get("X-API-Key"); key != "" {
		return key
	}
	return r.URL.Query().Get("api_key")
}

// Chat handles POST /api/chat: authenticate, rate limit, validate the
// body, quota gate, call the provider, settle, respond.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	acct, err := h.service.Resolve(r.Context(), apiKeyFromRequest(r))
	if err != nil {
		h.writeDenial(w, "/api/chat", err)
		return
	}

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeBadRequest(w, "/api/chat", "Invalid request body")
		return
	}
	if req.Prompt == "" {
		h.writeBadRequest(w, "/api/chat", "Prompt required")
		return
	}

	admitted, err := h.service.Admit(r.Context(), acct.ID, time.Now().UTC())
	if err != nil {
		h.writeDenial(w, "/api/chat", err)
		return
	}

	resp, err := h.service.Chat(r.Context(), admitted, &req)
	if err != nil {
		h.handleCallError(w, "/api/chat", admitted.ID, err)
		return
	}

	gatewayRequestsTotal.WithLabelValues("/api/chat", "success").Inc()
	gatewayTokensTotal.WithLabelValues(resp.Provider, resp.ModelUsed).Add(float64(resp.TokensUsed))
	gatewayCostTotal.WithLabelValues(resp.Provider, resp.ModelUsed).Add(resp.Cost)
	gatewayRequestDuration.WithLabelValues("/api/chat").Observe(float64(time.Since(start).Milliseconds()))

	writeJSON(w, http.StatusOK, resp)
}

// ToolBatch handles POST /api/tools. The batch passes the same admission
// pipeline as chat and settles as a single usage record.
func (h *Handler) ToolBatch(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	acct, err := h.service.Resolve(r.Context(), apiKeyFromRequest(r))
	if err != nil {
		h.writeDenial(w, "/api/tools", err)
		return
	}

	var req ToolBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Tools == nil {
		h.writeBadRequest(w, "/api/tools", "Tools array required")
		return
	}

	admitted, err := h.service.Admit(r.Context(), acct.ID, time.Now().UTC())
	if err != nil {
		h.writeDenial(w, "/api/tools", err)
		return
	}

	resp, err := h.service.ToolBatch(r.Context(), admitted, &req)
	if err != nil {
		h.handleCallError(w, "/api/tools", admitted.ID, err)
		return
	}

	gatewayRequestsTotal.WithLabelValues("/api/tools", "success").Inc()
	gatewayTokensTotal.WithLabelValues("toolchain", "batch").Add(float64(resp.TokensUsed))
	gatewayCostTotal.WithLabelValues("toolchain", "batch").Add(resp.Cost)
	gatewayRequestDuration.WithLabelValues("/api/tools").Observe(float64(time.Since(start).Milliseconds()))

	writeJSON(w, http.StatusOK, resp)
}

// Account handles GET /api/account. The read is advisory: it reflects the
// stored snapshot without applying rollover or quota checks.
func (h *Handler) Account(w http.ResponseWriter, r *http.Request) {
	acct, err := h.service.Resolve(r.Context(), apiKeyFromRequest(r))
	if err != nil {
		h.writeDenial(w, "/api/account", err)
		return
	}

	gatewayRequestsTotal.WithLabelValues("/api/account", "success").Inc()
	writeJSON(w, http.StatusOK, h.service.AccountSnapshot(acct))
}

// Usage handles GET /api/usage.
func (h *Handler) Usage(w http.ResponseWriter, r *http.Request) {
	acct, err := h.service.Resolve(r.Context(), apiKeyFromRequest(r))
	if err != nil {
		h.writeDenial(w, "/api/usage", err)
		return
	}

	report, err := h.service.UsageReport(r.Context(), acct.ID)
	if err != nil {
		h.handleCallError(w, "/api/usage", acct.ID, err)
		return
	}

	gatewayRequestsTotal.WithLabelValues("/api/usage", "success").Inc()
	writeJSON(w, http.StatusOK, report)
}

// ChangePlan handles POST /api/account/plan. Admin only: this is the
// plan-change event feed from billing.
func (h *Handler) ChangePlan(w http.ResponseWriter, r *http.Request) {
	caller, err := h.service.Resolve(r.Context(), apiKeyFromRequest(r))
	if err != nil {
		h.writeDenial(w, "/api/account/plan", err)
		return
	}
	if !caller.Admin {
		h.writeForbidden(w, "/api/account/plan")
		return
	}

	var req PlanChangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeBadRequest(w, "/api/account/plan", "Invalid request body")
		return
	}
	if req.AccountID == "" || req.Tier == "" {
		h.writeBadRequest(w, "/api/account/plan", "account_id and tier required")
		return
	}

	change, err := h.service.ChangePlan(r.Context(), req.AccountID, req.Tier)
	if err != nil {
		switch {
		case errors.Is(err, account.ErrUnknownTier):
			h.writeBadRequest(w, "/api/account/plan", "Unknown tier")
		case errors.Is(err, account.ErrNotFound):
			gatewayRequestsTotal.WithLabelValues("/api/account/plan", "not_found").Inc()
			writeJSON(w, http.StatusNotFound, map[string]interface{}{"error": "Account not found"})
		default:
			h.handleCallError(w, "/api/account/plan", req.AccountID, err)
		}
		return
	}

	gatewayRequestsTotal.WithLabelValues("/api/account/plan", "success").Inc()
	writeJSON(w, http.StatusOK, change)
}

// AdminStats handles GET /api/admin/stats. Admin only.
func (h *Handler) AdminStats(w http.ResponseWriter, r *http.Request) {
	caller, err := h.service.Resolve(r.Context(), apiKeyFromRequest(r))
	if err != nil {
		h.writeDenial(w, "/api/admin/stats", err)
		return
	}
	if !caller.Admin {
		h.writeForbidden(w, "/api/admin/stats")
		return
	}

	stats, err := h.service.AdminStats(r.Context())
	if err != nil {
		h.handleCallError(w, "/api/admin/stats", caller.ID, err)
		return
	}

	gatewayRequestsTotal.WithLabelValues("/api/admin/stats", "success").Inc()
	writeJSON(w, http.StatusOK, stats)
}

// Ping handles GET /ping.
func (h *Handler) Ping(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("pong"))
}

// writeDenial maps admission denials to their user-visible payloads. The
// three rejection classes are machine-distinguishable: a missing or bad
// credential is 401, a throttled burst and an exhausted quota are both 429
// but carry different bodies.
func (h *Handler) writeDenial(w http.ResponseWriter, endpoint string, err error) {
	var rle *RateLimitError
	switch {
	case errors.Is(err, ErrMissingAPIKey):
		gatewayRequestsTotal.WithLabelValues(endpoint, "auth_denied").Inc()
		writeJSON(w, http.StatusUnauthorized, map[string]interface{}{
			"error": "API key required",
		})
	case errors.Is(err, account.ErrNotFound), errors.Is(err, account.ErrInactive):
		gatewayRequestsTotal.WithLabelValues(endpoint, "auth_denied").Inc()
		writeJSON(w, http.StatusUnauthorized, map[string]interface{}{
			"error": "Invalid or inactive API key",
		})
	case errors.As(err, &rle):
		gatewayRequestsTotal.WithLabelValues(endpoint, "rate_limited").Inc()
		writeJSON(w, http.StatusTooManyRequests, map[string]interface{}{
			"error":               "Rate limit exceeded. Try again later.",
			"code":                "rate_limited",
			"retry_after_seconds": int(rle.RetryAfter.Seconds()),
		})
	case errors.Is(err, account.ErrQuotaExceeded):
		gatewayRequestsTotal.WithLabelValues(endpoint, "quota_exceeded").Inc()
		writeJSON(w, http.StatusTooManyRequests, map[string]interface{}{
			"error":          "Token quota exceeded. Please upgrade your subscription.",
			"quota_exceeded": true,
			"upgrade_url":    "/billing",
		})
	default:
		gatewayRequestsTotal.WithLabelValues(endpoint, "error").Inc()
		h.log.Error("", "", "admission failed", map[string]interface{}{
			"endpoint": endpoint,
			"error":    err.Error(),
		})
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"error": "Internal server error",
		})
	}
}

// handleCallError maps post-admission failures. A canceled request gets no
// body: the caller is gone and nothing was billed.
func (h *Handler) handleCallError(w http.ResponseWriter, endpoint, accountID string, err error) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		gatewayRequestsTotal.WithLabelValues(endpoint, "canceled").Inc()
		h.log.Warn(accountID, "", "request abandoned before completion", map[string]interface{}{
			"endpoint": endpoint,
		})
		return
	}

	gatewayRequestsTotal.WithLabelValues(endpoint, "error").Inc()
	h.log.Error(accountID, "", "request failed", map[string]interface{}{
		"endpoint": endpoint,
		"error":    err.Error(),
	})
	writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
		"error": "Internal server error",
	})
}

func (h *Handler) writeBadRequest(w http.ResponseWriter, endpoint, message string) {
	gatewayRequestsTotal.WithLabelValues(endpoint, "bad_request").Inc()
	writeJSON(w, http.StatusBadRequest, map[string]interface{}{"error": message})
}

func (h *Handler) writeForbidden(w http.ResponseWriter, endpoint string) {
	gatewayRequestsTotal.WithLabelValues(endpoint, "forbidden").Inc()
	writeJSON(w, http.StatusForbidden, map[string]interface{}{"error": "Admin access required"})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
