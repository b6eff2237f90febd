// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package gateway

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"axonflow/gateway/gateway/account"
	"axonflow/gateway/gateway/llm"
	"axonflow/gateway/gateway/llm/anthropic"
	"axonflow/gateway/gateway/llm/openai"
	"axonflow/gateway/gateway/usage"
)

// version reported by the health endpoint.
const version = "1.0.0"

// demoAPIKey is the well-known credential seeded when SEED_DEMO_ACCOUNT=true.
const demoAPIKey = "demo_fe01ce2a7fbac8fa"

// appReady gates the health endpoint. The server starts before the stores
// connect so orchestrators keep probing while initialization runs.
var appReady atomic.Bool

var (
	globalRouter *mux.Router
	globalCORS   *cors.Cors
)

// initServerImmediately starts the HTTP server with only /health
// registered. Health checks answer during the potentially slow
// initialization phase (database connect, migrations, Redis); the
// remaining routes are added once initialization completes. The listener
// itself never restarts.
func initServerImmediately(port string) {
	globalRouter = mux.NewRouter()

	globalCORS = cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	globalRouter.HandleFunc("/health", healthHandler).Methods("GET")

	go func() {
		handler := globalCORS.Handler(globalRouter)
		log.Printf("🚀 Gateway starting on port %s (status: starting)", port)
		if err := http.ListenAndServe(":"+port, handler); err != nil {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Give the listener a moment before initialization begins.
	time.Sleep(50 * time.Millisecond)
	log.Println("✅ Health endpoint ready - initialization can proceed safely")
}

// healthHandler reports readiness. While initialization is still running it
// answers 503 with status "starting" so load balancers hold traffic.
func healthHandler(w http.ResponseWriter, r *http.Request) {
	status := "starting"
	code := http.StatusServiceUnavailable
	if appReady.Load() {
		status = "healthy"
		code = http.StatusOK
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(map[string]interface{}{
		"status":      status,
		"timestamp":   time.Now().UTC(),
		"version":     version,
		"environment": getEnv("ENVIRONMENT", "local"),
	}); err != nil {
		log.Printf("Error encoding health response: %v", err)
	}
}

// Run starts the gateway service and blocks until SIGINT or SIGTERM.
func Run() {
	port := getEnv("PORT", "8080")
	initServerImmediately(port)

	// Stores: Postgres when DATABASE_URL is set, in-memory otherwise.
	var (
		accounts   account.Store
		usageStore usage.Store
	)

	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		db, err := openDatabase(dbURL)
		if err != nil {
			log.Fatalf("❌ Failed to connect to database: %v", err)
		}
		defer func() { _ = db.Close() }()

		log.Println("Running database migrations...")
		if err := runMigrations(db); err != nil {
			log.Fatalf("❌ Database migrations failed: %v", err)
		}
		log.Println("✅ Database migrations completed")

		accounts = account.NewPostgresStore(db)
		usageStore = usage.NewPostgresStore(db)
		log.Println("✅ Postgres account and usage stores ready")
	} else {
		memory := account.NewMemoryStore()
		accounts = memory
		usageStore = usage.NewMemoryStore(memory)
		log.Println("⚠️  DATABASE_URL not set - using in-memory stores (data is not durable)")
	}

	// Plan and pricing tables, with optional YAML overrides.
	plans := account.NewPlanTable()
	if path := os.Getenv("GATEWAY_PLANS_FILE"); path != "" {
		loaded, err := account.LoadPlansFromFile(path)
		if err != nil {
			log.Printf("⚠️  Failed to load plans from %s: %v (using defaults)", path, err)
		} else {
			plans = loaded
			log.Printf("✅ Plan table loaded from %s", path)
		}
	}

	pricing := llm.NewPricingTable()
	if path := os.Getenv("GATEWAY_PRICING_FILE"); path != "" {
		loaded, err := llm.LoadPricingFromFile(path)
		if err != nil {
			log.Printf("⚠️  Failed to load pricing from %s: %v (using defaults)", path, err)
		} else {
			pricing = loaded
			log.Printf("✅ Pricing table loaded from %s", path)
		}
	}

	// Provider adapters. Without upstream API keys they serve
	// deterministic fallback responses, which keeps local development
	// fully offline.
	openaiProvider := openai.NewProvider(openai.Config{
		APIKey:  os.Getenv("OPENAI_API_KEY"),
		Pricing: pricing,
	})
	anthropicProvider := anthropic.NewProvider(anthropic.Config{
		APIKey:  os.Getenv("ANTHROPIC_API_KEY"),
		Pricing: pricing,
	})
	if !openaiProvider.IsLive() {
		log.Println("⚠️  OPENAI_API_KEY not set - openai serves fallback responses")
	}
	if !anthropicProvider.IsLive() {
		log.Println("⚠️  ANTHROPIC_API_KEY not set - anthropic serves fallback responses")
	}

	// Rate limiter: Redis sliding window when configured, per-instance
	// fixed window otherwise.
	var limiter Limiter
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		redisLimiter, err := NewRedisLimiter(redisURL)
		if err != nil {
			log.Printf("Warning: Failed to initialize Redis: %v", err)
			log.Println("Falling back to in-memory rate limiting")
			limiter = NewMemoryLimiter()
		} else {
			log.Println("✅ Redis rate limiting enabled")
			limiter = redisLimiter
			defer func() {
				if err := redisLimiter.Close(); err != nil {
					log.Printf("Error closing Redis connection: %v", err)
				}
			}()
		}
	} else {
		log.Println("ℹ️  REDIS_URL not set - using in-memory rate limiting")
		limiter = NewMemoryLimiter()
	}

	service := NewService(accounts, usageStore, limiter, plans, openaiProvider, anthropicProvider)
	handler := NewHandler(service)
	handler.RegisterRoutes(globalRouter)
	globalRouter.Handle("/metrics", promhttp.Handler()).Methods("GET")

	if os.Getenv("SEED_DEMO_ACCOUNT") == "true" {
		if err := seedDemoAccount(accounts); err != nil {
			log.Printf("⚠️  Failed to seed demo account: %v", err)
		} else {
			log.Println("✅ Demo account ready (demo@example.com)")
		}
	}

	appReady.Store(true)
	log.Println("✅ All initialization complete - application ready")
	log.Printf("🚀 Gateway fully operational on port %s", port)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Printf("🛑 Received %s - shutting down", sig)
}

// openDatabase connects with retry. Container DNS can lag a few seconds at
// startup, so the first attempts may fail on hostname resolution alone.
func openDatabase(dbURL string) (*sql.DB, error) {
	const maxRetries = 5

	var db *sql.DB
	var err error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		db, err = sql.Open("postgres", dbURL)
		if err == nil {
			if err = db.Ping(); err == nil {
				log.Printf("✅ Connected to database (attempt %d/%d)", attempt, maxRetries)
				return db, nil
			}
		}
		if attempt < maxRetries {
			backoff := time.Duration(attempt*2) * time.Second
			log.Printf("⚠️  Database connection failed (attempt %d/%d): %v", attempt, maxRetries, err)
			log.Printf("   Retrying in %v...", backoff)
			time.Sleep(backoff)
		}
	}
	return nil, err
}

// seedDemoAccount ensures the well-known demo account exists. Safe to run
// on every boot: an existing account is left untouched.
func seedDemoAccount(accounts account.Store) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	now := time.Now().UTC()
	acct := &account.Account{
		ID:             "acct_demo",
		Email:          "demo@example.com",
		Tier:           account.TierStarter,
		TokensIncluded: 100000,
		PeriodEnd:      now.Add(account.PeriodLength),
		Active:         true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err := accounts.Create(ctx, acct, demoAPIKey)
	if errors.Is(err, account.ErrDuplicate) {
		return nil
	}
	return err
}

// getEnv reads an environment variable with a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
