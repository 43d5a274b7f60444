// Copyright 2025 AxonFlow
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"folderlink/platform/connectors/config"
	"folderlink/platform/connectors/ledger"
	"folderlink/platform/shared/logger"
)

// Prometheus metrics
var (
	promProvisioningTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "folderlink_provisioning_total",
			Help: "Plugin executions by registration and outcome",
		},
		[]string{"registration", "outcome"},
	)
	promPlaceholderDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "folderlink_placeholder_duration_milliseconds",
			Help:    "Placeholder upload duration in milliseconds",
			Buckets: []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		},
		[]string{"registration"},
	)
	promOrphansTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "folderlink_orphaned_placeholders_total",
			Help: "Placeholders left without a record link after a failed compensating delete",
		},
		[]string{"registration"},
	)
)

func init() {
	prometheus.MustRegister(promProvisioningTotal)
	prometheus.MustRegister(promPlaceholderDuration)
	prometheus.MustRegister(promOrphansTotal)
}

// readyApp is set once initialization completes; /health delegates to it.
var readyApp atomic.Pointer[App]

// Global router - lets /health answer while initialization happens
var (
	globalRouter *mux.Router
	globalCORS   *cors.Cors
)

// initServerImmediately starts the HTTP server with only /health and
// /metrics so load balancer checks pass during initialization. The plugin
// routes are mounted once the record store and ledger are connected.
func initServerImmediately(port string) *http.Server {
	globalRouter = mux.NewRouter()

	globalCORS = cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-Correlation-ID"},
	})

	globalRouter.HandleFunc("/health", readinessAwareHealthHandler).Methods("GET")
	globalRouter.Handle("/metrics", promhttp.Handler()).Methods("GET")

	server := &http.Server{
		Addr:              ":" + port,
		Handler:           globalCORS.Handler(globalRouter),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("folderlink agent starting on port %s (status: starting)", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Small delay to ensure server is ready to accept connections
	time.Sleep(50 * time.Millisecond)
	return server
}

// readinessAwareHealthHandler reports "starting" until the App is ready and
// then serves the App's component health.
func readinessAwareHealthHandler(w http.ResponseWriter, r *http.Request) {
	if app := readyApp.Load(); app != nil {
		app.healthHandler(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{
		"status":    "starting",
		"service":   "folderlink-agent",
		"timestamp": time.Now().UTC(),
	}); err != nil {
		log.Printf("Error encoding health response: %v", err)
	}
}

// Run is the entry point of the agent service. It blocks until SIGINT or
// SIGTERM.
func Run() {
	port := getEnv("PORT", "8080")
	server := initServerImmediately(port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	configPath := getEnv("FOLDERLINK_CONFIG", "config/folderlink.yaml")
	app, cleanup, err := Bootstrap(ctx, configPath)
	if err != nil {
		log.Fatalf("Failed to initialize agent: %v", err)
	}
	defer cleanup()

	app.Mount(globalRouter)
	readyApp.Store(app)
	log.Printf("folderlink agent ready with plugins %v", app.plugins.Names())

	<-ctx.Done()
	log.Println("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
}

// Bootstrap builds an App from the service file at path. DATABASE_URL,
// REDIS_URL and WEBHOOK_JWT_SECRET override the file. The returned cleanup
// closes every connection that was opened.
func Bootstrap(ctx context.Context, path string) (*App, func(), error) {
	loader, err := config.NewYAMLConfigFileLoader(path)
	if err != nil {
		return nil, nil, err
	}

	storeCfg := loader.RecordStore()
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		storeCfg.ConnectionURL = dbURL
	}
	ledgerCfg := loader.Ledger()
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		ledgerCfg.RedisURL = redisURL
	}

	lg := logger.New("agent")
	connLogger := log.New(os.Stdout, "[RECORDS] ", log.LstdFlags)

	sm, err := newSecretsManager(ctx, loader.Secrets())
	if err != nil {
		return nil, nil, err
	}

	regs, err := loader.LoadRegistrations()
	if err != nil {
		return nil, nil, err
	}
	plugins, err := BuildPluginRegistry(ctx, regs, sm, lg)
	if err != nil {
		return nil, nil, err
	}

	store, err := OpenRecordStore(ctx, storeCfg, connLogger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open record store: %w", err)
	}
	closers := []func(){func() { _ = store.Close(context.Background()) }}
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	var orphanLedger OrphanLedger
	if ledgerCfg.Enabled {
		rl, err := ledger.NewRedisLedger(ctx, ledgerCfg.RedisURL, ledgerCfg.KeyPrefix)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("failed to open orphan ledger: %w", err)
		}
		closers = append(closers, func() { _ = rl.Close() })
		orphanLedger = rl
		log.Printf("Orphan ledger connected")
	}

	app, err := NewApp(AppConfig{
		Plugins:     plugins,
		RecordStore: store,
		Ledger:      orphanLedger,
		Auth:        NewWebhookAuth(os.Getenv("WEBHOOK_JWT_SECRET")),
		Logger:      lg,
	})
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return app, cleanup, nil
}

// newSecretsManager returns the provider named in the service file.
func newSecretsManager(ctx context.Context, cfg config.SecretsFileConfig) (config.SecretsManager, error) {
	switch cfg.Provider {
	case "aws":
		sm, err := config.NewAWSSecretsManager(ctx, config.AWSSecretsManagerOptions{
			Region:   cfg.Region,
			CacheTTL: time.Duration(cfg.CacheTTLMs) * time.Millisecond,
		})
		if err != nil {
			return nil, err
		}
		return sm, nil
	case "local":
		return config.NewLocalSecretsManager(nil), nil
	case "env", "":
		return config.NewEnvSecretsManager(nil), nil
	default:
		return nil, fmt.Errorf("unknown secrets provider: %s", cfg.Provider)
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
