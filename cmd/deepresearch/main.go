// Command deepresearch runs the multi-agent deep research engine: an HTTP
// server exposing a streaming research endpoint, cancellation, checkpoint
// management, and Prometheus metrics. Boot sequence: flags -> .env ->
// config -> stores -> services -> server.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/codeready-toolchain/deepresearch/pkg/api"
	"github.com/codeready-toolchain/deepresearch/pkg/cancel"
	"github.com/codeready-toolchain/deepresearch/pkg/checkpoint"
	"github.com/codeready-toolchain/deepresearch/pkg/config"
	"github.com/codeready-toolchain/deepresearch/pkg/llm"
	"github.com/codeready-toolchain/deepresearch/pkg/metrics"
	"github.com/codeready-toolchain/deepresearch/pkg/orchestrator"
	"github.com/codeready-toolchain/deepresearch/pkg/sandbox"
	"github.com/codeready-toolchain/deepresearch/pkg/search"
)

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir",
		getEnv("CONFIG_DIR", "./deploy/config"),
		"Path to configuration directory")
	flag.Parse()

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		log.Printf("warning: could not load %s: %v", envPath, err)
		log.Printf("continuing with existing environment variables")
	} else {
		log.Printf("loaded environment from %s", envPath)
	}

	ctx := context.Background()

	cfg, err := config.Initialize(ctx, *configDir)
	if err != nil {
		log.Fatalf("failed to initialize configuration: %v", err)
	}

	checkpoints, err := newCheckpointStore(cfg)
	if err != nil {
		log.Fatalf("failed to initialize checkpoint store: %v", err)
	}

	llmClient := llm.New(cfg.LLM.BaseURL, os.Getenv(cfg.LLM.APIKeyEnv), cfg.LLM.Model, cfg.LLM.RequestTimeout)
	searchAdapter := search.New(cfg.Search.BaseURL, os.Getenv(cfg.Search.APIKeyEnv), cfg.Search.RequestTimeout,
		cfg.Search.CacheSize, cfg.Search.CacheTTL, nil)
	runner := sandbox.New(cfg.Sandbox.ExecTimeout)
	cancelSignal := cancel.New()

	metrics.Register(prometheus.DefaultRegisterer)

	orch := orchestrator.New(orchestrator.Deps{
		LLM:                   llmClient,
		Search:                searchAdapter,
		Runner:                runner,
		MaxConcurrentSections: cfg.Research.MaxConcurrentSections,
		MaxSearchDepth:        cfg.Research.MaxSearchDepth,
		MaxCodeRetries:        cfg.Sandbox.MaxRetries,
		Checkpoints:           checkpoints,
		Cancel:                cancelSignal,
	})

	server := api.NewServer(cfg, orch, checkpoints, cancelSignal, nil)

	log.Printf("starting deepresearch on :%s", cfg.Server.HTTPPort)
	if err := server.Start(":" + cfg.Server.HTTPPort); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}

// newCheckpointStore builds a Postgres-backed store when the configured
// database host (cfg.Database.Host, "localhost" in the built-in defaults)
// is non-empty, otherwise falls back to the in-memory store so the engine
// runs without a database in dev.
func newCheckpointStore(cfg *config.Config) (checkpoint.Store, error) {
	if cfg.Database.Host == "" {
		log.Printf("no database host configured, using in-memory checkpoint store")
		return checkpoint.NewMemoryStore(), nil
	}

	return checkpoint.NewPostgresStore(checkpoint.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        os.Getenv(cfg.Database.PasswordEnv),
		Database:        cfg.Database.Database,
		SSLMode:         cfg.Database.SSLMode,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
}
