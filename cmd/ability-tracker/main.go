package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/terra-clan/ability-tracker/internal/abilities"
	"github.com/terra-clan/ability-tracker/internal/api"
	"github.com/terra-clan/ability-tracker/internal/classifier"
	"github.com/terra-clan/ability-tracker/internal/config"
	"github.com/terra-clan/ability-tracker/internal/health"
	"github.com/terra-clan/ability-tracker/internal/pipeline"
	"github.com/terra-clan/ability-tracker/internal/seed"
	"github.com/terra-clan/ability-tracker/internal/snapshot"
	"github.com/terra-clan/ability-tracker/internal/storage"
	"github.com/terra-clan/ability-tracker/internal/tracker"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.Log.Level,
	}))
	slog.SetDefault(logger)

	slog.Info("starting ability-tracker",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"storage", cfg.Storage.Driver,
		"classifier", cfg.Classifier.Provider,
		"timezone", cfg.Calendar.Timezone,
	)

	// Create context for initialization
	initCtx, initCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer initCancel()

	registry := health.NewRegistry()

	repo, err := openRepository(initCtx, cfg)
	if err != nil {
		slog.Error("failed to open storage", "error", err)
		os.Exit(1)
	}
	registry.Register("storage", health.CheckerFunc(repo.Ping))

	// Load catalog and score rules
	catalog := seed.NewLoader()
	if cfg.Seed.File != "" {
		if err := catalog.LoadFromFile(cfg.Seed.File); err != nil {
			slog.Error("failed to load seed file", "file", cfg.Seed.File, "error", err)
			os.Exit(1)
		}
	}

	rules := catalog.RuleTable()
	if err := abilities.ValidateCategories(rules.Categories()); err != nil {
		slog.Warn("score rule categories fall back to knowledge", "error", err)
	}
	if err := abilities.ValidateCategories(abilities.ClassifierCategories); err != nil {
		slog.Error("classifier taxonomy incomplete", "error", err)
		os.Exit(1)
	}

	svc := tracker.NewService(repo, rules, catalog, cfg.Calendar.Location)

	if _, err := svc.SeedAbilities(initCtx); err != nil {
		slog.Error("failed to seed abilities", "error", err)
		os.Exit(1)
	}
	if _, err := svc.SeedRewards(initCtx); err != nil {
		slog.Error("failed to seed rewards", "error", err)
		os.Exit(1)
	}

	cls, redisClient := newClassifier(initCtx, cfg, registry)
	importer := pipeline.NewImporter(cls, svc, cfg.Calendar.Location)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start daily score worker
	worker := snapshot.NewWorker(svc, cfg.Snapshot.Interval, cfg.Calendar.Location)
	worker.Start(ctx)

	// Setup HTTP server
	server := api.NewServer(cfg.Server, svc, importer, cls, registry)
	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      server.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Server.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		slog.Info("HTTP server starting", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down gracefully...")

	// Cancel context to stop background workers
	cancel()

	// Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			slog.Error("redis close error", "error", err)
		}
	}
	if err := repo.Close(); err != nil {
		slog.Error("storage close error", "error", err)
	}

	slog.Info("ability-tracker stopped")
}

// openRepository connects the configured storage backend, migrating Postgres first
func openRepository(ctx context.Context, cfg *config.Config) (storage.Repository, error) {
	if cfg.Storage.Driver == "memory" {
		slog.Warn("using in-memory storage, data will not survive a restart")
		return storage.NewMemoryRepository(), nil
	}

	slog.Info("running database migrations", "dir", cfg.Database.MigrationsDir)
	if err := storage.MigrateFromDSN(ctx, cfg.Database.DSN, cfg.Database.MigrationsDir); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	repo, err := storage.NewPostgresRepository(ctx, storage.PostgresConfig{
		DSN:          cfg.Database.DSN,
		MaxOpenConns: int32(cfg.Database.MaxOpenConns),
		MaxIdleConns: int32(cfg.Database.MaxIdleConns),
		MaxLifetime:  cfg.Database.MaxLifetime,
	})
	if err != nil {
		return nil, err
	}
	slog.Info("database connected successfully")
	return repo, nil
}

// newClassifier builds the remote provider and the optional Redis result cache.
// An unreachable Redis only disables caching.
func newClassifier(ctx context.Context, cfg *config.Config, registry *health.Registry) (*classifier.Classifier, *redis.Client) {
	cc := cfg.Classifier

	var provider classifier.Provider
	switch cc.Provider {
	case "dashscope":
		provider = classifier.NewDashScopeProvider(cc.APIKey, cc.Endpoint, cc.Model, &http.Client{Timeout: cc.Timeout})
	case "openai":
		provider = classifier.NewOpenAIProvider(cc.APIKey, cc.Endpoint, cc.Model)
	}
	if provider != nil && cc.APIKey == "" {
		slog.Warn("classifier api key not set, titles will be classified locally", "provider", cc.Provider)
	}

	opts := []classifier.Option{
		classifier.WithTimeout(cc.Timeout),
		classifier.WithConcurrency(cc.Concurrency),
	}

	var client *redis.Client
	if cfg.Redis.Address != "" {
		client = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		cache := classifier.NewRedisCache(client, cc.CacheTTL)
		if err := cache.Ping(ctx); err != nil {
			slog.Warn("redis unavailable, classification cache disabled", "addr", cfg.Redis.Address, "error", err)
			client.Close()
			client = nil
		} else {
			opts = append(opts, classifier.WithCache(cache))
			registry.Register("redis", health.CheckerFunc(cache.Ping))
			slog.Info("classification cache enabled", "addr", cfg.Redis.Address, "ttl", cc.CacheTTL)
		}
	}

	return classifier.New(provider, opts...), client
}
