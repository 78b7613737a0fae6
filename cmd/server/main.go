package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/dharsanguruparan/MetroCheck/internal/api"
	"github.com/dharsanguruparan/MetroCheck/internal/config"
	"github.com/dharsanguruparan/MetroCheck/internal/database"
	"github.com/dharsanguruparan/MetroCheck/internal/engine"
	"github.com/dharsanguruparan/MetroCheck/internal/logger"
	"github.com/dharsanguruparan/MetroCheck/internal/repository"
	"github.com/dharsanguruparan/MetroCheck/internal/rules"
	"github.com/dharsanguruparan/MetroCheck/internal/s3storage"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal("connect database", "error", err)
	}
	defer pool.Close()
	if err := database.EnsureSchema(ctx, pool); err != nil {
		log.Fatal("ensure schema", "error", err)
	}

	ruleRepo := repository.NewRuleRepository(pool)
	registry, err := loadRegistry(ctx, cfg, ruleRepo, log)
	if err != nil {
		log.Fatal("load rules", "error", err)
	}

	store, err := s3storage.New(cfg)
	if err != nil {
		log.Fatal("init storage", "error", err)
	}
	if err := store.EnsureBuckets(ctx); err != nil {
		log.Fatal("ensure buckets", "error", err)
	}

	client := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer client.Close()

	srv := api.New(api.Deps{
		Config:      cfg,
		Registry:    registry,
		Engine:      engine.New(registry, log.With("component", "engine"), cfg.BatchWorkers),
		Extractions: repository.NewExtractionRepository(pool),
		Reports:     repository.NewReportRepository(pool),
		Objects:     store,
		Queue:       client,
		Logger:      log,
	})
	if err := srv.Run(ctx); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

// loadRegistry seeds an empty rules table from the configured catalog (or the
// built-in rules) and restores the registry from what is stored.
func loadRegistry(ctx context.Context, cfg *config.Config, repo *repository.RuleRepository, log *logger.Logger) (*rules.Registry, error) {
	seed := rules.DefaultRules()
	if cfg.RuleCatalog != "" {
		catalog, err := rules.LoadCatalog(cfg.RuleCatalog)
		if err != nil {
			return nil, err
		}
		seed = catalog
	}
	seeded, err := repo.Seed(ctx, seed)
	if err != nil {
		return nil, err
	}
	live, err := repo.List(ctx)
	if err != nil {
		return nil, err
	}
	retired, err := repo.RetiredIDs(ctx)
	if err != nil {
		return nil, err
	}
	registry := rules.NewRegistry(repo)
	if err := registry.Restore(live, retired); err != nil {
		return nil, err
	}
	log.Info("rules loaded", "rules", len(live), "retired", len(retired), "seeded", seeded, "catalog", cfg.RuleCatalog)
	return registry, nil
}
