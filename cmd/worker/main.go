package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/dharsanguruparan/MetroCheck/internal/config"
	"github.com/dharsanguruparan/MetroCheck/internal/database"
	"github.com/dharsanguruparan/MetroCheck/internal/logger"
	"github.com/dharsanguruparan/MetroCheck/internal/repository"
	"github.com/dharsanguruparan/MetroCheck/internal/s3storage"
	"github.com/dharsanguruparan/MetroCheck/internal/worker"
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

	store, err := s3storage.New(cfg)
	if err != nil {
		log.Fatal("init storage", "error", err)
	}
	if err := store.EnsureBuckets(ctx); err != nil {
		log.Fatal("ensure buckets", "error", err)
	}

	server := asynq.NewServer(asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, asynq.Config{
		Concurrency: cfg.Workers,
		Logger:      log.SugaredLogger,
	})
	processor := worker.NewProcessor(
		repository.NewExtractionRepository(pool),
		repository.NewReportRepository(pool),
		repository.NewRuleRepository(pool),
		store,
		log.With("component", "worker"),
	)

	go func() {
		<-ctx.Done()
		server.Shutdown()
	}()

	log.Info("worker started", "concurrency", cfg.Workers, "redis", cfg.RedisAddr)
	if err := server.Run(processor.Handler()); err != nil {
		log.Error("worker stopped", "error", err)
		os.Exit(1)
	}
}
