package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/example/skate-spots/internal/config"
	"github.com/example/skate-spots/internal/logging"
	"github.com/example/skate-spots/internal/storage"
)

func main() {
	cfg, err := config.LoadSeedConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.NewLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := storage.ApplySchema(ctx, cfg.PGDSN); err != nil {
		log.Fatalf("schema: %v", err)
	}
	pool, err := storage.Connect(ctx, cfg.PGDSN)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	if err := storage.Seed(ctx, pool, logger); err != nil {
		logger.Error("seed failed", "err", err)
		pool.Close()
		log.Fatal(err)
	}
}
