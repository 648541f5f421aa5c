package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"docverify/internal/common"
	"docverify/internal/persist"
)

// dbhealth pings the record store and verifies migrations can run.
// Exits 0 when healthy, 1 otherwise. Intended for container health
// checks and deploy smoke tests.
func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfg := common.LoadConfig()
	if cfg.Database.DSN == "" {
		logger.Error("DB_URL env var is required")
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	db, pool, err := persist.Open(ctx, cfg.Database, logger)
	if err != nil {
		logger.Error("open record store", "error", err)
		os.Exit(1)
	}
	defer persist.Close(db, pool, logger)

	if err := persist.HealthCheck(ctx, pool, logger); err != nil {
		logger.Error("record store unhealthy", "error", err)
		os.Exit(1)
	}
	if err := persist.Migrate(db); err != nil {
		logger.Error("migrations failed", "error", err)
		os.Exit(1)
	}
	logger.Info("record store healthy")
}
