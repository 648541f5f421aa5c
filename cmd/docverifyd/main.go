package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"docverify/internal/common"
	"docverify/internal/convert"
	"docverify/internal/export"
	"docverify/internal/fetch"
	"docverify/internal/ingest"
	"docverify/internal/persist"
	"docverify/internal/pipeline"
	"docverify/internal/recognize"
	"docverify/internal/rules"
	"docverify/internal/runner"
	"docverify/internal/server"
	"docverify/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Record store. Completed jobs land here; everything in flight lives
	// in the checkpoint store below.
	db, pool, err := persist.Open(ctx, cfg.Database, logger)
	if err != nil {
		logger.Error("opening record store", "error", err)
		os.Exit(1)
	}
	defer persist.Close(db, pool, logger)

	if err := persist.HealthCheck(ctx, pool, logger); err != nil {
		logger.Error("record store health check failed", "error", err)
		os.Exit(1)
	}
	if err := persist.Migrate(db); err != nil {
		logger.Error("running migrations", "error", err)
		os.Exit(1)
	}

	// Checkpoint store for in-flight jobs, survives restarts.
	checkpoints, err := store.OpenSQLite(ctx, cfg.Storage.CheckpointPath, logger)
	if err != nil {
		logger.Error("opening checkpoint store", "error", err)
		os.Exit(1)
	}
	defer checkpoints.Close()

	registry, err := rules.LoadDir(cfg.Rules.Dir, logger)
	if err != nil {
		logger.Error("loading rule-sets", "dir", cfg.Rules.Dir, "error", err)
		os.Exit(1)
	}
	logger.Info("rule-sets loaded", "ids", registry.IDs())

	exec := runner.Exec{}
	orc := pipeline.New(
		pipeline.Config{
			Workers:          cfg.Pipeline.Workers,
			QueueSize:        cfg.Pipeline.QueueSize,
			MaxStageAttempts: cfg.Pipeline.MaxStageAttempts,
			BackoffBase:      cfg.Pipeline.BackoffBase,
			BackoffCap:       cfg.Pipeline.BackoffCap,
			FetchTimeout:     cfg.Pipeline.FetchTimeout,
			PersistTimeout:   cfg.Pipeline.PersistTimeout,
			JobTimeout:       cfg.Pipeline.JobTimeout,
			ArtifactCacheDir: cfg.Storage.ArtifactCacheDir,
		},
		registry,
		checkpoints,
		pipeline.Adapters{
			Fetcher: fetch.NewDirFetcher(cfg.Storage.DocumentRoot, logger),
			Converter: convert.NewRasterizer(convert.Config{
				Pdftoppm: cfg.OCR.Pdftoppm,
				DPI:      cfg.OCR.DPI,
				CacheDir: cfg.Storage.ArtifactCacheDir,
			}, exec, logger),
			Recognizer: recognize.NewTesseract(recognize.Config{
				Tesseract:     cfg.OCR.Tesseract,
				TesseractLang: cfg.OCR.TesseractLang,
				PSM:           cfg.OCR.PSM,
				Timeout:       cfg.Pipeline.RecognizeTimeout,
			}, exec, logger),
			Gateway: persist.NewPostgresGateway(db, logger),
		},
		logger,
	)

	// Re-enqueue jobs that were in flight when the previous process died.
	if err := orc.Recover(ctx); err != nil {
		logger.Error("recovering in-flight jobs", "error", err)
		os.Exit(1)
	}

	if cfg.Ingest.Watch {
		watcher := ingest.NewService(cfg.Storage.DocumentRoot, cfg.Ingest.RuleSetID, orc, logger)
		go func() {
			if err := watcher.Run(ctx, ingest.WatchConfig{
				InitialScan: cfg.Ingest.InitialScan,
				Debounce:    cfg.Ingest.Debounce,
			}); err != nil {
				logger.Error("ingest watcher stopped", "error", err)
			}
		}()
		logger.Info("watching document root", "root", cfg.Storage.DocumentRoot, "ruleset", cfg.Ingest.RuleSetID)
	}

	srv := server.New(cfg.Server.HTTPAddr, orc, export.NewService(checkpoints, logger), logger)
	logger.Info("serving", "addr", cfg.Server.HTTPAddr)
	if err := srv.Run(ctx); err != nil {
		logger.Error("server error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	orc.Shutdown(shutdownCtx)
	logger.Info("stopped")
}
