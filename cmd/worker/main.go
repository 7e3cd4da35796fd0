package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"thirdcoast.systems/fetchd/internal/application"
	"thirdcoast.systems/fetchd/internal/config"
	"thirdcoast.systems/fetchd/internal/db"
	"thirdcoast.systems/fetchd/internal/downloads"
	"thirdcoast.systems/fetchd/internal/queue"
	"thirdcoast.systems/fetchd/pkg/ytdlp"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("Starting download worker")

	conf, err := config.LoadConfig(ctx)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger := application.InitLogger(conf.LogLevel)

	if err := os.MkdirAll(conf.Ytdl.BaseDownloadPath, 0o755); err != nil {
		logger.Error("failed to create download dir", "dir", conf.Ytdl.BaseDownloadPath, "error", err)
		os.Exit(1)
	}

	updateYtdlp(ctx, logger, conf.Ytdl.Binary)

	pool, err := application.OpenDBPoolWithRetry(ctx, *conf)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Initialize encryption manager
	encMgr, err := application.InitEncryptionManager(*conf)
	if err != nil {
		logger.Error("failed to initialize encryption manager", "error", err)
		os.Exit(1)
	}

	dbc, err := db.NewDatabaseConnection(ctx, pool)
	if err != nil {
		logger.Error("failed to create database connection", "error", err)
		os.Exit(1)
	}
	defer dbc.Close()

	archive, err := application.OpenArchive(conf.Ytdl, dbc.Queries(ctx))
	if err != nil {
		logger.Error("failed to open download archive", "error", err)
		os.Exit(1)
	}

	disp := &downloads.Dispatcher{
		Store:   downloads.NewPGStore(dbc),
		Factory: &ytdlp.Factory{Path: conf.Ytdl.Binary, Archive: archive},
		Opener:  encMgr,
		Fixers: []downloads.OptionsFixer{
			downloads.OutputPathFixer(conf.Ytdl.BaseDownloadPath, conf.Ytdl.DefaultOutputTemplate),
			downloads.ArchiveFixer(conf.Ytdl.DownloadArchive),
		},
		FailureThreshold:      conf.Worker.FailureThreshold,
		ProgressFlushInterval: conf.Worker.ProgressFlushInterval,
		Logger:                logger,
	}

	w := queue.NewWorker(dbc.Queries(ctx), conf.DatabaseDSN, logger)
	w.PollInterval = conf.Worker.PollInterval
	w.RegisterAll(disp.Handlers())

	logger.Info("Download workers started",
		"workers", conf.Worker.Concurrency,
		"tasks", w.Names(),
		"archive_backend", conf.Ytdl.ArchiveBackend,
	)
	if err := w.Run(ctx, conf.Worker.Concurrency); err != nil {
		logger.Error("worker stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("Download worker stopping")
}

func updateYtdlp(ctx context.Context, logger *slog.Logger, path string) {
	updateCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	client := ytdlp.New()
	if path != "" {
		client.Path = path
	}
	if err := client.Update(updateCtx); err != nil {
		logger.Warn("failed to update yt-dlp", "error", err)
		return
	}
	if v, err := client.Version(updateCtx); err == nil {
		logger.Info("yt-dlp updated successfully", "version", v)
	}
}
