package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"thirdcoast.systems/fetchd/cmd/web/internal/web"
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

	slog.Info("Starting web service")

	conf, err := config.LoadConfig(ctx)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger := application.InitLogger(conf.LogLevel)

	pool, err := application.OpenDBPoolWithRetry(ctx, *conf)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	dbc, err := db.NewDatabaseConnection(ctx, pool)
	if err != nil {
		logger.Error("failed to create database connection", "error", err)
		os.Exit(1)
	}
	defer dbc.Close()

	// Initialize encryption manager
	encMgr, err := application.InitEncryptionManager(*conf)
	if err != nil {
		logger.Error("failed to initialize encryption manager", "error", err)
		os.Exit(1)
	}

	extractor := ytdlp.New()
	extractor.Path = conf.Ytdl.Binary

	svc := downloads.NewService(
		downloads.NewPGStore(dbc),
		queue.NewClient(dbc.Queries(ctx)),
		extractor,
		encMgr,
		logger,
	)

	e, err := web.NewWebserver(svc, dbc)
	if err != nil {
		logger.Error("failed to create webserver", "error", err)
		os.Exit(1)
	}

	addr := ":" + strconv.Itoa(conf.WebServerPort)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = e.Shutdown(shutdownCtx)
	}()

	logger.Info("Listening", "addr", addr)
	if err := e.Start(addr); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		// Echo returns an error on Shutdown; treat it as normal if context is done.
		if ctx.Err() != nil {
			return
		}
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}
