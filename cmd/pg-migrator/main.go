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
)

const migrateTimeout = 2 * time.Minute

func main() {
	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(sigCtx, migrateTimeout)
	defer cancel()

	conf, err := config.LoadConfig(ctx)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger := application.InitLogger(conf.LogLevel).With("service", "pg-migrator")

	started := time.Now()
	if err := migrate(ctx, logger, conf); err != nil {
		logger.Error("migration failed", "error", err, "duration", time.Since(started))
		os.Exit(1)
	}
	logger.Info("schema is up to date", "duration", time.Since(started))
}

func migrate(ctx context.Context, logger *slog.Logger, conf *config.Config) error {
	pool, err := application.OpenDBPoolWithRetry(ctx, *conf)
	if err != nil {
		return err
	}
	defer pool.Close()

	dbc, err := db.NewDatabaseConnection(ctx, pool)
	if err != nil {
		return err
	}
	defer dbc.Close()
	logger.Info("connected, applying migrations")

	return dbc.Migrate(ctx)
}
