package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/botforge/botforge/internal/repository"
	"github.com/botforge/botforge/internal/repository/postgres"
	"github.com/botforge/botforge/internal/repository/sqlite"
	"github.com/botforge/botforge/pkg/config"
)

func openStore(ctx context.Context, cfg *config.Config, log *slog.Logger) (repository.Store, error) {
	switch cfg.Storage.Driver {
	case config.DriverPostgres:
		store, err := postgres.Open(ctx, cfg.Database, log)
		if err != nil {
			return nil, err
		}
		log.Info("postgres storage ready", slog.String("host", cfg.Database.Host), slog.String("database", cfg.Database.Name))
		return store, nil
	case config.DriverSQLite, "":
		store, err := sqlite.Open(cfg.Storage.SQLitePath, log)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}
