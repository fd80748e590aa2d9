// Package app wires configuration into the storage and advisor shared by
// the API server and the Telegram bot.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"cashback-advisor/internal/advisor"
	"cashback-advisor/internal/config"
	"cashback-advisor/internal/forecast"
	"cashback-advisor/internal/metrics"
	"cashback-advisor/internal/optimizer"
	"cashback-advisor/internal/storage"
	"cashback-advisor/internal/storage/memory"
	"cashback-advisor/internal/storage/postgres"
)

// OpenStore returns the storage selected by cfg.Storage and a function
// releasing it.
func OpenStore(ctx context.Context, cfg config.Config) (storage.Storage, func(), error) {
	switch cfg.Storage {
	case config.StorageMemory:
		slog.Warn("Используется хранилище в памяти, данные не сохраняются между запусками")
		return memory.NewStorage(), func() {}, nil
	case config.StoragePostgres:
		pool, err := postgres.Connect(ctx, cfg.DBConn, cfg.DBAttempts)
		if err != nil {
			return nil, nil, err
		}
		return postgres.NewStorage(pool), pool.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage %q", cfg.Storage)
	}
}

func NewAdvisor(cfg config.Config, store storage.Storage, m *metrics.Metrics, logger *slog.Logger) *advisor.Service {
	return advisor.New(store, advisor.Options{
		Forecast:  forecast.Options{LegacyDirectWeights: cfg.ForecastLegacyWeights},
		Optimizer: optimizer.Options{MaxSubsets: cfg.OptimizerMaxSubsets},
		Parallel:  true,
		Metrics:   m,
		Logger:    logger,
	})
}
