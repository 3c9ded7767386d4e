package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"finledger/internal/config"
	"finledger/internal/core"
	"finledger/internal/db"
	"finledger/internal/store/memory"
	"finledger/internal/store/postgres"
	"finledger/migrations"
)

// Open builds the ApplicationService selected by cfg.StoreDriver. For postgres it
// connects the pool and, when AUTO_MIGRATE is set, applies pending migrations first.
// The returned func releases the store and must be called on shutdown.
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger, rec core.Recorder) (ApplicationService, func(), error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts := Options{
		Rules:    core.DefaultRules(),
		Policy:   cfg.Policy(),
		Currency: cfg.BaseCurrency,
		Logger:   logger,
		Recorder: rec,
	}

	switch cfg.StoreDriver {
	case config.DriverMemory:
		logger.Warn("using in-memory store; data is lost on exit")
		return NewAppService(memory.New(), opts), func() {}, nil

	case config.DriverPostgres:
		if cfg.AutoMigrate {
			if err := migrations.Up(ctx, cfg.DatabaseURL, logger); err != nil {
				return nil, nil, err
			}
		}
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("database: %w", err)
		}
		return NewAppService(postgres.New(pool), opts), pool.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}
