package learning

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pilot/internal/config"
)

// Open builds the store selected by cfg. The returned close func releases
// any pool and is never nil.
func Open(ctx context.Context, cfg config.LearningConfig, logger *zap.Logger) (Store, func(), error) {
	switch strings.ToLower(cfg.Backend) {
	case "", config.LearningBackendCSV:
		return NewCSVStore(cfg.CSVPath, logger), func() {}, nil
	case config.LearningBackendPostgres:
		pool, err := pgxpool.New(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, func() {}, fmt.Errorf("failed to create database pool: %w", err)
		}
		store, err := NewPostgresStore(ctx, pool, logger)
		if err != nil {
			pool.Close()
			return nil, func() {}, err
		}
		if err := store.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, func() {}, err
		}
		return store, pool.Close, nil
	default:
		return nil, func() {}, fmt.Errorf("unknown learning backend %q", cfg.Backend)
	}
}
