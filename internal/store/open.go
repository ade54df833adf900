package store

import (
	"context"
	"fmt"

	"shoe-tracker/internal/config"

	"github.com/redis/go-redis/v9"
)

// Open builds the adapter named by cfg.StoreBackend.
func Open(ctx context.Context, cfg config.ServerConfig) (Adapter, error) {
	switch cfg.StoreBackend {
	case config.BackendMemory:
		return NewMemory(), nil
	case config.BackendSQLite:
		return NewSQLite(ctx, cfg.SQLitePath)
	case config.BackendPostgres:
		st, err := New(cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		if err := st.Ping(ctx); err != nil {
			st.Close()
			return nil, err
		}
		return st, nil
	case config.BackendRedis:
		return NewRedis(ctx, &redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, cfg.RedisPrefix)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}
