package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
)

const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

type ServerConfig struct {
	HTTPAddr    string `env:"HTTP_ADDR" envDefault:":8080"`
	AdminAPIKey string `env:"ADMIN_API_KEY"`

	StoreBackend  string `env:"STORE_BACKEND" envDefault:"sqlite"`
	PostgresDSN   string `env:"POSTGRES_DSN"`
	SQLitePath    string `env:"SQLITE_PATH" envDefault:"data/tracker.db"`
	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
	RedisPrefix   string `env:"REDIS_PREFIX" envDefault:"tracker"`

	Decks             int    `env:"SHOE_DECKS" envDefault:"8"`
	ShuffleIterations int    `env:"SHUFFLE_ITERATIONS" envDefault:"4"`
	ShuffleChunks     int    `env:"SHUFFLE_CHUNKS" envDefault:"8"`
	InitialShoe       string `env:"INITIAL_SHOE" envDefault:"Shoe 1"`
}

func LoadServer() (ServerConfig, error) {
	var cfg ServerConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, err
	}
	cfg.StoreBackend = strings.ToLower(strings.TrimSpace(cfg.StoreBackend))
	switch cfg.StoreBackend {
	case BackendMemory, BackendSQLite, BackendRedis:
	case BackendPostgres:
		if strings.TrimSpace(cfg.PostgresDSN) == "" {
			return cfg, fmt.Errorf("POSTGRES_DSN is required for the postgres backend")
		}
	default:
		return cfg, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
	}
	if cfg.Decks < 1 {
		return cfg, fmt.Errorf("SHOE_DECKS must be at least 1, got %d", cfg.Decks)
	}
	return cfg, nil
}
