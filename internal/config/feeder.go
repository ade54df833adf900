package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

type FeederConfig struct {
	WSURL string        `env:"FEEDER_WS_URL" envDefault:"ws://localhost:8080/ws/snapshots"`
	File  string        `env:"FEEDER_FILE"`
	Delay time.Duration `env:"FEEDER_DELAY" envDefault:"250ms"`
}

func LoadFeeder() (FeederConfig, error) {
	var cfg FeederConfig
	err := env.Parse(&cfg)
	return cfg, err
}
