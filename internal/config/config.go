package config

import (
	"context"
	"errors"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Config carries runtime settings, read from GATEHOUSE_* environment
// variables. Redis is optional; without it permission sets are cached
// in process.
type Config struct {
	Addr     string `env:"GATEHOUSE_ADDR, default=:8080"`
	GRPCAddr string `env:"GATEHOUSE_GRPC_ADDR, default="`

	PGDSN string `env:"GATEHOUSE_PG_DSN"`

	Redis RedisConfig

	Auth  AuthConfig
	Cache CacheConfig

	RateLimitRPS   float64 `env:"GATEHOUSE_RATE_LIMIT_RPS, default=20"`
	RateLimitBurst int     `env:"GATEHOUSE_RATE_LIMIT_BURST, default=40"`
}

type RedisConfig struct {
	Addr    string        `env:"GATEHOUSE_REDIS_ADDR"`
	DB      int           `env:"GATEHOUSE_REDIS_DB, default=0"`
	Timeout time.Duration `env:"GATEHOUSE_REDIS_TIMEOUT, default=5s"`
}

type AuthConfig struct {
	Secret   string        `env:"GATEHOUSE_AUTH_SECRET"`
	TokenTTL time.Duration `env:"GATEHOUSE_TOKEN_TTL, default=15m"`
}

type CacheConfig struct {
	TTL       time.Duration `env:"GATEHOUSE_CACHE_TTL, default=5m"`
	LocalSize int           `env:"GATEHOUSE_LOCAL_CACHE_SIZE, default=4096"`
}

// Load reads configuration from the environment.
func Load(ctx context.Context) (*Config, error) {
	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return nil, err
	}
	if cfg.Auth.Secret == "" {
		return nil, errors.New("config: GATEHOUSE_AUTH_SECRET is required")
	}
	return &cfg, nil
}
