// Package session persists per-conversation state labels in an external
// key-value store keyed by chat id. The contract is a plain get/set: there is
// no compare-and-swap, so concurrent transitions for the same chat id can
// lose an update. That limitation is accepted; fixing it would require a
// different store contract.
package session

import (
	"context"
	"fmt"
)

// Store is the key-value contract consumed by the bot dispatcher.
// Get reports absence via ok=false rather than an error.
type Store interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
}

// Backend labels for Config.Backend.
const (
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Config selects and configures the session store backend.
type Config struct {
	Backend string      `yaml:"backend" envconfig:"SESSION_BACKEND"`
	Redis   RedisConfig `yaml:"redis"`
}

// RedisConfig holds redis connection settings.
type RedisConfig struct {
	Addr     string `yaml:"addr" envconfig:"REDIS_ADDR"`
	Password string `yaml:"password" envconfig:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" envconfig:"REDIS_DB"`
}

// Normalize validates the backend selection and applies defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil session config")
	}
	if cfg.Backend == "" {
		cfg.Backend = BackendRedis
	}
	switch cfg.Backend {
	case BackendRedis:
		if cfg.Redis.Addr == "" {
			cfg.Redis.Addr = "localhost:6379"
		}
	case BackendPostgres, BackendMemory:
	default:
		return fmt.Errorf("invalid session.backend %q; allowed: redis, postgres, memory", cfg.Backend)
	}
	return nil
}
