// Package store persists per-job state with a bounded retention window.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/sib-network/prover-service/x/proofjob"
)

// Store holds job records keyed by job id. The executor is the sole writer
// per id, the gateway the sole reader, so no cross-key coordination is
// needed.
type Store interface {
	Set(ctx context.Context, rec *proofjob.Record) error
	Get(ctx context.Context, jobID string) (*proofjob.Record, bool, error)
	Delete(ctx context.Context, jobID string) error
	Close() error
}

// Config selects and parameterizes a store backend.
type Config struct {
	// Backend is one of redis, syncmap, file, badgerdb.
	Backend string `mapstructure:"backend" yaml:"backend"`
	// Options is backend-specific JSON (directory, codec) for local backends.
	Options string `mapstructure:"options" yaml:"options"`
	// Retention bounds how long a record outlives its last write.
	Retention time.Duration `mapstructure:"retention" yaml:"retention"`

	RedisAddr     string `mapstructure:"redis_addr" yaml:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password" yaml:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db" yaml:"redis_db"`
}

func DefaultConfig() Config {
	return Config{
		Backend:   "redis",
		Retention: time.Hour,
		RedisAddr: "localhost:6379",
		RedisDB:   1,
	}
}

// New constructs the configured store backend.
func New(ctx context.Context, cfg Config, log zerolog.Logger) (Store, error) {
	if cfg.Retention <= 0 {
		cfg.Retention = time.Hour
	}
	switch cfg.Backend {
	case "redis":
		return NewRedis(cfg, log)
	case "syncmap", "file", "badgerdb":
		return NewLocal(ctx, cfg, log)
	default:
		return nil, fmt.Errorf("unsupported store backend %q", cfg.Backend)
	}
}
