// Package queue carries proof-job dispatch between the gateway and the
// worker pool with late acknowledgment.
package queue

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/sib-network/prover-service/x/proofjob"
)

// Queue is the broker boundary. Dequeue blocks until a job is available or
// ctx is done. A delivery is not considered consumed until Ack is called;
// a worker crash before Ack causes redelivery, so duplicate execution of a
// completed job must be tolerated downstream.
type Queue interface {
	Enqueue(ctx context.Context, req proofjob.Request) error
	Dequeue(ctx context.Context) (*Delivery, error)
	Close() error
}

// Delivery is a dequeued request plus its acknowledgment handle.
type Delivery struct {
	Request proofjob.Request

	ack func(ctx context.Context) error
}

// Ack marks the delivery consumed. Safe to call once per delivery.
func (d *Delivery) Ack(ctx context.Context) error {
	if d.ack == nil {
		return nil
	}
	return d.ack(ctx)
}

// Config selects and parameterizes a queue backend.
type Config struct {
	// Backend is one of redis, memory.
	Backend string `mapstructure:"backend" yaml:"backend"`

	RedisAddr     string `mapstructure:"redis_addr" yaml:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password" yaml:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db" yaml:"redis_db"`

	// MemoryCapacity bounds the in-memory backend's buffer.
	MemoryCapacity int `mapstructure:"memory_capacity" yaml:"memory_capacity"`
}

func DefaultConfig() Config {
	return Config{
		Backend:        "redis",
		RedisAddr:      "localhost:6379",
		RedisDB:        0,
		MemoryCapacity: 1024,
	}
}

// New constructs the configured queue backend.
func New(cfg Config, log zerolog.Logger) (Queue, error) {
	switch cfg.Backend {
	case "redis":
		return NewRedis(cfg, log)
	case "memory":
		return NewMemory(cfg.MemoryCapacity, log), nil
	default:
		return nil, fmt.Errorf("unsupported queue backend %q", cfg.Backend)
	}
}
