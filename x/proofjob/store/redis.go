package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/sib-network/prover-service/x/proofjob"
)

const recordKeyPrefix = "sib:proofjob:"

// Redis stores job records in Redis, using key TTLs for the retention
// window. This is the production backend: retention survives process
// restarts and records are visible across gateway and worker processes.
type Redis struct {
	client    *redis.Client
	retention time.Duration
	log       zerolog.Logger
}

func NewRedis(cfg Config, log zerolog.Logger) (*Redis, error) {
	if cfg.RedisAddr == "" {
		return nil, errors.New("redis addr is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	logger := log.With().Str("component", "result-store").Logger()
	logger.Info().
		Str("backend", "redis").
		Str("addr", cfg.RedisAddr).
		Int("db", cfg.RedisDB).
		Dur("retention", cfg.Retention).
		Msg("result store initialized")

	return &Redis{client: client, retention: cfg.Retention, log: logger}, nil
}

func (s *Redis) Set(ctx context.Context, rec *proofjob.Record) error {
	if rec.JobID == "" {
		return errors.New("record job id is required")
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	if err := s.client.Set(ctx, recordKeyPrefix+rec.JobID, payload, s.retention).Err(); err != nil {
		return fmt.Errorf("set record: %w", err)
	}
	return nil
}

func (s *Redis) Get(ctx context.Context, jobID string) (*proofjob.Record, bool, error) {
	payload, err := s.client.Get(ctx, recordKeyPrefix+jobID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get record: %w", err)
	}
	var rec proofjob.Record
	if err := json.Unmarshal(payload, &rec); err != nil {
		return nil, false, fmt.Errorf("unmarshal record: %w", err)
	}
	return &rec, true, nil
}

func (s *Redis) Delete(ctx context.Context, jobID string) error {
	return s.client.Del(ctx, recordKeyPrefix+jobID).Err()
}

func (s *Redis) Close() error {
	return s.client.Close()
}
