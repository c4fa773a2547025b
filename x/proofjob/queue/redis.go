package queue

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

const (
	pendingKey    = "sib:proofqueue:pending"
	processingKey = "sib:proofqueue:processing"

	// dequeuePoll bounds each blocking pop so ctx cancellation is honored.
	dequeuePoll = time.Second
)

// listOps is the subset of Redis list commands the broker uses. go-redis
// clients satisfy it; tests substitute an in-memory implementation.
type listOps interface {
	LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	BLMove(ctx context.Context, source, destination, srcpos, destpos string, timeout time.Duration) *redis.StringCmd
	LMove(ctx context.Context, source, destination, srcpos, destpos string) *redis.StringCmd
	LRem(ctx context.Context, key string, count int64, value interface{}) *redis.IntCmd
	Close() error
}

// RedisQueue is a Redis list broker with late acknowledgment: deliveries are
// atomically moved to a processing list and removed only on Ack, so entries
// left behind by a crashed worker can be requeued.
type RedisQueue struct {
	client listOps
	log    zerolog.Logger
}

func NewRedis(cfg Config, log zerolog.Logger) (*RedisQueue, error) {
	if cfg.RedisAddr == "" {
		return nil, errors.New("redis addr is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	logger := log.With().Str("component", "job-queue").Logger()
	logger.Info().Str("addr", cfg.RedisAddr).Int("db", cfg.RedisDB).Msg("job queue initialized")

	return &RedisQueue{client: client, log: logger}, nil
}

func (q *RedisQueue) Enqueue(ctx context.Context, req proofjob.Request) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	if err := q.client.LPush(ctx, pendingKey, payload).Err(); err != nil {
		return fmt.Errorf("dispatch to broker: %w", err)
	}
	return nil
}

func (q *RedisQueue) Dequeue(ctx context.Context) (*Delivery, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		payload, err := q.client.BLMove(ctx, pendingKey, processingKey, "RIGHT", "LEFT", dequeuePoll).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("dequeue: %w", err)
		}

		var req proofjob.Request
		if err := json.Unmarshal([]byte(payload), &req); err != nil {
			// Malformed entries are dropped from the processing list so they
			// cannot loop forever through recovery.
			q.log.Error().Err(err).Msg("dropping malformed queue entry")
			_ = q.client.LRem(ctx, processingKey, 1, payload).Err()
			continue
		}

		return &Delivery{
			Request: req,
			ack: func(ctx context.Context) error {
				return q.client.LRem(ctx, processingKey, 1, payload).Err()
			},
		}, nil
	}
}

// Recover moves unacknowledged deliveries from a previous run back to the
// pending list. Called once at worker startup.
func (q *RedisQueue) Recover(ctx context.Context) (int, error) {
	var n int
	for {
		_, err := q.client.LMove(ctx, processingKey, pendingKey, "RIGHT", "LEFT").Result()
		if errors.Is(err, redis.Nil) {
			return n, nil
		}
		if err != nil {
			return n, fmt.Errorf("recover processing entries: %w", err)
		}
		n++
	}
}

func (q *RedisQueue) Close() error {
	return q.client.Close()
}
