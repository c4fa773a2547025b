package queue

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/sib-network/prover-service/x/proofjob"
)

// Memory is a channel-backed queue for development and tests. Unlike the
// Redis backend, unacknowledged deliveries do not survive a process crash.
type Memory struct {
	ch  chan proofjob.Request
	log zerolog.Logger

	mu     sync.Mutex
	closed bool
}

func NewMemory(capacity int, log zerolog.Logger) *Memory {
	if capacity <= 0 {
		capacity = 1024
	}
	return &Memory{
		ch:  make(chan proofjob.Request, capacity),
		log: log.With().Str("component", "job-queue").Logger(),
	}
}

func (q *Memory) Enqueue(_ context.Context, req proofjob.Request) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return errors.New("queue closed")
	}
	select {
	case q.ch <- req:
		return nil
	default:
		return errors.New("queue full")
	}
}

func (q *Memory) Dequeue(ctx context.Context) (*Delivery, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case req, ok := <-q.ch:
		if !ok {
			return nil, errors.New("queue closed")
		}
		return &Delivery{Request: req}, nil
	}
}

func (q *Memory) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.ch)
	}
	return nil
}
