package queue

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/sib-network/prover-service/x/proofjob"
)

func TestMemory_EnqueueDequeue(t *testing.T) {
	q := NewMemory(4, zerolog.New(io.Discard))
	defer q.Close()
	ctx := t.Context()

	req := proofjob.Request{JobID: "j1", AgentID: "a1", Returns: []float64{0.01, 0.02}}
	require.NoError(t, q.Enqueue(ctx, req))

	d, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.Equal(t, req, d.Request)
	require.NoError(t, d.Ack(ctx))
}

func TestMemory_DequeueHonorsContext(t *testing.T) {
	q := NewMemory(1, zerolog.New(io.Discard))
	defer q.Close()

	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()

	_, err := q.Dequeue(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMemory_EnqueueAfterCloseFails(t *testing.T) {
	q := NewMemory(1, zerolog.New(io.Discard))
	require.NoError(t, q.Close())
	require.Error(t, q.Enqueue(t.Context(), proofjob.Request{JobID: "j1"}))
}

func TestMemory_FullQueueRejects(t *testing.T) {
	q := NewMemory(1, zerolog.New(io.Discard))
	defer q.Close()
	ctx := t.Context()

	require.NoError(t, q.Enqueue(ctx, proofjob.Request{JobID: "j1"}))
	require.Error(t, q.Enqueue(ctx, proofjob.Request{JobID: "j2"}))
}

func TestNew_RejectsUnknownBackend(t *testing.T) {
	_, err := New(Config{Backend: "kafka"}, zerolog.New(io.Discard))
	require.Error(t, err)
}
