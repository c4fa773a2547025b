package store

import (
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/sib-network/prover-service/x/proofjob"
)

func newSyncMapStore(t *testing.T, retention time.Duration) *Local {
	t.Helper()
	cfg := Config{Backend: "syncmap", Retention: retention}
	s, err := NewLocal(t.Context(), cfg, zerolog.New(io.Discard))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestLocal_SetGetDelete(t *testing.T) {
	s := newSyncMapStore(t, time.Hour)
	ctx := t.Context()

	_, found, err := s.Get(ctx, "missing")
	require.NoError(t, err)
	require.False(t, found)

	rec := &proofjob.Record{
		JobID:    "job-1",
		State:    proofjob.StateProcessing,
		Progress: 30,
		Message:  "Generating witness from returns data...",
	}
	require.NoError(t, s.Set(ctx, rec))

	got, found, err := s.Get(ctx, "job-1")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, rec.State, got.State)
	require.Equal(t, rec.Progress, got.Progress)

	require.NoError(t, s.Delete(ctx, "job-1"))
	_, found, err = s.Get(ctx, "job-1")
	require.NoError(t, err)
	require.False(t, found)
}

func TestLocal_IdempotentRead(t *testing.T) {
	s := newSyncMapStore(t, time.Hour)
	ctx := t.Context()

	rec := &proofjob.Record{
		JobID: "job-2",
		State: proofjob.StateSuccess,
		Result: &proofjob.Result{
			JobID:    "job-2",
			AgentID:  "agent-x",
			ProofHex: "0xdeadbeef",
			Verified: true,
			Mode:     proofjob.ModeSimulated,
		},
	}
	require.NoError(t, s.Set(ctx, rec))

	first, _, err := s.Get(ctx, "job-2")
	require.NoError(t, err)
	second, _, err := s.Get(ctx, "job-2")
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestLocal_Sweep(t *testing.T) {
	s := newSyncMapStore(t, 10*time.Millisecond)
	ctx := t.Context()

	require.NoError(t, s.Set(ctx, &proofjob.Record{JobID: "old", State: proofjob.StateSuccess}))
	time.Sleep(20 * time.Millisecond)
	s.sweep()

	_, found, err := s.Get(ctx, "old")
	require.NoError(t, err)
	require.False(t, found)
}

func TestNew_RejectsUnknownBackend(t *testing.T) {
	_, err := New(t.Context(), Config{Backend: "cassandra"}, zerolog.New(io.Discard))
	require.Error(t, err)
}
