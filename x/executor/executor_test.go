package executor

import (
	"context"
	"encoding/hex"
	"errors"
	"io"
	"math/big"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	fr "github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/sib-network/prover-service/x/ezkl"
	"github.com/sib-network/prover-service/x/proofjob"
)

// recordingStore captures every write so tests can assert on the full
// progress sequence, not just the final record.
type recordingStore struct {
	mu      sync.Mutex
	history []proofjob.Record
}

func (s *recordingStore) Set(_ context.Context, rec *proofjob.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, *rec)
	return nil
}

func (s *recordingStore) Get(_ context.Context, jobID string) (*proofjob.Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.history) - 1; i >= 0; i-- {
		if s.history[i].JobID == jobID {
			rec := s.history[i]
			return &rec, true, nil
		}
	}
	return nil, false, nil
}

func (s *recordingStore) Delete(context.Context, string) error { return nil }
func (s *recordingStore) Close() error                         { return nil }

func (s *recordingStore) progressSequence() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int, len(s.history))
	for i, rec := range s.history {
		out[i] = rec.Progress
	}
	return out
}

// failingRunner fails at a chosen stage with a non-artifact error.
type failingRunner struct{ stage string }

func (r *failingRunner) GenWitness(context.Context, string, string, string) error {
	if r.stage == "witness" {
		return errors.New("witness solver exploded")
	}
	return nil
}

func (r *failingRunner) Prove(context.Context, string, string, string, string, string) error {
	if r.stage == "prove" {
		return errors.New("prover exploded")
	}
	return nil
}

func (r *failingRunner) Verify(context.Context, string, string, string, string) (bool, error) {
	return false, errors.New("verifier exploded")
}

func (r *failingRunner) Version() string { return "failing" }

func noDelayConfig(mode string) Config {
	return Config{
		Mode:       mode,
		StepDelays: []time.Duration{0, 0, 0, 0},
	}
}

func newTestExecutor(mode, modelDir string, st *recordingStore, runner ezkl.Runner) *Executor {
	return New(noDelayConfig(mode), ezkl.NewArtifacts(modelDir), st, runner, zerolog.New(io.Discard))
}

func writeArtifacts(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	art := ezkl.NewArtifacts(dir)
	for _, p := range []string{
		art.Model(), art.Settings(), art.Circuit(),
		art.ProvingKey(), art.VerifyingKey(), art.SRS(),
	} {
		require.NoError(t, os.WriteFile(p, []byte("artifact"), 0o644))
	}
	return dir
}

func TestExecute_SimulatedSuccess(t *testing.T) {
	st := &recordingStore{}
	exec := newTestExecutor("simulated", "", st, nil)

	req := proofjob.Request{JobID: "job-1", AgentID: "agent-1", Returns: []float64{0.01, -0.005, 0.02, 0.0, -0.01}}
	require.NoError(t, exec.Execute(t.Context(), req))

	rec, found, err := st.Get(t.Context(), "job-1")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, proofjob.StateSuccess, rec.State)
	require.Equal(t, 100, rec.Progress)
	require.NotNil(t, rec.Result)

	result := rec.Result
	require.Equal(t, "job-1", result.JobID)
	require.Equal(t, "agent-1", result.AgentID)
	require.Equal(t, proofjob.ModeSimulated, result.Mode)
	require.True(t, result.Verified)

	// 0x prefix plus 3072 bytes of hex.
	require.Len(t, result.ProofHex, 2+2*3072)
	_, err = hex.DecodeString(strings.TrimPrefix(result.ProofHex, "0x"))
	require.NoError(t, err)

	require.Len(t, result.Instances, 31)
	modulus := fr.Modulus()
	for _, inst := range result.Instances {
		require.True(t, strings.HasPrefix(inst, "0x"))
		raw, err := hex.DecodeString(strings.TrimPrefix(inst, "0x"))
		require.NoError(t, err)
		require.Len(t, raw, 32)
		v := new(big.Int).SetBytes(raw)
		require.Negative(t, v.Cmp(modulus), "instance must be strictly below the field modulus")
	}
}

func TestExecute_ProgressStrictlyIncreasing(t *testing.T) {
	st := &recordingStore{}
	exec := newTestExecutor("simulated", "", st, nil)

	req := proofjob.Request{JobID: "job-2", AgentID: "a", Returns: []float64{0.01, 0.02, -0.01}}
	require.NoError(t, exec.Execute(t.Context(), req))

	seq := st.progressSequence()
	require.Equal(t, []int{10, 25, 50, 75, 90, 100}, seq)
	for i := 1; i < len(seq); i++ {
		require.Greater(t, seq[i], seq[i-1])
	}
}

func TestExecute_FallbackOnMissingArtifacts(t *testing.T) {
	st := &recordingStore{}
	// Real mode with a loadable backend, but an empty model directory.
	runner := ezkl.NewNative(ezkl.NewArtifacts(t.TempDir()), zerolog.New(io.Discard))
	exec := newTestExecutor("real", t.TempDir(), st, runner)

	req := proofjob.Request{JobID: "job-3", AgentID: "a", Returns: []float64{0.01, 0.02}}
	require.NoError(t, exec.Execute(t.Context(), req))

	rec, found, err := st.Get(t.Context(), "job-3")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, proofjob.StateSuccess, rec.State)
	require.Equal(t, proofjob.ModeSimulatedFallback, rec.Result.Mode)
	require.True(t, rec.Result.Verified)
}

func TestExecute_RealFailureIsNotRetried(t *testing.T) {
	st := &recordingStore{}
	dir := writeArtifacts(t)
	exec := newTestExecutor("real", dir, st, &failingRunner{stage: "witness"})

	req := proofjob.Request{JobID: "job-4", AgentID: "a", Returns: []float64{0.01, 0.02}}
	err := exec.Execute(t.Context(), req)
	require.Error(t, err)

	rec, found, getErr := st.Get(t.Context(), "job-4")
	require.NoError(t, getErr)
	require.True(t, found)
	require.Equal(t, proofjob.StateFailure, rec.State)
	require.Contains(t, rec.Error, "witness solver exploded")
	require.Nil(t, rec.Result)
}

func TestExecute_SimulatedFallsBackWhenRunnerNil(t *testing.T) {
	st := &recordingStore{}
	// Configured real but no backend was loadable at startup.
	exec := newTestExecutor("real", writeArtifacts(t), st, nil)

	req := proofjob.Request{JobID: "job-5", AgentID: "a", Returns: []float64{0.01, 0.02}}
	require.NoError(t, exec.Execute(t.Context(), req))

	rec, _, err := st.Get(t.Context(), "job-5")
	require.NoError(t, err)
	require.Equal(t, proofjob.ModeSimulated, rec.Result.Mode)
}

func TestExecute_DuplicateExecutionStaysTerminal(t *testing.T) {
	st := &recordingStore{}
	exec := newTestExecutor("simulated", "", st, nil)

	req := proofjob.Request{JobID: "job-6", AgentID: "a", Returns: []float64{0.01, 0.02, 0.03}}
	require.NoError(t, exec.Execute(t.Context(), req))
	first, _, err := st.Get(t.Context(), "job-6")
	require.NoError(t, err)

	// Redelivery after a crash re-executes the same job id; the record is
	// overwritten with equivalent terminal content.
	require.NoError(t, exec.Execute(t.Context(), req))
	second, _, err := st.Get(t.Context(), "job-6")
	require.NoError(t, err)

	require.Equal(t, proofjob.StateSuccess, first.State)
	require.Equal(t, proofjob.StateSuccess, second.State)
	require.Equal(t, first.Result.SharpeRatio, second.Result.SharpeRatio)
	require.Equal(t, first.Result.Mode, second.Result.Mode)
}

func TestExecute_CanceledContextFails(t *testing.T) {
	st := &recordingStore{}
	cfg := Config{Mode: "simulated", StepDelays: []time.Duration{time.Hour, 0, 0, 0}}
	exec := New(cfg, ezkl.Artifacts{}, st, nil, zerolog.New(io.Discard))

	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()

	req := proofjob.Request{JobID: "job-7", AgentID: "a", Returns: []float64{0.01, 0.02}}
	require.Error(t, exec.Execute(ctx, req))

	rec, found, err := st.Get(t.Context(), "job-7")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, proofjob.StateFailure, rec.State)
}

func TestRunSimulated_DeterministicShape(t *testing.T) {
	st := &recordingStore{}
	exec := newTestExecutor("simulated", "", st, nil)

	req := proofjob.Request{JobID: "job-8", AgentID: "a", Returns: []float64{0.01, 0.02, 0.03}}
	r1, err := exec.runSimulated(t.Context(), req)
	require.NoError(t, err)
	r2, err := exec.runSimulated(t.Context(), req)
	require.NoError(t, err)

	// Timestamps differ between runs, but the shape is fixed.
	require.Len(t, r1.Instances, len(r2.Instances))
	require.Len(t, r1.ProofHex, len(r2.ProofHex))
	require.Equal(t, r1.SharpeRatio, r2.SharpeRatio)
}
