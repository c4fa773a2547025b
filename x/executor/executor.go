// Package executor runs proof jobs: it selects a proving strategy, reports
// progress through the result store, and finalizes each job exactly once.
package executor

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/sib-network/prover-service/x/ezkl"
	"github.com/sib-network/prover-service/x/proofjob"
	"github.com/sib-network/prover-service/x/proofjob/store"
)

// Config holds executor parameters. Mode and backend availability are
// resolved once at startup and injected; the executor never re-probes.
type Config struct {
	// Mode is the configured execution mode, real or simulated. Real only
	// takes effect when a proving backend was available at startup.
	Mode string `mapstructure:"mode" yaml:"mode"`
	// StepDelays paces the four simulated stages. Zero values disable
	// pacing; order and progress values are fixed either way.
	StepDelays []time.Duration `mapstructure:"step_delays" yaml:"step_delays"`
}

func DefaultConfig() Config {
	return Config{
		Mode: "simulated",
		StepDelays: []time.Duration{
			1000 * time.Millisecond,
			800 * time.Millisecond,
			800 * time.Millisecond,
			400 * time.Millisecond,
		},
	}
}

// Executor executes one proof job at a time per call. It is the sole writer
// of job records; duplicate execution of a completed job id overwrites the
// record with equivalent content.
type Executor struct {
	cfg    Config
	art    ezkl.Artifacts
	store  store.Store
	runner ezkl.Runner // nil when no proving backend is loadable
	log    zerolog.Logger
}

func New(cfg Config, art ezkl.Artifacts, st store.Store, runner ezkl.Runner, log zerolog.Logger) *Executor {
	return &Executor{
		cfg:    cfg,
		art:    art,
		store:  st,
		runner: runner,
		log:    log.With().Str("component", "executor").Logger(),
	}
}

// Execute runs the job to a terminal state. The returned error reports an
// execution failure that was already recorded as FAILURE; callers use it
// for logging and metrics only, never for retries.
func (e *Executor) Execute(ctx context.Context, req proofjob.Request) error {
	log := e.log.With().Str("job_id", req.JobID).Logger()

	useReal := e.cfg.Mode == "real" && e.runner != nil
	log.Info().
		Str("agent_id", req.AgentID).
		Int("returns", len(req.Returns)).
		Bool("real_mode", useReal).
		Msg("starting proof job")

	if err := e.report(ctx, req.JobID, 10, "Initializing proof pipeline..."); err != nil {
		e.finalizeFailure(req.JobID, err)
		return err
	}

	var (
		result *proofjob.Result
		err    error
	)
	if useReal {
		result, err = e.runReal(ctx, req)

		var missing *ezkl.MissingArtifactsError
		if errors.As(err, &missing) {
			// The artifacts check runs before any side effect, so the
			// simulated pipeline starts from scratch. This is the only
			// recovered condition.
			log.Warn().Err(err).Msg("missing artifacts, falling back to simulated proving")
			result, err = e.runSimulated(ctx, req)
			if err == nil {
				result.Mode = proofjob.ModeSimulatedFallback
			}
		}
	} else {
		result, err = e.runSimulated(ctx, req)
	}

	if err != nil {
		log.Error().Err(err).Msg("proof generation failed")
		e.finalizeFailure(req.JobID, err)
		return err
	}

	result.JobID = req.JobID
	result.AgentID = req.AgentID
	e.finalizeSuccess(req.JobID, result)

	log.Info().
		Float64("sharpe", result.SharpeRatio).
		Bool("verified", result.Verified).
		Str("mode", result.Mode).
		Float64("proving_time", result.ProvingTime).
		Msg("proof complete")
	return nil
}

// report writes a PROCESSING record with the given progress metadata.
func (e *Executor) report(ctx context.Context, jobID string, progress int, message string) error {
	return e.store.Set(ctx, &proofjob.Record{
		JobID:     jobID,
		State:     proofjob.StateProcessing,
		Progress:  progress,
		Message:   message,
		UpdatedAt: time.Now().UTC(),
	})
}

// Finalization writes use a detached context: a terminal record must land
// even when the job's own context was canceled by the hard time limit.
func (e *Executor) finalizeSuccess(jobID string, result *proofjob.Result) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.store.Set(ctx, &proofjob.Record{
		JobID:     jobID,
		State:     proofjob.StateSuccess,
		Progress:  100,
		Message:   "Proof generation complete",
		Result:    result,
		UpdatedAt: time.Now().UTC(),
	}); err != nil {
		e.log.Error().Err(err).Str("job_id", jobID).Msg("failed to store success record")
	}
}

func (e *Executor) finalizeFailure(jobID string, cause error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.store.Set(ctx, &proofjob.Record{
		JobID:     jobID,
		State:     proofjob.StateFailure,
		Message:   "Proof generation failed",
		Error:     cause.Error(),
		UpdatedAt: time.Now().UTC(),
	}); err != nil {
		e.log.Error().Err(err).Str("job_id", jobID).Msg("failed to store failure record")
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
