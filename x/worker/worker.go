// Package worker consumes proof jobs from the broker and drives them
// through the executor, one job per worker goroutine, with late
// acknowledgment.
package worker

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/sib-network/prover-service/x/executor"
	"github.com/sib-network/prover-service/x/proofjob/queue"
)

// Config holds worker-pool parameters.
type Config struct {
	// Concurrency is the number of jobs executed in parallel; each worker
	// goroutine is occupied for the full duration of its job.
	Concurrency int `mapstructure:"concurrency" yaml:"concurrency"`
	// SoftTimeLimit is the task's opportunity to wind down cooperatively.
	SoftTimeLimit time.Duration `mapstructure:"soft_time_limit" yaml:"soft_time_limit"`
	// HardTimeLimit forcibly terminates a runaway task.
	HardTimeLimit time.Duration `mapstructure:"hard_time_limit" yaml:"hard_time_limit"`
}

func DefaultConfig() Config {
	return Config{
		Concurrency:   2,
		SoftTimeLimit: 270 * time.Second,
		HardTimeLimit: 300 * time.Second,
	}
}

// recoverer is implemented by queue backends that can requeue deliveries
// left unacknowledged by a crashed worker.
type recoverer interface {
	Recover(ctx context.Context) (int, error)
}

// Pool consumes the queue until its context is canceled.
type Pool struct {
	cfg     Config
	queue   queue.Queue
	exec    *executor.Executor
	metrics *Metrics
	log     zerolog.Logger
}

func New(cfg Config, q queue.Queue, exec *executor.Executor, log zerolog.Logger) *Pool {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	return &Pool{
		cfg:     cfg,
		queue:   q,
		exec:    exec,
		metrics: NewMetrics(),
		log:     log.With().Str("component", "worker-pool").Logger(),
	}
}

// Run blocks until ctx is canceled. Any unacknowledged deliveries from a
// previous run are requeued before consumption starts.
func (p *Pool) Run(ctx context.Context) error {
	if r, ok := p.queue.(recoverer); ok {
		n, err := r.Recover(ctx)
		if err != nil {
			return err
		}
		if n > 0 {
			p.log.Warn().Int("requeued", n).Msg("requeued unacknowledged deliveries from previous run")
		}
	}

	p.log.Info().
		Int("concurrency", p.cfg.Concurrency).
		Dur("soft_time_limit", p.cfg.SoftTimeLimit).
		Dur("hard_time_limit", p.cfg.HardTimeLimit).
		Msg("worker pool starting")

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < p.cfg.Concurrency; i++ {
		g.Go(func() error {
			return p.consume(ctx)
		})
	}
	err := g.Wait()
	p.log.Info().Msg("worker pool stopped")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (p *Pool) consume(ctx context.Context) error {
	for {
		delivery, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.log.Error().Err(err).Msg("dequeue failed")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second):
			}
			continue
		}

		p.runOne(ctx, delivery)
	}
}

// runOne executes a delivery under the time limits and acknowledges it once
// execution has reached a terminal record. Failures are already finalized
// by the executor; only a crash leaves the delivery unacknowledged.
func (p *Pool) runOne(ctx context.Context, delivery *queue.Delivery) {
	req := delivery.Request
	start := time.Now()

	p.metrics.ActiveJobs.Inc()
	defer p.metrics.ActiveJobs.Dec()
	p.metrics.ReturnsLength.Observe(float64(len(req.Returns)))

	jobCtx := ctx
	var cancel context.CancelFunc
	if p.cfg.HardTimeLimit > 0 {
		jobCtx, cancel = context.WithTimeout(ctx, p.cfg.HardTimeLimit)
		defer cancel()
	}

	if p.cfg.SoftTimeLimit > 0 {
		soft := time.AfterFunc(p.cfg.SoftTimeLimit, func() {
			p.log.Warn().Str("job_id", req.JobID).Msg("soft time limit exceeded")
		})
		defer soft.Stop()
	}

	outcome := "success"
	if err := p.exec.Execute(jobCtx, req); err != nil {
		outcome = "failure"
	}
	p.metrics.JobsTotal.WithLabelValues(outcome).Inc()
	p.metrics.ProvingDuration.Observe(time.Since(start).Seconds())

	ackCtx, ackCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer ackCancel()
	if err := delivery.Ack(ackCtx); err != nil {
		p.log.Error().Err(err).Str("job_id", req.JobID).Msg("failed to acknowledge delivery")
	}
}
