package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/sib-network/prover-service/prover-app/config"
	apisrv "github.com/sib-network/prover-service/server/api"
	apimw "github.com/sib-network/prover-service/server/api/middleware"
	"github.com/sib-network/prover-service/x/executor"
	"github.com/sib-network/prover-service/x/ezkl"
	proofhttp "github.com/sib-network/prover-service/x/proofjob/http"
	"github.com/sib-network/prover-service/x/proofjob/queue"
	"github.com/sib-network/prover-service/x/proofjob/store"
	"github.com/sib-network/prover-service/x/worker"
)

// App wires the gateway and worker halves of the prover service.
type App struct {
	cfg *config.Config
	log zerolog.Logger

	store store.Store
	queue queue.Queue
	pool  *worker.Pool

	apiServer *apisrv.Server

	cancel context.CancelFunc
}

// NewApp creates a new application instance
func NewApp(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	app := &App{
		cfg: cfg,
		log: log.With().Str("component", "app").Logger(),
	}

	if err := app.initialize(ctx, log); err != nil {
		return nil, fmt.Errorf("failed to initialize app: %w", err)
	}

	return app, nil
}

// initialize sets up the result store, the broker, the proving backend and
// the role-dependent components.
func (a *App) initialize(ctx context.Context, log zerolog.Logger) error {
	st, err := store.New(ctx, a.cfg.Store, log)
	if err != nil {
		return fmt.Errorf("failed to open result store: %w", err)
	}
	a.store = st

	q, err := queue.New(a.cfg.Queue, log)
	if err != nil {
		return fmt.Errorf("failed to open job queue: %w", err)
	}
	a.queue = q

	runner, available := ezkl.Probe(a.cfg.Ezkl, log)
	if a.cfg.Executor.Mode == "real" && !available {
		a.log.Warn().Msg("real mode configured but no proving backend is loadable, jobs will run simulated")
	}

	if a.cfg.Role == config.RoleWorker || a.cfg.Role == config.RoleAll {
		execCfg := a.cfg.Executor
		if len(execCfg.StepDelays) == 0 {
			execCfg.StepDelays = executor.DefaultConfig().StepDelays
		}
		exec := executor.New(execCfg, ezkl.NewArtifacts(a.cfg.Ezkl.ModelDir), a.store, runner, log)
		a.pool = worker.New(a.cfg.Worker, a.queue, exec, log)
	}

	if a.cfg.Role == config.RoleGateway || a.cfg.Role == config.RoleAll {
		s := apisrv.NewServer(a.cfg.API, log)
		s.Use(apimw.Recover(log))
		s.Use(apimw.RequestID())
		s.Use(apimw.Logger(log))
		s.EnableCORS()

		if a.cfg.Metrics.Enabled {
			s.Router.Handle(a.cfg.Metrics.Path, promhttp.Handler()).Methods(http.MethodGet)
		}

		health := proofhttp.EffectiveHealth(Version, a.cfg.Executor.Mode, a.cfg.BrokerAddr(), runner)
		handler := proofhttp.NewHandler(a.queue, a.store, health, log)
		handler.RegisterMux(s.Router)

		a.apiServer = s
	}

	return nil
}

// Run starts the application and blocks until shutdown.
func (a *App) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	errCh := make(chan error, 2)

	if a.pool != nil {
		go func() {
			if err := a.pool.Run(runCtx); err != nil {
				a.log.Error().Err(err).Msg("Worker pool error")
				errCh <- err
			}
		}()
	}

	if a.apiServer != nil {
		go func() {
			if err := a.apiServer.Start(runCtx); err != nil {
				a.log.Error().Err(err).Msg("API server error")
				errCh <- err
			}
		}()
	}

	return a.runWithGracefulShutdown(runCtx, errCh)
}

// runWithGracefulShutdown handles shutdown signals.
func (a *App) runWithGracefulShutdown(ctx context.Context, errCh <-chan error) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	a.log.Info().Str("role", a.cfg.Role).Msg("SIB prover service started successfully")

	var runErr error
	select {
	case <-ctx.Done():
		a.log.Info().Msg("Context canceled, initiating shutdown")
	case sig := <-sigCh:
		a.log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
	case runErr = <-errCh:
		a.log.Error().Err(runErr).Msg("Component failure, initiating shutdown")
	}

	if a.cancel != nil {
		a.cancel()
	}

	if err := a.shutdown(); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

// shutdown closes the broker and the result store after the servers have
// stopped accepting work.
func (a *App) shutdown() error {
	a.log.Info().Msg("Initiating graceful shutdown")

	var firstErr error
	if a.queue != nil {
		if err := a.queue.Close(); err != nil {
			a.log.Error().Err(err).Msg("Queue shutdown error")
			firstErr = err
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Error().Err(err).Msg("Store shutdown error")
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	a.log.Info().Msg("Graceful shutdown complete")
	return firstErr
}
