package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/phrazzld/vivaflow/internal/api"
	"github.com/phrazzld/vivaflow/internal/config"
	"github.com/phrazzld/vivaflow/internal/queue"
	"github.com/phrazzld/vivaflow/internal/source"
	"github.com/phrazzld/vivaflow/internal/store"
	"github.com/phrazzld/vivaflow/internal/task"
	"github.com/phrazzld/vivaflow/internal/task/handlers"
)

const shutdownTimeout = 10 * time.Second

// closer releases one external resource on shutdown.
type closer struct {
	name  string
	close func() error
}

// dependencies are the external resources the application is built on.
// main supplies Postgres and Redis; tests supply in-memory versions.
type dependencies struct {
	broker      queue.Broker
	health      api.HealthChecker
	submissions store.SubmissionStore
	rubrics     store.RubricStore
	artifacts   store.ArtifactStore
	closers     []closer
}

// application holds all the shared application dependencies to simplify management
// and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger

	tracker    *store.EntityStatusTracker
	submitter  *task.Submitter
	dispatcher *task.Dispatcher
	monitor    *task.StaleMonitor
	router     http.Handler

	closers []closer
}

// newApplication wires the submission path, the response dispatcher and the
// HTTP API over deps.
func newApplication(cfg *config.Config, logger *slog.Logger, deps dependencies) (*application, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if deps.broker == nil {
		return nil, errors.New("broker is required")
	}

	tracker, err := store.NewEntityStatusTracker(deps.submissions, deps.rubrics, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create status tracker: %w", err)
	}

	builders, err := source.NewBuilders(deps.submissions, deps.rubrics, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create payload builders: %w", err)
	}

	submitter, err := task.NewSubmitter(
		deps.broker,
		cfg.Broker.OutboundQueue(),
		tracker,
		builders.All(),
		task.NewDeduplicator(cfg.Dispatch.DebounceWindow),
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create task submitter: %w", err)
	}

	registry, err := handlers.NewRegistry(handlers.Dependencies{
		Tracker:   tracker,
		Rubrics:   deps.rubrics,
		Artifacts: deps.artifacts,
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to register task handlers: %w", err)
	}

	dispatcher, err := task.NewDispatcher(deps.broker, cfg.Broker.InboundQueue(), registry, tracker, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create task dispatcher: %w", err)
	}

	monitor, err := task.NewStaleMonitor(tracker, cfg.Dispatch.StaleCheckSchedule, cfg.Dispatch.StaleTaskAge, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create stale monitor: %w", err)
	}

	taskHandler := api.NewTaskHandler(submitter, deps.submissions, deps.rubrics, deps.artifacts, logger)

	return &application{
		config:     cfg,
		logger:     logger,
		tracker:    tracker,
		submitter:  submitter,
		dispatcher: dispatcher,
		monitor:    monitor,
		router:     api.NewRouter(taskHandler, deps.health, logger),
		closers:    deps.closers,
	}, nil
}

// run serves HTTP on addr and consumes worker responses until ctx is
// cancelled or either loop fails, then shuts both down.
func (app *application) run(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return app.serve(ctx, ln)
}

func (app *application) serve(ctx context.Context, ln net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := app.monitor.Start(ctx); err != nil {
		_ = ln.Close()
		return fmt.Errorf("failed to start stale monitor: %w", err)
	}
	defer app.monitor.Stop()

	dispatchDone := make(chan error, 1)
	go func() {
		dispatchDone <- app.dispatcher.Run(ctx)
	}()

	server := &http.Server{
		Handler:           app.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serverDone := make(chan error, 1)
	go func() {
		app.logger.Info("starting server", "addr", ln.Addr().String())
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverDone <- err
			return
		}
		serverDone <- nil
	}()

	var runErr error
	dispatcherStopped := false
	select {
	case <-ctx.Done():
		app.logger.Info("shutting down server")
	case err := <-serverDone:
		runErr = fmt.Errorf("server failed: %w", err)
		serverDone <- nil
	case err := <-dispatchDone:
		dispatcherStopped = true
		runErr = fmt.Errorf("dispatcher stopped unexpectedly: %v", err)
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		app.logger.Error("server shutdown failed", "error", err)
		if runErr == nil {
			runErr = fmt.Errorf("server shutdown failed: %w", err)
		}
	}
	<-serverDone

	if !dispatcherStopped {
		if err := <-dispatchDone; err != nil {
			app.logger.Error("dispatcher stopped with error", "error", err)
		}
	}

	app.logger.Info("server shutdown completed")
	return runErr
}

// cleanup closes external resources in order, logging failures.
func (app *application) cleanup() {
	for _, c := range app.closers {
		if err := c.close(); err != nil {
			app.logger.Error("failed to close resource", "resource", c.name, "error", err)
		}
	}
	app.closers = nil
}
