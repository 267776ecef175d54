// Package main implements the entry point for the vivaflow application
// server, which accepts AI task requests over HTTP, publishes them to the
// worker and applies the worker's responses.
package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/phrazzld/vivaflow/internal/config"
	"github.com/phrazzld/vivaflow/internal/platform/logger"
	"github.com/phrazzld/vivaflow/internal/platform/postgres"
	"github.com/phrazzld/vivaflow/internal/queue"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}

// run loads configuration, connects to the database and broker, and serves
// until ctx is cancelled.
func run(ctx context.Context) error {
	cfg, err := config.Load(config.ProcessServer)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	l, err := logger.Setup(cfg.Server)
	if err != nil {
		return fmt.Errorf("failed to set up logger: %w", err)
	}
	l.Info("server configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"outbound_queue", cfg.Broker.OutboundQueue(),
		"inbound_queue", cfg.Broker.InboundQueue())

	db, err := setupAppDatabase(ctx, cfg, l)
	if err != nil {
		return err
	}

	if err := postgres.Migrate(ctx, db, l); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	session := queue.NewSession(cfg.Broker, l)
	broker, err := queue.NewRedisBroker(session, cfg.Broker.ReceiveTimeout, l)
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to create broker: %w", err)
	}
	if n, err := broker.Recover(ctx, cfg.Broker.InboundQueue()); err != nil {
		l.Warn("failed to recover unacknowledged responses", "error", err)
	} else if n > 0 {
		l.Info("recovered unacknowledged responses", "count", n)
	}

	app, err := newApplication(cfg, l, dependencies{
		broker:      broker,
		health:      db,
		submissions: postgres.NewPostgresSubmissionStore(db, l),
		rubrics:     postgres.NewPostgresRubricStore(db, l),
		artifacts:   postgres.NewPostgresArtifactStore(db, l),
		closers: []closer{
			{name: "broker", close: session.Close},
			{name: "database", close: db.Close},
		},
	})
	if err != nil {
		_ = session.Close()
		_ = db.Close()
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer app.cleanup()

	return app.run(ctx, fmt.Sprintf(":%d", cfg.Server.Port))
}
