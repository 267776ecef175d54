// Package main implements the entry point for the vivaflow AI worker, which
// consumes task requests, runs structured generation against the configured
// model provider and publishes the results back to the application.
package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/phrazzld/vivaflow/internal/config"
	"github.com/phrazzld/vivaflow/internal/platform/logger"
	"github.com/phrazzld/vivaflow/internal/queue"
	"github.com/phrazzld/vivaflow/internal/worker"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Fatalf("worker failed: %v", err)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load(config.ProcessWorker)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	l, err := logger.Setup(cfg.Server)
	if err != nil {
		return fmt.Errorf("failed to set up logger: %w", err)
	}

	gen, err := newGenerator(ctx, cfg.LLM, l, nil)
	if err != nil {
		return err
	}

	session := queue.NewSession(cfg.Broker, l)
	defer func() {
		if err := session.Close(); err != nil {
			l.Error("failed to close broker session", "error", err)
		}
	}()

	broker, err := queue.NewRedisBroker(session, cfg.Broker.ReceiveTimeout, l)
	if err != nil {
		return fmt.Errorf("failed to create broker: %w", err)
	}

	queues := worker.Queues{
		Requests:  cfg.Broker.OutboundQueue(),
		Responses: cfg.Broker.InboundQueue(),
	}
	if n, err := broker.Recover(ctx, queues.Requests); err != nil {
		l.Warn("failed to recover unacknowledged requests", "error", err)
	} else if n > 0 {
		l.Info("recovered unacknowledged requests", "count", n)
	}

	processor, err := worker.NewProcessor(broker, queues, gen, l)
	if err != nil {
		return fmt.Errorf("failed to create processor: %w", err)
	}

	l.Info("worker started",
		"provider", cfg.LLM.Provider,
		"model", cfg.LLM.ModelName,
		"requests", queues.Requests,
		"responses", queues.Responses)

	if err := processor.Run(ctx); err != nil {
		return fmt.Errorf("processor stopped: %w", err)
	}
	l.Info("worker shutdown completed")
	return nil
}
