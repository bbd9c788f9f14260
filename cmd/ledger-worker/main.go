package main

import (
	"context"
	"errors"
	"os"
	"time"

	"ledger/internal/amqp"
	"ledger/internal/backend"
	"ledger/internal/cli"
	"ledger/internal/log"
	"ledger/internal/worker"
)

const (
	exportTimeout   = 30 * time.Second
	shutdownTimeout = 10 * time.Second
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(log.ComponentWorker, os.Stdout)
	logger.Info("Starting ledger-worker")

	cfg, err := cli.LoadAndValidateConfig(logger)
	if err != nil {
		os.Exit(1)
	}
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the export worker")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	be, err := cli.OpenBackend(ctx, logger, cfg)
	if err != nil {
		os.Exit(1)
	}

	consumer, err := eventSource(be)
	if err != nil {
		logger.Error("Failed to initialize AMQP consumer", log.FieldError, err)
		_ = be.Cleanup()
		os.Exit(1)
	}

	exports := worker.NewExportWorker(be.Accounts, exportTimeout)

	// be.Cleanup also closes the consumer's connection.
	shutdownCtx, done := cli.GracefulShutdown(ctx, logger, shutdownTimeout, func() {
		if err := be.Cleanup(); err != nil {
			logger.Warn("Failed to release backend", log.FieldError, err)
		}
	})

	go func() {
		err := consumer.ConsumeEvents(shutdownCtx, exports.HandleEvent)
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Event consumption failed", log.FieldError, err)
		}
		cancel()
	}()

	logger.Info("Consuming ledger events",
		"exchange", cfg.AMQPExchange,
		"queue", cfg.AMQPQueue,
		"export_dir", cfg.ExportDir)

	cli.WaitForShutdown(shutdownCtx, done)
}

// eventSource returns the broker connection the backend already opened.
// The factory treats the broker as optional; the worker cannot run without it.
func eventSource(be *backend.BackendResult) (*amqp.Client, error) {
	if be.Events == nil {
		return nil, errors.New("AMQP broker unreachable")
	}
	return be.Events, nil
}
