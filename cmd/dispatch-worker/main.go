// Command dispatch-worker consumes campaign jobs from the broker and sends
// them. Run it next to the API server when AMQP_URL is set.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/thrillee/bulksms/internal/app"
	"github.com/thrillee/bulksms/internal/config"
	"github.com/thrillee/bulksms/internal/logging"
	"github.com/thrillee/bulksms/internal/queue"
)

const reconnectDelay = 5 * time.Second

func main() {
	appCtx, rootCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer rootCancel()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logging.Setup(cfg.LogLevel)

	if cfg.AMQP.URL == "" {
		slog.Error("AMQP_URL is required for the dispatch worker")
		os.Exit(1)
	}
	if cfg.StorageDriver == app.DriverMemory {
		slog.Warn("Dispatch worker with in-memory storage cannot see campaigns created by the API")
	}

	a, err := app.New(appCtx, cfg)
	if err != nil {
		slog.Error("Failed to initialise services", slog.Any("error", err))
		os.Exit(1)
	}
	defer a.Close()

	conn, err := queue.NewConnection(cfg.AMQP.URL)
	if err != nil {
		slog.Error("Failed to connect to broker", slog.Any("error", err))
		os.Exit(1)
	}
	defer conn.Close()

	consumer, err := queue.NewConsumer(conn, cfg.AMQP.Queue, cfg.Workers.SchedulerConcurrency, a.Orchestrator.HandleJob)
	if err != nil {
		slog.Error("Failed to create consumer", slog.Any("error", err))
		os.Exit(1)
	}

	go func() {
		<-appCtx.Done()
		// running campaigns stop after their current recipient; the API
		// server's recovery loop requeues them once they stall
		a.Orchestrator.Drain()
	}()

	slog.Info("Dispatch worker started", slog.String("queue", cfg.AMQP.Queue))
	for appCtx.Err() == nil {
		err := consumer.Run(appCtx)
		if appCtx.Err() != nil {
			break
		}
		slog.Error("Consumer stopped, reconnecting", slog.Any("error", err), slog.Duration("delay", reconnectDelay))
		select {
		case <-appCtx.Done():
		case <-time.After(reconnectDelay):
		}
	}
	slog.Info("Dispatch worker stopped")
}
