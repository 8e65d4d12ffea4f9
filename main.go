package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/thrillee/bulksms/internal/api/handlers"
	"github.com/thrillee/bulksms/internal/app"
	"github.com/thrillee/bulksms/internal/config"
	"github.com/thrillee/bulksms/internal/logging"
	"github.com/thrillee/bulksms/internal/queue"
	"github.com/thrillee/bulksms/internal/workers"
)

func main() {
	appCtx, rootCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer rootCancel()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logging.Setup(cfg.LogLevel)

	a, err := app.New(appCtx, cfg)
	if err != nil {
		slog.Error("Failed to initialise services", slog.Any("error", err))
		os.Exit(1)
	}
	defer a.Close()

	// --- Campaign jobs: broker when configured, in-process otherwise ---
	var (
		jobs     queue.Enqueuer
		inline   *queue.Inline
		schedule queue.Handler
	)
	if cfg.AMQP.URL != "" {
		conn, err := queue.NewConnection(cfg.AMQP.URL)
		if err != nil {
			slog.Error("Failed to connect to broker", slog.Any("error", err))
			os.Exit(1)
		}
		defer conn.Close()
		publisher, err := queue.NewPublisher(conn, cfg.AMQP.Queue)
		if err != nil {
			slog.Error("Failed to create job publisher", slog.Any("error", err))
			os.Exit(1)
		}
		jobs, schedule = publisher, publisher.Enqueue
		slog.Info("Campaign jobs go to broker", slog.String("queue", cfg.AMQP.Queue))
	} else {
		inline = queue.NewInline(a.Orchestrator.HandleJob)
		jobs, schedule = inline, inline.Enqueue
		slog.Info("Campaign jobs run in process")
	}

	workerManager := workers.NewManager(a.Store, a.Ledger, schedule, a.Notifier, cfg.Workers)
	workerManager.Start(appCtx)

	// --- HTTP API ---
	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := handlers.NewRouter(handlers.Deps{
		Campaigns:  a.Campaigns,
		Dispatcher: a.Orchestrator,
		Ledger:     a.Ledger,
		Jobs:       jobs,
		Reconciler: a.Reconciler,
		Payments:   a.Payments,
		WebhookKey: a.WebhookKey,
		Gatherer:   a.Registry,
		Checks:     a.HealthChecks(),
	})

	srv := &http.Server{
		Addr:         cfg.API.Addr,
		Handler:      router,
		ReadTimeout:  cfg.API.ReadTimeout,
		WriteTimeout: cfg.API.WriteTimeout,
		IdleTimeout:  cfg.API.IdleTimeout,
		ErrorLog:     slog.NewLogLogger(slog.Default().Handler(), slog.LevelWarn),
	}

	go func() {
		slog.Info("Starting bulk SMS API server", slog.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("API ListenAndServe error", slog.Any("error", err))
			rootCancel()
		}
	}()

	// --- Wait for Shutdown ---
	<-appCtx.Done()
	slog.Info("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("API server forced to shutdown", slog.Any("error", err))
	}
	// running campaigns stop after their current recipient and resume later
	a.Orchestrator.Drain()
	if inline != nil {
		slog.Info("Waiting for in-process campaign jobs")
		inline.Wait()
	}
	slog.Info("API server stopped")
}
