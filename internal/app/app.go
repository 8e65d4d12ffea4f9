// Package app wires the storage, ledger, gateway and dispatch services from
// configuration. Both the API server and the dispatch worker build on it.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/thrillee/bulksms/internal/api/handlers"
	"github.com/thrillee/bulksms/internal/auth"
	"github.com/thrillee/bulksms/internal/campaign"
	"github.com/thrillee/bulksms/internal/config"
	"github.com/thrillee/bulksms/internal/dispatch"
	"github.com/thrillee/bulksms/internal/gateway"
	"github.com/thrillee/bulksms/internal/ledger"
	"github.com/thrillee/bulksms/internal/metrics"
	"github.com/thrillee/bulksms/internal/notification"
	"github.com/thrillee/bulksms/internal/payment"
	"github.com/thrillee/bulksms/internal/pricing"
	"github.com/thrillee/bulksms/internal/reconcile"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// App holds the constructed services. Close releases pools and clients.
type App struct {
	Config   *config.Config
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics

	Pool  *pgxpool.Pool // nil with the memory driver
	Redis *redis.Client // nil when REDIS_ADDR is unset

	Store        campaign.Store
	Campaigns    *campaign.Service
	Ledger       *ledger.Ledger
	Gateway      *gateway.Client
	Notifier     notification.Notifier
	Orchestrator *dispatch.Orchestrator
	Reconciler   *reconcile.Reconciler
	Payments     *payment.Service
	WebhookKey   *auth.KeyVerifier
}

// New builds every service from cfg.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg, Registry: prometheus.NewRegistry()}
	a.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.Metrics = metrics.New(a.Registry)

	var (
		ledgerStore  ledger.Store
		paymentStore payment.Store
	)
	switch cfg.StorageDriver {
	case DriverPostgres:
		slog.Info("Connecting to database...")
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("unable to connect to database: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to ping database: %w", err)
		}
		slog.Info("Database connection established")
		a.Pool = pool
		a.Store = campaign.NewPostgresStore(pool)
		ledgerStore = ledger.NewPostgresStore(pool)
		paymentStore = payment.NewPostgresStore(pool)
	case DriverMemory:
		slog.Warn("Using in-memory storage, data is lost on restart")
		a.Store = campaign.NewMemoryStore()
		ledgerStore = ledger.NewMemoryStore()
		paymentStore = payment.NewMemoryStore()
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}

	var dedup payment.Deduper = payment.NewMemoryDeduper()
	if cfg.Redis.Addr != "" {
		a.Redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := a.Redis.Ping(ctx).Err(); err != nil {
			// the ledger reference still prevents double credits
			slog.Warn("Redis unreachable at startup", slog.String("addr", cfg.Redis.Addr), slog.Any("error", err))
		}
		dedup = payment.NewRedisDeduper(a.Redis, cfg.Redis.DedupTTL)
	}

	pricer, err := pricing.NewCalculatorFromConfig(cfg.Pricing)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("invalid pricing config: %w", err)
	}

	a.Ledger = ledger.New(ledgerStore)
	a.Campaigns = campaign.NewService(a.Store, cfg.Dispatch.DefaultSignature)
	a.Gateway = gateway.NewClient(cfg.Gateway, a.Metrics)
	var sender gateway.Sender = a.Gateway
	if cfg.Gateway.RatePerSecond > 0 {
		sender = gateway.NewRateLimitedSender(a.Gateway, cfg.Gateway.RatePerSecond, cfg.Gateway.RateBurst)
	}
	a.Notifier = notification.NewLogNotifier()
	a.Orchestrator = dispatch.NewOrchestrator(a.Store, a.Ledger, pricer, sender, a.Notifier, a.Metrics, dispatch.Options{
		ChargeRejectedSends: cfg.Dispatch.ChargeRejectedSends,
		DefaultSignature:    cfg.Dispatch.DefaultSignature,
		OperatorContact:     cfg.Workers.OperatorContact,
	})
	a.Reconciler = reconcile.New(a.Store, a.Metrics)
	a.Payments, err = payment.NewService(a.Ledger, paymentStore, dedup, a.Metrics, cfg.Payment)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("invalid payment config: %w", err)
	}
	a.WebhookKey = auth.NewKeyVerifier(cfg.API.WebhookKeyHash)
	if !a.WebhookKey.Enabled() {
		slog.Warn("WEBHOOK_KEY_HASH not set, webhooks are unauthenticated")
	}
	return a, nil
}

// HealthChecks reports storage, cache and gateway circuit state.
func (a *App) HealthChecks() map[string]handlers.HealthCheck {
	checks := map[string]handlers.HealthCheck{
		"gateway": func(context.Context) error {
			if state := a.Gateway.Breaker().State(); state == gateway.CircuitOpen {
				return errors.New("circuit open")
			}
			return nil
		},
	}
	if a.Pool != nil {
		checks["database"] = a.Pool.Ping
	}
	if a.Redis != nil {
		checks["redis"] = func(ctx context.Context) error { return a.Redis.Ping(ctx).Err() }
	}
	return checks
}

func (a *App) Close() {
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			slog.Warn("Failed to close redis client", slog.Any("error", err))
		}
	}
	if a.Pool != nil {
		a.Pool.Close()
	}
}
