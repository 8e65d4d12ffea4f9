package config

import (
	"errors"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

var (
	errDatabaseURLRequired = errors.New("required key DATABASE_URL missing value (STORAGE_DRIVER=postgres)")
	errRecoveryWindow      = errors.New("WORKER_STALL_AFTER and WORKER_RESERVATION_STALE_AFTER must exceed GATEWAY_TIMEOUT")
)

type APIConfig struct {
	Addr         string        `envconfig:"API_ADDR"          default:":8081"`
	ReadTimeout  time.Duration `envconfig:"API_READ_TIMEOUT"  default:"10s"`
	WriteTimeout time.Duration `envconfig:"API_WRITE_TIMEOUT" default:"60s"`
	IdleTimeout  time.Duration `envconfig:"API_IDLE_TIMEOUT"  default:"60s"`
	// bcrypt hash of the key the gateway and payment providers send in X-API-Key.
	WebhookKeyHash string `envconfig:"WEBHOOK_KEY_HASH"`
}

// Config holds the overall application configuration.
type Config struct {
	DatabaseURL   string `envconfig:"DATABASE_URL"`
	StorageDriver string `envconfig:"STORAGE_DRIVER" default:"postgres"`
	LogLevel      string `envconfig:"LOG_LEVEL"      default:"info"`
	API           APIConfig
	Gateway       GatewayConfig
	Pricing       PricingConfig
	Dispatch      DispatchConfig
	Redis         RedisConfig
	AMQP          AMQPConfig
	Workers       WorkerConfig
	Payment       PaymentConfig
}

// GatewayConfig holds the SMS relay credentials and transport limits.
type GatewayConfig struct {
	BaseURL          string        `envconfig:"GATEWAY_BASE_URL"          default:"https://api.sms-relay.example/v1"`
	Token            string        `envconfig:"GATEWAY_TOKEN"`
	PrivateKey       string        `envconfig:"GATEWAY_PRIVATE_KEY"`
	Subject          string        `envconfig:"GATEWAY_SUBJECT"           default:"bulk"`
	Timeout          time.Duration `envconfig:"GATEWAY_TIMEOUT"           default:"10s"`
	FailureThreshold int           `envconfig:"GATEWAY_FAILURE_THRESHOLD" default:"5"`
	BreakerCooldown  time.Duration `envconfig:"GATEWAY_BREAKER_COOLDOWN"  default:"30s"`
	// Submissions per second; zero disables pacing.
	RatePerSecond float64 `envconfig:"GATEWAY_RATE_PER_SECOND" default:"0"`
	RateBurst     int     `envconfig:"GATEWAY_RATE_BURST"      default:"10"`
}

// PricingConfig holds per-segment rates in gateway currency units.
type PricingConfig struct {
	DomesticPrefix    string `envconfig:"PRICING_DOMESTIC_PREFIX"    default:"221"`
	DomesticRate      string `envconfig:"PRICING_DOMESTIC_RATE"      default:"25"`
	InternationalRate string `envconfig:"PRICING_INTERNATIONAL_RATE" default:"60"`
	// Value of one prepaid credit; empty means one credit per domestic segment.
	CreditValue string `envconfig:"PRICING_CREDIT_VALUE"`
}

type DispatchConfig struct {
	// When true, sends explicitly rejected by the gateway keep their debit.
	ChargeRejectedSends bool   `envconfig:"DISPATCH_CHARGE_REJECTED_SENDS" default:"false"`
	DefaultSignature    string `envconfig:"DISPATCH_DEFAULT_SIGNATURE"     default:"INFO"`
}

// PaymentConfig converts provider amounts into credits.
type PaymentConfig struct {
	// Selling price of one credit in the payment currency.
	CreditPrice string `envconfig:"PAYMENT_CREDIT_PRICE" default:"30"`
	Currency    string `envconfig:"PAYMENT_CURRENCY"     default:"XOF"`
}

type RedisConfig struct {
	Addr     string        `envconfig:"REDIS_ADDR"`
	Password string        `envconfig:"REDIS_PASSWORD"`
	DB       int           `envconfig:"REDIS_DB"       default:"0"`
	DedupTTL time.Duration `envconfig:"REDIS_DEDUP_TTL" default:"168h"`
}

type AMQPConfig struct {
	URL   string `envconfig:"AMQP_URL"`
	Queue string `envconfig:"AMQP_QUEUE" default:"campaign_dispatch"`
}

// WorkerConfig holds intervals and batch sizes for the background loops.
type WorkerConfig struct {
	SchedulerInterval    time.Duration `envconfig:"WORKER_SCHEDULER_INTERVAL"     default:"30s"`
	SchedulerBatchSize   int           `envconfig:"WORKER_SCHEDULER_BATCH_SIZE"   default:"50"`
	SchedulerConcurrency int           `envconfig:"WORKER_SCHEDULER_CONCURRENCY"  default:"4"`
	LowBalanceInterval   time.Duration `envconfig:"WORKER_LOW_BALANCE_INTERVAL"   default:"1h"`
	LowBalanceThreshold  int64         `envconfig:"WORKER_LOW_BALANCE_THRESHOLD"  default:"50"`
	RunTimeout           time.Duration `envconfig:"WORKER_RUN_TIMEOUT"            default:"10m"`
	OperatorContact      string        `envconfig:"WORKER_OPERATOR_CONTACT"       default:"ops"`
	RecoveryInterval     time.Duration `envconfig:"WORKER_RECOVERY_INTERVAL"      default:"1m"`
	// A claimed campaign with no progress for this long is resumed elsewhere.
	// Must exceed the slowest single send.
	StallAfter time.Duration `envconfig:"WORKER_STALL_AFTER" default:"5m"`
	// Held reservations older than this are settled from their dispatch record.
	ReservationStaleAfter time.Duration `envconfig:"WORKER_RESERVATION_STALE_AFTER" default:"10m"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	log.Println("Loading configuration from environment variables...")

	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file found, skipping: %v", err)
	} else {
		log.Println(".env loaded")
	}

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if cfg.StorageDriver == "postgres" && cfg.DatabaseURL == "" {
		return nil, errDatabaseURLRequired
	}
	if cfg.Workers.StallAfter <= cfg.Gateway.Timeout || cfg.Workers.ReservationStaleAfter <= cfg.Gateway.Timeout {
		return nil, errRecoveryWindow
	}
	log.Printf("Configuration loaded successfully (API Addr: %s, storage: %s)", cfg.API.Addr, cfg.StorageDriver)
	return &cfg, nil
}
