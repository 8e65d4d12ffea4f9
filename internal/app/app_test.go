package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thrillee/bulksms/internal/config"
)

func memoryConfig() *config.Config {
	return &config.Config{
		StorageDriver: DriverMemory,
		Pricing: config.PricingConfig{
			DomesticPrefix:    "221",
			DomesticRate:      "25",
			InternationalRate: "60",
		},
		Payment:  config.PaymentConfig{CreditPrice: "30", Currency: "XOF"},
		Dispatch: config.DispatchConfig{DefaultSignature: "INFO"},
		Gateway:  config.GatewayConfig{RatePerSecond: 5, RateBurst: 5},
	}
}

func TestNew_MemoryDriver(t *testing.T) {
	a, err := New(context.Background(), memoryConfig())
	require.NoError(t, err)
	defer a.Close()

	assert.Nil(t, a.Pool)
	assert.Nil(t, a.Redis)
	assert.NotNil(t, a.Orchestrator)
	assert.False(t, a.WebhookKey.Enabled())

	checks := a.HealthChecks()
	require.Contains(t, checks, "gateway")
	assert.NotContains(t, checks, "database")
	assert.NoError(t, checks["gateway"](context.Background()))

	families, err := a.Registry.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestNew_RejectsBadConfig(t *testing.T) {
	cfg := memoryConfig()
	cfg.StorageDriver = "mysql"
	_, err := New(context.Background(), cfg)
	assert.ErrorContains(t, err, "unknown storage driver")

	cfg = memoryConfig()
	cfg.Pricing.DomesticRate = "abc"
	_, err = New(context.Background(), cfg)
	assert.ErrorContains(t, err, "invalid pricing config")

	cfg = memoryConfig()
	cfg.Payment.CreditPrice = "0"
	_, err = New(context.Background(), cfg)
	assert.ErrorContains(t, err, "invalid payment config")
}
