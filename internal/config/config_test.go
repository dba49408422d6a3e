package config

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Port)
	assert.Equal(t, "sandbox", cfg.Payment.Provider)
	assert.Equal(t, "USD", cfg.Payment.DefaultCurrency)
	assert.Equal(t, int64(10), cfg.Pricing.ServiceFeePercent)
	assert.Equal(t, int64(30), cfg.Pricing.DepositPercent)
	assert.Equal(t, "0 */5 * * * *", cfg.Reconciliation.OrphanSweep)
	assert.Equal(t, 10*time.Second, cfg.Payment.Coordinator.AuthorizeTimeout)
	assert.Equal(t, uuid.Nil, cfg.SupportUserID)
}

func TestLoad_Overrides(t *testing.T) {
	support := uuid.New()
	t.Setenv("BOOKING_SERVICE_PORT", "9090")
	t.Setenv("BOOKING_PAYMENT_CURRENCY", "eur")
	t.Setenv("BOOKING_PAYMENT_CAPTURE_TIMEOUT", "20s")
	t.Setenv("BOOKING_PRICING_SERVICE_FEE_PERCENT", "12")
	t.Setenv("BOOKING_SWEEP_BATCH_SIZE", "10")
	t.Setenv("BOOKING_SUPPORT_USER_ID", support.String())
	t.Setenv("BOOKING_KAFKA_BROKERS", "k1:9092, k2:9092")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Port)
	assert.Equal(t, "EUR", cfg.Payment.DefaultCurrency)
	assert.Equal(t, 20*time.Second, cfg.Payment.Coordinator.CaptureTimeout)
	assert.Equal(t, int64(12), cfg.Pricing.ServiceFeePercent)
	assert.Equal(t, 10, cfg.Reconciliation.BatchSize)
	assert.Equal(t, support, cfg.SupportUserID)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaConfig.Brokers)
}

func TestLoad_RejectsBadPaymentSettings(t *testing.T) {
	t.Run("unknown provider", func(t *testing.T) {
		t.Setenv("BOOKING_PAYMENT_PROVIDER", "paypal")
		_, err := Load()
		assert.Error(t, err)
	})
	t.Run("stripe without key", func(t *testing.T) {
		t.Setenv("BOOKING_PAYMENT_PROVIDER", "stripe")
		_, err := Load()
		assert.Error(t, err)
	})
	t.Run("bad support user", func(t *testing.T) {
		t.Setenv("BOOKING_SUPPORT_USER_ID", "support")
		_, err := Load()
		assert.Error(t, err)
	})
}
