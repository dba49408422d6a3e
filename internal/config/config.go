package config

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/viper"

	bookingDomain "github.com/vroomshare/service-booking/internal/domain/booking"
	"github.com/vroomshare/service-booking/internal/payment"
	"github.com/vroomshare/service-booking/internal/reconciliation"
	"github.com/vroomshare/service-booking/pkg/config"
)

// PaymentConfig selects and configures the payment gateway.
type PaymentConfig struct {
	Provider         string // "stripe" or "sandbox"
	StripeSecretKey  string
	MinorUnits       int64
	DefaultCurrency  string
	Coordinator      payment.Config
	IdempotencyTTLHr int
}

// ServiceConfig holds all configuration for the booking service.
type ServiceConfig struct {
	Port              string
	AppEnv            string
	DBConfig          config.DatabaseConfig
	JWTConfig         config.JWTConfig
	KafkaConfig       config.KafkaConfig
	RedisConfig       config.RedisConfig
	Payment           PaymentConfig
	Pricing           bookingDomain.PricingPolicy
	Reconciliation    reconciliation.Config
	WorkerConcurrency int
	SupportUserID     uuid.UUID
	RateLimitPerMin   int
	RateLimitBurst    int
}

// Load reads configuration from BOOKING_* environment variables and an optional config file.
func Load() (*ServiceConfig, error) {
	v, err := config.Load("BOOKING")
	if err != nil {
		return nil, err
	}
	setDefaults(v)

	provider := strings.ToLower(v.GetString("PAYMENT_PROVIDER"))
	if provider != "stripe" && provider != "sandbox" {
		return nil, fmt.Errorf("unknown payment provider %q", provider)
	}
	if provider == "stripe" && v.GetString("STRIPE_SECRET_KEY") == "" {
		return nil, fmt.Errorf("STRIPE_SECRET_KEY is required for the stripe provider")
	}

	var supportID uuid.UUID
	if s := v.GetString("SUPPORT_USER_ID"); s != "" {
		if supportID, err = uuid.Parse(s); err != nil {
			return nil, fmt.Errorf("invalid SUPPORT_USER_ID: %w", err)
		}
	}

	payDef := payment.DefaultConfig()
	recDef := reconciliation.DefaultConfig()
	pricing := bookingDomain.DefaultPricingPolicy()
	pricing.ServiceFeePercent = v.GetInt64("PRICING_SERVICE_FEE_PERCENT")
	pricing.DepositPercent = v.GetInt64("PRICING_DEPOSIT_PERCENT")

	return &ServiceConfig{
		Port:        config.GetServicePort(v, "SERVICE_PORT"),
		AppEnv:      config.GetAppEnv(v),
		DBConfig:    config.LoadDatabaseConfig(v, "DB_NAME"),
		JWTConfig:   config.LoadJWTConfig(v),
		KafkaConfig: config.LoadKafkaConfig(v),
		RedisConfig: config.LoadRedisConfig(v),
		Payment: PaymentConfig{
			Provider:        provider,
			StripeSecretKey: v.GetString("STRIPE_SECRET_KEY"),
			MinorUnits:      v.GetInt64("PAYMENT_MINOR_UNITS"),
			DefaultCurrency: strings.ToUpper(v.GetString("PAYMENT_CURRENCY")),
			Coordinator: payment.Config{
				AuthorizeTimeout:     config.GetDuration(v, "PAYMENT_AUTHORIZE_TIMEOUT", payDef.AuthorizeTimeout),
				CaptureTimeout:       config.GetDuration(v, "PAYMENT_CAPTURE_TIMEOUT", payDef.CaptureTimeout),
				CallTimeout:          config.GetDuration(v, "PAYMENT_CALL_TIMEOUT", payDef.CallTimeout),
				StatusPollInterval:   config.GetDuration(v, "PAYMENT_STATUS_POLL_INTERVAL", payDef.StatusPollInterval),
				StatusPollMaxElapsed: config.GetDuration(v, "PAYMENT_STATUS_POLL_MAX", payDef.StatusPollMaxElapsed),
			},
			IdempotencyTTLHr: v.GetInt("IDEMPOTENCY_TTL_HOURS"),
		},
		Pricing: pricing,
		Reconciliation: reconciliation.Config{
			OrphanSweep:      v.GetString("SWEEP_ORPHAN_SCHEDULE"),
			OrphanAge:        config.GetDuration(v, "SWEEP_ORPHAN_AGE", recDef.OrphanAge),
			CapturePoll:      v.GetString("SWEEP_CAPTURE_SCHEDULE"),
			CaptureStuckAge:  config.GetDuration(v, "SWEEP_CAPTURE_STUCK_AGE", recDef.CaptureStuckAge),
			DiscrepancySweep: v.GetString("SWEEP_DISCREPANCY_SCHEDULE"),
			BatchSize:        v.GetInt("SWEEP_BATCH_SIZE"),
			JobTimeout:       config.GetDuration(v, "SWEEP_JOB_TIMEOUT", recDef.JobTimeout),
		},
		WorkerConcurrency: v.GetInt("WORKER_CONCURRENCY"),
		SupportUserID:     supportID,
		RateLimitPerMin:   v.GetInt("RATE_LIMIT_PER_MINUTE"),
		RateLimitBurst:    v.GetInt("RATE_LIMIT_BURST"),
	}, nil
}

func setDefaults(v *viper.Viper) {
	rec := reconciliation.DefaultConfig()
	pricing := bookingDomain.DefaultPricingPolicy()

	v.SetDefault("PAYMENT_PROVIDER", "sandbox")
	v.SetDefault("PAYMENT_MINOR_UNITS", 100)
	v.SetDefault("PAYMENT_CURRENCY", "USD")
	v.SetDefault("IDEMPOTENCY_TTL_HOURS", 24)
	v.SetDefault("PRICING_SERVICE_FEE_PERCENT", pricing.ServiceFeePercent)
	v.SetDefault("PRICING_DEPOSIT_PERCENT", pricing.DepositPercent)
	v.SetDefault("SWEEP_ORPHAN_SCHEDULE", rec.OrphanSweep)
	v.SetDefault("SWEEP_CAPTURE_SCHEDULE", rec.CapturePoll)
	v.SetDefault("SWEEP_DISCREPANCY_SCHEDULE", rec.DiscrepancySweep)
	v.SetDefault("SWEEP_BATCH_SIZE", rec.BatchSize)
	v.SetDefault("WORKER_CONCURRENCY", 5)
	v.SetDefault("RATE_LIMIT_PER_MINUTE", 120)
	v.SetDefault("RATE_LIMIT_BURST", 20)
}
