package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/vroomshare/service-booking/internal/application"
	"github.com/vroomshare/service-booking/internal/config"
	bookingDomain "github.com/vroomshare/service-booking/internal/domain/booking"
	paymentDomain "github.com/vroomshare/service-booking/internal/domain/payment"
	bookingEvents "github.com/vroomshare/service-booking/internal/events"
	"github.com/vroomshare/service-booking/internal/handler"
	"github.com/vroomshare/service-booking/internal/idempotency"
	"github.com/vroomshare/service-booking/internal/payment"
	"github.com/vroomshare/service-booking/internal/reconciliation"
	"github.com/vroomshare/service-booking/internal/repository"
	"github.com/vroomshare/service-booking/pkg/auth"
	"github.com/vroomshare/service-booking/pkg/database"
	"github.com/vroomshare/service-booking/pkg/health"
	"github.com/vroomshare/service-booking/pkg/kafka"
	"github.com/vroomshare/service-booking/pkg/logger"
	"github.com/vroomshare/service-booking/pkg/middleware"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.NewNamed(cfg.AppEnv, "service-booking")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting service-booking",
		zap.String("port", cfg.Port),
		zap.String("payment_provider", cfg.Payment.Provider),
	)

	// Connect to database
	dbConfig := database.PostgresConfig{
		Host:     cfg.DBConfig.Host,
		Port:     cfg.DBConfig.Port,
		User:     cfg.DBConfig.User,
		Password: cfg.DBConfig.Password,
		DBName:   cfg.DBConfig.DBName,
		SSLMode:  cfg.DBConfig.SSLMode,
	}
	db, err := database.Connect(dbConfig, log)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}

	// The overlap constraint lives in SQL, so migrations run in every environment.
	if err := database.RunMigrations(dbConfig.DatabaseURL(), "migrations", log); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}

	// Initialize JWT manager
	jwtManager := auth.NewJWTManager(
		cfg.JWTConfig.Secret,
		cfg.JWTConfig.Issuer,
		15*time.Minute,
		7*24*time.Hour,
	)

	// Initialize Kafka producer
	kafkaProducer := kafka.NewProducer(cfg.KafkaConfig.Brokers, log)
	defer func() { _ = kafkaProducer.Close() }()

	// Redis backs idempotency keys and the reconcile queue
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisConfig.Addr,
		Password: cfg.RedisConfig.Password,
		DB:       cfg.RedisConfig.DB,
	})
	defer func() { _ = redisClient.Close() }()

	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.RedisConfig.Addr,
		Password: cfg.RedisConfig.Password,
		DB:       cfg.RedisConfig.DB,
	}
	asynqClient := asynq.NewClient(redisOpt)
	defer func() { _ = asynqClient.Close() }()

	// Initialize repositories
	bookingRepo := repository.NewGormBookingRepository(db)
	vehicleRepo := repository.NewGormVehicleRepository(db)
	holdRepo := repository.NewGormHoldRepository(db)
	discrepancyRepo := repository.NewGormDiscrepancyRepository(db)

	// Initialize payment coordinator
	var gateway paymentDomain.Gateway
	switch cfg.Payment.Provider {
	case "stripe":
		gateway = payment.NewStripeGateway(cfg.Payment.StripeSecretKey, cfg.Payment.MinorUnits, log)
	default:
		log.Warn("using sandbox payment gateway")
		gateway = payment.NewSandboxGateway()
	}
	coordinator := payment.NewCoordinator(gateway, holdRepo, cfg.Payment.Coordinator, log)

	reconcileQueue := reconciliation.NewQueue(asynqClient, log)

	// Initialize application service
	bookingService := application.NewBookingService(application.BookingServiceDeps{
		Bookings:        bookingRepo,
		Vehicles:        vehicleRepo,
		Pricing:         bookingDomain.NewStandardPricingCalculator(cfg.Pricing),
		Payments:        coordinator,
		Discrepancies:   discrepancyRepo,
		Queue:           reconcileQueue,
		DefaultCurrency: cfg.Payment.DefaultCurrency,
		Listeners: []application.TransitionListener{
			bookingEvents.NewBookingEventPublisher(kafkaProducer, log),
			application.NewNotificationListener(bookingEvents.NewNotificationSink(kafkaProducer), cfg.SupportUserID, log),
		},
	}, log)

	// Start Kafka consumers
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	paymentConsumer := bookingEvents.NewPaymentEventConsumer(
		cfg.KafkaConfig.Brokers,
		cfg.KafkaConfig.GroupPrefix+"booking-service",
		coordinator,
		bookingService,
		log,
	)
	defer func() { _ = paymentConsumer.Close() }()

	listingConsumer := bookingEvents.NewVehicleListingConsumer(
		cfg.KafkaConfig.Brokers,
		cfg.KafkaConfig.GroupPrefix+"booking-service-listings",
		vehicleRepo,
		log,
	)
	defer func() { _ = listingConsumer.Close() }()

	go func() {
		log.Info("starting payment event consumer")
		if err := paymentConsumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("payment event consumer error", zap.Error(err))
		}
	}()
	go func() {
		log.Info("starting vehicle listing consumer")
		if err := listingConsumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("vehicle listing consumer error", zap.Error(err))
		}
	}()

	// Start reconciliation worker and sweeps
	worker := reconciliation.NewWorker(redisOpt, cfg.WorkerConcurrency, bookingService, log)
	if err := worker.Start(); err != nil {
		log.Fatal("failed to start reconcile worker", zap.Error(err))
	}

	scheduler, err := reconciliation.NewScheduler(reconciliation.SchedulerDeps{
		Holds:         coordinator,
		Bookings:      bookingRepo,
		Captures:      bookingService,
		Discrepancies: discrepancyRepo,
		Queue:         reconcileQueue,
	}, cfg.Reconciliation, log)
	if err != nil {
		log.Fatal("failed to create reconciliation scheduler", zap.Error(err))
	}
	scheduler.Start()

	// Initialize HTTP handlers
	idemTTL := time.Duration(cfg.Payment.IdempotencyTTLHr) * time.Hour
	bookingHandler := handler.NewBookingHandler(
		bookingService,
		idempotency.NewRedisStore(redisClient, "booking:idem", idemTTL),
	)
	adminBookingHandler := handler.NewAdminBookingHandler(bookingService)

	// Setup Gin router
	if cfg.AppEnv != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// Apply global middleware
	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.LoggerMiddleware(log))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.SecurityHeadersMiddleware())
	router.Use(middleware.RateLimitMiddleware(middleware.NewRateLimiter(cfg.RateLimitPerMin, cfg.RateLimitBurst), log))

	// Register health check routes
	healthHandler := health.NewHandler(db, "service-booking")
	healthHandler.RegisterRoutes(router)

	// Register routes
	bookingHandler.RegisterRoutes(&router.RouterGroup, jwtManager)
	adminBookingHandler.RegisterRoutes(&router.RouterGroup, jwtManager)

	// Create HTTP server
	srv := &http.Server{
		Addr:         cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info("HTTP server starting", zap.String("addr", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down service-booking...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server forced shutdown", zap.Error(err))
	}

	// Stop background work after requests have drained
	scheduler.Stop()
	worker.Shutdown()
	cancel()

	log.Info("service-booking stopped")
}
