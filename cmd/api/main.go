package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"casino-backend/config"
	kafkaEvents "casino-backend/internal/adapter/events/kafka"
	httpHandler "casino-backend/internal/adapter/http/handler"
	pgStorage "casino-backend/internal/adapter/storage/postgres"
	redisStorage "casino-backend/internal/adapter/storage/redis"
	"casino-backend/internal/core/ports"
	"casino-backend/internal/service"
	"casino-backend/pkg/logger"

	"github.com/shopspring/decimal"
)

func main() {
	// Load configuration
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Msg("Starting Casino Backend")

	ctx := context.Background()

	// Initialize PostgreSQL pool
	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()
	log.Info().Msg("PostgreSQL connected")

	// Initialize Redis client
	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()
	log.Info().Msg("Redis connected")

	// Initialize repositories
	userRepo := pgStorage.NewUserRepo(pool)
	playerRepo := pgStorage.NewPlayerRepo(pool)
	txRepo := pgStorage.NewTransactionRepo(pool)
	limitRepo := pgStorage.NewLimitRepo(pool)
	cancelRepo := pgStorage.NewCancellationRepo(pool)
	auditRepo := pgStorage.NewAuditRepo(pool)
	transactor := pgStorage.NewTransactor(pool)

	// Initialize core services
	hashSvc := service.NewArgon2HashService()
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)

	limitCfg, err := limitConfigFrom(cfg.Limits)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid limits configuration")
	}
	threshold, err := decimal.NewFromString(cfg.Limits.AuthorizationThreshold)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid authorization threshold")
	}

	// Kafka publisher (optional)
	var publisher ports.EventPublisher
	if cfg.Kafka.Enabled {
		kp := kafkaEvents.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer kp.Close()
		publisher = kp
		log.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("Kafka publisher enabled")
	}

	// Initialize business services
	auditSvc := service.NewAuditService(auditRepo, log)
	limitTracker := service.NewLimitTracker(limitRepo, limitCfg, log)
	authSvc := service.NewAuthService(userRepo, playerRepo, transactor, hashSvc, tokenSvc, log)
	txSvc := service.NewTransactionService(
		playerRepo,
		txRepo,
		limitTracker,
		transactor,
		publisher,
		auditSvc,
		service.TransactionConfig{AuthorizationThreshold: threshold},
		log,
	)
	cancelSvc := service.NewCancellationService(
		cancelRepo,
		txRepo,
		playerRepo,
		transactor,
		auditSvc,
		service.CancellationConfig{DoubleAuthWindow: cfg.Limits.DoubleAuthWindow},
		log,
	)

	// Initialize rate limit store
	rateLimitStore := redisStorage.NewRateLimitStore(rdb)

	// Initialize health checkers
	pgHealth := pgStorage.NewHealthCheck(pool)
	redisHealth := redisStorage.NewHealthCheck(rdb)

	// Setup Gin router with all routes
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		AuthSvc:        authSvc,
		TxSvc:          txSvc,
		CancelSvc:      cancelSvc,
		PlayerRepo:     playerRepo,
		TokenSvc:       tokenSvc,
		RateLimitStore: rateLimitStore,
		HealthCheckers: []ports.HealthChecker{pgHealth, redisHealth},
		Logger:         log,
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

// limitConfigFrom parses the decimal caps and rollover timezone.
func limitConfigFrom(lc config.LimitsConfig) (service.LimitConfig, error) {
	daily, err := decimal.NewFromString(lc.DailyMax)
	if err != nil {
		return service.LimitConfig{}, fmt.Errorf("daily_max: %w", err)
	}
	monthly, err := decimal.NewFromString(lc.MonthlyMax)
	if err != nil {
		return service.LimitConfig{}, fmt.Errorf("monthly_max: %w", err)
	}
	loc := time.Local
	if lc.Timezone != "" && lc.Timezone != "Local" {
		loc, err = time.LoadLocation(lc.Timezone)
		if err != nil {
			return service.LimitConfig{}, fmt.Errorf("timezone: %w", err)
		}
	}
	return service.LimitConfig{DailyMax: daily, MonthlyMax: monthly, Location: loc}, nil
}
