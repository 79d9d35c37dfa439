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

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/risecheckout/orderengine/internal/api"
	"github.com/risecheckout/orderengine/internal/config"
	"github.com/risecheckout/orderengine/internal/events"
	"github.com/risecheckout/orderengine/internal/gateway"
	"github.com/risecheckout/orderengine/internal/pii"
	"github.com/risecheckout/orderengine/internal/ratelimit"
	"github.com/risecheckout/orderengine/internal/repository/postgres"
	"github.com/risecheckout/orderengine/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("Server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.NewConnection(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := postgres.RunMigrations(db, cfg.Database.MigrationsPath); err != nil {
		return err
	}
	logger.Info("Database migrations applied")

	repos := postgres.NewRepositories(db, logger)

	encryptor, err := pii.NewEncryptor(cfg.PII.EncryptionKey)
	if err != nil {
		return fmt.Errorf("invalid PII_ENCRYPTION_KEY: %w", err)
	}

	engineCfg, err := service.EngineConfigFromConfig(cfg.Fees)
	if err != nil {
		return err
	}

	registry := gateway.NewRegistryFromConfig(cfg.Gateways, logger)
	checkout := service.NewCheckoutService(repos, registry, encryptor, engineCfg, logger)

	limiter := newLimiter(ctx, cfg, logger)

	if len(cfg.Kafka.Brokers) > 0 {
		poller := events.NewOutboxPoller(repos.Outbox, events.NewKafkaWriter(cfg.Kafka.Topic, cfg.Kafka.Brokers...), logger)
		defer poller.Close()
		go poller.Run(ctx)
		logger.Info("Outbox poller started", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	} else {
		logger.Warn("KAFKA_BROKERS not set, lifecycle events stay in the outbox")
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.NewRouter(cfg, checkout, limiter, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting server", zap.String("port", cfg.Port), zap.String("environment", cfg.Environment))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to shut down server cleanly", zap.Error(err))
	}
	checkout.Wait()
	return nil
}

// newLimiter prefers Redis so every instance shares one budget
func newLimiter(ctx context.Context, cfg *config.Config, logger *zap.Logger) ratelimit.Limiter {
	rlCfg := ratelimit.Config{
		MaxAttempts: cfg.RateLimit.MaxAttempts,
		Window:      cfg.RateLimit.Window,
		Block:       cfg.RateLimit.Block,
	}

	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password})
		err := ratelimit.Ping(ctx, client)
		if err == nil {
			logger.Info("Using Redis rate limiter", zap.String("addr", cfg.Redis.Addr))
			return ratelimit.NewRedisLimiter(client, rlCfg, logger)
		}
		logger.Warn("Redis unreachable, falling back to in-process rate limiter", zap.Error(err))
		client.Close()
	}

	mem := ratelimit.NewMemoryLimiter(rlCfg)
	go mem.RunSweeper(ctx, 5*time.Minute, 30*time.Minute)
	return mem
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	zcfg := zap.NewDevelopmentConfig()
	if cfg.Environment == "production" {
		zcfg = zap.NewProductionConfig()
	}
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	return zcfg.Build()
}
