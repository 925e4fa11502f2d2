package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"wa-catalog/internal/cache"
	"wa-catalog/internal/config"
	"wa-catalog/internal/convo"
	"wa-catalog/internal/events"
	"wa-catalog/internal/httpserver"
	"wa-catalog/internal/logging"
	"wa-catalog/internal/metrics"
	"wa-catalog/internal/nlu"
	"wa-catalog/internal/ratelimit"
	"wa-catalog/internal/repo"
	"wa-catalog/internal/search"
	"wa-catalog/internal/stats"
	"wa-catalog/internal/wa"
	"wa-catalog/migrations"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := logging.NewLogger(cfg.LogLevel, cfg.AppEnv)
	logger.Info("starting wa-catalog", "env", cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metricRegistry := metrics.Registry(cfg.MetricsNamespace)

	repository, err := repo.New(ctx, cfg.DatabaseURL, cfg.SupabaseSchema, logger)
	if err != nil {
		return fmt.Errorf("init repository: %w", err)
	}
	defer repository.Close()

	if err := repository.RunMigrations(ctx, migrations.Files); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database migrated")

	if err := repository.SyncGeminiKeys(ctx, cfg.GeminiAPIKeys); err != nil {
		return fmt.Errorf("sync gemini keys: %w", err)
	}

	redisClient := cache.New(cache.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		UseTLS:   cfg.RedisTLS,
	}, logger)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("failed closing redis", "error", err)
		}
	}()
	if err := redisClient.Ping(ctx); err != nil {
		logger.Warn("redis ping failed", "error", err)
	}

	nluClient := nlu.New(repository, logger, metricRegistry, nlu.Config{
		Model:    cfg.GeminiModel,
		Timeout:  cfg.GeminiTimeout,
		Cooldown: cfg.GeminiCooldown,
	})

	limiter := ratelimit.New(cfg.RateLimitMax, cfg.RateLimitWindow)
	defer limiter.Close()

	searchEngine := search.New(repository, nluClient, redisClient, logger, metricRegistry)

	var stream events.StreamPublisher
	if cfg.KafkaBroker != "" {
		publisher := events.NewPublisher(cfg.KafkaBroker, cfg.KafkaTopic, logger)
		defer func() {
			if err := publisher.Close(); err != nil {
				logger.Warn("failed closing kafka writer", "error", err)
			}
		}()
		stream = publisher
		logger.Info("analytics event stream enabled", "broker", cfg.KafkaBroker, "topic", cfg.KafkaTopic)
	}
	recorder := events.New(repository, stream, logger, metricRegistry)

	waClient, err := wa.New(ctx, wa.Config{
		StorePath: cfg.WhatsAppStorePath,
		LogLevel:  cfg.WhatsAppLogLevel,
	}, logger)
	if err != nil {
		return fmt.Errorf("init whatsapp client: %w", err)
	}
	defer waClient.Close()

	convoEngine := convo.New(limiter, nluClient, searchEngine, recorder, repository, waClient, logger, metricRegistry)
	defer convoEngine.Drain()
	waClient.SetMessageProcessor(convoEngine)

	aggregator := stats.New(repository, logger, metricRegistry, cfg.StatsQueryTimeout)

	waCtx, waCancel := context.WithCancel(ctx)
	defer waCancel()
	go func() {
		if err := waClient.Start(waCtx); err != nil {
			logger.Error("whatsapp client stopped", "error", err)
			stop()
		}
	}()

	httpSrv := httpserver.New(cfg.HTTPListenAddr, repository, aggregator, logger, metricRegistry)

	errCh := make(chan error, 1)
	go func() {
		if err := httpSrv.Start(); err != nil {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	return nil
}
