package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/noah-isme/backend-tarif/internal/adjust"
	"github.com/noah-isme/backend-tarif/internal/config"
	"github.com/noah-isme/backend-tarif/internal/index"
	"github.com/noah-isme/backend-tarif/internal/obs"
	"github.com/noah-isme/backend-tarif/internal/queue"
	"github.com/noah-isme/backend-tarif/internal/repo"
	"github.com/noah-isme/backend-tarif/internal/resilience"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().Str("component", "worker").Logger()
	obs.MustRegisterDomainMetrics(cfg.MetricsNamespace, nil)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool := mustInitDatabase(ctx, cfg, logger)
	defer pool.Close()

	redisClient := mustInitRedis(ctx, cfg, logger)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()

	adjustService := &adjust.Service{
		Store:   repo.NewAdjustStore(pool),
		Indices: index.NewPGProvider(pool),
		Cache:   adjust.NewCache(redisClient, cfg.DriftCacheTTL),
		Logger:  logger,
	}
	verifier := adjust.VerifyWorker{Service: adjustService}

	if cfg.IndexFeedURL != "" {
		refresher := &index.Refresher{
			Pool: pool,
			Client: resilience.HTTPClient{
				Client:      &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
				Breaker:     resilience.NewBreaker(5, 0.5, 30*time.Second),
				BaseBackoff: time.Second,
				MaxAttempts: 3,
				Jitter:      0.2,
				Timeout:     10 * time.Second,
				Target:      "index-feed",
				Logger:      &logger,
			},
			FeedURL:  cfg.IndexFeedURL,
			Interval: cfg.IndexFeedInterval,
			Logger:   logger,
		}
		go func() {
			if err := refresher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error().Err(err).Msg("index refresher stopped")
			}
		}()
	}

	driftWorker := queue.Worker{
		R:                 redisClient,
		Prefix:            cfg.QueuePrefix,
		Kind:              adjust.TaskKindDriftVerify,
		Concurrency:       cfg.QueueConcurrency,
		VisibilityTimeout: cfg.QueueVisibilityTimeout,
		RetryBase:         2 * time.Second,
		RetryJitter:       0.2,
		SoftDeadline:      time.Minute,
		Store:             queue.NewStore(pool),
		Logger:            &logger,
		Handler:           verifier.Handle,
	}

	logger.Info().Msg("worker starting")
	if err := driftWorker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("worker stopped with error")
	} else {
		logger.Info().Msg("worker shutdown complete")
	}
}

func mustInitDatabase(ctx context.Context, cfg *config.Config, logger zerolog.Logger) *pgxpool.Pool {
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse database config")
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = "tarif-worker"
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	if err := pool.Ping(ctx); err != nil {
		logger.Fatal().Err(err).Msg("ping database")
	}
	return pool
}

func mustInitRedis(ctx context.Context, cfg *config.Config, logger zerolog.Logger) *redis.Client {
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}
	return redisClient
}
