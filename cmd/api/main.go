package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/shopstream/recommendation-service/internal/adapters/cache"
	"github.com/shopstream/recommendation-service/internal/adapters/database"
	"github.com/shopstream/recommendation-service/internal/api/handlers"
	"github.com/shopstream/recommendation-service/internal/api/routes"
	"github.com/shopstream/recommendation-service/internal/application/services"
	"github.com/shopstream/recommendation-service/internal/domain/providers"
	"github.com/shopstream/recommendation-service/internal/infrastructure/clients/postgres"
	"github.com/shopstream/recommendation-service/internal/infrastructure/clients/redis"
	"github.com/shopstream/recommendation-service/internal/infrastructure/observability"
	"github.com/shopstream/recommendation-service/pkg/config"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	observability.InitLogger(cfg.OTEL.ServiceName, cfg.Server.Env)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize OpenTelemetry if enabled
	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err := observability.Setup(ctx, cfg.OTEL.ServiceName, cfg.OTEL.ServiceVersion, cfg.OTEL.Endpoint)
		if err != nil {
			log.Warn().Err(err).Msg("failed to set up OpenTelemetry")
		} else {
			defer func() {
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer shutdownCancel()
				if err := shutdown(shutdownCtx); err != nil {
					log.Warn().Err(err).Msg("error shutting down OpenTelemetry")
				}
			}()
			log.Info().Msg("OpenTelemetry initialized")
		}
	}

	metrics, err := observability.InitMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize metrics")
	}

	// Feed store is mandatory
	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize PostgreSQL client")
	}
	defer pgClient.Close()

	// Redis is optional; without it the tiered cache runs local-only
	var remoteCache providers.CacheProvider
	redisClient, err := redis.NewClient(&cfg.Redis)
	if err != nil {
		log.Warn().Err(err).Msg("Redis unavailable, running with local cache only")
	} else {
		defer redisClient.Close()
		remoteCache = cache.NewRedisAdapter(redisClient)
		log.Info().Msg("Redis client initialized")
	}

	// Cache tiers
	localCache := cache.NewLocalCache(cfg.Cache.LocalCapacity, cfg.Cache.CleanupInterval)
	defer localCache.Close()
	tieredCache := cache.NewTieredCache(localCache, remoteCache, metrics, cache.TieredCacheConfig{
		RemoteGetTimeout:   cfg.Cache.RemoteGetTimeout,
		RemoteMGetTimeout:  cfg.Cache.RemoteMGetTimeout,
		RemoteWriteTimeout: cfg.Cache.RemoteWriteTimeout,
	})

	// Pipeline services
	activityRepo := database.NewActivityAdapter(pgClient, cfg.Pipeline.FeedRecordLimit, metrics)
	fetcher := services.NewActivityFetchService(activityRepo, tieredCache, metrics, services.ActivityFetchConfig{
		GateCapacity: cfg.Pipeline.GateCapacity,
		FetchTimeout: cfg.Pipeline.FetchTimeout,
		FeedTTL:      cfg.Cache.ResultTTL,
	})

	executor := services.NewScoringExecutor(cfg.Pipeline.ScoringWorkers, cfg.Pipeline.ScoringTimeout, metrics)
	defer executor.Close()

	recommender := services.NewRecommendationService(fetcher, executor, tieredCache, metrics, services.RecommendationConfig{
		RequestTimeout: cfg.Pipeline.RequestTimeout,
		ResultTTL:      cfg.Cache.ResultTTL,
		NoDataTTL:      cfg.Cache.NoDataTTL,
	})

	batch := services.NewBatchService(recommender, tieredCache, services.BatchConfig{
		MaxBatchSize:   cfg.Pipeline.MaxBatchSize,
		BatchChunkSize: cfg.Pipeline.BatchChunkSize,
		MaxWarmSize:    cfg.Pipeline.MaxWarmSize,
		WarmChunkSize:  cfg.Pipeline.WarmChunkSize,
		WarmPause:      cfg.Pipeline.WarmPause,
		WarmResultTTL:  cfg.Cache.ResultTTL,
	})

	// HTTP layer
	recommendationHandler := handlers.NewRecommendationHandler(recommender, batch)
	healthHandler := handlers.NewHealthHandler(pgClient, tieredCache, cfg)

	router := routes.NewRouter(recommendationHandler, healthHandler, metrics)
	handler := router.SetupRoutes()

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	// WriteTimeout must exceed the 30s orchestration deadline.
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 45 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", serverAddr).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("server shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("error during server shutdown")
	}

	log.Info().Msg("server stopped")
}
