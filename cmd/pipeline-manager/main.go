// cmd/pipeline-manager/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"stayprice/internal/api"
	"stayprice/internal/cache"
	"stayprice/internal/common/config"
	"stayprice/internal/common/database"
	commonhttp "stayprice/internal/common/http"
	"stayprice/internal/common/logger"
	"stayprice/internal/common/observability"
	"stayprice/internal/match"
	"stayprice/internal/notify"
	"stayprice/internal/pipeline"
	"stayprice/internal/scrape"
	"stayprice/internal/search"
	"stayprice/internal/training"
	"stayprice/pkg/registry"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()

	log := logger.NewZapAdapter(zapLog)
	zapLog.Info("Starting pipeline manager...")

	obs := observability.New("pipeline-manager")
	defer obs.Shutdown()

	tracing, err := observability.NewTracing("pipeline-manager", cfg.Observability.JaegerEndpoint)
	if err != nil {
		zapLog.Warn("tracing disabled", zap.Error(err))
	} else {
		defer tracing.Shutdown()
	}

	ctx := context.Background()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")

	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Redis with retry ---
	var redis *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redis, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return redis.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")

	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redis.Close()
	zapLog.Info("Redis connected successfully")

	// --- Init Elasticsearch with retry (optional surface) ---
	var indexer pipeline.DatasetIndexer
	if cfg.Database.Elasticsearch.Enabled {
		var esClient *database.ElasticsearchClient
		err = retryWithBackoff(func() error {
			var err error
			esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return esClient.Ping()
		}, 15, 2*time.Second, zapLog, "Elasticsearch connection")

		if err != nil {
			zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
		}
		indexer = search.NewIndexer(esClient.Client, cfg.Database.Elasticsearch.ListingIndex, log)
		zapLog.Info("Elasticsearch connected successfully")
	}

	// --- Site profiles ---
	siteRegistry, err := registry.Load(cfg.Registry.Path)
	if err != nil {
		zapLog.Fatal("site profile load failed", zap.Error(err))
	}
	profile, err := siteRegistry.Get(cfg.Scrape.Site)
	if err != nil {
		zapLog.Fatal("site profile lookup failed", zap.Error(err))
	}

	// --- Scrape layer ---
	datasetStore := cache.NewDatasetStore(pg.DB, log)
	if err := datasetStore.EnsureSchema(ctx); err != nil {
		zapLog.Fatal("dataset schema init failed", zap.Error(err))
	}
	entityCache := cache.NewEntityCache(
		redis.Client,
		time.Duration(cfg.Cache.EntityTTLHours)*time.Hour,
		log,
	)

	fetchClient := commonhttp.NewClient(time.Duration(cfg.Scrape.FetchTimeout) * time.Millisecond)
	fetcher := scrape.NewHTMLFetcher(fetchClient, profile, log)
	orchestrator := scrape.NewOrchestrator(fetcher, cfg.Scrape.MaxConcurrency, profile.Name, log)
	resolver := match.NewResolver(cfg.Scrape.SimilarityThreshold, cfg.Scrape.CandidateCap, log)

	scrapeService := scrape.NewService(
		datasetStore, entityCache, fetcher, orchestrator, resolver,
		time.Duration(cfg.Cache.DatasetTTLHours)*time.Hour,
		cfg.Scrape.ListingLimit, cfg.Scrape.DetailLimit,
		log,
	)

	// --- Training layer ---
	metadataStore := training.NewMetadataStore(cfg.Training.MetadataDir, log)
	trainerClient := training.NewTrainerClient(
		cfg.Training.TrainerURL,
		commonhttp.NewClient(time.Duration(cfg.Training.Timeout)*time.Millisecond),
		log,
	)

	// --- Notifications (optional surface) ---
	var notifier pipeline.RunNotifier
	if cfg.Notifications.AWS.SES.Enabled || cfg.Notifications.AWS.SNS.Enabled {
		n, err := notify.NewNotifier(ctx, cfg.Notifications, log)
		if err != nil {
			zapLog.Fatal("notifier init failed", zap.Error(err))
		}
		notifier = n
	}

	pipelineService := pipeline.NewService(
		scrapeService, trainerClient, metadataStore, indexer, notifier,
		cfg.Training, obs, tracing, log,
	)

	server := api.NewServer(pipelineService, scrapeService, entityCache, datasetStore, cfg.API, cfg.Cache, log)

	go func() {
		if err := server.ListenAndServe(); err != nil {
			zapLog.Fatal("api server failed", zap.Error(err))
		}
	}()

	zapLog.Info("Pipeline manager started",
		zap.String("site", profile.Name),
		zap.Int("api_port", cfg.API.Port),
	)

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	_ = shutdownCtx

	zapLog.Info("Pipeline manager stopped gracefully")
}
