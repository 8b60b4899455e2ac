package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/utafrali/catalog/internal/config"
	"github.com/utafrali/catalog/internal/event"
	handler "github.com/utafrali/catalog/internal/handler/http"
	"github.com/utafrali/catalog/internal/media"
	"github.com/utafrali/catalog/internal/repository/postgres"
	redisrepo "github.com/utafrali/catalog/internal/repository/redis"
	"github.com/utafrali/catalog/internal/service"
	"github.com/utafrali/catalog/migrations"
	"github.com/utafrali/catalog/pkg/database"
	"github.com/utafrali/catalog/pkg/health"
	"github.com/utafrali/catalog/pkg/httpclient"
	pkgkafka "github.com/utafrali/catalog/pkg/kafka"
	"github.com/utafrali/catalog/pkg/middleware"
	"github.com/utafrali/catalog/pkg/tracing"
)

const (
	serviceName       = "catalog"
	idempotencyPrefix = "catalog:consumed:"
	idempotencyTTL    = 24 * time.Hour
)

// App wires together all dependencies and runs the catalog service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	redis          *redis.Client
	producer       *pkgkafka.Producer
	httpServer     *http.Server
	consumers      map[string]*pkgkafka.Consumer
	reconciler     *service.Reconciler
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize OpenTelemetry tracing.
	tracerShutdown, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    serviceName,
		ServiceVersion: "0.1.0",
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTELEndpoint,
		SampleRate:     cfg.OTELSampleRate,
		Enabled:        cfg.OTELEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	// Initialize PostgreSQL connection pool.
	pgCfg := database.PostgresConfig{
		Host:            cfg.PostgresHost,
		Port:            cfg.PostgresPort,
		User:            cfg.PostgresUser,
		Password:        cfg.PostgresPass,
		DBName:          cfg.PostgresDB,
		SSLMode:         cfg.PostgresSSL,
		MaxConns:        cfg.DBMaxConns,
		MinConns:        cfg.DBMinConns,
		MaxConnLifetime: time.Duration(cfg.DBMaxConnLifetimeMins) * time.Minute,
		MaxConnIdleTime: time.Duration(cfg.DBMaxConnIdleTimeMins) * time.Minute,
	}

	pool, err := database.NewPostgresPool(ctx, &pgCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	logger.Info("connected to PostgreSQL",
		slog.String("host", cfg.PostgresHost),
		slog.Int("port", cfg.PostgresPort),
		slog.String("database", cfg.PostgresDB),
	)
	if err := database.RegisterPoolMetrics(pool, serviceName); err != nil {
		logger.Warn("failed to register pool metrics", slog.String("error", err.Error()))
	}

	// Run database migrations.
	if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database migrations completed")

	// Configure slow query logging.
	if cfg.SlowQueryThresholdMs > 0 {
		database.SetSlowQueryLogging(time.Duration(cfg.SlowQueryThresholdMs)*time.Millisecond, logger)
	}

	// Initialize Redis for listing snapshots and consumer idempotency.
	redisClient, err := database.NewRedisClient(ctx, database.RedisConfig{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, logger)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	logger.Info("connected to Redis",
		slog.String("host", cfg.RedisHost),
		slog.Int("port", cfg.RedisPort),
	)

	// Initialize Kafka producer with connection validation and retry.
	kafkaCfg := pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers)
	producer := pkgkafka.NewProducer(kafkaCfg, logger)
	if err := database.Retry(ctx, "kafka producer ping", logger, producer.Ping); err != nil {
		logger.Warn("kafka producer ping failed after retries, continuing in degraded mode",
			slog.String("error", err.Error()),
		)
	} else {
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	}

	// Build the dependency graph.
	listingRepo := postgres.NewListingRepository(pool, cfg.SearchAttribute)
	catalogRepo := postgres.NewCatalogRepository(pool, cfg.SearchAttribute)
	promotionRepo := postgres.NewPromotionRepository(pool)
	purchaseRepo := postgres.NewPurchaseRepository(pool)
	suggestionRepo := postgres.NewSuggestionRepository(pool)
	taxonomyRepo := postgres.NewTaxonomyRepository(pool)
	reportRepo := postgres.NewReportRepository(pool)

	cache := redisrepo.NewListingCache(redisClient, cfg.CacheTTL)
	eventProducer := event.NewProducer(producer, logger)
	assets := newAssetCleaner(cfg, logger)

	reconciler := service.NewReconciler(promotionRepo, cache, eventProducer, logger)
	listingService := service.NewListingService(listingRepo, taxonomyRepo, cache, reconciler, eventProducer, assets, logger)
	purchaseService := service.NewPurchaseService(purchaseRepo, listingService, logger)

	services := handler.Services{
		Listings:    listingService,
		Catalog:     service.NewCatalogService(catalogRepo, listingRepo, cache, eventProducer, assets, logger),
		Promotions:  service.NewPromotionService(promotionRepo, listingService, reconciler, logger),
		Suggestions: service.NewSuggestionService(suggestionRepo, eventProducer, assets, logger),
		Purchases:   purchaseService,
		Reports:     service.NewReportService(reportRepo, logger),
		Taxonomy:    service.NewTaxonomyService(taxonomyRepo, logger),
	}

	// Set up Kafka consumers for order events.
	consumers := make(map[string]*pkgkafka.Consumer)
	if cfg.KafkaConsumersEnabled {
		eventConsumer := event.NewConsumer(purchaseService, logger)
		idempotencyStore := pkgkafka.NewRedisIdempotencyStore(redisClient, idempotencyPrefix, idempotencyTTL)

		handlers := map[string]pkgkafka.Handler{
			event.TopicOrderStatusChanged: eventConsumer.HandleOrderStatusChanged,
			event.TopicOrderCanceled:      eventConsumer.HandleOrderCanceled,
		}
		for topic, h := range handlers {
			consumers[topic] = pkgkafka.NewConsumer(pkgkafka.ConsumerConfig{
				Brokers:   cfg.KafkaBrokers,
				GroupID:   "catalog-service-" + topic,
				Topic:     topic,
				MinBytes:  1,
				MaxBytes:  10e6,
				EnableDLQ: true,
			}, pkgkafka.IdempotentHandler(idempotencyStore, h, logger), logger)
		}
	}

	// Health checks.
	healthHandler := health.NewHandler()
	healthHandler.RegisterCritical("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthHandler.RegisterNonCritical("redis", func(ctx context.Context) error {
		return redisClient.Ping(ctx).Err()
	})
	healthHandler.RegisterNonCritical("kafka", func(ctx context.Context) error {
		return producer.Ping(ctx)
	})

	// HTTP router.
	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowedOrigins = cfg.CORSAllowedOrigins
	corsCfg.Environment = cfg.Environment
	router := handler.NewRouter(services, healthHandler, logger, handler.RouterConfig{
		PprofCIDRs: cfg.PprofAllowedCIDRs,
		CORS:       corsCfg,
	})

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &App{
		cfg:            cfg,
		logger:         logger,
		pool:           pool,
		redis:          redisClient,
		producer:       producer,
		httpServer:     httpServer,
		consumers:      consumers,
		reconciler:     reconciler,
		tracerShutdown: tracerShutdown,
	}, nil
}

// newAssetCleaner returns the media service client behind a circuit breaker,
// or a no-op cleaner when no media service is configured.
func newAssetCleaner(cfg *config.Config, logger *slog.Logger) service.AssetCleaner {
	if cfg.MediaServiceURL == "" {
		logger.Info("media service not configured, asset cleanup disabled")
		return media.Noop{}
	}

	cb := httpclient.NewCircuitBreakerClient(
		httpclient.New(httpclient.DefaultConfig()),
		httpclient.DefaultCircuitBreakerConfig("media-service"),
		logger,
	).WithFallback(media.CircuitOpenFallback)
	return media.NewClient(cb, cfg.MediaServiceURL, logger)
}

// Run starts the HTTP server, Kafka consumers and the promotion expiry sweep,
// then blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1+len(a.consumers))

	// Start HTTP server.
	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	// Start Kafka consumers.
	for topic, c := range a.consumers {
		go func() {
			if err := c.Start(ctx); err != nil {
				errCh <- fmt.Errorf("%s consumer: %w", topic, err)
			}
		}()
	}

	// Start background promotion expiry sweep.
	go a.reconciler.Run(ctx, a.cfg.ReconcileInterval)

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		return errors.Join(err, a.Shutdown())
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components in the correct order:
// 1. HTTP server (drain in-flight requests)
// 2. Tracer (flush pending spans from drained requests)
// 3. Kafka consumers
// 4. Kafka producer
// 5. Redis client
// 6. PostgreSQL pool
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	httpCtx, httpCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	for topic, c := range a.consumers {
		if err := c.Close(); err != nil {
			a.logger.Error("consumer close error",
				slog.String("topic", topic),
				slog.String("error", err.Error()),
			)
			errs = append(errs, err)
		}
	}

	if err := a.producer.Close(); err != nil {
		a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if err := a.redis.Close(); err != nil {
		a.logger.Error("redis close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	a.pool.Close()

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}
