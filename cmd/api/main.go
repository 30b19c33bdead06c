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

	"github.com/hearthtable/marketplace/internal/adapters/auth"
	"github.com/hearthtable/marketplace/internal/adapters/cache"
	"github.com/hearthtable/marketplace/internal/adapters/database"
	"github.com/hearthtable/marketplace/internal/adapters/events"
	"github.com/hearthtable/marketplace/internal/adapters/search"
	"github.com/hearthtable/marketplace/internal/adapters/storage"
	"github.com/hearthtable/marketplace/internal/api/handlers"
	"github.com/hearthtable/marketplace/internal/api/middleware"
	"github.com/hearthtable/marketplace/internal/api/routes"
	"github.com/hearthtable/marketplace/internal/application/loaders"
	"github.com/hearthtable/marketplace/internal/application/services"
	"github.com/hearthtable/marketplace/internal/domain/providers"
	"github.com/hearthtable/marketplace/internal/domain/repositories"
	"github.com/hearthtable/marketplace/internal/infrastructure/clients/postgres"
	"github.com/hearthtable/marketplace/internal/infrastructure/clients/redis"
	"github.com/hearthtable/marketplace/internal/infrastructure/clients/s3"
	"github.com/hearthtable/marketplace/internal/infrastructure/clients/typesense"
	"github.com/hearthtable/marketplace/internal/infrastructure/observability"
	"github.com/hearthtable/marketplace/pkg/config"
)

// maxFilesPerRequest mirrors the image service's per-upload file limit
const maxFilesPerRequest = 20

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	observability.InitLogger(cfg.OTEL.ServiceName, cfg.Server.Environment, cfg.Server.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize OpenTelemetry if enabled
	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err := observability.Setup(ctx, cfg.OTEL.ServiceName, cfg.OTEL.ServiceVersion, cfg.OTEL.Endpoint)
		if err != nil {
			log.Warn().Err(err).Msg("failed to set up OpenTelemetry")
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(ctx); err != nil {
					log.Error().Err(err).Msg("error shutting down OpenTelemetry")
				}
			}()
			log.Info().Str("endpoint", cfg.OTEL.Endpoint).Msg("OpenTelemetry initialized")
		}
	}

	metrics, err := observability.InitMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize metrics")
	}

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize PostgreSQL client")
	}
	defer pgClient.Close()

	// Redis backs the shared cache, the session store and auth-state push.
	// Without it each falls back to a single-process implementation.
	var (
		cacheProvider providers.CacheProvider
		sessionStore  providers.SessionStore
		eventBus      providers.EventBus
		redisClient   *redis.Client
	)
	redisClient, err = redis.NewClient(&cfg.Redis)
	if err != nil {
		log.Warn().Err(err).Msg("Redis unavailable; using in-process cache, session store and event bus")
		memCache := cache.NewMemoryCache()
		cacheProvider = memCache
		sessionStore = memCache
		eventBus = events.NewMemoryEventBus()
	} else {
		defer redisClient.Close()
		cacheProvider = cache.NewRedisAdapter(redisClient)
		sessionStore = cache.NewRedisSessionStore(redisClient)
		eventBus = events.NewRedisEventBus(redisClient)
	}

	var searchRepo repositories.ListingSearchRepository
	if cfg.Typesense.Enabled {
		typesenseClient, err := typesense.NewClient(&cfg.Typesense)
		if err != nil {
			log.Warn().Err(err).Msg("Typesense unavailable; free-text search uses the database")
		} else {
			adapter := search.NewTypesenseAdapter(typesenseClient)
			if err := adapter.InitSchema(ctx); err != nil {
				log.Warn().Err(err).Msg("failed to init Typesense schema")
			}
			searchRepo = adapter
		}
	}

	var objectStorage providers.ObjectStorage
	s3Client, err := s3.NewClient(&cfg.Storage)
	switch {
	case err == nil:
		objectStorage = storage.NewS3Storage(s3Client)
	case cfg.Server.Environment == "production":
		log.Fatal().Err(err).Msg("failed to initialize object storage")
	default:
		log.Warn().Err(err).Msg("object storage unavailable; keeping uploads in memory")
		objectStorage = storage.NewMemoryStorage(cfg.Storage.Bucket)
	}

	// Adapters
	listingRepo := database.NewCachedListingAdapter(database.NewListingAdapter(pgClient), cacheProvider)
	availabilityRepo := database.NewAvailabilityAdapter(pgClient)
	imageRepo := database.NewImageAdapter(pgClient)
	favoriteRepo := database.NewFavoriteAdapter(pgClient)
	userRepo := database.NewUserAdapter(pgClient)
	reviewRepo := database.NewReviewAdapter(pgClient)
	messageRepo := database.NewMessageAdapter(pgClient)
	tokens := auth.NewJWTTokenProvider(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.AccessTokenTTL)

	// Services
	invalidator := services.NewCacheInvalidationService(cacheProvider)
	availabilityService := services.NewAvailabilityService(listingRepo, availabilityRepo, cfg.Availability, invalidator)
	imageService := services.NewImageService(listingRepo, imageRepo, objectStorage, cfg.Storage, invalidator, metrics)
	listingService := services.NewListingService(
		listingRepo,
		searchRepo,
		availabilityService,
		favoriteRepo,
		userRepo,
		imageRepo,
		imageService.URLs(),
		invalidator,
		metrics,
	)
	favoriteService := services.NewFavoriteService(favoriteRepo, listingRepo, listingService)
	reviewService := services.NewReviewService(reviewRepo, listingRepo, userRepo, invalidator)
	messageService := services.NewMessageService(messageRepo, listingRepo)
	sessionService := services.NewSessionService(userRepo, tokens, sessionStore, eventBus, cfg.Auth)

	warmingService := services.NewCacheWarmingService(listingRepo, cacheProvider)
	warmingService.StartPeriodicWarming(ctx, 5*time.Minute)

	// Handlers
	healthChecks := map[string]handlers.HealthCheck{
		"database": pgClient.Ping,
	}
	if redisClient != nil {
		healthChecks["redis"] = redisClient.Ping
	}

	router := routes.NewRouter(
		routes.Handlers{
			Health:       handlers.NewHealthHandler(healthChecks),
			Auth:         handlers.NewAuthHandler(sessionService),
			Listings:     handlers.NewListingHandler(listingService),
			Availability: handlers.NewAvailabilityHandler(availabilityService),
			Images:       handlers.NewImageHandler(imageService, cfg.Storage.MaxUploadBytes*maxFilesPerRequest+(1<<20)),
			Favorites:    handlers.NewFavoriteHandler(favoriteService),
			Reviews:      handlers.NewReviewHandler(reviewService),
			Messages:     handlers.NewMessageHandler(messageService),
		},
		sessionService,
		func() *loaders.Loaders { return loaders.NewLoaders(userRepo, imageRepo) },
		middleware.NewCacheMiddleware(cacheProvider, metrics),
		cfg.Server.AllowedOrigins,
		metrics,
	)

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      router.SetupRoutes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", serverAddr).Str("env", cfg.Server.Environment).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("server shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error during server shutdown")
	}

	if err := eventBus.Close(); err != nil {
		log.Error().Err(err).Msg("error closing event bus")
	}

	log.Info().Msg("server stopped")
}
