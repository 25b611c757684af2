package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/fulfilld/sourcing-service/config"
	"github.com/fulfilld/sourcing-service/internal/cache"
	"github.com/fulfilld/sourcing-service/internal/carrier"
	"github.com/fulfilld/sourcing-service/internal/database"
	"github.com/fulfilld/sourcing-service/internal/filter"
	"github.com/fulfilld/sourcing-service/internal/handlers"
	"github.com/fulfilld/sourcing-service/internal/inventory"
	"github.com/fulfilld/sourcing-service/internal/middleware"
	"github.com/fulfilld/sourcing-service/internal/model"
	"github.com/fulfilld/sourcing-service/internal/optimizer"
	"github.com/fulfilld/sourcing-service/internal/promise"
	"github.com/fulfilld/sourcing-service/internal/scoring"
	"github.com/fulfilld/sourcing-service/internal/sourcing"
	"github.com/fulfilld/sourcing-service/internal/telemetry"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger := initLogger(cfg.Logging)

	logger.Info().Msg("Starting sourcing service")

	dbURL := config.GetDatabaseURL()
	if dbURL == "" {
		logger.Fatal().Msg("DATABASE_URL not set")
	}

	ctx := context.Background()

	cleanup := telemetry.MustInit(ctx, telemetry.GetConfigFromEnv())
	defer func() {
		if err := cleanup(context.Background()); err != nil {
			logger.Warn().Err(err).Msg("Telemetry shutdown failed")
		}
	}()

	if err := database.Connect(
		ctx,
		dbURL,
		cfg.Database.MaxConnections,
		cfg.Database.MinConnections,
		cfg.Database.MaxConnLifetime,
		cfg.Database.MaxConnIdleTime,
	); err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer database.Close()

	logger.Info().Msg("Database connected")

	engine, orchestrator := buildEngines(cfg)
	handlers.InitEngines(orchestrator, engine, database.FilterRepo{})

	if cfg.Sourcing.WarmStartOnBoot {
		go engine.WarmStart(ctx)
	}

	if cfg.Logging.Level == "info" || cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	setupMiddleware(router, logger)

	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	api.Use(middleware.InternalAuthMiddleware())
	api.Use(middleware.ServiceRateLimitMiddleware(
		float64(cfg.RateLimit.RequestsPerSecond), cfg.RateLimit.Burst))
	{
		src := api.Group("/sourcing")
		{
			src.POST("/source", handlers.SourceOrder)
			src.POST("/validate", handlers.ValidateOrder)
			src.GET("/health", handlers.HealthCheck)
		}

		filters := api.Group("/filters")
		{
			filters.GET("/metrics", handlers.FilterMetrics)
			filters.POST("/invalidate", handlers.InvalidateAllFilters)
			filters.POST("/invalidate/:id", handlers.InvalidateFilter)
			filters.POST("/warmup", handlers.WarmupFilters)
		}

		api.GET("/caches", handlers.ListCaches)
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info().Str("addr", addr).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Server forced to shutdown")
	}

	logger.Info().Msg("Server exited")
}

// buildEngines wires caches, repositories, and engines into the pipeline.
func buildEngines(cfg *config.Config) (*filter.Engine, *sourcing.Orchestrator) {
	carrierStore := cache.Register("carrierConfigs", cfg.Caches.CarrierTTL)
	scoringStore := cache.Register("scoringConfigs", cfg.Caches.ScoringTTL)
	inventoryStore := cache.Register("inventory", cfg.Caches.InventoryTTL)
	locationStore := cache.Register("locations", cfg.Caches.LocationTTL)

	scorer := scoring.NewEngine(database.ScoringRepo{}, scoringStore)

	fleet := filter.NewCachedFleet(database.LocationRepo{}, locationStore)
	engine := filter.NewEngine(database.FilterRepo{}, fleet, filter.Options{
		SlowThreshold:     cfg.Sourcing.FilterWarnThreshold,
		WarmupConcurrency: int64(cfg.Sourcing.WarmStartConcurrency),
		WeightsFn: func(ctx context.Context, order *model.OrderRequest) map[string]any {
			return scoring.WeightsMap(scorer.DefaultConfig(ctx))
		},
	})

	selector := carrier.NewSelector(database.CarrierRepo{}, carrierStore)
	calculator := promise.NewCalculator(selector, cfg.Sourcing.PromiseWarnThreshold)
	reader := inventory.NewReader(database.InventoryRepo{}, inventoryStore)
	opt := optimizer.New(scorer)

	orchestrator := sourcing.NewOrchestrator(engine, reader, calculator, opt, scorer, sourcing.Config{
		RequestTimeout:         cfg.Sourcing.RequestTimeout,
		FilterWarnThreshold:    cfg.Sourcing.FilterWarnThreshold,
		PromiseWarnThreshold:   cfg.Sourcing.PromiseWarnThreshold,
		BatchItemThreshold:     cfg.Sourcing.BatchItemThreshold,
		BatchQuantityThreshold: cfg.Sourcing.BatchQuantityThreshold,
		LargeItemQuantity:      cfg.Sourcing.LargeItemQuantity,
		LargeOrderItems:        cfg.Sourcing.LargeOrderItems,
		SequentialMaxQuantity:  cfg.Sourcing.SequentialMaxQuantity,
	})
	return engine, orchestrator
}

func initLogger(cfg config.LoggingConfig) *zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var output io.Writer
	if cfg.Format == "json" {
		output = os.Stdout
	} else {
		output = zerolog.ConsoleWriter{Out: os.Stdout, NoColor: cfg.NoColor}
	}

	logger := zerolog.New(output).Level(level).With().Timestamp().Str("service", "sourcing-service").Logger()
	zlog.Logger = logger
	return &logger
}

func setupMiddleware(router *gin.Engine, logger *zerolog.Logger) {
	router.Use(func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		end := time.Now()
		latency := end.Sub(start)

		logger.Info().
			Str("method", c.Request.Method).
			Str("path", path).
			Str("query", query).
			Int("status", c.Writer.Status()).
			Dur("latency", latency).
			Str("ip", c.ClientIP()).
			Msg("HTTP request")
	})
}
