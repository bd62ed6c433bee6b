package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/silverfox/cao-engine/internal/config"
	"github.com/silverfox/cao-engine/internal/emit"
	"github.com/silverfox/cao-engine/internal/handler"
	"github.com/silverfox/cao-engine/internal/ingest"
	"github.com/silverfox/cao-engine/internal/middleware"
	"github.com/silverfox/cao-engine/internal/queue"
	"github.com/silverfox/cao-engine/internal/realtime"
	"github.com/silverfox/cao-engine/internal/resolver"
	"github.com/silverfox/cao-engine/internal/scraper"
	"github.com/silverfox/cao-engine/internal/store"
	"github.com/silverfox/cao-engine/internal/tracing"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			Environment:      cfg.Environment,
			TracesSampleRate: 0.1,
		}); err != nil {
			logger.Error("failed to init sentry", slog.String("error", err.Error()))
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	ctx := context.Background()
	tracingShutdown, err := tracing.Init(ctx, "cao-engine", cfg.OTLPEndpoint, cfg.Environment)
	if err != nil {
		logger.Warn("failed to init tracing", slog.String("error", err.Error()))
	} else {
		defer tracingShutdown(ctx)
	}

	dbConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to parse database config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	dbConfig.MaxConns = int32(cfg.DBMaxConns)
	dbConfig.MinConns = int32(cfg.DBMinConns)
	dbConfig.MaxConnLifetime = cfg.DBMaxConnLife

	db, err := pgxpool.NewWithConfig(ctx, dbConfig)
	if err != nil {
		logger.Error("failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer db.Close()
	if err := db.Ping(ctx); err != nil {
		logger.Error("failed to ping database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("database_connected")

	var redisClient *redis.Client
	if cfg.RedisEventsEnabled {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Error("failed to parse redis url", slog.String("error", err.Error()))
			os.Exit(1)
		}
		redisClient = redis.NewClient(opts)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Error("failed to ping redis", slog.String("error", err.Error()))
			os.Exit(1)
		}
		logger.Info("redis_connected")
	}

	broker := realtime.NewBroker(logger, redisClient)
	broker.Start()
	defer broker.Stop()

	s := store.New(db)
	ing := ingest.New(s, logger)
	res := resolver.New(s, logger)
	emitter := emit.New(s, logger, cfg.QROutputRoot)

	orchestrator := scraper.New(ing, s, broker, logger, scraper.WithConcurrency(cfg.ScraperConcurrency), scraper.WithAdapterTimeout(cfg.ScraperTimeout))

	processor := queue.New(s, res, emitter, logger, queue.WithWorkers(cfg.QueueWorkerCount), queue.WithQueueSize(cfg.QueueSize))
	processor.Start()
	defer processor.Stop()

	operatorAuth := middleware.NewOperatorAuth(logger, cfg.OperatorAPIKey, cfg.OperatorJWTKey)

	healthHandler := handler.NewHealthHandler(db)
	inventoryHandler := handler.NewInventoryHandler(s, logger)
	dealershipHandler := handler.NewDealershipHandler(s, logger)
	importHandler := handler.NewImportHandler(ing, s, logger)
	vinLogHandler := handler.NewVINLogHandler(s, logger)
	queueHandler := handler.NewQueueHandler(processor, logger)
	// No concrete scrape adapters ship with this service; operators register
	// them by building a deployment-specific binary against internal/scraper.
	scraperHandler := handler.NewScraperHandler(orchestrator, broker, logger, func() []scraper.Adapter { return nil })
	debugHandler := handler.NewDebugHandler(orchestrator, processor, broker, logger)

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.Tracing)
	r.Use(middleware.Logging(logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)
	r.Get("/live", healthHandler.Live)
	r.Handle(cfg.MetricsPath, promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/vehicles", inventoryHandler.SearchVehicles)
		r.Get("/vehicles/history", inventoryHandler.VehicleHistory)
		r.Get("/vin-log/history", vinLogHandler.VINHistory)

		r.Group(func(r chi.Router) {
			r.Use(operatorAuth.Middleware)

			r.Get("/dealerships", dealershipHandler.ListDealerships)
			r.Get("/dealerships/{name}", dealershipHandler.GetDealership)
			r.Put("/dealerships", dealershipHandler.UpsertDealership)

			r.Post("/imports/csv", importHandler.ImportCSV)
			r.Post("/imports/toggle-status", importHandler.ToggleImportStatus)
			r.Get("/imports/active", importHandler.ExportScraperImport)

			r.Post("/vin-log/import", vinLogHandler.ImportVINLog)
			r.Get("/vin-log/export", vinLogHandler.ExportVINLog)

			r.Post("/queue/process", queueHandler.ProcessQueue)

			r.Post("/scraper/start", scraperHandler.StartScraping)
			r.Get("/scraper/stream", scraperHandler.StreamSession)
		})
	})

	if cfg.DebugEndpointsEnabled {
		r.Route("/debug", func(r chi.Router) {
			r.Get("/scraper", debugHandler.ScraperStats)
			r.Get("/queue", debugHandler.QueueStats)
			r.Get("/sse", debugHandler.SSEStats)
			r.Get("/stats", debugHandler.AllStats)
		})
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server_starting", slog.Int("port", cfg.Port), slog.String("environment", cfg.Environment))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server_error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server_shutting_down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server_shutdown_error", slog.String("error", err.Error()))
	}

	logger.Info("server_stopped")
}
