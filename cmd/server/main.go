package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appintegration "github.com/listsync/backend/internal/application/integration"
	"github.com/listsync/backend/internal/domain/integration"
	"github.com/listsync/backend/internal/domain/shopping"
	"github.com/listsync/backend/internal/infrastructure/cache"
	"github.com/listsync/backend/internal/infrastructure/classifier"
	"github.com/listsync/backend/internal/infrastructure/config"
	"github.com/listsync/backend/internal/infrastructure/externallist"
	"github.com/listsync/backend/internal/infrastructure/logger"
	"github.com/listsync/backend/internal/infrastructure/persistence"
	"github.com/listsync/backend/internal/infrastructure/scheduler"
	"github.com/listsync/backend/internal/infrastructure/storage"
	"github.com/listsync/backend/internal/infrastructure/telemetry"
	"github.com/listsync/backend/internal/interfaces/http/handler"
	"github.com/listsync/backend/internal/interfaces/http/middleware"
	"github.com/listsync/backend/internal/interfaces/http/router"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	baseLog, err := logger.New(&logger.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Output:  cfg.Log.Output,
		Service: cfg.App.Name,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(baseLog)
	}()

	ctx := context.Background()

	// OTLP log export tees zap into the collector when enabled
	logLevel, _ := logger.ParseLevel(cfg.Log.Level)
	lp, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.Enabled && cfg.Telemetry.LogsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, baseLog)
	if err != nil {
		baseLog.Fatal("Failed to initialize OTEL logs", zap.Error(err))
	}
	log := lp.Bridge(baseLog, logLevel)

	log.Info("Starting list sync",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
		zap.String("list_ref", cfg.List.MessageRef),
	)

	// Tracing, metrics and profiling
	tp, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracing", zap.Error(err))
	}

	mp, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.MetricsInterval,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize metrics", zap.Error(err))
	}

	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:         cfg.Telemetry.ProfilingEnabled,
		ServerAddress:   cfg.Telemetry.ProfilingServerAddress,
		ApplicationName: cfg.Telemetry.ServiceName,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize profiler", zap.Error(err))
	}
	if cfg.Telemetry.ProfilingEnabled && tp.IsEnabled() {
		if err := tp.EnableSpanProfiles(); err != nil {
			log.Warn("Span profiles unavailable", zap.Error(err))
		}
	}

	// Database
	dbTracing := telemetry.DefaultDBTracingConfig()
	dbTracing.Enabled = cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled
	dbTracing.LogFullSQL = cfg.Telemetry.DBLogFullSQL
	dbTracing.DBSystem = cfg.Database.Driver
	if cfg.Telemetry.DBSlowQueryThresh > 0 {
		dbTracing.SlowQueryThresh = cfg.Telemetry.DBSlowQueryThresh
	}

	db, err := persistence.NewDatabase(&cfg.Database,
		persistence.WithZapLogger(log, cfg.Log.Level, dbTracing.SlowQueryThresh),
		persistence.WithTracing(telemetry.NewDBTracingPlugin(dbTracing, log)),
	)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	if cfg.Database.Driver == config.DriverSQLite {
		if err := db.AutoMigrate(); err != nil {
			log.Fatal("Failed to create sqlite schema", zap.Error(err))
		}
	}
	log.Info("Database connected", zap.String("driver", cfg.Database.Driver))

	dbMetricsCfg := telemetry.DefaultDBMetricsConfig()
	dbMetricsCfg.SlowQueryThreshold = dbTracing.SlowQueryThresh
	dbMetrics, err := telemetry.RegisterDBMetrics(ctx, db.DB, mp.Meter("db.client"), dbMetricsCfg, log)
	if err != nil {
		log.Warn("Database metrics unavailable", zap.Error(err))
	}

	// Mapping and category persistence
	blobs, err := openBlobStore(cfg, db, log)
	if err != nil {
		log.Fatal("Failed to open blob store", zap.Error(err))
	}
	if closer, ok := blobs.(io.Closer); ok {
		defer func() { _ = closer.Close() }()
	}

	store := persistence.NewGormMessageStore(db.DB)
	mappings := persistence.NewListMappingRepository(blobs, cfg.Persistence.KeyPrefix, log)
	categories := persistence.NewCategoryMemoryRepository(blobs, cfg.Persistence.KeyPrefix, log)

	transport, err := externallist.NewHTTPTransport(&cfg.External, externallist.WithLogger(log))
	if err != nil {
		log.Fatal("Failed to create external list transport", zap.Error(err))
	}

	var classify shopping.Classifier
	if cfg.Classifier.Enabled {
		c, err := classifier.NewHTTPClassifier(&cfg.Classifier, classifier.WithLogger(log))
		if err != nil {
			log.Fatal("Failed to create classifier", zap.Error(err))
		}
		classify = c
	}

	// Sync engine
	svc, err := appintegration.NewListSyncService(appintegration.ListSyncConfig{
		Binding:    cfg.List.Binding(),
		Options:    cfg.Sync.Options(),
		Store:      store,
		Transport:  transport,
		Mappings:   mappings,
		Categories: categories,
		Classifier: classify,
		Logger:     log,
	})
	if err != nil {
		log.Fatal("Failed to create list sync service", zap.Error(err))
	}

	syncMetrics, err := telemetry.NewSyncMetrics(telemetry.SyncMetricsConfig{
		Meter:  mp.Meter("listsync"),
		Logger: log,
	})
	if err != nil {
		log.Warn("Sync metrics unavailable", zap.Error(err))
	}
	svc.SetSyncMetrics(syncMetrics)

	if err := svc.Start(ctx); err != nil {
		log.Fatal("Failed to start list sync service", zap.Error(err))
	}

	schedCfg := scheduler.DefaultListSyncSchedulerConfig()
	schedCfg.ListRef = cfg.List.MessageRef
	if cfg.Sync.QueueSize > 0 {
		schedCfg.QueueSize = cfg.Sync.QueueSize
	}
	if cfg.Sync.JobTimeout > 0 {
		schedCfg.JobTimeout = cfg.Sync.JobTimeout
	}
	if cfg.Sync.HistorySize > 0 {
		schedCfg.HistorySize = cfg.Sync.HistorySize
	}
	opts := svc.Options()
	schedCfg.FullSyncInterval = opts.FullSyncInterval
	schedCfg.CategorizeDebounce = opts.CategorizeDebounce

	sched, err := scheduler.NewListSyncScheduler(schedCfg, svc, log)
	if err != nil {
		log.Fatal("Failed to create sync scheduler", zap.Error(err))
	}
	if err := sched.Start(ctx); err != nil {
		log.Fatal("Failed to start sync scheduler", zap.Error(err))
	}
	svc.SetCategorizeTrigger(sched.TriggerCategorize)

	// HTTP
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		log.Warn("Invalid trusted proxies", zap.Error(err))
	}

	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log, logger.WithSkipPaths("/health")))
	engine.Use(middleware.Tracing(middleware.TracingConfig{
		ServiceName: cfg.Telemetry.ServiceName,
		Enabled:     tp.IsEnabled(),
		Filter: func(r *http.Request) bool {
			return r.URL.Path != "/health"
		},
	}))
	engine.Use(middleware.SpanAttributes())
	engine.Use(middleware.HTTPMetrics(middleware.HTTPMetricsConfig{
		MeterProvider: mp,
		Enabled:       cfg.Telemetry.Enabled,
	}))
	profiling := middleware.DefaultProfilingConfig()
	profiling.Enabled = cfg.Telemetry.ProfilingEnabled
	engine.Use(middleware.Profiling(profiling))
	engine.Use(middleware.Secure())
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	limiterCtx, stopLimiter := context.WithCancel(ctx)
	defer stopLimiter()
	notifyLimiter := middleware.NewRateLimiter(cfg.HTTP.NotifyRateLimit, cfg.HTTP.NotifyRateWindow)
	if cfg.HTTP.NotifyRateLimit > 0 {
		go notifyLimiter.Cleanup(limiterCtx, cfg.HTTP.NotifyRateWindow)
	}

	system := handler.NewSystemHandler(cfg.App.Name, version).
		AddCheck("database", func(context.Context) error { return db.Ping() }).
		AddCheck("sync", func(context.Context) error {
			if !svc.IsRunning() {
				return integration.ErrEngineStopped
			}
			if !sched.IsRunning() {
				return scheduler.ErrSchedulerNotRunning
			}
			return nil
		}).
		AddCheck("external", func(ctx context.Context) error {
			health, err := transport.ConnectionHealth(ctx, cfg.List.ConnectionID)
			if err != nil {
				return err
			}
			if health != integration.HealthHealthy {
				return integration.ErrConnectionDown
			}
			return nil
		})
	engine.GET("/health", system.Health)

	listSync := handler.NewListSyncHandler(handler.ListSyncDeps{
		Engine: svc,
		Queue:  sched,
		Store:  store,
	}, handler.WithTriggerMiddleware(
		middleware.RateLimitByKey(notifyLimiter, middleware.ListClientKey),
	))

	parse := handler.NewParseHandler(svc.Parser())
	tools := router.NewDomainGroup("tools", "")
	tools.POST("/parse", parse.Parse)

	r := router.NewRouter(engine, router.WithAPIVersion("v1"))
	r.Register(listSync)
	r.Register(tools)
	r.Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := sched.Stop(shutdownCtx); err != nil {
		log.Error("Error stopping sync scheduler", zap.Error(err))
	}
	svc.Stop()
	if dbMetrics != nil {
		dbMetrics.Stop()
	}
	if err := profiler.Stop(); err != nil {
		log.Error("Error stopping profiler", zap.Error(err))
	}
	if err := mp.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down meter provider", zap.Error(err))
	}
	if err := tp.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down tracer provider", zap.Error(err))
	}
	if err := lp.Shutdown(shutdownCtx); err != nil {
		baseLog.Error("Error shutting down logger provider", zap.Error(err))
	}

	log.Info("Server exited")
}

// openBlobStore returns the store for mapping and category records
func openBlobStore(cfg *config.Config, db *persistence.Database, log *zap.Logger) (integration.BlobStore, error) {
	switch cfg.Persistence.Backend {
	case config.BackendDatabase, "":
		return persistence.NewGormBlobStore(db.DB), nil
	case config.BackendRedis:
		return cache.NewBlobStoreFactory(cfg.Redis, cache.WithLogger(log)).CreateStore()
	case config.BackendS3:
		return storage.NewS3BlobStore(&cfg.Storage,
			storage.WithLogger(log),
			storage.WithObjectPrefix(cfg.Persistence.KeyPrefix),
		)
	case config.BackendMemory:
		log.Warn("Using in-memory blob store; mappings will not survive a restart")
		return cache.NewInMemoryBlobStore(), nil
	default:
		return nil, fmt.Errorf("unknown persistence backend %q", cfg.Persistence.Backend)
	}
}
