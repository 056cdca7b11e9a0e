package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	credentialapp "github.com/blingsync/backend/internal/application/credential"
	pricingapp "github.com/blingsync/backend/internal/application/pricing"
	syncapp "github.com/blingsync/backend/internal/application/sync"
	"github.com/blingsync/backend/internal/domain/pricing"
	"github.com/blingsync/backend/internal/infrastructure/bling"
	"github.com/blingsync/backend/internal/infrastructure/cache"
	"github.com/blingsync/backend/internal/infrastructure/config"
	"github.com/blingsync/backend/internal/infrastructure/crypto"
	"github.com/blingsync/backend/internal/infrastructure/logger"
	"github.com/blingsync/backend/internal/infrastructure/persistence"
	"github.com/blingsync/backend/internal/infrastructure/scheduler"
	"github.com/blingsync/backend/internal/infrastructure/telemetry"
	"github.com/blingsync/backend/internal/interfaces/http/handler"
	"github.com/blingsync/backend/internal/interfaces/http/middleware"
	"github.com/blingsync/backend/internal/interfaces/http/router"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting BlingSync backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Create GORM logger backed by zap
	gormLogLevel := logger.MapGormLogLevel(cfg.Log.Level)
	gormLog := logger.NewGormLogger(log, gormLogLevel)

	// Initialize database connection with custom logger
	db, err := persistence.NewDatabaseWithGormLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Price cache: Redis when reachable, in-process fallback otherwise. A
	// cold cache costs recomputation, never correctness.
	var priceCache pricing.PriceCache
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		log.Warn("Redis unreachable, falling back to in-memory price cache", zap.Error(err))
		_ = redisClient.Close()
		priceCache = cache.NewInMemoryPriceCache(cfg.Cache.PriceTTL)
	} else {
		priceCache = cache.NewRedisPriceCache(redisClient, cfg.Cache.PriceTTL)
		defer func() {
			_ = redisClient.Close()
		}()
	}
	pingCancel()

	// Telemetry
	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.ExportInterval,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := meterProvider.Shutdown(shutdownCtx); err != nil {
			log.Error("Failed to shut down telemetry", zap.Error(err))
		}
	}()

	syncMetrics, err := telemetry.NewSyncMetrics(telemetry.SyncMetricsConfig{
		Meter:  meterProvider.Meter("blingsync"),
		Logger: log,
	})
	if err != nil {
		log.Fatal("Failed to create sync metrics", zap.Error(err))
	}

	// Credential cipher
	cipher, err := crypto.NewAESCipher(cfg.Vault.EncryptionKey)
	if err != nil {
		log.Fatal("Failed to initialize credential cipher", zap.Error(err))
	}

	// Bling API client and OAuth token provider
	blingClient, err := bling.NewClient(&bling.Config{
		APIBaseURL:     cfg.Bling.APIBaseURL,
		RequestTimeout: cfg.Bling.RequestTimeout,
		MaxPageSize:    cfg.Bling.MaxPageSize,
	}, log)
	if err != nil {
		log.Fatal("Failed to create Bling client", zap.Error(err))
	}
	tokenProvider := bling.NewTokenProvider(cfg.Bling.TokenURL, cfg.Bling.RequestTimeout, log)

	// Initialize repositories
	connectionRepo := persistence.NewGormConnectionRepository(db.DB)
	jobRepo := persistence.NewGormJobRepository(db.DB)
	logRepo := persistence.NewGormLogRepository(db.DB)
	metricRepo := persistence.NewGormMetricRepository(db.DB)
	configRepo := persistence.NewGormConfigurationRepository(db.DB)
	policyRepo := persistence.NewGormPolicyRepository(db.DB)
	conflictRepo := persistence.NewGormConflictRepository(db.DB)
	conflictWriter := persistence.NewGormConflictWriter(db.DB)
	historyRepo := persistence.NewGormHistoryRepository(db.DB)
	localStore := persistence.NewGormLocalStore(db.DB)

	// Initialize application services
	vaultService := credentialapp.NewVaultService(connectionRepo, tokenProvider, cipher,
		credentialapp.WithRefreshWindow(cfg.Vault.RefreshWindow),
		credentialapp.WithVaultLogger(log),
	)
	connectionService := credentialapp.NewConnectionService(connectionRepo, cipher, vaultService, log)
	jobService := syncapp.NewJobService(jobRepo, configRepo, connectionRepo, log)
	policyService := pricingapp.NewPolicyService(policyRepo, log)
	priceService := pricingapp.NewPriceService(policyRepo, priceCache, log)
	conflictService := pricingapp.NewConflictService(conflictRepo, conflictWriter, localStore, priceCache, log)

	orchestrator := syncapp.NewOrchestrator(syncapp.OrchestratorDeps{
		Jobs:        jobRepo,
		Logs:        logRepo,
		Metrics:     metricRepo,
		Connections: connectionRepo,
		Vault:       vaultService,
		Gateway:     blingClient,
		Store:       localStore,
		Policies:    policyRepo,
		History:     historyRepo,
		Conflicts:   conflictRepo,
		Writer:      conflictWriter,
		Cache:       priceCache,
		Telemetry:   syncMetrics,
		Logger:      log,
		RetryBase:   cfg.Sync.RetryBase,
	})

	// Sync job dispatcher
	dispatcher, err := scheduler.NewDispatcher(scheduler.DispatcherConfig{
		Enabled:       cfg.Sync.SchedulerEnabled,
		PollInterval:  cfg.Sync.PollInterval,
		Workers:       cfg.Sync.Workers,
		DispatchLimit: cfg.Sync.DispatchLimit,
		JobTimeout:    15 * time.Minute,
	}, jobRepo, orchestrator, log)
	if err != nil {
		log.Fatal("Failed to create dispatcher", zap.Error(err))
	}
	// Interval scheduler, triggers the periodic import per tenant
	intervalScheduler, err := scheduler.NewScheduler(scheduler.SchedulerConfig{
		Enabled:      cfg.Sync.SchedulerEnabled,
		ScanInterval: cfg.Sync.PollInterval,
	}, connectionRepo, configRepo, jobService, log)
	if err != nil {
		log.Fatal("Failed to create scheduler", zap.Error(err))
	}

	if cfg.Sync.SchedulerEnabled {
		if err := dispatcher.Start(ctx); err != nil {
			log.Fatal("Failed to start dispatcher", zap.Error(err))
		}
		if err := intervalScheduler.Start(ctx); err != nil {
			log.Fatal("Failed to start scheduler", zap.Error(err))
		}
	} else {
		log.Info("Sync scheduler disabled, jobs run only via API and webhooks")
	}

	// HTTP server
	authConfig := middleware.DefaultAuthConfig(cfg.JWT.Secret)
	authConfig.HeaderFallback = cfg.App.Env != "production"
	authConfig.Logger = log

	engine := router.New(router.Config{
		Env:        cfg.App.Env,
		APIVersion: "v1",
		Auth:       authConfig,
		CORS: middleware.CORSConfig{
			AllowOrigins: cfg.HTTP.CORSAllowOrigins,
			AllowMethods: cfg.HTTP.CORSAllowMethods,
			AllowHeaders: cfg.HTTP.CORSAllowHeaders,
		},
		Public: []router.RouteRegistrar{
			handler.NewHealthHandler(db),
			handler.NewWebhookHandler(jobService, connectionRepo, log),
		},
		Protected: []router.RouteRegistrar{
			handler.NewSyncJobHandler(jobService),
			handler.NewPolicyHandler(policyService, priceService),
			handler.NewConflictHandler(conflictService),
			handler.NewConnectionHandler(connectionService),
			handler.NewHistoryHandler(historyRepo),
		},
	}, log)

	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Fatal("Failed to set trusted proxies", zap.Error(err))
		}
	}

	server := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		log.Error("HTTP server failed", zap.Error(err))
	case <-ctx.Done():
		log.Info("Shutdown signal received")
	}

	// Stop the dispatcher before the HTTP server so in-flight jobs finish
	// against a live database connection.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if cfg.Sync.SchedulerEnabled {
		if err := intervalScheduler.Stop(shutdownCtx); err != nil {
			log.Error("Scheduler shutdown failed", zap.Error(err))
		}
		if err := dispatcher.Stop(shutdownCtx); err != nil {
			log.Error("Dispatcher shutdown failed", zap.Error(err))
		}
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown failed", zap.Error(err))
	}

	log.Info("Server stopped")
}
