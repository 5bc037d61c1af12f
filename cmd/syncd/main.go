package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"aspos-sync/internal/cache"
	"aspos-sync/internal/config"
	"aspos-sync/internal/handler"
	"aspos-sync/internal/logger"
	"aspos-sync/internal/middleware"
	"aspos-sync/internal/queue"
	"aspos-sync/internal/repository"
	"aspos-sync/internal/router"
	"aspos-sync/internal/service"
	"aspos-sync/internal/upstream"
)

func main() {
	cfg := config.MustLoad()

	debugLog, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer debugLog.Close()

	// Route the standard logger, used by the storage drivers, into the debug log.
	stdWriter := debugLog.WriterLevel(logrus.WarnLevel)
	defer stdWriter.Close()
	log.SetFlags(0)
	log.SetOutput(stdWriter)

	lg := debugLog.WithField("component", "main")
	lg.WithFields(logrus.Fields{"env": cfg.App.Environment, "version": cfg.App.Version}).Info("starting aspos-sync")

	if err := cfg.Upstream.Validate(); err != nil {
		lg.WithError(err).Warn("upstream settings incomplete, syncs will fail until they are fixed")
	}

	db, err := repository.OpenConfig(cfg.Relational)
	if err != nil {
		lg.WithError(err).Fatal("failed to open relational store")
	}
	defer db.Close()
	lg.WithField("dialect", db.Dialect).Info("relational store ready")

	var catalog repository.CatalogRepository
	switch cfg.Catalog.Type {
	case "mongodb", "mongo":
		mongoRepo, err := repository.NewMongoDBCatalogRepository(
			cfg.Catalog.MongoURI,
			cfg.Catalog.MongoDatabase,
			cfg.Catalog.MongoCollection,
		)
		if err != nil {
			lg.WithError(err).Fatal("failed to initialize MongoDB catalog")
		}
		catalog = mongoRepo
		lg.Info("MongoDB catalog initialized")
	default:
		catalog = repository.NewSQLCatalogRepository(db)
		lg.Info("SQL catalog initialized")
	}
	defer catalog.Close()

	// Redis is optional; without it the queue, lease, schedule and token
	// cache fall back to the relational store and process memory.
	var redisClient *redis.Client
	if cfg.Cache.RedisEnabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Cache.RedisAddress(),
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			lg.WithError(err).Warn("Redis connection failed, using local fallbacks")
			redisClient.Close()
			redisClient = nil
		} else {
			lg.Info("Redis client initialized")
		}
		cancel()
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	var (
		taskStore  queue.Store
		lease      queue.Lease
		schedule   repository.ScheduleRepository
		tokenCache cache.Cache
	)
	stopSweep := make(chan struct{})
	if redisClient != nil {
		taskStore = queue.NewRedisStore(redisClient, cfg.Cache.KeyPrefix)
		lease = queue.NewRedisLease(redisClient, cfg.Cache.KeyPrefix)
		schedule = repository.NewRedisScheduleRepository(redisClient, cfg.Cache.KeyPrefix)
		tokenCache = cache.NewRedisCache(redisClient, cfg.Cache.KeyPrefix)
	} else {
		taskStore = queue.NewSQLStore(db)
		lease = queue.NewMemoryLease()
		schedule = repository.NewSQLScheduleRepository(db)
		mem := cache.NewMemoryCache()
		tokenCache = mem
		go func() {
			t := time.NewTicker(5 * time.Minute)
			defer t.Stop()
			for {
				select {
				case <-t.C:
					mem.Sweep()
				case <-stopSweep:
					return
				}
			}
		}()
	}
	defer close(stopSweep)

	httpClient := upstream.NewHTTPClient(cfg.Upstream)
	tokens := upstream.NewCachedProvider(
		upstream.NewClientCredentials(httpClient, cfg.Upstream),
		tokenCache,
		cfg.Upstream.ClientID,
		cfg.Upstream.TokenCacheTTL,
	)

	stores := repository.NewSQLStoreRepository(db)
	inventory := repository.NewSQLInventoryRepository(db)
	pipeline := service.NewPipeline(service.PipelineDeps{
		Tokens:     tokens,
		POS:        upstream.NewClient(cfg.Upstream, httpClient),
		Reconciler: service.NewReconciler(stores, inventory, catalog),
		Stores:     stores,
		Catalog:    catalog,
		ExportDir:  cfg.Prices.ExportDir,
		Logger:     debugLog,
	})

	q := queue.New(taskStore, lease, pipeline, cfg.Queue, debugLog)
	if err := q.Resume(context.Background()); err != nil {
		lg.WithError(err).Error("failed to inspect queue at startup")
	}
	// Runs before the storage closers deferred above, so a running task
	// finishes before the database and Redis go away.
	defer func() {
		lg.Info("waiting for running sync task")
		q.Stop()
		lg.Info("queue stopped")
	}()

	if cfg.Schedule.Enabled {
		hooks, err := service.HooksFromConfig(cfg.Schedule)
		if err != nil {
			lg.WithError(err).Fatal("invalid schedule")
		}
		scheduler := service.NewScheduler(q, schedule, hooks, cfg.Schedule.CheckInterval, debugLog)
		scheduler.Start()
		defer scheduler.Stop()
	}

	checks := map[string]handler.Pinger{"database": db.PingContext}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	allowOpen := len(cfg.App.APIKeys) == 0 && cfg.App.IsDevelopment()
	if allowOpen {
		lg.Warn("no API_KEYS configured, control API is unauthenticated")
	}

	r := router.New(router.Config{
		Handler:         handler.New(cfg.App.Name, cfg.App.Version, checks),
		SyncHandler:     handler.NewSyncHandler(pipeline, q),
		QueueHandler:    handler.NewQueueHandler(q),
		DataHandler:     handler.NewDataHandler(stores, inventory),
		LogHandler:      handler.NewLogHandler(debugLog),
		SettingsHandler: handler.NewSettingsHandler(service.NewSettingsChecker(cfg.Upstream, httpClient)),
		AdminHandler:    handler.NewAdminHandler(db, q, string(db.Dialect)),
		AuthMiddleware: middleware.NewAuthMiddleware(middleware.AuthConfig{
			APIKeys:              cfg.App.APIKeys,
			AllowUnauthenticated: allowOpen,
		}),
		Logger: debugLog,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		lg.WithField("addr", cfg.Server.Address()).Info("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.WithError(err).Fatal("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	lg.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		lg.WithError(err).Error("server shutdown error")
	}
	lg.Info("server stopped")
}
