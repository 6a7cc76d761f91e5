package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"servitec_backend/internal/adapters"
	"servitec_backend/internal/events"
	apphttp "servitec_backend/internal/http"
	"servitec_backend/internal/http/router"
	"servitec_backend/internal/maps"
	"servitec_backend/internal/notification"
	"servitec_backend/internal/requests"
	requestrepo "servitec_backend/internal/requests/repository"
	"servitec_backend/internal/scheduler"
	techrepo "servitec_backend/internal/technicians/repository"
	"servitec_backend/platform/config"
	"servitec_backend/platform/db"
	"servitec_backend/platform/logger"
	"servitec_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, cfg)
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg, "servitec-api")
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	eventBus := events.NewInMemoryBus(log)
	val := validator.New()

	health := map[string]apphttp.HealthChecker{"postgres": pool}
	geocodeCache, rdb := initGeocodeCache(cfg, log)
	if rdb != nil {
		defer func() { _ = rdb.Close() }()
		health["redis"] = apphttp.HealthFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
	}
	mapsService := maps.NewService(cfg, geocodeCache, log)

	timeoutScheduler, closeScheduler := initTimeoutScheduler(cfg, log)
	if closeScheduler != nil {
		defer closeScheduler()
	}

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	notificationModule := notification.New(log)
	notificationModule.RegisterHandlers(eventBus)

	settings, err := requests.SettingsFromConfig(cfg)
	if err != nil {
		log.Error("failed to load scoring profile", "error", err)
		panic("failed to load scoring profile: " + err.Error())
	}
	directory := adapters.NewTechnicianDirectory(techrepo.New(pool))
	requestsModule, err := requests.NewModule(requestrepo.New(pool), directory, eventBus, val, log, settings, cfg.GetWatchdogTick())
	if err != nil {
		log.Error("failed to initialize requests module", "error", err)
		panic("failed to initialize requests module: " + err.Error())
	}
	requestsModule.Service().SetGeocoder(mapsService)
	if timeoutScheduler != nil {
		requestsModule.Service().SetScheduler(timeoutScheduler)
	}

	mapsModule := maps.NewModule(mapsService)

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   health,
		EventBus: eventBus,
		Modules: []apphttp.Module{
			requestsModule,
			mapsModule,
			notificationModule,
		},
	}

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router.New(app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("server shutdown failed", "error", err)
		}
		requestsModule.Shutdown()
		eventBus.Wait()
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

func initTimeoutScheduler(cfg config.SchedulerConfig, log *logger.Logger) (*scheduler.Client, func()) {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; durable timeouts disabled, watchers still apply them")
		return nil, nil
	}

	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize timeout scheduler client", "error", err)
		return nil, nil
	}

	return client, func() {
		_ = client.Close()
	}
}

func initGeocodeCache(cfg config.SchedulerConfig, log *logger.Logger) (maps.Cache, *redis.Client) {
	if cfg.GetRedisURL() == "" {
		return nil, nil
	}
	rdb, err := maps.NewRedisClient(cfg.GetRedisURL(), cfg.GetRedisTLSInsecure())
	if err != nil {
		log.Error("failed to initialize geocode cache", "error", err)
		return nil, nil
	}
	return maps.NewRedisCache(rdb), rdb
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
