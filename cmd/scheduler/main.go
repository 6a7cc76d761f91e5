package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"servitec_backend/internal/adapters"
	"servitec_backend/internal/events"
	"servitec_backend/internal/maps"
	"servitec_backend/internal/requests"
	requestrepo "servitec_backend/internal/requests/repository"
	"servitec_backend/internal/requests/service"
	"servitec_backend/internal/scheduler"
	techrepo "servitec_backend/internal/technicians/repository"
	"servitec_backend/platform/config"
	"servitec_backend/platform/db"
	"servitec_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg, "servitec-scheduler")
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

	eventBus := events.NewInMemoryBus(log)

	settings, err := requests.SettingsFromConfig(cfg)
	if err != nil {
		log.Error("failed to load scoring profile", "error", err)
		panic("failed to load scoring profile: " + err.Error())
	}
	directory := adapters.NewTechnicianDirectory(techrepo.New(pool))
	svc, err := service.New(requestrepo.New(pool), directory, eventBus, log, settings)
	if err != nil {
		log.Error("failed to initialize request service", "error", err)
		panic("failed to initialize request service: " + err.Error())
	}
	svc.SetGeocoder(maps.NewService(cfg, geocodeCache(cfg, log), log))

	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize scheduler client", "error", err)
		panic("failed to initialize scheduler client: " + err.Error())
	}
	defer func() { _ = client.Close() }()
	svc.SetScheduler(client)

	worker, err := scheduler.NewWorker(cfg, svc, client, log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}

	worker.Run(ctx)
	eventBus.Wait()
}

func geocodeCache(cfg config.SchedulerConfig, log *logger.Logger) maps.Cache {
	rdb, err := maps.NewRedisClient(cfg.GetRedisURL(), cfg.GetRedisTLSInsecure())
	if err != nil {
		log.Warn("geocode cache disabled", "error", err)
		return nil
	}
	return maps.NewRedisCache(rdb)
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return errors.New(name + ": invalid retry attempts")
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
