package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"servitec_backend/internal/adapters"
	"servitec_backend/internal/events"
	"servitec_backend/internal/maps"
	"servitec_backend/internal/requests"
	requestrepo "servitec_backend/internal/requests/repository"
	"servitec_backend/internal/requests/service"
	techrepo "servitec_backend/internal/technicians/repository"
	"servitec_backend/platform/config"
	"servitec_backend/platform/db"
	"servitec_backend/platform/logger"
)

func main() {
	batch := flag.Int("batch", 25, "rows geocoded per query")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting request geocode backfill", "batch", *batch)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg, "servitec-request-geocode")
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	var cache maps.Cache
	if cfg.GetRedisURL() != "" {
		rdb, err := maps.NewRedisClient(cfg.GetRedisURL(), cfg.GetRedisTLSInsecure())
		if err != nil {
			log.Warn("geocode cache disabled", "error", err)
		} else {
			cache = maps.NewRedisCache(rdb)
		}
	}

	settings, err := requests.SettingsFromConfig(cfg)
	if err != nil {
		log.Error("failed to load scoring profile", "error", err)
		panic("failed to load scoring profile: " + err.Error())
	}
	directory := adapters.NewTechnicianDirectory(techrepo.New(pool))
	svc, err := service.New(requestrepo.New(pool), directory, events.NewInMemoryBus(log), log, settings)
	if err != nil {
		log.Error("failed to initialize request service", "error", err)
		panic("failed to initialize request service: " + err.Error())
	}
	svc.SetGeocoder(maps.NewService(cfg, cache, log))

	report, err := svc.BackfillCoordinates(ctx, *batch)
	if err != nil {
		log.Error("geocode backfill stopped", "error", err, "requestsResolved", report.RequestsResolved)
		return
	}
	log.Info("geocode backfill complete",
		"requests", report.Requests,
		"requestsResolved", report.RequestsResolved,
		"technicians", report.Technicians,
		"techniciansResolved", report.TechniciansResolved,
	)
}
