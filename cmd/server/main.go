package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/hoopsight/projection-engine/internal/config"
	"github.com/hoopsight/projection-engine/internal/database"
	"github.com/hoopsight/projection-engine/internal/logger"
	"github.com/hoopsight/projection-engine/internal/projection"
	"github.com/hoopsight/projection-engine/internal/repository"
	"github.com/hoopsight/projection-engine/internal/services"
	"github.com/hoopsight/projection-engine/internal/simulation"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	log := logger.InitLogger(cfg.LogLevel, cfg.IsDevelopment())

	// Connect to database
	db, err := database.NewConnection(cfg.DatabaseURL, cfg.IsDevelopment())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Connect to Redis
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Fatalf("Failed to parse Redis URL: %v", err)
	}
	redisClient := redis.NewClient(opt)
	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()

	// Initialize services
	cacheService := services.NewCacheService(redisClient)
	breakers := services.NewCircuitBreakerService(cfg.CircuitBreakerThreshold, cfg.FeedTimeout, log)

	statsRepo := repository.NewGuardedStatsRepository(repository.NewStatsRepository(db.DB), breakers)
	projectionStore := repository.NewProjectionStore(db.DB)
	simulationStore := repository.NewSimulationStore(db.DB)

	engine := projection.NewEngine(statsRepo, projectionStore, log, projection.DefaultModelConfig())

	simCfg := simulation.DefaultConfig()
	simCfg.DefaultSims = cfg.MaxSimulations
	simCfg.Workers = cfg.SimulationWorkers
	simCfg.CacheTTL = cfg.SimulationCacheTTL
	simCfg.LeagueCacheTTL = cfg.LeagueContextCacheTTL
	simulator := simulation.NewGameSimulator(statsRepo, projectionStore, simulationStore, cacheService, log, simCfg)

	runDate := func() {
		date := time.Now().UTC().Truncate(24 * time.Hour)
		if _, err := engine.Run(ctx, date); err != nil {
			log.WithError(err).Error("Projection run failed")
			return
		}
		if _, err := simulator.SimulateDate(ctx, date); err != nil {
			log.WithError(err).Error("Date simulation failed")
		}
	}

	// Nightly schedule: projections first, then the date's game simulations.
	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.ProjectionSchedule, runDate); err != nil {
		log.Fatalf("Invalid projection schedule %q: %v", cfg.ProjectionSchedule, err)
	}
	scheduler.Start()
	log.WithField("schedule", cfg.ProjectionSchedule).Info("Projection scheduler started")

	if cfg.RunOnStart {
		go runDate()
	}

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down")
	cronCtx := scheduler.Stop()
	select {
	case <-cronCtx.Done():
	case <-time.After(30 * time.Second):
		log.Warn("Timed out waiting for running jobs")
	}
	log.Info("Server exited")
}
