package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"github.com/praxisops/crisis-exercise-backend/internal/api/rest"
	"github.com/praxisops/crisis-exercise-backend/internal/domain/values"
	"github.com/praxisops/crisis-exercise-backend/internal/infrastructure/cache"
	"github.com/praxisops/crisis-exercise-backend/internal/infrastructure/config"
	"github.com/praxisops/crisis-exercise-backend/internal/infrastructure/database"
	"github.com/praxisops/crisis-exercise-backend/internal/infrastructure/events"
	"github.com/praxisops/crisis-exercise-backend/internal/infrastructure/generation"
	"github.com/praxisops/crisis-exercise-backend/internal/infrastructure/repository"
	"github.com/praxisops/crisis-exercise-backend/internal/infrastructure/telemetry"
	"github.com/praxisops/crisis-exercise-backend/internal/metrics"
	"github.com/praxisops/crisis-exercise-backend/internal/service/analysis"
	"github.com/praxisops/crisis-exercise-backend/internal/service/publishing"
	"github.com/praxisops/crisis-exercise-backend/internal/service/scheduling"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to configuration file")
	flag.Parse()

	cfg, err := config.LoadFromFile(*configPath)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger, err := telemetry.NewLogger(cfg.LogLevel, cfg.Environment)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("engine exited with error", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	telCfg := telemetry.DefaultConfig()
	telCfg.ServiceVersion = cfg.Version
	telCfg.Environment = cfg.Environment
	telCfg.Enabled = cfg.Telemetry.Enabled
	telCfg.OTLPEndpoint = cfg.Telemetry.OTLPEndpoint
	telCfg.SamplingRate = cfg.Telemetry.SamplingRate

	provider, err := telemetry.InitializeOpenTelemetry(ctx, telCfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := provider.Shutdown(context.Background()); err != nil {
			logger.Warn("telemetry shutdown failed", zap.Error(err))
		}
	}()

	pool, err := database.NewConnectionPool(ctx, &cfg.Database, logger)
	if err != nil {
		return err
	}
	defer pool.Close()

	redisCache, err := cache.NewRedisCache(&cfg.Redis, logger)
	if err != nil {
		return err
	}
	defer func() { _ = redisCache.Close() }()
	injectCache := cache.NewInjectCache(redisCache, cfg.Redis.TTL, logger)

	registry, err := metrics.NewRegistry("crisis-exercise-engine")
	if err != nil {
		return err
	}

	exercises := repository.NewExerciseRepository(pool.Pool())
	definitions := repository.NewDefinitionRepository(pool.Pool())
	decisions := repository.NewDecisionRepository(pool.Pool())
	publishedEvents := repository.NewPublishedEventRepository(pool.Pool())
	cancelledEvents := repository.NewCancelledEventRepository(pool.Pool())
	snapshots := repository.NewEscalationRepository(pool.Pool())

	hub := events.NewHub(logger, events.DefaultHubConfig())
	clock := values.RealClock{}

	publisher := publishing.NewService(
		exercises, definitions, publishedEvents, cancelledEvents,
		injectCache, hub, clock, registry, logger)

	scheduler := scheduling.NewScheduler(
		exercises, definitions, decisions, publisher,
		clock, registry, logger, cfg.Scheduler.PollInterval)

	generator := generation.NewClient(&cfg.Generation, logger)
	pipeline := analysis.NewPipeline(
		exercises, decisions, publishedEvents, snapshots, generator,
		injectCache, clock, registry, logger,
		cfg.Escalation.CycleInterval, cfg.Escalation.StageTimeout)

	scheduler.Start(ctx)
	defer scheduler.Stop()
	pipeline.Start(ctx)
	defer pipeline.Stop()

	handler := rest.NewHandler(publisher, publishedEvents, cancelledEvents, snapshots, injectCache, registry, logger)
	server := rest.NewServer(&cfg.Server, handler, hub, pool, logger)

	logger.Info("crisis exercise engine started",
		zap.String("version", cfg.Version),
		zap.String("environment", cfg.Environment))
	return server.Start(ctx)
}
