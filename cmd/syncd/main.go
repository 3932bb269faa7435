package main

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"finsync/internal/api"
	"finsync/internal/config"
	"finsync/internal/conflict"
	"finsync/internal/domain"
	"finsync/internal/events"
	"finsync/internal/feed"
	"finsync/internal/logging"
	"finsync/internal/metrics"
	"finsync/internal/models"
	"finsync/internal/report"
	"finsync/internal/repository"
	"finsync/internal/resource"
	"finsync/internal/scheduler"
	"finsync/internal/store"

	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, loadErr := loadConfigAndLogger()
	if loadErr != nil {
		return loadErr
	}
	if closer != nil {
		defer (func(c io.Closer) { _ = c.Close() })(closer)
	}

	if err := prepareDirectories(cfg, &logger); err != nil {
		return err
	}

	st, err := store.Open(cfg.Database.Path)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to open store")
		return err
	}
	defer st.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics.Register()

	statusRepo := initStatusRepository(ctx, cfg, &logger)
	provider := initResourceProvider(ctx, cfg, &logger)

	eventBus := events.NewEventBus()

	sched := scheduler.New(scheduler.Config{
		TickInterval:        cfg.Sync.TickInterval.Std(),
		ExecutionTimeout:    cfg.Sync.ExecutionTimeout.Std(),
		GateRecheckInterval: cfg.Sync.GateRecheck.Std(),
		Settings:            cfg.Settings,
		BaseRetry:           cfg.Sync.Retry.Policy(),
	}, provider, eventBus, &logger)

	subscribeSyncEvents(ctx, eventBus, st, statusRepo, &logger)

	client := feed.NewClient(cfg.Aggregator, &logger)
	syncer := feed.NewSyncer(client, st, conflict.NewResolver(), eventBus, &logger)
	for _, task := range syncer.Tasks(cfg.Interval) {
		if err := sched.Schedule(task); err != nil {
			logger.Error().Err(err).Str("task_id", task.ID).Msg("Failed to schedule task")
			return err
		}
	}

	if cfg.API.Enabled {
		var exporter api.ReportExporter
		if cfg.Exports.Path != "" {
			exporter = report.NewExporter(st, cfg.Exports.Path, &logger)
		}
		apiServer := api.NewHTTPServer(cfg.API, sched, statusRepo, exporter, cfg.Monitoring.PrometheusEnabled, &logger)
		go func() {
			if err := apiServer.Start(); err != nil {
				logger.Error().Err(err).Msg("API server error")
			}
		}()
		defer func() {
			_ = apiServer.Shutdown(context.Background())
		}()
	}

	go snapshotStatus(ctx, sched, statusRepo, &logger)

	logger.Info().Msg("Sync daemon started")
	sched.Start(ctx)

	logger.Info().Msg("Shutdown complete.")
	return nil
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, err
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, err
	}
	logger := baseLogger.With().Str("component", "syncd-main").Logger()

	return cfg, logger, closer, nil
}

func prepareDirectories(cfg *config.Config, logger *zerolog.Logger) error {
	if cfg == nil {
		return os.ErrInvalid
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		logger.Error().Err(err).Msg("Failed to create database directory")
		return err
	}
	if cfg.Exports.Path != "" {
		if err := os.MkdirAll(cfg.Exports.Path, 0o755); err != nil {
			logger.Error().Err(err).Msg("Failed to create export directory")
			return err
		}
	}
	return nil
}

func initStatusRepository(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) domain.StatusRepository {
	fallback := repository.NewMemoryStatusRepository(int(cfg.Redis.MaxReports))
	if cfg.Redis.Address == "" {
		return fallback
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(ctx, redisClient); err != nil {
		logger.Warn().Err(err).Msg("Redis unavailable")
	}

	primary := repository.NewRedisStatusRepository(redisClient, cfg.Redis.StatusTTL.Std(), cfg.Redis.MaxReports)
	return repository.NewFailoverStatusRepository(primary, fallback, logger)
}

func initResourceProvider(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) resource.Provider {
	if cfg.Sync.ResourceStateFile == "" {
		return resource.NewStaticProvider(models.ResourceState{
			BatteryPercent: 100,
			Charging:       true,
			Network:        models.NetworkWifi,
		})
	}

	source := func(ctx context.Context) (models.ResourceState, error) {
		data, err := os.ReadFile(cfg.Sync.ResourceStateFile)
		if err != nil {
			return models.ResourceState{}, err
		}
		var state models.ResourceState
		if err := json.Unmarshal(data, &state); err != nil {
			return models.ResourceState{}, err
		}
		return state, nil
	}

	provider := resource.NewPollingProvider(source, cfg.Sync.ResourcePollInterval.Std(), logger)
	go provider.Start(ctx)
	return provider
}

// subscribeSyncEvents fans run outcomes out to the status repository and the
// local journal, and surfaces terminal task events in the log.
func subscribeSyncEvents(
	ctx context.Context,
	bus *events.EventBus,
	st *store.Store,
	repo domain.StatusRepository,
	logger *zerolog.Logger,
) {
	decode := func(ev *events.Event) (events.SyncReportPayload, error) {
		var payload events.SyncReportPayload
		if err := json.Unmarshal(ev.Payload, &payload); err != nil {
			return payload, err
		}
		return payload, nil
	}

	reportHandler := func(ev *events.Event) error {
		payload, err := decode(ev)
		if err != nil {
			logger.Error().Err(err).Str("event", ev.Type).Msg("event bus: decode payload")
			return nil
		}

		if err := repo.PushReport(ctx, payload); err != nil {
			logger.Error().Err(err).Str("task_id", payload.TaskID).Msg("event bus: push report")
		}
		if err := st.RecordRun(ctx, payload); err != nil {
			logger.Error().Err(err).Str("task_id", payload.TaskID).Msg("event bus: record run")
		}
		return nil
	}

	bus.Subscribe(events.EventSyncCompleted, reportHandler)
	bus.Subscribe(events.EventSyncFailed, reportHandler)

	bus.Subscribe(events.EventTaskDropped, func(ev *events.Event) error {
		payload, err := decode(ev)
		if err != nil {
			return nil
		}
		logger.Warn().Str("task_id", payload.TaskID).Str("error", payload.Error).Msg("Task dropped after retry exhaustion")
		return reportHandler(ev)
	})

	bus.Subscribe(events.EventReauthRequired, func(ev *events.Event) error {
		payload, err := decode(ev)
		if err != nil {
			return nil
		}
		logger.Warn().Str("task_id", payload.TaskID).Msg("Re-authentication required; user action needed")
		return nil
	})
}

// snapshotStatus periodically persists the scheduler status so observers can
// read it across restarts.
func snapshotStatus(ctx context.Context, sched *scheduler.Scheduler, repo domain.StatusRepository, logger *zerolog.Logger) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := repo.SaveStatus(ctx, sched.Status()); err != nil {
				logger.Error().Err(err).Msg("Failed to persist status snapshot")
			}
		}
	}
}
