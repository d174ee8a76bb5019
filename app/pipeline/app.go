package pipeline

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/mortality-signals/signalsx/pkg/db/clickhouse"
	mortalitydb "github.com/mortality-signals/signalsx/pkg/db/mortality"
	"github.com/mortality-signals/signalsx/pkg/etl"
	"github.com/mortality-signals/signalsx/pkg/logging"
	"github.com/mortality-signals/signalsx/pkg/population"
	"github.com/mortality-signals/signalsx/pkg/redis"
	"github.com/mortality-signals/signalsx/pkg/utils"
)

// App runs the batch ETL: once and exit by default, or on a cron schedule
// when RUN_SCHEDULE is set (for deployments without a Temporal cluster).
type App struct {
	Logger *zap.Logger
	Store  *mortalitydb.DB
	Runner *etl.Runner

	// Cron triggers scheduled runs according to CronSpec; nil in one-shot mode.
	Cron     *cron.Cron
	CronSpec string
}

// Initialize initializes the application.
func Initialize(ctx context.Context) *App {
	logger, err := logging.New()
	if err != nil {
		// nothing else to do here, we'll just log to stderr'
		panic(err)
	}

	store, err := mortalitydb.New(ctx, logger, &clickhouse.PoolConfig{
		MaxOpenConns:    utils.EnvInt("CLICKHOUSE_MAX_OPEN_CONNS", 10),
		MaxIdleConns:    utils.EnvInt("CLICKHOUSE_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: clickhouse.ParseConnMaxLifetime(""),
		Component:       "pipeline",
	})
	if err != nil {
		logger.Fatal("Unable to initialize mortality database", zap.Error(err))
	}

	if err := store.InitializeDB(ctx); err != nil {
		logger.Fatal("Unable to initialize output tables", zap.Error(err))
	}

	// Redis run events are optional
	var redisClient *redis.Client
	if utils.Env("REDIS_ENABLED", "false") == "true" {
		redisClient, err = redis.NewClient(ctx, logger)
		if err != nil {
			logger.Warn("Failed to initialize Redis client - run events will be disabled", zap.Error(err))
			redisClient = nil
		}
	}

	runner := &etl.Runner{
		Logger:      logger,
		Store:       store,
		Population:  population.NewClient(logger),
		RedisClient: redisClient,
	}

	return &App{
		Logger:   logger,
		Store:    store,
		Runner:   runner,
		CronSpec: utils.Env("RUN_SCHEDULE", ""),
	}
}

// Start runs the pipeline. In one-shot mode a failed run exits non-zero with
// production tables untouched; in scheduled mode failures are logged and the
// next tick retries from scratch.
func (a *App) Start(ctx context.Context) {
	if a.CronSpec == "" {
		if _, err := a.Runner.Run(ctx, etl.ConfigFromEnv()); err != nil {
			a.Logger.Fatal("Pipeline run failed", zap.Error(err))
		}
		a.Stop()
		return
	}

	if err := a.setupScheduler(ctx); err != nil {
		a.Logger.Fatal("Unable to set up scheduler", zap.Error(err))
	}

	a.Cron.Start()
	a.Logger.Info("Pipeline scheduler started", zap.String("cronSpec", a.CronSpec))

	<-ctx.Done()
	<-a.Cron.Stop().Done()
	a.Stop()
}

// Stop closes the store connection.
func (a *App) Stop() {
	if err := a.Store.Close(); err != nil {
		a.Logger.Warn("Failed to close database connection", zap.Error(err))
	}
	time.Sleep(200 * time.Millisecond)
	a.Logger.Info("さようなら!")
}

func (a *App) setupScheduler(ctx context.Context) error {
	a.Cron = cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger)))

	_, err := a.Cron.AddFunc(a.CronSpec, func() {
		// keep each run bounded
		rctx, cancel := context.WithTimeout(ctx, 2*time.Hour)
		defer cancel()
		if _, err := a.Runner.Run(rctx, etl.ConfigFromEnv()); err != nil {
			a.Logger.Error("Scheduled pipeline run failed", zap.Error(err))
		}
	})
	return err
}
