package worker

import (
	"context"
	"time"

	"go.temporal.io/sdk/worker"
	"go.uber.org/zap"

	"github.com/mortality-signals/signalsx/pkg/db/clickhouse"
	mortalitydb "github.com/mortality-signals/signalsx/pkg/db/mortality"
	"github.com/mortality-signals/signalsx/pkg/logging"
	"github.com/mortality-signals/signalsx/pkg/pipeline/activity"
	"github.com/mortality-signals/signalsx/pkg/pipeline/types"
	"github.com/mortality-signals/signalsx/pkg/pipeline/workflow"
	"github.com/mortality-signals/signalsx/pkg/population"
	"github.com/mortality-signals/signalsx/pkg/redis"
	"github.com/mortality-signals/signalsx/pkg/temporal"
	"github.com/mortality-signals/signalsx/pkg/utils"
)

// App hosts the Temporal worker that executes scheduled and ad-hoc pipeline
// runs on the pipeline task queue.
type App struct {
	Worker         worker.Worker
	TemporalClient *temporal.Client
	Logger         *zap.Logger
}

// Start starts the worker and blocks until the context is canceled.
func (a *App) Start(ctx context.Context) {
	if err := a.Worker.Start(); err != nil {
		a.Logger.Fatal("Unable to start worker", zap.Error(err))
	}
	<-ctx.Done()
	a.Stop()
}

// Stop stops the worker.
func (a *App) Stop() {
	a.Worker.Stop()
	time.Sleep(200 * time.Millisecond)
	a.Logger.Info("さようなら!")
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
		Component:       "worker",
	})
	if err != nil {
		logger.Fatal("Unable to initialize mortality database", zap.Error(err))
	}

	if err := store.InitializeDB(ctx); err != nil {
		logger.Fatal("Unable to initialize output tables", zap.Error(err))
	}

	var redisClient *redis.Client
	if utils.Env("REDIS_ENABLED", "false") == "true" {
		redisClient, err = redis.NewClient(ctx, logger)
		if err != nil {
			logger.Warn("Failed to initialize Redis client - run events will be disabled", zap.Error(err))
			redisClient = nil
		}
	}

	temporalClient, err := temporal.NewClient(ctx, logger)
	if err != nil {
		logger.Fatal("Unable to establish temporal connection", zap.Error(err))
	}

	activityContext := &activity.Context{
		Logger:      logger,
		Store:       store,
		Population:  population.NewClient(logger),
		RedisClient: redisClient,
	}
	workflowContext := workflow.Context{
		ActivityContext: activityContext,
	}

	wkr := worker.New(
		temporalClient.TClient,
		temporalClient.PipelineQueue,
		worker.Options{},
	)

	// Register the workflow
	wkr.RegisterWorkflow(workflowContext.RunPipelineWorkflow)
	// Register all the activities
	wkr.RegisterActivity(activityContext.RunPipeline)

	if err := temporalClient.EnsureRunSchedule(ctx, logger, types.RunInput{}); err != nil {
		logger.Fatal("Unable to ensure pipeline run schedule", zap.Error(err))
	}

	return &App{
		Worker:         wkr,
		TemporalClient: temporalClient,
		Logger:         logger,
	}
}
