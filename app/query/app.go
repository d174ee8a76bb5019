package query

import (
	"context"

	"go.uber.org/zap"

	"github.com/mortality-signals/signalsx/app/query/types"
	"github.com/mortality-signals/signalsx/pkg/db/clickhouse"
	mortalitydb "github.com/mortality-signals/signalsx/pkg/db/mortality"
	"github.com/mortality-signals/signalsx/pkg/logging"
	"github.com/mortality-signals/signalsx/pkg/redis"
	"github.com/mortality-signals/signalsx/pkg/utils"
)

// Initialize initializes the application.
func Initialize(ctx context.Context) *types.App {
	logger, err := logging.New()
	if err != nil {
		// nothing else to do here, we'll just log to stderr'
		panic(err)
	}

	store, err := mortalitydb.New(ctx, logger, &clickhouse.PoolConfig{
		MaxOpenConns:    utils.EnvInt("CLICKHOUSE_MAX_OPEN_CONNS", 10),
		MaxIdleConns:    utils.EnvInt("CLICKHOUSE_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: clickhouse.ParseConnMaxLifetime(""),
		Component:       "query",
	})
	if err != nil {
		logger.Fatal("Unable to initialize mortality database", zap.Error(err))
	}

	// The query app can come up before the first pipeline run; make sure the
	// tables it reads exist (empty until a run promotes data into them).
	if err := store.InitializeDB(ctx); err != nil {
		logger.Fatal("Unable to initialize output tables", zap.Error(err))
	}

	// Initialize Redis client for real-time WebSocket events (optional)
	var redisClient *redis.Client
	if utils.Env("REDIS_ENABLED", "false") == "true" {
		redisClient, err = redis.NewClient(ctx, logger)
		if err != nil {
			logger.Warn("Failed to initialize Redis client - WebSocket real-time events will be disabled",
				zap.Error(err))
			redisClient = nil
		} else {
			logger.Info("Redis client initialized for WebSocket real-time events")
		}
	} else {
		logger.Info("Redis disabled - WebSocket real-time events will not be available")
	}

	app := &types.App{
		Store:       store,
		RedisClient: redisClient,
		Logger:      logger,
	}

	return app
}
