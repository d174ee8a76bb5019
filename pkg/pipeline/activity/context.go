package activity

import (
	"go.uber.org/zap"

	"github.com/mortality-signals/signalsx/pkg/db"
	"github.com/mortality-signals/signalsx/pkg/population"
	"github.com/mortality-signals/signalsx/pkg/redis"
)

// Context carries the dependencies shared by pipeline activities.
type Context struct {
	Logger *zap.Logger
	Store  db.Store

	// Population is consulted only when POPULATION_ENRICH is set.
	Population population.Provider

	// RedisClient publishes run events when present (optional).
	RedisClient *redis.Client
}
