package activity

import (
	"context"

	"github.com/mortality-signals/signalsx/pkg/etl"
	"github.com/mortality-signals/signalsx/pkg/pipeline/types"
)

// RunPipeline executes one full ETL run. Configuration comes from the
// environment, with the input's optional overrides applied on top. The
// activity is idempotent: a run is a deterministic function of its input
// file and configuration, and output tables are swapped wholesale.
func (c *Context) RunPipeline(ctx context.Context, input types.RunInput) (*etl.Summary, error) {
	cfg := etl.ConfigFromEnv()
	if input.InputPath != "" {
		cfg.InputPath = input.InputPath
	}
	if input.RollingWindow > 0 {
		cfg.RollingWindow = input.RollingWindow
	}
	if input.AnomalyThreshold > 0 {
		cfg.AnomalyThreshold = input.AnomalyThreshold
	}

	runner := &etl.Runner{
		Logger:      c.Logger,
		Store:       c.Store,
		Population:  c.Population,
		RedisClient: c.RedisClient,
	}

	return runner.Run(ctx, cfg)
}
