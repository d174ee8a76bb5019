package workflow

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/mortality-signals/signalsx/pkg/etl"
	"github.com/mortality-signals/signalsx/pkg/pipeline/activity"
	"github.com/mortality-signals/signalsx/pkg/pipeline/types"
)

// RunPipelineWorkflow runs the full ETL as a single activity. The run is
// deterministic and idempotent, so a retry after a transient failure (e.g. a
// ClickHouse hiccup) simply redoes the run; there is nothing partial to
// resume from.
func (c *Context) RunPipelineWorkflow(ctx workflow.Context, input types.RunInput) (*etl.Summary, error) {
	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Hour,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    10 * time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    5 * time.Minute,
			MaximumAttempts:    3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	var summary *etl.Summary
	if err := workflow.ExecuteActivity(ctx, (*activity.Context).RunPipeline, input).Get(ctx, &summary); err != nil {
		return nil, err
	}
	return summary, nil
}
