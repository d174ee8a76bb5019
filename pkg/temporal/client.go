package temporal

import (
	"context"
	"errors"
	"time"

	"github.com/mortality-signals/signalsx/pkg/utils"
	"go.uber.org/zap"

	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/log"

	"github.com/mortality-signals/signalsx/pkg/pipeline/types"
)

// Client wraps the Temporal connection plus the queue and schedule names the
// worker app registers against.
type Client struct {
	TClient   client.Client
	TSClient  client.ScheduleClient
	Namespace string

	// Task queues
	PipelineQueue string // pipeline - scheduled and ad-hoc ETL runs

	// Schedule IDs
	RunScheduleID string
}

// NewClient connects to Temporal using TEMPORAL_HOSTPORT and
// TEMPORAL_NAMESPACE.
func NewClient(ctx context.Context, logger *zap.Logger) (*Client, error) {
	host := utils.Env("TEMPORAL_HOSTPORT", "localhost:7233")
	ns := utils.Env("TEMPORAL_NAMESPACE", "mortality")
	loggerWrapper := NewZapAdapter(logger)

	logger.Info("Connecting to Temporal", zap.String("host", host), zap.String("namespace", ns))
	tClient, err := Dial(ctx, host, ns, loggerWrapper)
	if err != nil {
		return nil, err
	}

	if _, err = tClient.CheckHealth(ctx, nil); err != nil {
		return nil, err
	}

	return &Client{
		TClient:       tClient,
		TSClient:      tClient.ScheduleClient(),
		Namespace:     ns,
		PipelineQueue: "pipeline",
		RunScheduleID: "pipeline:run",
	}, nil
}

// Dial connects to Temporal using the provided hostPort and namespace.
func Dial(ctx context.Context, hostPort, namespace string, logger log.Logger) (client.Client, error) {
	return client.DialContext(
		ctx,
		client.Options{
			HostPort:  hostPort,
			Namespace: namespace,
			Logger:    logger,
		},
	)
}

// GetScheduleSpec returns a schedule spec for the given interval.
func (c *Client) GetScheduleSpec(interval time.Duration) client.ScheduleSpec {
	return client.ScheduleSpec{Intervals: []client.ScheduleIntervalSpec{{Every: interval}}}
}

// EnsureRunSchedule creates the recurring pipeline run schedule if it does
// not already exist. The interval comes from RUN_INTERVAL_HOURS (default 24).
func (c *Client) EnsureRunSchedule(ctx context.Context, logger *zap.Logger, input types.RunInput) error {
	interval := time.Duration(utils.EnvInt("RUN_INTERVAL_HOURS", 24)) * time.Hour

	h := c.TSClient.GetHandle(ctx, c.RunScheduleID)
	if _, err := h.Describe(ctx); err == nil {
		logger.Info("Pipeline run schedule already exists",
			zap.String("id", c.RunScheduleID),
			zap.String("namespace", c.Namespace))
		return nil
	} else {
		var notFound *serviceerror.NotFound
		if !errors.As(err, &notFound) {
			return err
		}
	}

	logger.Info("Creating pipeline run schedule",
		zap.String("id", c.RunScheduleID),
		zap.String("namespace", c.Namespace),
		zap.Duration("interval", interval))

	_, err := c.TSClient.Create(ctx, client.ScheduleOptions{
		ID:   c.RunScheduleID,
		Spec: c.GetScheduleSpec(interval),
		Action: &client.ScheduleWorkflowAction{
			Workflow:                 types.RunPipelineWorkflowName,
			Args:                     []interface{}{input},
			TaskQueue:                c.PipelineQueue,
			WorkflowExecutionTimeout: 4 * time.Hour,
			WorkflowTaskTimeout:      2 * time.Minute,
		},
	})
	return err
}
