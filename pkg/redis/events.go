package redis

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"
)

// RunEventsStream is the Redis stream carrying pipeline run notifications,
// consumed by the query app's WebSocket feed.
const RunEventsStream = "mortality:runs"

// RunCompletedEvent announces a finished pipeline run.
type RunCompletedEvent struct {
	RunID      string  `json:"run_id"`
	Records    int     `json:"records"`
	Anomalies  int     `json:"anomalies"`
	LatestYear uint16  `json:"latest_year"`
	DurationMs float64 `json:"duration_ms"`
}

// PublishRunCompleted appends a run.completed entry to the run events stream.
// Best-effort: a completed run is never failed over a notification.
func (c *Client) PublishRunCompleted(ctx context.Context, event RunCompletedEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		c.logger.Warn("Failed to marshal run event", zap.Error(err))
		return
	}

	c.XAdd(ctx, RunEventsStream, map[string]interface{}{
		"type":    "run.completed",
		"payload": string(payload),
	})
}
