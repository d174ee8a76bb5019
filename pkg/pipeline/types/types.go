package types

// RunInput optionally overrides the env-derived run configuration. Zero
// values mean "use the configured default".
type RunInput struct {
	InputPath        string  `json:"input_path,omitempty"`
	RollingWindow    int     `json:"rolling_window,omitempty"`
	AnomalyThreshold float64 `json:"anomaly_threshold,omitempty"`
}

// Workflow and queue names registered by the worker app.
const (
	RunPipelineWorkflowName = "RunPipelineWorkflow"
)
