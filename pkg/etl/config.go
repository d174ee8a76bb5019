package etl

import (
	"github.com/mortality-signals/signalsx/pkg/utils"
)

const (
	// DefaultRollingWindow is the trailing-window size for rolling statistics.
	// Provisional default; not validated against ground truth.
	DefaultRollingWindow = 5

	// DefaultAnomalyThreshold is the |z-score| above which a point is flagged.
	// Provisional default; not validated against ground truth.
	DefaultAnomalyThreshold = 1.5
)

// Config carries the static configuration of a pipeline run. It is fixed for
// the duration of a run; identical input plus identical config yields
// identical output tables.
type Config struct {
	// InputPath is the wide-format CSV to ingest.
	InputPath string

	// CategoryPath optionally points at a JSON file of cause→category
	// overrides merged over the built-in mapping.
	CategoryPath string

	// RollingWindow is the trailing-window size W.
	RollingWindow int

	// AnomalyThreshold is the |z-score| threshold T.
	AnomalyThreshold float64

	// EnrichPopulation enables the World Bank population stage.
	EnrichPopulation bool

	// MaxParallelism overrides the per-series worker pool size (0 = auto).
	MaxParallelism int
}

// DefaultConfig returns a run configuration with the engine defaults.
func DefaultConfig() Config {
	return Config{
		InputPath:        "data/raw/annual-number-of-deaths-by-cause.csv",
		RollingWindow:    DefaultRollingWindow,
		AnomalyThreshold: DefaultAnomalyThreshold,
	}
}

// ConfigFromEnv builds a run configuration from environment variables,
// falling back to the defaults.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()
	cfg.InputPath = utils.Env("INPUT_PATH", cfg.InputPath)
	cfg.CategoryPath = utils.Env("CAUSE_CATEGORY_PATH", "")
	cfg.RollingWindow = utils.EnvInt("ROLLING_WINDOW", cfg.RollingWindow)
	cfg.AnomalyThreshold = utils.EnvFloat("ANOMALY_THRESHOLD", cfg.AnomalyThreshold)
	cfg.EnrichPopulation = utils.EnvBool("POPULATION_ENRICH", false)
	cfg.MaxParallelism = utils.EnvInt("ETL_MAX_PARALLELISM", 0)
	return cfg
}

func (c Config) rollingWindow() int {
	if c.RollingWindow > 0 {
		return c.RollingWindow
	}
	return DefaultRollingWindow
}

func (c Config) anomalyThreshold() float64 {
	if c.AnomalyThreshold > 0 {
		return c.AnomalyThreshold
	}
	return DefaultAnomalyThreshold
}
