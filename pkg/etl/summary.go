package etl

import (
	"go.uber.org/zap"
)

// Summary is the end-of-run report: the data profile plus every non-fatal
// condition aggregated over the run. Warnings never interrupt processing;
// they surface here.
type Summary struct {
	RunID        string `json:"run_id"`
	InputRows    int    `json:"input_rows"`
	CauseColumns int    `json:"cause_columns"`
	Records      int    `json:"records"`

	Entities   int    `json:"entities"`
	Causes     int    `json:"causes"`
	FirstYear  uint16 `json:"first_year"`
	LatestYear uint16 `json:"latest_year"`

	CoercionWarnings      int `json:"coercion_warnings"`
	UnmappedCauseWarnings int `json:"unmapped_cause_warnings"`
	Anomalies             int `json:"anomalies"`

	PopulationEnriched bool `json:"population_enriched"`
	MissingPopulation  int  `json:"missing_population"`

	DurationMs float64 `json:"duration_ms"`
}

// Log emits the data profile summary.
func (s *Summary) Log(logger *zap.Logger) {
	logger.Info("Pipeline run completed",
		zap.String("runId", s.RunID),
		zap.Int("inputRows", s.InputRows),
		zap.Int("causeColumns", s.CauseColumns),
		zap.Int("records", s.Records),
		zap.Int("entities", s.Entities),
		zap.Int("causes", s.Causes),
		zap.Uint16("firstYear", s.FirstYear),
		zap.Uint16("latestYear", s.LatestYear),
		zap.Int("coercionWarnings", s.CoercionWarnings),
		zap.Int("unmappedCauseWarnings", s.UnmappedCauseWarnings),
		zap.Int("anomalies", s.Anomalies),
		zap.Bool("populationEnriched", s.PopulationEnriched),
		zap.Int("missingPopulation", s.MissingPopulation),
		zap.Float64("durationMs", s.DurationMs))
}
