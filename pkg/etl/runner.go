package etl

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/mortality-signals/signalsx/pkg/db"
	models "github.com/mortality-signals/signalsx/pkg/db/models/mortality"
	"github.com/mortality-signals/signalsx/pkg/population"
	"github.com/mortality-signals/signalsx/pkg/redis"
)

// Runner executes a complete pipeline run: normalize, per-series metrics,
// optional population enrichment, aggregations, staging persist, promote,
// notify. A run either completes and promotes all tables, or fails and
// leaves production untouched.
type Runner struct {
	Logger *zap.Logger
	Store  db.Store

	// Population supplies figures for the optional enrichment stage; only
	// consulted when cfg.EnrichPopulation is set.
	Population population.Provider

	// RedisClient publishes run-completion events when present.
	RedisClient *redis.Client
}

// Run executes the pipeline with the given configuration and returns the run
// summary. Fatal errors abort with no partial output; non-fatal conditions
// are counted into the summary.
func (r *Runner) Run(ctx context.Context, cfg Config) (*Summary, error) {
	start := time.Now()
	runID := start.UTC().Format("20060102T150405Z")

	r.Logger.Info("Pipeline run starting",
		zap.String("runId", runID),
		zap.String("input", cfg.InputPath),
		zap.Int("rollingWindow", cfg.rollingWindow()),
		zap.Float64("anomalyThreshold", cfg.anomalyThreshold()),
		zap.Bool("populationEnrich", cfg.EnrichPopulation))

	categories, err := LoadCategories(cfg.CategoryPath)
	if err != nil {
		return nil, err
	}

	norm, err := NormalizeFile(cfg.InputPath, categories)
	if err != nil {
		return nil, err
	}

	r.Logger.Info("Normalized input",
		zap.String("runId", runID),
		zap.Int("inputRows", norm.InputRows),
		zap.Int("causeColumns", norm.CauseColumns),
		zap.Int("records", len(norm.Records)))

	anomalies, err := ComputeMetrics(ctx, r.Logger, norm.Records, cfg)
	if err != nil {
		return nil, fmt.Errorf("compute metrics: %w", err)
	}

	summary := &Summary{
		RunID:                 runID,
		InputRows:             norm.InputRows,
		CauseColumns:          norm.CauseColumns,
		Records:               len(norm.Records),
		CoercionWarnings:      norm.CoercionWarnings,
		UnmappedCauseWarnings: norm.UnmappedCauseWarnings,
		Anomalies:             anomalies,
	}
	profile(summary, norm.Records)

	if cfg.EnrichPopulation {
		if r.Population == nil {
			return nil, fmt.Errorf("population enrichment enabled but no provider configured")
		}
		missing, err := r.enrichPopulation(ctx, norm.Records, summary.FirstYear, summary.LatestYear)
		if err != nil {
			return nil, fmt.Errorf("population enrichment: %w", err)
		}
		summary.PopulationEnriched = true
		summary.MissingPopulation = missing
	}

	aggs := BuildAggregations(norm.Records)

	if err := r.persist(ctx, norm.Records, aggs); err != nil {
		return nil, err
	}

	summary.DurationMs = float64(time.Since(start).Microseconds()) / 1000.0

	if r.RedisClient != nil {
		r.RedisClient.PublishRunCompleted(ctx, redis.RunCompletedEvent{
			RunID:      runID,
			Records:    summary.Records,
			Anomalies:  summary.Anomalies,
			LatestYear: summary.LatestYear,
			DurationMs: summary.DurationMs,
		})
	}

	summary.Log(r.Logger)

	return summary, nil
}

// persist writes everything to staging and promotes. PromoteRun is the only
// step that touches production tables.
func (r *Runner) persist(ctx context.Context, records []*models.EnrichedRecord, aggs *Aggregations) error {
	if err := r.Store.InitializeDB(ctx); err != nil {
		return fmt.Errorf("initialize output tables: %w", err)
	}
	if err := r.Store.TruncateStaging(ctx); err != nil {
		return fmt.Errorf("truncate staging: %w", err)
	}

	if err := r.Store.InsertEnrichedRecords(ctx, records); err != nil {
		return fmt.Errorf("insert enriched records: %w", err)
	}
	if err := r.Store.InsertGlobalByYear(ctx, aggs.GlobalByYear); err != nil {
		return fmt.Errorf("insert global_by_year: %w", err)
	}
	if err := r.Store.InsertEntityByYear(ctx, aggs.EntityByYear); err != nil {
		return fmt.Errorf("insert entity_by_year: %w", err)
	}
	if err := r.Store.InsertCauseByYear(ctx, aggs.CauseByYear); err != nil {
		return fmt.Errorf("insert cause_by_year: %w", err)
	}
	if err := r.Store.InsertTopAnomalies(ctx, aggs.TopAnomalies); err != nil {
		return fmt.Errorf("insert top_anomalies: %w", err)
	}
	if err := r.Store.InsertCauseMixShares(ctx, aggs.CauseMixShares); err != nil {
		return fmt.Errorf("insert cause_mix_shares: %w", err)
	}

	if err := r.Store.PromoteRun(ctx); err != nil {
		return fmt.Errorf("promote run: %w", err)
	}

	return nil
}

// enrichPopulation joins World Bank figures on (code, year) and derives
// deaths per 100k. Records without a code or without a figure keep nil
// population fields; returns how many records stayed unenriched.
func (r *Runner) enrichPopulation(ctx context.Context, records []*models.EnrichedRecord, fromYear, toYear uint16) (int, error) {
	figures, err := r.Population.Populations(ctx, fromYear, toYear)
	if err != nil {
		return 0, err
	}

	missing := 0
	for _, rec := range records {
		if rec.Code == "" {
			missing++
			continue
		}
		pop, ok := figures[population.Key{Code: rec.Code, Year: rec.Year}]
		if !ok || pop == 0 {
			missing++
			continue
		}

		p := pop
		rec.Population = &p

		per100k := math.Round(float64(rec.Deaths)/float64(pop)*100_000*100) / 100
		rec.DeathsPer100k = &per100k
	}

	return missing, nil
}

// profile fills the data-profile fields of the summary from the enriched set.
func profile(s *Summary, records []*models.EnrichedRecord) {
	entities := make(map[string]struct{})
	causes := make(map[string]struct{})
	for i, r := range records {
		entities[r.Entity] = struct{}{}
		causes[r.Cause] = struct{}{}
		if i == 0 || r.Year < s.FirstYear {
			s.FirstYear = r.Year
		}
		if r.Year > s.LatestYear {
			s.LatestYear = r.Year
		}
	}
	s.Entities = len(entities)
	s.Causes = len(causes)
}
