package etl

import (
	"context"
	"math"
	"runtime"
	"sort"

	"github.com/alitto/pond/v2"
	"github.com/puzpuzpuz/xsync/v4"
	"go.uber.org/zap"

	models "github.com/mortality-signals/signalsx/pkg/db/models/mortality"
)

// ComputeMetrics fills the derived per-series fields of every record:
// year-over-year deltas, trailing-window statistics, and the z-score anomaly
// flag. Series (entity, cause pairs) are independent, so they are computed in
// parallel on a worker pool; the combined result is sorted by
// (entity, cause, year) afterwards so output never depends on scheduling
// order.
func ComputeMetrics(ctx context.Context, logger *zap.Logger, records []*models.EnrichedRecord, cfg Config) (int, error) {
	window := cfg.rollingWindow()
	threshold := cfg.anomalyThreshold()

	series := partitionSeries(records)

	anomalies := xsync.NewCounter()

	pool := pond.NewPool(metricsParallelism(cfg.MaxParallelism), pond.WithQueueSize(len(series)+1))
	group := pool.NewGroupContext(ctx)
	groupCtx := group.Context()

	for _, points := range series {
		points := points
		group.Submit(func() {
			if err := groupCtx.Err(); err != nil {
				return
			}
			anomalies.Add(int64(computeSeries(points, window, threshold)))
		})
	}

	err := group.Wait()
	pool.StopAndWait()
	if err != nil {
		return 0, err
	}

	sortRecords(records)

	logger.Debug("Computed series metrics",
		zap.Int("series", len(series)),
		zap.Int("records", len(records)),
		zap.Int("window", window),
		zap.Float64("threshold", threshold),
		zap.Int64("anomalies", anomalies.Value()))

	return int(anomalies.Value()), nil
}

// partitionSeries groups records by (entity, cause). Each group is an
// independent unit of work; no series reads another's state.
func partitionSeries(records []*models.EnrichedRecord) [][]*models.EnrichedRecord {
	byKey := make(map[string][]*models.EnrichedRecord)
	var keys []string
	for _, r := range records {
		key := r.SeriesKey()
		if _, ok := byKey[key]; !ok {
			keys = append(keys, key)
		}
		byKey[key] = append(byKey[key], r)
	}

	out := make([][]*models.EnrichedRecord, 0, len(keys))
	for _, key := range keys {
		out = append(out, byKey[key])
	}
	return out
}

// computeSeries fills the derived fields of one series in place and returns
// the number of anomalous points. Points are ordered by year first; ties
// cannot occur since (entity, cause, year) is the primary key. Gaps in year
// coverage are fine: the window is positional over the available points.
func computeSeries(points []*models.EnrichedRecord, window int, threshold float64) int {
	sort.Slice(points, func(i, j int) bool { return points[i].Year < points[j].Year })

	anomalies := 0
	for i, p := range points {
		if i > 0 {
			prev := points[i-1]
			change := int64(p.Deaths) - int64(prev.Deaths)
			p.YoYChange = &change
			if prev.Deaths != 0 {
				pct := float64(change) / float64(prev.Deaths) * 100
				p.YoYPct = &pct
			}
		}

		start := i - window + 1
		if start < 0 {
			start = 0
		}
		win := points[start : i+1]

		mean := 0.0
		for _, w := range win {
			mean += float64(w.Deaths)
		}
		mean /= float64(len(win))

		// Sample standard deviation over the trailing window. A single-point
		// or zero-variance window cannot statistically define an anomaly, so
		// the std is substituted with 1.0: scores near such points are
		// suppressed instead of exploding.
		std := 1.0
		if len(win) >= 2 {
			variance := 0.0
			for _, w := range win {
				d := float64(w.Deaths) - mean
				variance += d * d
			}
			variance /= float64(len(win) - 1)
			if s := math.Sqrt(variance); s > 0 {
				std = s
			}
		}

		p.RollingAvg = mean
		p.RollingStd = std
		p.AnomalyScore = (float64(p.Deaths) - mean) / std
		p.IsAnomaly = math.Abs(p.AnomalyScore) > threshold
		if p.IsAnomaly {
			anomalies++
		}
	}

	return anomalies
}

// sortRecords imposes the canonical (entity, cause, year) order on the full
// record set, the deterministic merge after parallel per-series computation.
func sortRecords(records []*models.EnrichedRecord) {
	sort.Slice(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if a.Entity != b.Entity {
			return a.Entity < b.Entity
		}
		if a.Cause != b.Cause {
			return a.Cause < b.Cause
		}
		return a.Year < b.Year
	})
}

// metricsParallelism sizes the per-series worker pool.
func metricsParallelism(override int) int {
	if override > 0 {
		if override > 512 {
			return 512
		}
		return override
	}

	n := runtime.NumCPU()
	if n < 1 {
		n = 1
	}

	parallelism := n * 4
	if parallelism < 2 {
		parallelism = 2
	}
	if parallelism > 512 {
		parallelism = 512
	}

	return parallelism
}
