package etl_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	models "github.com/mortality-signals/signalsx/pkg/db/models/mortality"
	"github.com/mortality-signals/signalsx/pkg/etl"
)

func seriesPoint(entity, cause string, year uint16, deaths uint64) *models.EnrichedRecord {
	return &models.EnrichedRecord{
		Entity: entity,
		Code:   "XXX",
		Year:   year,
		Cause:  cause,
		Deaths: deaths,
	}
}

// TestComputeMetrics_SpikeSeries walks one series with a pronounced spike
// through the full derivation: YoY deltas, trailing-window stats, z-scores.
func TestComputeMetrics_SpikeSeries(t *testing.T) {
	deaths := []uint64{100, 120, 90, 300, 95}
	records := make([]*models.EnrichedRecord, 0, len(deaths))
	for i, d := range deaths {
		records = append(records, seriesPoint("A", "X", uint16(2016+i), d))
	}

	anomalies, err := etl.ComputeMetrics(context.Background(), zaptest.NewLogger(t), records,
		etl.Config{RollingWindow: 5, AnomalyThreshold: 1.2})
	require.NoError(t, err)
	assert.Equal(t, 1, anomalies)

	p2016 := records[0]
	assert.Nil(t, p2016.YoYChange, "first point has no prior year")
	assert.Nil(t, p2016.YoYPct)
	assert.Equal(t, 100.0, p2016.RollingAvg)
	assert.Equal(t, 1.0, p2016.RollingStd, "single-point window substitutes 1.0")
	assert.Equal(t, 0.0, p2016.AnomalyScore)
	assert.False(t, p2016.IsAnomaly)

	p2017 := records[1]
	require.NotNil(t, p2017.YoYChange)
	assert.Equal(t, int64(20), *p2017.YoYChange)
	require.NotNil(t, p2017.YoYPct)
	assert.InDelta(t, 20.0, *p2017.YoYPct, 1e-9)
	assert.InDelta(t, 110.0, p2017.RollingAvg, 1e-9)
	assert.InDelta(t, 14.142136, p2017.RollingStd, 1e-5)
	assert.InDelta(t, 0.707107, p2017.AnomalyScore, 1e-5)

	p2018 := records[2]
	require.NotNil(t, p2018.YoYChange)
	assert.Equal(t, int64(-30), *p2018.YoYChange)
	require.NotNil(t, p2018.YoYPct)
	assert.InDelta(t, -25.0, *p2018.YoYPct, 1e-9)
	assert.InDelta(t, 103.333333, p2018.RollingAvg, 1e-5)
	assert.InDelta(t, 15.275252, p2018.RollingStd, 1e-5)
	assert.InDelta(t, -0.872872, p2018.AnomalyScore, 1e-5)
	assert.False(t, p2018.IsAnomaly)

	// The spike year dominates its trailing window
	p2019 := records[3]
	require.NotNil(t, p2019.YoYChange)
	assert.Equal(t, int64(210), *p2019.YoYChange)
	assert.InDelta(t, 152.5, p2019.RollingAvg, 1e-9)
	assert.InDelta(t, 99.121138, p2019.RollingStd, 1e-5)
	assert.InDelta(t, 1.488078, p2019.AnomalyScore, 1e-5)
	assert.True(t, p2019.IsAnomaly)

	p2020 := records[4]
	assert.InDelta(t, 141.0, p2020.RollingAvg, 1e-9)
	assert.InDelta(t, -0.513334, p2020.AnomalyScore, 1e-5)
	assert.False(t, p2020.IsAnomaly)
}

// TestComputeMetrics_SinglePointSeries tests the degenerate one-point series:
// substituted std, zero score, no flag.
func TestComputeMetrics_SinglePointSeries(t *testing.T) {
	records := []*models.EnrichedRecord{seriesPoint("B", "Y", 2020, 50)}

	anomalies, err := etl.ComputeMetrics(context.Background(), zaptest.NewLogger(t), records,
		etl.Config{RollingWindow: 5, AnomalyThreshold: 1.5})
	require.NoError(t, err)
	assert.Equal(t, 0, anomalies)

	p := records[0]
	assert.Nil(t, p.YoYChange)
	assert.Nil(t, p.YoYPct)
	assert.Equal(t, 50.0, p.RollingAvg)
	assert.Equal(t, 1.0, p.RollingStd)
	assert.Equal(t, 0.0, p.AnomalyScore)
	assert.False(t, p.IsAnomaly)
}

// TestComputeMetrics_ZeroVarianceSeries tests that an all-identical series
// never divides by zero and never flags.
func TestComputeMetrics_ZeroVarianceSeries(t *testing.T) {
	records := []*models.EnrichedRecord{
		seriesPoint("C", "Z", 2018, 70),
		seriesPoint("C", "Z", 2019, 70),
		seriesPoint("C", "Z", 2020, 70),
	}

	anomalies, err := etl.ComputeMetrics(context.Background(), zaptest.NewLogger(t), records,
		etl.Config{RollingWindow: 5, AnomalyThreshold: 1.5})
	require.NoError(t, err)
	assert.Equal(t, 0, anomalies)

	for _, p := range records {
		assert.Equal(t, 70.0, p.RollingAvg)
		assert.Equal(t, 1.0, p.RollingStd)
		assert.Equal(t, 0.0, p.AnomalyScore)
		assert.False(t, p.IsAnomaly)
	}
}

// TestComputeMetrics_ZeroDenominator tests that a zero prior year leaves the
// percentage absent instead of producing an infinity.
func TestComputeMetrics_ZeroDenominator(t *testing.T) {
	records := []*models.EnrichedRecord{
		seriesPoint("D", "W", 2019, 0),
		seriesPoint("D", "W", 2020, 10),
	}

	_, err := etl.ComputeMetrics(context.Background(), zaptest.NewLogger(t), records,
		etl.Config{RollingWindow: 5, AnomalyThreshold: 1.5})
	require.NoError(t, err)

	p := records[1]
	require.NotNil(t, p.YoYChange)
	assert.Equal(t, int64(10), *p.YoYChange)
	assert.Nil(t, p.YoYPct, "zero denominator leaves pct absent")
}

// TestComputeMetrics_Deterministic tests that output order and values do not
// depend on input order or on worker scheduling.
func TestComputeMetrics_Deterministic(t *testing.T) {
	build := func(scrambled bool) []*models.EnrichedRecord {
		var records []*models.EnrichedRecord
		for e := 0; e < 5; e++ {
			entity := string(rune('A' + e))
			for _, cause := range []string{"X", "Y"} {
				for year := uint16(2015); year <= 2020; year++ {
					records = append(records, seriesPoint(entity, cause, year, uint64(e)*13+uint64(year%7)*31))
				}
			}
		}
		if scrambled {
			for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
				records[i], records[j] = records[j], records[i]
			}
		}
		return records
	}

	cfg := etl.Config{RollingWindow: 5, AnomalyThreshold: 1.5, MaxParallelism: 8}

	ordered := build(false)
	scrambled := build(true)

	_, err := etl.ComputeMetrics(context.Background(), zaptest.NewLogger(t), ordered, cfg)
	require.NoError(t, err)
	_, err = etl.ComputeMetrics(context.Background(), zaptest.NewLogger(t), scrambled, cfg)
	require.NoError(t, err)

	require.Equal(t, len(ordered), len(scrambled))
	for i := range ordered {
		assert.Equal(t, ordered[i].Entity, scrambled[i].Entity)
		assert.Equal(t, ordered[i].Cause, scrambled[i].Cause)
		assert.Equal(t, ordered[i].Year, scrambled[i].Year)
		assert.Equal(t, ordered[i].AnomalyScore, scrambled[i].AnomalyScore)
		assert.Equal(t, ordered[i].RollingAvg, scrambled[i].RollingAvg)
	}

	// Canonical (entity, cause, year) order
	for i := 1; i < len(ordered); i++ {
		prev, cur := ordered[i-1], ordered[i]
		if prev.Entity == cur.Entity && prev.Cause == cur.Cause {
			assert.Less(t, prev.Year, cur.Year)
		}
	}
}
