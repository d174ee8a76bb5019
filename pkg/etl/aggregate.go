package etl

import (
	"math"
	"sort"

	models "github.com/mortality-signals/signalsx/pkg/db/models/mortality"
)

// TopAnomaliesLimit bounds the top_anomalies feed.
const TopAnomaliesLimit = 1000

// Aggregations holds the pre-computed rollup tables derived from the full
// enriched record set. Built once per run, after the metrics barrier; never
// merged incrementally.
type Aggregations struct {
	GlobalByYear   []*models.GlobalYearTotal
	EntityByYear   []*models.EntityYearTotal
	CauseByYear    []*models.CauseYearTotal
	TopAnomalies   []*models.TopAnomaly
	CauseMixShares []*models.CauseMixShare
}

// BuildAggregations derives every rollup table from the complete enriched
// record set. Each table gets a deterministic sort by its natural key.
func BuildAggregations(records []*models.EnrichedRecord) *Aggregations {
	return &Aggregations{
		GlobalByYear:   buildGlobalByYear(records),
		EntityByYear:   buildEntityByYear(records),
		CauseByYear:    buildCauseByYear(records),
		TopAnomalies:   buildTopAnomalies(records),
		CauseMixShares: buildCauseMixShares(records),
	}
}

func buildGlobalByYear(records []*models.EnrichedRecord) []*models.GlobalYearTotal {
	totals := make(map[uint16]uint64)
	for _, r := range records {
		totals[r.Year] += r.Deaths
	}

	out := make([]*models.GlobalYearTotal, 0, len(totals))
	for year, total := range totals {
		out = append(out, &models.GlobalYearTotal{Year: year, TotalDeaths: total})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Year < out[j].Year })
	return out
}

func buildEntityByYear(records []*models.EnrichedRecord) []*models.EntityYearTotal {
	type key struct {
		entity string
		code   string
		year   uint16
	}

	totals := make(map[key]uint64)
	for _, r := range records {
		totals[key{r.Entity, r.Code, r.Year}] += r.Deaths
	}

	out := make([]*models.EntityYearTotal, 0, len(totals))
	for k, total := range totals {
		out = append(out, &models.EntityYearTotal{
			Entity:      k.entity,
			Code:        k.code,
			Year:        k.year,
			TotalDeaths: total,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Entity != b.Entity {
			return a.Entity < b.Entity
		}
		if a.Code != b.Code {
			return a.Code < b.Code
		}
		return a.Year < b.Year
	})
	return out
}

func buildCauseByYear(records []*models.EnrichedRecord) []*models.CauseYearTotal {
	type key struct {
		cause    string
		category string
		year     uint16
	}

	totals := make(map[key]uint64)
	for _, r := range records {
		totals[key{r.Cause, r.CauseCategory, r.Year}] += r.Deaths
	}

	out := make([]*models.CauseYearTotal, 0, len(totals))
	for k, total := range totals {
		out = append(out, &models.CauseYearTotal{
			Cause:         k.cause,
			CauseCategory: k.category,
			Year:          k.year,
			TotalDeaths:   total,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Cause != b.Cause {
			return a.Cause < b.Cause
		}
		return a.Year < b.Year
	})
	return out
}

// buildTopAnomalies collects every flagged record, orders by |anomaly_score|
// descending with the series key as tie-break (keeps the feed deterministic),
// and truncates to TopAnomaliesLimit.
func buildTopAnomalies(records []*models.EnrichedRecord) []*models.TopAnomaly {
	var flagged []*models.EnrichedRecord
	for _, r := range records {
		if r.IsAnomaly {
			flagged = append(flagged, r)
		}
	}

	sort.Slice(flagged, func(i, j int) bool {
		a, b := flagged[i], flagged[j]
		sa, sb := math.Abs(a.AnomalyScore), math.Abs(b.AnomalyScore)
		if sa != sb {
			return sa > sb
		}
		if a.Entity != b.Entity {
			return a.Entity < b.Entity
		}
		if a.Cause != b.Cause {
			return a.Cause < b.Cause
		}
		return a.Year < b.Year
	})

	if len(flagged) > TopAnomaliesLimit {
		flagged = flagged[:TopAnomaliesLimit]
	}

	out := make([]*models.TopAnomaly, 0, len(flagged))
	for i, r := range flagged {
		out = append(out, &models.TopAnomaly{Rank: uint32(i + 1), EnrichedRecord: *r})
	}
	return out
}

// buildCauseMixShares pivots the latest year's deaths into per-entity cause
// shares. Every entity row carries one row per cause present that year
// (zero-filled for causes the entity lacks); a row's shares sum to 1 unless
// the entity's total for the year is zero, in which case the shares stay 0
// rather than dividing by zero.
func buildCauseMixShares(records []*models.EnrichedRecord) []*models.CauseMixShare {
	if len(records) == 0 {
		return nil
	}

	latest := records[0].Year
	for _, r := range records {
		if r.Year > latest {
			latest = r.Year
		}
	}

	type entityKey struct {
		entity string
		code   string
	}

	deaths := make(map[entityKey]map[string]uint64)
	totals := make(map[entityKey]uint64)
	causeSet := make(map[string]struct{})

	for _, r := range records {
		if r.Year != latest {
			continue
		}
		k := entityKey{r.Entity, r.Code}
		if deaths[k] == nil {
			deaths[k] = make(map[string]uint64)
		}
		deaths[k][r.Cause] += r.Deaths
		totals[k] += r.Deaths
		causeSet[r.Cause] = struct{}{}
	}

	entities := make([]entityKey, 0, len(deaths))
	for k := range deaths {
		entities = append(entities, k)
	}
	sort.Slice(entities, func(i, j int) bool {
		if entities[i].entity != entities[j].entity {
			return entities[i].entity < entities[j].entity
		}
		return entities[i].code < entities[j].code
	})

	causes := make([]string, 0, len(causeSet))
	for c := range causeSet {
		causes = append(causes, c)
	}
	sort.Strings(causes)

	out := make([]*models.CauseMixShare, 0, len(entities)*len(causes))
	for _, k := range entities {
		total := totals[k]
		for _, cause := range causes {
			share := 0.0
			if total > 0 {
				share = float64(deaths[k][cause]) / float64(total)
			}
			out = append(out, &models.CauseMixShare{
				Entity: k.entity,
				Code:   k.code,
				Year:   latest,
				Cause:  cause,
				Share:  share,
			})
		}
	}
	return out
}
