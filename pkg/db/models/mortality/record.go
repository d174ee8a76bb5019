package mortality

// DeathRecord is the atomic fact produced by the schema normalizer: one
// (entity, cause, year) cell of the wide input after unpivoting.
type DeathRecord struct {
	Entity string `ch:"entity" json:"entity"`
	Code   string `ch:"code" json:"code"`
	Year   uint16 `ch:"year" json:"year"`
	Cause  string `ch:"cause" json:"cause"`
	Deaths uint64 `ch:"deaths" json:"deaths"`
}

// EnrichedRecord is a DeathRecord plus the derived per-series fields.
// (entity, cause, year) is the primary key; one record per triple.
//
// YoYChange and YoYPct are nil at the first point of a series, and YoYPct is
// also nil when the prior year's deaths are zero. Nullable columns carry that
// absence through to the output tables; sentinel NaN/Inf values are never
// emitted.
type EnrichedRecord struct {
	Entity        string   `ch:"entity" json:"entity"`
	Code          string   `ch:"code" json:"code"`
	Year          uint16   `ch:"year" json:"year"`
	Cause         string   `ch:"cause" json:"cause"`
	Deaths        uint64   `ch:"deaths" json:"deaths"`
	CauseCategory string   `ch:"cause_category" json:"cause_category"`
	YoYChange     *int64   `ch:"yoy_change" json:"yoy_change"`
	YoYPct        *float64 `ch:"yoy_pct" json:"yoy_pct"`
	RollingAvg    float64  `ch:"rolling_avg" json:"rolling_avg"`
	RollingStd    float64  `ch:"rolling_std" json:"rolling_std"`
	AnomalyScore  float64  `ch:"anomaly_score" json:"anomaly_score"`
	IsAnomaly     bool     `ch:"is_anomaly" json:"is_anomaly"`

	// Population enrichment (optional stage); nil when not enriched or when
	// no population figure exists for (code, year).
	Population    *uint64  `ch:"population" json:"population"`
	DeathsPer100k *float64 `ch:"deaths_per_100k" json:"deaths_per_100k"`
}

// SeriesKey identifies the (entity, cause) series a record belongs to.
// The unit of parallelism in the metrics engine.
func (r *EnrichedRecord) SeriesKey() string {
	return r.Entity + "\x00" + r.Cause
}

// CauseDeathsTableName is the primary output table; the staging twin receives
// all writes during a run and is promoted on success.
const (
	CauseDeathsTableName        = "cause_deaths"
	CauseDeathsStagingTableName = "cause_deaths_staging"
)

// CauseDeathsColumns defines the schema for the cause_deaths table.
var CauseDeathsColumns = []ColumnDef{
	{Name: "entity", Type: "String", Codec: "ZSTD(1)"},
	{Name: "code", Type: "String", Codec: "ZSTD(1)"},
	{Name: "year", Type: "UInt16"},
	{Name: "cause", Type: "LowCardinality(String)"},
	{Name: "deaths", Type: "UInt64", Codec: "Delta, ZSTD(3)"},
	{Name: "cause_category", Type: "LowCardinality(String)"},
	{Name: "yoy_change", Type: "Nullable(Int64)"},
	{Name: "yoy_pct", Type: "Nullable(Float64)"},
	{Name: "rolling_avg", Type: "Float64"},
	{Name: "rolling_std", Type: "Float64"},
	{Name: "anomaly_score", Type: "Float64"},
	{Name: "is_anomaly", Type: "Bool"},
	{Name: "population", Type: "Nullable(UInt64)"},
	{Name: "deaths_per_100k", Type: "Nullable(Float64)"},
}
