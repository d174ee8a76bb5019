package mortality

// Aggregation table names. Each table has a staging twin written during the
// run and promoted wholesale on success; tables are never merged
// incrementally.
const (
	GlobalByYearTableName   = "global_by_year"
	EntityByYearTableName   = "entity_by_year"
	CauseByYearTableName    = "cause_by_year"
	TopAnomaliesTableName   = "top_anomalies"
	CauseMixSharesTableName = "cause_mix_shares"

	StagingSuffix = "_staging"
)

// AggregationTableNames lists every aggregation table addressable by name.
var AggregationTableNames = []string{
	GlobalByYearTableName,
	EntityByYearTableName,
	CauseByYearTableName,
	TopAnomaliesTableName,
	CauseMixSharesTableName,
}

// GlobalYearTotal is one row of global_by_year: total deaths across all
// entities and causes for a single year.
type GlobalYearTotal struct {
	Year        uint16 `ch:"year" json:"year"`
	TotalDeaths uint64 `ch:"total_deaths" json:"total_deaths"`
}

// EntityYearTotal is one row of entity_by_year.
type EntityYearTotal struct {
	Entity      string `ch:"entity" json:"entity"`
	Code        string `ch:"code" json:"code"`
	Year        uint16 `ch:"year" json:"year"`
	TotalDeaths uint64 `ch:"total_deaths" json:"total_deaths"`
}

// CauseYearTotal is one row of cause_by_year.
type CauseYearTotal struct {
	Cause         string `ch:"cause" json:"cause"`
	CauseCategory string `ch:"cause_category" json:"cause_category"`
	Year          uint16 `ch:"year" json:"year"`
	TotalDeaths   uint64 `ch:"total_deaths" json:"total_deaths"`
}

// TopAnomaly is one row of top_anomalies: an anomalous enriched record with
// its rank by |anomaly_score| descending (1 = strongest signal).
type TopAnomaly struct {
	Rank uint32 `ch:"rank" json:"rank"`
	EnrichedRecord
}

// CauseMixShare is one row of cause_mix_shares: the fraction of an entity's
// total deaths in the latest year attributable to one cause. Long form keeps
// the schema stable no matter which causes appear in the input. Entities with
// zero total deaths keep explicit zero shares.
type CauseMixShare struct {
	Entity string  `ch:"entity" json:"entity"`
	Code   string  `ch:"code" json:"code"`
	Year   uint16  `ch:"year" json:"year"`
	Cause  string  `ch:"cause" json:"cause"`
	Share  float64 `ch:"share" json:"share"`
}

// GlobalByYearColumns defines the schema for global_by_year.
var GlobalByYearColumns = []ColumnDef{
	{Name: "year", Type: "UInt16"},
	{Name: "total_deaths", Type: "UInt64"},
}

// EntityByYearColumns defines the schema for entity_by_year.
var EntityByYearColumns = []ColumnDef{
	{Name: "entity", Type: "String", Codec: "ZSTD(1)"},
	{Name: "code", Type: "String", Codec: "ZSTD(1)"},
	{Name: "year", Type: "UInt16"},
	{Name: "total_deaths", Type: "UInt64"},
}

// CauseByYearColumns defines the schema for cause_by_year.
var CauseByYearColumns = []ColumnDef{
	{Name: "cause", Type: "LowCardinality(String)"},
	{Name: "cause_category", Type: "LowCardinality(String)"},
	{Name: "year", Type: "UInt16"},
	{Name: "total_deaths", Type: "UInt64"},
}

// TopAnomaliesColumns defines the schema for top_anomalies: rank plus the
// full cause_deaths row.
var TopAnomaliesColumns = append(
	[]ColumnDef{{Name: "rank", Type: "UInt32"}},
	CauseDeathsColumns...,
)

// CauseMixSharesColumns defines the schema for cause_mix_shares.
var CauseMixSharesColumns = []ColumnDef{
	{Name: "entity", Type: "String", Codec: "ZSTD(1)"},
	{Name: "code", Type: "String", Codec: "ZSTD(1)"},
	{Name: "year", Type: "UInt16"},
	{Name: "cause", Type: "LowCardinality(String)"},
	{Name: "share", Type: "Float64"},
}
