package db

import (
	"context"

	"github.com/mortality-signals/signalsx/pkg/db/models/mortality"
)

// RecordFilter narrows reads of the primary cause_deaths table.
// Zero values mean "no filter"; Limit caps the result set.
type RecordFilter struct {
	Entity   string
	Cause    string
	FromYear uint16
	ToYear   uint16
	Limit    int
}

// Store is the persistence contract between the ETL engine and the query
// layer. Writes land in staging tables; PromoteRun is the single commit
// point that swaps staging into production, so a failed run never leaves
// partial output behind.
type Store interface {
	DatabaseName() string
	InitializeDB(ctx context.Context) error
	Health(ctx context.Context) error
	Close() error

	// Staging writes (one run's worth of data).
	TruncateStaging(ctx context.Context) error
	InsertEnrichedRecords(ctx context.Context, records []*mortality.EnrichedRecord) error
	InsertGlobalByYear(ctx context.Context, rows []*mortality.GlobalYearTotal) error
	InsertEntityByYear(ctx context.Context, rows []*mortality.EntityYearTotal) error
	InsertCauseByYear(ctx context.Context, rows []*mortality.CauseYearTotal) error
	InsertTopAnomalies(ctx context.Context, rows []*mortality.TopAnomaly) error
	InsertCauseMixShares(ctx context.Context, rows []*mortality.CauseMixShare) error
	PromoteRun(ctx context.Context) error

	// Read-only queries over production tables (query app).
	GetRecords(ctx context.Context, filter RecordFilter) ([]*mortality.EnrichedRecord, error)
	GetGlobalByYear(ctx context.Context) ([]*mortality.GlobalYearTotal, error)
	GetEntityByYear(ctx context.Context, entity string) ([]*mortality.EntityYearTotal, error)
	GetCauseByYear(ctx context.Context, cause string) ([]*mortality.CauseYearTotal, error)
	GetTopAnomalies(ctx context.Context, limit int) ([]*mortality.TopAnomaly, error)
	GetCauseMixShares(ctx context.Context, entity string) ([]*mortality.CauseMixShare, error)
}
