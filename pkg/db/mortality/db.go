package mortality

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mortality-signals/signalsx/pkg/db/clickhouse"
	models "github.com/mortality-signals/signalsx/pkg/db/models/mortality"
	"github.com/mortality-signals/signalsx/pkg/utils"
)

// DB is the mortality output store: the enriched cause_deaths table plus the
// pre-computed aggregation tables, each with a staging twin.
type DB struct {
	clickhouse.Client
	Name string
}

// New connects to ClickHouse and returns the mortality store. The database
// name comes from CLICKHOUSE_DATABASE (default "mortality").
func New(ctx context.Context, logger *zap.Logger, poolConfig ...*clickhouse.PoolConfig) (*DB, error) {
	name := clickhouse.SanitizeName(utils.Env("CLICKHOUSE_DATABASE", "mortality"))

	client, err := clickhouse.New(ctx, logger, name, poolConfig...)
	if err != nil {
		return nil, err
	}

	return &DB{Client: client, Name: name}, nil
}

// DatabaseName returns the database this store writes to.
func (d *DB) DatabaseName() string {
	return d.Name
}

// Health pings the underlying connection.
func (d *DB) Health(ctx context.Context) error {
	return d.Db.Ping(ctx)
}

// InitializeDB creates the database and every output table (production and
// staging) if they do not already exist.
func (d *DB) InitializeDB(ctx context.Context) error {
	if err := d.Exec(ctx, fmt.Sprintf(`CREATE DATABASE IF NOT EXISTS "%s"`, d.Name)); err != nil {
		return fmt.Errorf("create database %s: %w", d.Name, err)
	}

	inits := []func(context.Context) error{
		d.initCauseDeaths,
		d.initGlobalByYear,
		d.initEntityByYear,
		d.initCauseByYear,
		d.initTopAnomalies,
		d.initCauseMixShares,
	}
	for _, init := range inits {
		if err := init(ctx); err != nil {
			return err
		}
	}

	return nil
}

// runTables lists every production table swapped on promotion.
func runTables() []string {
	return append([]string{models.CauseDeathsTableName}, models.AggregationTableNames...)
}

// TruncateStaging clears all staging tables before a run starts writing.
func (d *DB) TruncateStaging(ctx context.Context) error {
	for _, table := range runTables() {
		query := fmt.Sprintf(`TRUNCATE TABLE "%s"."%s%s"`, d.Name, table, models.StagingSuffix)
		if err := d.Exec(ctx, query); err != nil {
			return fmt.Errorf("truncate %s%s: %w", table, models.StagingSuffix, err)
		}
	}
	return nil
}

// PromoteRun atomically swaps each staging table with its production twin.
// This is the commit point of a pipeline run: until it executes, readers see
// the previous run's tables untouched. After the exchange the old production
// data sits in staging and is truncated to free space.
func (d *DB) PromoteRun(ctx context.Context) error {
	for _, table := range runTables() {
		exchange := fmt.Sprintf(`EXCHANGE TABLES "%s"."%s" AND "%s"."%s%s"`,
			d.Name, table, d.Name, table, models.StagingSuffix)
		if err := d.Exec(ctx, exchange); err != nil {
			return fmt.Errorf("exchange %s: %w", table, err)
		}

		truncate := fmt.Sprintf(`TRUNCATE TABLE "%s"."%s%s"`, d.Name, table, models.StagingSuffix)
		if err := d.Exec(ctx, truncate); err != nil {
			return fmt.Errorf("truncate promoted %s%s: %w", table, models.StagingSuffix, err)
		}
	}
	return nil
}

// createPair creates a production table and its staging twin from the same
// schema template.
func (d *DB) createPair(ctx context.Context, table string, columns []models.ColumnDef, orderBy string) error {
	if err := models.ValidateColumns(columns); err != nil {
		return fmt.Errorf("table %s: %w", table, err)
	}

	queryTemplate := `
		CREATE TABLE IF NOT EXISTS "%s"."%s" (
			%s
		) ENGINE = MergeTree
		ORDER BY %s
	`

	schema := models.ColumnsToSchemaSQL(columns)

	for _, name := range []string{table, table + models.StagingSuffix} {
		query := fmt.Sprintf(queryTemplate, d.Name, name, schema, orderBy)
		if err := d.Exec(ctx, query); err != nil {
			return fmt.Errorf("create %s: %w", name, err)
		}
	}

	return nil
}
