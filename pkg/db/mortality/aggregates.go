package mortality

import (
	"context"
	"fmt"
	"strings"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	models "github.com/mortality-signals/signalsx/pkg/db/models/mortality"
)

func (d *DB) initGlobalByYear(ctx context.Context) error {
	return d.createPair(ctx, models.GlobalByYearTableName, models.GlobalByYearColumns, "(year)")
}

func (d *DB) initEntityByYear(ctx context.Context) error {
	return d.createPair(ctx, models.EntityByYearTableName, models.EntityByYearColumns, "(entity, year)")
}

func (d *DB) initCauseByYear(ctx context.Context) error {
	return d.createPair(ctx, models.CauseByYearTableName, models.CauseByYearColumns, "(cause, year)")
}

func (d *DB) initTopAnomalies(ctx context.Context) error {
	return d.createPair(ctx, models.TopAnomaliesTableName, models.TopAnomaliesColumns, "(rank)")
}

func (d *DB) initCauseMixShares(ctx context.Context) error {
	return d.createPair(ctx, models.CauseMixSharesTableName, models.CauseMixSharesColumns, "(entity, cause)")
}

// stagingInsert prepares a batch insert into a staging table with an explicit
// column list, so Append calls stay aligned with the table schema.
func (d *DB) stagingInsert(ctx context.Context, table string, columns []models.ColumnDef) (driver.Batch, error) {
	query := fmt.Sprintf(`INSERT INTO "%s"."%s" (%s)`,
		d.Name, table+models.StagingSuffix,
		strings.Join(models.ColumnsToNameList(columns), ", "))
	return d.PrepareBatch(ctx, query)
}

// InsertGlobalByYear batch-inserts global per-year totals into staging.
func (d *DB) InsertGlobalByYear(ctx context.Context, rows []*models.GlobalYearTotal) error {
	if len(rows) == 0 {
		return nil
	}

	batch, err := d.stagingInsert(ctx, models.GlobalByYearTableName, models.GlobalByYearColumns)
	if err != nil {
		return err
	}
	defer func() { _ = batch.Abort() }()

	for _, row := range rows {
		if err := batch.Append(row.Year, row.TotalDeaths); err != nil {
			return fmt.Errorf("append global_by_year %d: %w", row.Year, err)
		}
	}

	return batch.Send()
}

// InsertEntityByYear batch-inserts per-entity totals into staging.
func (d *DB) InsertEntityByYear(ctx context.Context, rows []*models.EntityYearTotal) error {
	if len(rows) == 0 {
		return nil
	}

	batch, err := d.stagingInsert(ctx, models.EntityByYearTableName, models.EntityByYearColumns)
	if err != nil {
		return err
	}
	defer func() { _ = batch.Abort() }()

	for _, row := range rows {
		if err := batch.Append(row.Entity, row.Code, row.Year, row.TotalDeaths); err != nil {
			return fmt.Errorf("append entity_by_year %s/%d: %w", row.Entity, row.Year, err)
		}
	}

	return batch.Send()
}

// InsertCauseByYear batch-inserts per-cause totals into staging.
func (d *DB) InsertCauseByYear(ctx context.Context, rows []*models.CauseYearTotal) error {
	if len(rows) == 0 {
		return nil
	}

	batch, err := d.stagingInsert(ctx, models.CauseByYearTableName, models.CauseByYearColumns)
	if err != nil {
		return err
	}
	defer func() { _ = batch.Abort() }()

	for _, row := range rows {
		if err := batch.Append(row.Cause, row.CauseCategory, row.Year, row.TotalDeaths); err != nil {
			return fmt.Errorf("append cause_by_year %s/%d: %w", row.Cause, row.Year, err)
		}
	}

	return batch.Send()
}

// InsertTopAnomalies batch-inserts the ranked anomaly feed into staging.
func (d *DB) InsertTopAnomalies(ctx context.Context, rows []*models.TopAnomaly) error {
	if len(rows) == 0 {
		return nil
	}

	batch, err := d.stagingInsert(ctx, models.TopAnomaliesTableName, models.TopAnomaliesColumns)
	if err != nil {
		return err
	}
	defer func() { _ = batch.Abort() }()

	for _, row := range rows {
		if err := batch.Append(
			row.Rank,
			row.Entity,
			row.Code,
			row.Year,
			row.Cause,
			row.Deaths,
			row.CauseCategory,
			row.YoYChange,
			row.YoYPct,
			row.RollingAvg,
			row.RollingStd,
			row.AnomalyScore,
			row.IsAnomaly,
			row.Population,
			row.DeathsPer100k,
		); err != nil {
			return fmt.Errorf("append top_anomalies rank %d: %w", row.Rank, err)
		}
	}

	return batch.Send()
}

// InsertCauseMixShares batch-inserts the latest-year cause-mix matrix (long
// form) into staging.
func (d *DB) InsertCauseMixShares(ctx context.Context, rows []*models.CauseMixShare) error {
	if len(rows) == 0 {
		return nil
	}

	batch, err := d.stagingInsert(ctx, models.CauseMixSharesTableName, models.CauseMixSharesColumns)
	if err != nil {
		return err
	}
	defer func() { _ = batch.Abort() }()

	for _, row := range rows {
		if err := batch.Append(row.Entity, row.Code, row.Year, row.Cause, row.Share); err != nil {
			return fmt.Errorf("append cause_mix_shares %s/%s: %w", row.Entity, row.Cause, err)
		}
	}

	return batch.Send()
}

// GetGlobalByYear reads global totals ordered by year.
func (d *DB) GetGlobalByYear(ctx context.Context) ([]*models.GlobalYearTotal, error) {
	query := fmt.Sprintf(`
		SELECT year, total_deaths
		FROM "%s"."%s"
		ORDER BY year
	`, d.Name, models.GlobalByYearTableName)

	var rows []*models.GlobalYearTotal
	if err := d.Select(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("select global_by_year: %w", err)
	}
	return rows, nil
}

// GetEntityByYear reads per-entity totals, optionally filtered by entity.
func (d *DB) GetEntityByYear(ctx context.Context, entity string) ([]*models.EntityYearTotal, error) {
	where := ""
	var args []interface{}
	if entity != "" {
		where = "WHERE entity = ?"
		args = append(args, entity)
	}

	query := fmt.Sprintf(`
		SELECT entity, code, year, total_deaths
		FROM "%s"."%s"
		%s
		ORDER BY entity, year
	`, d.Name, models.EntityByYearTableName, where)

	var rows []*models.EntityYearTotal
	if err := d.Select(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select entity_by_year: %w", err)
	}
	return rows, nil
}

// GetCauseByYear reads per-cause totals, optionally filtered by cause.
func (d *DB) GetCauseByYear(ctx context.Context, cause string) ([]*models.CauseYearTotal, error) {
	where := ""
	var args []interface{}
	if cause != "" {
		where = "WHERE cause = ?"
		args = append(args, cause)
	}

	query := fmt.Sprintf(`
		SELECT cause, cause_category, year, total_deaths
		FROM "%s"."%s"
		%s
		ORDER BY cause, year
	`, d.Name, models.CauseByYearTableName, where)

	var rows []*models.CauseYearTotal
	if err := d.Select(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select cause_by_year: %w", err)
	}
	return rows, nil
}

// GetTopAnomalies reads the ranked anomaly feed.
func (d *DB) GetTopAnomalies(ctx context.Context, limit int) ([]*models.TopAnomaly, error) {
	if limit <= 0 || limit > 1000 {
		limit = 1000
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM "%s"."%s"
		ORDER BY rank
		LIMIT %d
	`, strings.Join(models.ColumnsToNameList(models.TopAnomaliesColumns), ", "),
		d.Name, models.TopAnomaliesTableName, limit)

	var rows []*models.TopAnomaly
	if err := d.Select(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("select top_anomalies: %w", err)
	}
	return rows, nil
}

// GetCauseMixShares reads the latest-year cause mix, optionally for a single
// entity.
func (d *DB) GetCauseMixShares(ctx context.Context, entity string) ([]*models.CauseMixShare, error) {
	where := ""
	var args []interface{}
	if entity != "" {
		where = "WHERE entity = ?"
		args = append(args, entity)
	}

	query := fmt.Sprintf(`
		SELECT entity, code, year, cause, share
		FROM "%s"."%s"
		%s
		ORDER BY entity, cause
	`, d.Name, models.CauseMixSharesTableName, where)

	var rows []*models.CauseMixShare
	if err := d.Select(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select cause_mix_shares: %w", err)
	}
	return rows, nil
}
