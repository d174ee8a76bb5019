package mortality

import (
	"context"
	"fmt"
	"strings"

	db "github.com/mortality-signals/signalsx/pkg/db"
	models "github.com/mortality-signals/signalsx/pkg/db/models/mortality"
)

// initCauseDeaths creates the cause_deaths table and its staging twin.
func (d *DB) initCauseDeaths(ctx context.Context) error {
	return d.createPair(ctx, models.CauseDeathsTableName, models.CauseDeathsColumns, "(entity, cause, year)")
}

// InsertEnrichedRecords batch-inserts enriched records into the staging table.
// Records are expected pre-sorted by (entity, cause, year); insertion order is
// preserved so identical runs produce identical tables.
func (d *DB) InsertEnrichedRecords(ctx context.Context, records []*models.EnrichedRecord) error {
	if len(records) == 0 {
		return nil
	}

	query := fmt.Sprintf(`INSERT INTO "%s"."%s" (%s)`,
		d.Name, models.CauseDeathsTableName+models.StagingSuffix,
		strings.Join(models.ColumnsToNameList(models.CauseDeathsColumns), ", "))

	batch, err := d.PrepareBatch(ctx, query)
	if err != nil {
		return err
	}
	defer func() { _ = batch.Abort() }()

	for _, r := range records {
		if err := batch.Append(
			r.Entity,
			r.Code,
			r.Year,
			r.Cause,
			r.Deaths,
			r.CauseCategory,
			r.YoYChange,
			r.YoYPct,
			r.RollingAvg,
			r.RollingStd,
			r.AnomalyScore,
			r.IsAnomaly,
			r.Population,
			r.DeathsPer100k,
		); err != nil {
			return fmt.Errorf("append enriched record %s/%s/%d: %w", r.Entity, r.Cause, r.Year, err)
		}
	}

	return batch.Send()
}

// GetRecords reads enriched records from the production table, optionally
// filtered by entity, cause, and year range.
func (d *DB) GetRecords(ctx context.Context, filter db.RecordFilter) ([]*models.EnrichedRecord, error) {
	var (
		conds []string
		args  []interface{}
	)

	if filter.Entity != "" {
		conds = append(conds, "entity = ?")
		args = append(args, filter.Entity)
	}
	if filter.Cause != "" {
		conds = append(conds, "cause = ?")
		args = append(args, filter.Cause)
	}
	if filter.FromYear > 0 {
		conds = append(conds, "year >= ?")
		args = append(args, filter.FromYear)
	}
	if filter.ToYear > 0 {
		conds = append(conds, "year <= ?")
		args = append(args, filter.ToYear)
	}

	where := ""
	if len(conds) > 0 {
		where = "WHERE " + strings.Join(conds, " AND ")
	}

	limit := filter.Limit
	if limit <= 0 || limit > 10000 {
		limit = 10000
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM "%s"."%s"
		%s
		ORDER BY entity, cause, year
		LIMIT %d
	`, strings.Join(models.ColumnsToNameList(models.CauseDeathsColumns), ", "),
		d.Name, models.CauseDeathsTableName, where, limit)

	var records []*models.EnrichedRecord
	if err := d.Select(ctx, &records, query, args...); err != nil {
		return nil, fmt.Errorf("select records: %w", err)
	}

	return records, nil
}
