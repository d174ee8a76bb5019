package mortality_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mortality-signals/signalsx/pkg/db/models/mortality"
)

func TestColumnDefSQL(t *testing.T) {
	col := mortality.ColumnDef{Name: "deaths", Type: "UInt64", Codec: "Delta, ZSTD(3)"}
	assert.Equal(t, "deaths UInt64 CODEC(Delta, ZSTD(3))", col.SQL())

	col = mortality.ColumnDef{Name: "year", Type: "UInt16"}
	assert.Equal(t, "year UInt16", col.SQL())
}

func TestColumnDefValidate(t *testing.T) {
	assert.Error(t, mortality.ColumnDef{Type: "UInt64"}.Validate())
	assert.Error(t, mortality.ColumnDef{Name: "deaths"}.Validate())
	assert.NoError(t, mortality.ColumnDef{Name: "deaths", Type: "UInt64"}.Validate())
}

// TestTableSchemas validates every declared output table schema, so a broken
// column definition fails here rather than at CREATE TABLE time.
func TestTableSchemas(t *testing.T) {
	schemas := map[string][]mortality.ColumnDef{
		mortality.CauseDeathsTableName:    mortality.CauseDeathsColumns,
		mortality.GlobalByYearTableName:   mortality.GlobalByYearColumns,
		mortality.EntityByYearTableName:   mortality.EntityByYearColumns,
		mortality.CauseByYearTableName:    mortality.CauseByYearColumns,
		mortality.TopAnomaliesTableName:   mortality.TopAnomaliesColumns,
		mortality.CauseMixSharesTableName: mortality.CauseMixSharesColumns,
	}

	for table, columns := range schemas {
		t.Run(table, func(t *testing.T) {
			require.NoError(t, mortality.ValidateColumns(columns))
			assert.NotEmpty(t, mortality.ColumnsToNameList(columns))
			assert.NotEmpty(t, mortality.ColumnsToSchemaSQL(columns))
		})
	}
}

// TestTopAnomaliesColumns checks the ranked feed carries the full enriched
// schema plus the rank.
func TestTopAnomaliesColumns(t *testing.T) {
	names := mortality.ColumnsToNameList(mortality.TopAnomaliesColumns)
	require.Equal(t, len(mortality.CauseDeathsColumns)+1, len(names))
	assert.Equal(t, "rank", names[0])
}
