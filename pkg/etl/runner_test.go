package etl_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/mortality-signals/signalsx/pkg/db"
	models "github.com/mortality-signals/signalsx/pkg/db/models/mortality"
	"github.com/mortality-signals/signalsx/pkg/etl"
	"github.com/mortality-signals/signalsx/pkg/population"
)

// MockStore is a mock implementation of db.Store for testing
type MockStore struct {
	mock.Mock
}

func (m *MockStore) DatabaseName() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockStore) InitializeDB(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockStore) Health(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockStore) Close() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockStore) TruncateStaging(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockStore) InsertEnrichedRecords(ctx context.Context, records []*models.EnrichedRecord) error {
	args := m.Called(ctx, records)
	return args.Error(0)
}

func (m *MockStore) InsertGlobalByYear(ctx context.Context, rows []*models.GlobalYearTotal) error {
	args := m.Called(ctx, rows)
	return args.Error(0)
}

func (m *MockStore) InsertEntityByYear(ctx context.Context, rows []*models.EntityYearTotal) error {
	args := m.Called(ctx, rows)
	return args.Error(0)
}

func (m *MockStore) InsertCauseByYear(ctx context.Context, rows []*models.CauseYearTotal) error {
	args := m.Called(ctx, rows)
	return args.Error(0)
}

func (m *MockStore) InsertTopAnomalies(ctx context.Context, rows []*models.TopAnomaly) error {
	args := m.Called(ctx, rows)
	return args.Error(0)
}

func (m *MockStore) InsertCauseMixShares(ctx context.Context, rows []*models.CauseMixShare) error {
	args := m.Called(ctx, rows)
	return args.Error(0)
}

func (m *MockStore) PromoteRun(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockStore) GetRecords(ctx context.Context, filter db.RecordFilter) ([]*models.EnrichedRecord, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.EnrichedRecord), args.Error(1)
}

func (m *MockStore) GetGlobalByYear(ctx context.Context) ([]*models.GlobalYearTotal, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.GlobalYearTotal), args.Error(1)
}

func (m *MockStore) GetEntityByYear(ctx context.Context, entity string) ([]*models.EntityYearTotal, error) {
	args := m.Called(ctx, entity)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.EntityYearTotal), args.Error(1)
}

func (m *MockStore) GetCauseByYear(ctx context.Context, cause string) ([]*models.CauseYearTotal, error) {
	args := m.Called(ctx, cause)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.CauseYearTotal), args.Error(1)
}

func (m *MockStore) GetTopAnomalies(ctx context.Context, limit int) ([]*models.TopAnomaly, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.TopAnomaly), args.Error(1)
}

func (m *MockStore) GetCauseMixShares(ctx context.Context, entity string) ([]*models.CauseMixShare, error) {
	args := m.Called(ctx, entity)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.CauseMixShare), args.Error(1)
}

// fakeProvider serves canned population figures.
type fakeProvider struct {
	figures population.Figures
	err     error
}

func (f *fakeProvider) Populations(_ context.Context, _, _ uint16) (population.Figures, error) {
	return f.figures, f.err
}

func writeTempCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const runnerInput = "Entity,Code,Year," +
	"Deaths - Meningitis - Sex: Both (Number)," +
	"Deaths - Road injuries - Sex: Both (Number)\n" +
	"Afghanistan,AFG,2016,100,40\n" +
	"Afghanistan,AFG,2017,120,45\n"

// expectStagingWrites registers the staging expectations and captures the
// enriched records handed to the store.
func expectStagingWrites(store *MockStore, inserted *[]*models.EnrichedRecord) {
	store.On("InitializeDB", mock.Anything).Return(nil)
	store.On("TruncateStaging", mock.Anything).Return(nil)
	store.On("InsertEnrichedRecords", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		if inserted != nil {
			*inserted = args.Get(1).([]*models.EnrichedRecord)
		}
	}).Return(nil)
	store.On("InsertGlobalByYear", mock.Anything, mock.Anything).Return(nil)
	store.On("InsertEntityByYear", mock.Anything, mock.Anything).Return(nil)
	store.On("InsertCauseByYear", mock.Anything, mock.Anything).Return(nil)
	store.On("InsertTopAnomalies", mock.Anything, mock.Anything).Return(nil)
	store.On("InsertCauseMixShares", mock.Anything, mock.Anything).Return(nil)
}

// TestRunner_Run tests the happy path: normalize, metrics, aggregate,
// staging writes, promote, summary.
func TestRunner_Run(t *testing.T) {
	store := &MockStore{}
	var inserted []*models.EnrichedRecord
	expectStagingWrites(store, &inserted)
	store.On("PromoteRun", mock.Anything).Return(nil)

	runner := &etl.Runner{Logger: zaptest.NewLogger(t), Store: store}
	summary, err := runner.Run(context.Background(), etl.Config{
		InputPath: writeTempCSV(t, runnerInput),
	})
	require.NoError(t, err)

	assert.NotEmpty(t, summary.RunID)
	assert.Equal(t, 2, summary.InputRows)
	assert.Equal(t, 2, summary.CauseColumns)
	assert.Equal(t, 4, summary.Records)
	assert.Equal(t, 1, summary.Entities)
	assert.Equal(t, 2, summary.Causes)
	assert.Equal(t, uint16(2016), summary.FirstYear)
	assert.Equal(t, uint16(2017), summary.LatestYear)
	assert.False(t, summary.PopulationEnriched)

	require.Len(t, inserted, 4)
	store.AssertExpectations(t)
	store.AssertNumberOfCalls(t, "PromoteRun", 1)
}

// TestRunner_Run_InsertFailure tests that a failed staging write aborts the
// run without promoting.
func TestRunner_Run_InsertFailure(t *testing.T) {
	store := &MockStore{}
	store.On("InitializeDB", mock.Anything).Return(nil)
	store.On("TruncateStaging", mock.Anything).Return(nil)
	store.On("InsertEnrichedRecords", mock.Anything, mock.Anything).Return(errors.New("connection reset"))

	runner := &etl.Runner{Logger: zaptest.NewLogger(t), Store: store}
	_, err := runner.Run(context.Background(), etl.Config{
		InputPath: writeTempCSV(t, runnerInput),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert enriched records")

	store.AssertNotCalled(t, "PromoteRun", mock.Anything)
}

// TestRunner_Run_SchemaError tests that a malformed input fails the run
// before the store is touched.
func TestRunner_Run_SchemaError(t *testing.T) {
	store := &MockStore{}

	runner := &etl.Runner{Logger: zaptest.NewLogger(t), Store: store}
	_, err := runner.Run(context.Background(), etl.Config{
		InputPath: writeTempCSV(t, "Entity,Code,Year\nA,AAA,2016\n"),
	})
	require.Error(t, err)

	var schemaErr *etl.SchemaError
	assert.ErrorAs(t, err, &schemaErr)
	store.AssertNotCalled(t, "InitializeDB", mock.Anything)
}

// TestRunner_Run_PopulationEnrichment tests the optional World Bank join and
// the deaths-per-100k derivation.
func TestRunner_Run_PopulationEnrichment(t *testing.T) {
	store := &MockStore{}
	var inserted []*models.EnrichedRecord
	expectStagingWrites(store, &inserted)
	store.On("PromoteRun", mock.Anything).Return(nil)

	provider := &fakeProvider{figures: population.Figures{
		{Code: "AFG", Year: 2016}: 1_000_000,
		{Code: "AFG", Year: 2017}: 1_100_000,
	}}

	runner := &etl.Runner{Logger: zaptest.NewLogger(t), Store: store, Population: provider}
	summary, err := runner.Run(context.Background(), etl.Config{
		InputPath:        writeTempCSV(t, runnerInput),
		EnrichPopulation: true,
	})
	require.NoError(t, err)

	assert.True(t, summary.PopulationEnriched)
	assert.Equal(t, 0, summary.MissingPopulation)

	require.Len(t, inserted, 4)
	first := inserted[0]
	require.NotNil(t, first.Population)
	assert.Equal(t, uint64(1_000_000), *first.Population)
	require.NotNil(t, first.DeathsPer100k)
	assert.InDelta(t, 10.0, *first.DeathsPer100k, 1e-9) // 100 deaths / 1M people
}

// TestRunner_Run_PopulationMissingFigures tests that records without a figure
// keep absent population fields and are counted.
func TestRunner_Run_PopulationMissingFigures(t *testing.T) {
	store := &MockStore{}
	expectStagingWrites(store, nil)
	store.On("PromoteRun", mock.Anything).Return(nil)

	provider := &fakeProvider{figures: population.Figures{
		{Code: "AFG", Year: 2016}: 1_000_000,
	}}

	runner := &etl.Runner{Logger: zaptest.NewLogger(t), Store: store, Population: provider}
	summary, err := runner.Run(context.Background(), etl.Config{
		InputPath:        writeTempCSV(t, runnerInput),
		EnrichPopulation: true,
	})
	require.NoError(t, err)

	// The two 2017 records have no figure
	assert.Equal(t, 2, summary.MissingPopulation)
}

// TestRunner_Run_PopulationProviderRequired tests that enabling enrichment
// without a provider is a configuration error.
func TestRunner_Run_PopulationProviderRequired(t *testing.T) {
	store := &MockStore{}

	runner := &etl.Runner{Logger: zaptest.NewLogger(t), Store: store}
	_, err := runner.Run(context.Background(), etl.Config{
		InputPath:        writeTempCSV(t, runnerInput),
		EnrichPopulation: true,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no provider")
	store.AssertNotCalled(t, "PromoteRun", mock.Anything)
}
