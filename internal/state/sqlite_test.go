package state

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/leapstack-labs/leaprun/internal/testutil"
	"github.com/leapstack-labs/leaprun/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store := NewSQLiteStore(testutil.NewTestLogger(t))
	require.NoError(t, store.Open(context.Background(), ":memory:"))
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func sampleSummary(id string, started time.Time) (*core.Summary, []core.LogEntry) {
	s := &core.Summary{
		RunID:              id,
		TotalModels:        3,
		TotalExecutionTime: 1500 * time.Millisecond,
		ExecutionOrder:     []string{"stg_orders", "int_orders", "fct_sales"},
		StartedAt:          started,
		PerModel: map[string]core.ModelResult{
			"stg_orders": {Status: core.StatusCompleted, Kind: core.KindDeclarative, ExecutionTime: 20 * time.Millisecond, Rows: 4},
			"int_orders": {Status: core.StatusFailed, Kind: core.KindDeclarative, Error: "ref(\"x\"): not declared", ErrorKind: core.ErrUnknownReference},
			"fct_sales":  {Status: core.StatusSkipped, Error: "upstream model int_orders failed"},
		},
	}
	s.Tally()
	logs := []core.LogEntry{
		{Time: started, Severity: core.SeverityInfo, Model: "stg_orders", Message: "started"},
		{Time: started.Add(time.Millisecond), Severity: core.SeveritySuccess, Model: "stg_orders", Message: "completed"},
		{Time: started.Add(2 * time.Millisecond), Severity: core.SeverityError, Model: "int_orders", Message: "boom"},
	}
	return s, logs
}

func TestSQLiteStore_MigrationVersion(t *testing.T) {
	store := setupTestStore(t)
	v, err := store.MigrationVersion(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 2, v)

	// Migrating again is a no-op.
	require.NoError(t, store.Migrate(context.Background()))
}

func TestSQLiteStore_RunRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	started := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	summary, logs := sampleSummary("run-1", started)
	require.NoError(t, store.SaveRun(ctx, "prod", summary, logs))

	run, err := store.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "prod", run.Environment)
	assert.Equal(t, RunStatusFailed, run.Status)
	assert.True(t, started.Equal(run.StartedAt))
	assert.Equal(t, 1500*time.Millisecond, run.Duration)
	assert.Equal(t, 3, run.TotalModels)
	assert.Equal(t, 1, run.Successes)
	assert.Equal(t, 1, run.Failures)
	assert.Equal(t, 1, run.Skipped)

	models, err := store.GetModelRuns(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, models, 3)
	assert.Equal(t, "stg_orders", models[0].Model)
	assert.Equal(t, "declarative", models[0].Kind)
	assert.EqualValues(t, 4, models[0].Rows)
	assert.Equal(t, core.StatusFailed, models[1].Status)
	assert.Equal(t, core.ErrUnknownReference, models[1].ErrorKind)
	assert.Equal(t, "fct_sales", models[2].Model)
	assert.Equal(t, 2, models[2].Position)

	gotLogs, err := store.GetRunLogs(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, gotLogs, 3)
	assert.Equal(t, core.SeverityError, gotLogs[2].Severity)
	assert.Equal(t, "boom", gotLogs[2].Message)
	assert.True(t, logs[1].Time.Equal(gotLogs[1].Time))
}

func TestSQLiteStore_GetRunNotFound(t *testing.T) {
	store := setupTestStore(t)
	_, err := store.GetRun(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestSQLiteStore_ListRuns(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		s, _ := sampleSummary(id, base.Add(time.Duration(i)*time.Hour))
		require.NoError(t, store.SaveRun(ctx, "dev", s, nil))
	}

	runs, err := store.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "c", runs[0].ID)
	assert.Equal(t, "b", runs[1].ID)

	all, err := store.ListRuns(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	n, err := store.DeleteRunsBefore(ctx, base.Add(90*time.Minute))
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	models, err := store.GetModelRuns(ctx, "a")
	require.NoError(t, err)
	assert.Empty(t, models, "model runs cascade with their run")
}

func TestSQLiteStore_SaveDuplicateRun(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	s, logs := sampleSummary("dup", time.Now())
	require.NoError(t, store.SaveRun(ctx, "dev", s, logs))
	require.Error(t, store.SaveRun(ctx, "dev", s, logs))

	gotLogs, err := store.GetRunLogs(ctx, "dup")
	require.NoError(t, err)
	assert.Len(t, gotLogs, 3)
}

func TestSQLiteStore_FileBacked(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.db")

	store := NewSQLiteStore(nil)
	require.NoError(t, store.Open(ctx, path))
	s, _ := sampleSummary("persisted", time.Now())
	require.NoError(t, store.SaveRun(ctx, "dev", s, nil))
	require.NoError(t, store.Close())

	reopened := NewSQLiteStore(nil)
	require.NoError(t, reopened.Open(ctx, path))
	defer func() { _ = reopened.Close() }()

	run, err := reopened.GetRun(ctx, "persisted")
	require.NoError(t, err)
	assert.Equal(t, "persisted", run.ID)
}

func TestSQLiteStore_NotOpened(t *testing.T) {
	store := NewSQLiteStore(nil)
	_, err := store.ListRuns(context.Background(), 1)
	assert.Error(t, err)
	assert.NoError(t, store.Close())
}

func TestSQLiteStore_SaveRunRollsBack(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	store := &SQLiteStore{db: db, logger: testutil.NewTestLogger(t)}
	s, _ := sampleSummary("r", time.Now())

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO runs").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO model_runs").WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err = store.SaveRun(context.Background(), "dev", s, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.NoError(t, mock.ExpectationsWereMet())
}
