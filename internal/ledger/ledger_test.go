package ledger

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// openTestLedger creates a fresh on-disk ledger under a test tempdir.
func openTestLedger(t *testing.T) *Ledger {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	l, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l
}

func testSynthRun(id, createdAt, stack string) SynthRun {
	return SynthRun{
		ID:           id,
		CreatedAt:    createdAt,
		Stack:        stack,
		TemplateHash: "a1b2c3",
		OutDir:       "out",
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	first, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := Open(path)
	require.NoError(t, err)
	defer second.Close()

	var version int
	require.NoError(t, second.DB().QueryRow("PRAGMA user_version").Scan(&version))
	assert.Equal(t, currentSchemaVersion, version)
}

func TestWriteSynthRunIdempotent(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()

	run := testSynthRun("run-1", "2026-08-25T10:00:00Z", "ingest")
	require.NoError(t, l.WriteSynthRun(ctx, run))

	// second write with the same ID is silently ignored
	dup := run
	dup.Stack = "other"
	require.NoError(t, l.WriteSynthRun(ctx, dup))

	runs, err := l.SynthRuns(ctx, nil, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "ingest", runs[0].Stack)
}

func TestSynthRunsOrderingAndLimit(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()

	require.NoError(t, l.WriteSynthRun(ctx, testSynthRun("run-a", "2026-08-25T10:00:00Z", "ingest")))
	require.NoError(t, l.WriteSynthRun(ctx, testSynthRun("run-b", "2026-08-25T11:00:00Z", "ingest")))
	require.NoError(t, l.WriteSynthRun(ctx, testSynthRun("run-c", "2026-08-25T09:00:00Z", "edge")))

	runs, err := l.SynthRuns(ctx, nil, 0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	// newest first
	assert.Equal(t, "run-b", runs[0].ID)
	assert.Equal(t, "run-a", runs[1].ID)
	assert.Equal(t, "run-c", runs[2].ID)

	limited, err := l.SynthRuns(ctx, nil, 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, "run-b", limited[0].ID)
}

func TestSynthRunsTiebreakOnCreatedAt(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()

	// equal timestamps: ID ascending breaks the tie
	require.NoError(t, l.WriteSynthRun(ctx, testSynthRun("run-z", "2026-08-25T10:00:00Z", "ingest")))
	require.NoError(t, l.WriteSynthRun(ctx, testSynthRun("run-a", "2026-08-25T10:00:00Z", "ingest")))

	runs, err := l.SynthRuns(ctx, nil, 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-a", runs[0].ID)
	assert.Equal(t, "run-z", runs[1].ID)
}

func TestSynthRunsFilter(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()

	require.NoError(t, l.WriteSynthRun(ctx, testSynthRun("run-a", "2026-08-25T10:00:00Z", "ingest")))
	require.NoError(t, l.WriteSynthRun(ctx, testSynthRun("run-b", "2026-08-25T11:00:00Z", "edge")))

	runs, err := l.SynthRuns(ctx, Equals{Field: "stack", Value: "edge"}, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "run-b", runs[0].ID)

	runs, err = l.SynthRuns(ctx, And{Filters: []Filter{
		Equals{Field: "stack", Value: "ingest"},
		Equals{Field: "template_hash", Value: "a1b2c3"},
	}}, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "run-a", runs[0].ID)

	empty, err := l.SynthRuns(ctx, Equals{Field: "stack", Value: "missing"}, 0)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestFilterRejectsInvalidIdentifier(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()

	_, err := l.SynthRuns(ctx, Equals{Field: "stack; DROP TABLE synth_runs", Value: "x"}, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid column name")
}

func TestCompileFilter(t *testing.T) {
	tests := []struct {
		name       string
		f          Filter
		wantSQL    string
		wantParams []any
		wantErr    bool
	}{
		{name: "nil filter", f: nil, wantSQL: "", wantParams: nil},
		{
			name:       "equals",
			f:          Equals{Field: "status", Value: "failed"},
			wantSQL:    "status = ?",
			wantParams: []any{"failed"},
		},
		{
			name: "and of two",
			f: And{Filters: []Filter{
				Equals{Field: "status", Value: "failed"},
				Equals{Field: "grid_file", Value: "grid.hcl"},
			}},
			wantSQL:    "status = ? AND grid_file = ?",
			wantParams: []any{"failed", "grid.hcl"},
		},
		{name: "empty and", f: And{}, wantSQL: "", wantParams: nil},
		{name: "bad identifier", f: Equals{Field: "1bad"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, params, err := compileFilter(tt.f)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, sql)
			assert.Equal(t, tt.wantParams, params)
		})
	}
}

func TestMatrixRunLifecycle(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()

	run := MatrixRun{
		ID:        "mrun-1",
		CreatedAt: "2026-08-25T10:00:00Z",
		GridFile:  "matrix.hcl",
		Status:    StatusRunning,
	}
	require.NoError(t, l.WriteMatrixRun(ctx, run))
	require.NoError(t, l.FinishMatrixRun(ctx, "mrun-1", StatusFailed))

	runs, err := l.MatrixRuns(ctx, Equals{Field: "status", Value: StatusFailed}, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "mrun-1", runs[0].ID)

	err = l.FinishMatrixRun(ctx, "missing", StatusPassed)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no run")
}

func TestWriteMatrixCell(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()

	require.NoError(t, l.WriteMatrixRun(ctx, MatrixRun{
		ID:        "mrun-1",
		CreatedAt: "2026-08-25T10:00:00Z",
		GridFile:  "matrix.hcl",
		Status:    StatusRunning,
	}))

	cell := MatrixCell{
		RunID:      "mrun-1",
		Template:   "app",
		Toolchain:  "go1.24.5",
		Status:     StatusPassed,
		DurationMS: 1200,
	}
	id, inserted, err := l.WriteMatrixCell(ctx, cell)
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.Positive(t, id)

	// duplicate cell returns the existing ID
	again, inserted, err := l.WriteMatrixCell(ctx, cell)
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Equal(t, id, again)

	failed := MatrixCell{
		RunID:     "mrun-1",
		Template:  "app",
		Toolchain: "go1.25.0",
		Step:      "go vet",
		Status:    StatusFailed,
		ExitCode:  2,
		Output:    "vet: undeclared name\n",
	}
	_, inserted, err = l.WriteMatrixCell(ctx, failed)
	require.NoError(t, err)
	assert.True(t, inserted)

	cells, err := l.MatrixCells(ctx, "mrun-1")
	require.NoError(t, err)
	require.Len(t, cells, 2)
	assert.Equal(t, "go1.24.5", cells[0].Toolchain)
	assert.Equal(t, "go1.25.0", cells[1].Toolchain)
	assert.Equal(t, "go vet", cells[1].Step)
	assert.Equal(t, int64(2), cells[1].ExitCode)
	assert.Equal(t, "vet: undeclared name\n", cells[1].Output)
	assert.Empty(t, cells[0].Output)
}

func TestMatrixCellRequiresRun(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()

	_, _, err := l.WriteMatrixCell(ctx, MatrixCell{
		RunID:     "missing",
		Template:  "app",
		Toolchain: "go1.24.5",
		Status:    StatusPassed,
	})
	require.Error(t, err, "foreign key constraint must reject orphan cells")
}

func TestMatrixCellsEmpty(t *testing.T) {
	l := openTestLedger(t)

	cells, err := l.MatrixCells(context.Background(), "none")
	require.NoError(t, err)
	assert.NotNil(t, cells)
	assert.Empty(t, cells)
}

func TestFindMatrixCells(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()

	for _, id := range []string{"mrun-1", "mrun-2"} {
		require.NoError(t, l.WriteMatrixRun(ctx, MatrixRun{
			ID:        id,
			CreatedAt: "2026-08-25T10:00:00Z",
			GridFile:  "matrix.hcl",
			Status:    StatusPassed,
		}))
	}

	seed := []MatrixCell{
		{RunID: "mrun-1", Template: "app", Toolchain: "go1.24.5", Status: StatusPassed},
		{RunID: "mrun-1", Template: "app", Toolchain: "go1.25.0", Step: "go vet", Status: StatusFailed, ExitCode: 2},
		{RunID: "mrun-2", Template: "sample-app", Toolchain: "go1.24.5", Status: StatusPassed},
	}
	for _, c := range seed {
		_, _, err := l.WriteMatrixCell(ctx, c)
		require.NoError(t, err)
	}

	all, err := l.FindMatrixCells(ctx, nil, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	// newest insertion first
	assert.Equal(t, "sample-app", all[0].Template)
	assert.Equal(t, "go1.25.0", all[1].Toolchain)
	assert.Equal(t, "go1.24.5", all[2].Toolchain)

	failed, err := l.FindMatrixCells(ctx, And{Filters: []Filter{
		Equals{Field: "template", Value: "app"},
		Equals{Field: "status", Value: StatusFailed},
	}}, 0)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "mrun-1", failed[0].RunID)
	assert.Equal(t, "go1.25.0", failed[0].Toolchain)
	assert.Equal(t, "go vet", failed[0].Step)

	latest, err := l.FindMatrixCells(ctx, nil, 1)
	require.NoError(t, err)
	require.Len(t, latest, 1)
	assert.Equal(t, "mrun-2", latest[0].RunID)

	_, err = l.FindMatrixCells(ctx, Equals{Field: "run_id; DROP TABLE", Value: "x"}, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid column name")
}
