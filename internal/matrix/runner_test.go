package matrix

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alluvium-dev/alluvium/internal/ledger"
	"github.com/alluvium-dev/alluvium/internal/testutil"
)

// execCall is one recorded command invocation.
type execCall struct {
	cell     string
	cmd      string
	env      []string
	deadline bool
}

// fakeExec records commands without spawning anything. Failures are
// declared per "<cell> <command>" key.
type fakeExec struct {
	calls    []execCall
	exitCode map[string]int
	spawnErr map[string]error
}

func (f *fakeExec) run(ctx context.Context, dir string, env []string, argv []string) (string, int, error) {
	c := execCall{cell: filepath.Base(dir), cmd: strings.Join(argv, " "), env: env}
	_, c.deadline = ctx.Deadline()
	f.calls = append(f.calls, c)

	key := c.cell + " " + c.cmd
	if err, ok := f.spawnErr[key]; ok {
		return "", -1, err
	}
	if code, ok := f.exitCode[key]; ok {
		return "output of " + key + "\n", code, nil
	}
	return "ok\n", 0, nil
}

func (f *fakeExec) commands() []string {
	var out []string
	for _, c := range f.calls {
		out = append(out, c.cell+" "+c.cmd)
	}
	return out
}

// fakeScaffold records which cell directories were materialized.
type fakeScaffold struct {
	cells []string
	err   error
}

func (f *fakeScaffold) scaffold(dir string, _ Template) error {
	f.cells = append(f.cells, filepath.Base(dir))
	return f.err
}

func testGrid() *Grid {
	return &Grid{
		Toolchains: []string{"go1.24.5", "go1.25.0"},
		Templates: []Template{
			{Name: "app"},
			{Name: "sample-app", Synth: true},
		},
	}
}

func newTestRunner(t *testing.T, grid *Grid, ex *fakeExec, sc *fakeScaffold, led *ledger.Ledger) *Runner {
	t.Helper()
	r, err := NewRunner(RunnerOptions{
		Grid:     grid,
		GridFile: "grid.hcl",
		WorkDir:  t.TempDir(),
		Scaffold: sc.scaffold,
		Ledger:   led,
		IDs:      testutil.NewFixedGenerator("run-1"),
		Clock:    testutil.NewFixedClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC), time.Second),
		Exec:     ex.run,
	})
	require.NoError(t, err)
	return r
}

func openTestLedger(t *testing.T) *ledger.Ledger {
	t.Helper()
	led, err := ledger.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = led.Close() })
	return led
}

func TestStepsFor(t *testing.T) {
	plain := stepsFor(Template{Name: "lib"})
	require.Len(t, plain, 4)
	assert.Equal(t, "go test", plain[len(plain)-1].Name)

	synth := stepsFor(Template{Name: "app", Synth: true})
	require.Len(t, synth, 5)
	assert.Equal(t, Step{Name: "go run", Argv: []string{"go", "run", "."}}, synth[4])
}

func TestNewRunnerValidation(t *testing.T) {
	scaffold := func(string, Template) error { return nil }

	tests := []struct {
		name    string
		opts    RunnerOptions
		wantErr string
	}{
		{
			name:    "missing grid",
			opts:    RunnerOptions{WorkDir: "w", Scaffold: scaffold},
			wantErr: "Grid is required",
		},
		{
			name:    "missing workdir",
			opts:    RunnerOptions{Grid: testGrid(), Scaffold: scaffold},
			wantErr: "WorkDir is required",
		},
		{
			name:    "missing scaffold",
			opts:    RunnerOptions{Grid: testGrid(), WorkDir: "w"},
			wantErr: "Scaffold is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRunner(tt.opts)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRunAllCellsPass(t *testing.T) {
	ex := &fakeExec{}
	sc := &fakeScaffold{}
	r := newTestRunner(t, testGrid(), ex, sc, nil)

	report, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "run-1", report.RunID)
	assert.Equal(t, ledger.StatusPassed, report.Status)

	// Templates outer, toolchains inner, both in grid order.
	assert.Equal(t, []string{
		"app-go1.24.5", "app-go1.25.0",
		"sample-app-go1.24.5", "sample-app-go1.25.0",
	}, sc.cells)

	var cells []string
	for _, c := range report.Cells {
		assert.Equal(t, ledger.StatusPassed, c.Status)
		cells = append(cells, c.Template+"/"+c.Toolchain)
	}
	assert.Equal(t, []string{
		"app/go1.24.5", "app/go1.25.0",
		"sample-app/go1.24.5", "sample-app/go1.25.0",
	}, cells)
}

func TestRunStepsPerCell(t *testing.T) {
	ex := &fakeExec{}
	sc := &fakeScaffold{}
	grid := &Grid{
		Toolchains: []string{"go1.25.0"},
		Templates:  []Template{{Name: "app"}, {Name: "sample-app", Synth: true}},
	}
	r := newTestRunner(t, grid, ex, sc, nil)

	_, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{
		"app-go1.25.0 go mod tidy",
		"app-go1.25.0 go vet ./...",
		"app-go1.25.0 go build ./...",
		"app-go1.25.0 go test ./...",
		"sample-app-go1.25.0 go mod tidy",
		"sample-app-go1.25.0 go vet ./...",
		"sample-app-go1.25.0 go build ./...",
		"sample-app-go1.25.0 go test ./...",
		"sample-app-go1.25.0 go run .",
	}, ex.commands())
}

func TestRunPinsToolchain(t *testing.T) {
	ex := &fakeExec{}
	sc := &fakeScaffold{}
	r := newTestRunner(t, testGrid(), ex, sc, nil)

	_, err := r.Run(context.Background())
	require.NoError(t, err)

	wantEnv := map[string]string{
		"app-go1.24.5":        "GOTOOLCHAIN=go1.24.5",
		"app-go1.25.0":        "GOTOOLCHAIN=go1.25.0",
		"sample-app-go1.24.5": "GOTOOLCHAIN=go1.24.5",
		"sample-app-go1.25.0": "GOTOOLCHAIN=go1.25.0",
	}
	require.NotEmpty(t, ex.calls)
	for _, c := range ex.calls {
		assert.Contains(t, c.env, wantEnv[c.cell], "cell %s", c.cell)
	}
}

func TestRunAbortsOnFirstFailure(t *testing.T) {
	ex := &fakeExec{
		exitCode: map[string]int{"app-go1.25.0 go vet ./...": 2},
	}
	sc := &fakeScaffold{}
	r := newTestRunner(t, testGrid(), ex, sc, nil)

	report, err := r.Run(context.Background())
	require.Error(t, err)

	var stepErr *StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, "app", stepErr.Template)
	assert.Equal(t, "go1.25.0", stepErr.Toolchain)
	assert.Equal(t, "go vet", stepErr.Step)
	assert.Equal(t, 2, stepErr.ExitCode)
	assert.Contains(t, stepErr.Output, "go vet")
	assert.Equal(t, `cell app/go1.25.0: step "go vet" exited 2`, stepErr.Error())

	require.NotNil(t, report)
	assert.Equal(t, ledger.StatusFailed, report.Status)
	require.Len(t, report.Cells, 2)
	assert.Equal(t, ledger.StatusPassed, report.Cells[0].Status)
	assert.Equal(t, ledger.StatusFailed, report.Cells[1].Status)
	assert.Equal(t, "go vet", report.Cells[1].FailedStep)
	assert.Equal(t, 2, report.Cells[1].ExitCode)
	assert.Equal(t, stepErr.Output, report.Cells[1].Output)

	// Nothing after the failing step ran: no later step in the failing
	// cell, no later cell scaffolded.
	assert.Equal(t, []string{"app-go1.24.5", "app-go1.25.0"}, sc.cells)
	last := ex.calls[len(ex.calls)-1]
	assert.Equal(t, "app-go1.25.0 go vet ./...", last.cell+" "+last.cmd)
}

func TestRunRecordsLedger(t *testing.T) {
	led := openTestLedger(t)
	ex := &fakeExec{
		exitCode: map[string]int{"app-go1.25.0 go test ./...": 1},
	}
	sc := &fakeScaffold{}
	r := newTestRunner(t, testGrid(), ex, sc, led)

	ctx := context.Background()
	_, err := r.Run(ctx)
	require.Error(t, err)

	runs, err := led.MatrixRuns(ctx, nil, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "run-1", runs[0].ID)
	assert.Equal(t, "grid.hcl", runs[0].GridFile)
	assert.Equal(t, ledger.StatusFailed, runs[0].Status)
	assert.Equal(t, "2025-06-01T12:00:00Z", runs[0].CreatedAt)

	cells, err := led.MatrixCells(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, cells, 2)

	assert.Equal(t, "app", cells[0].Template)
	assert.Equal(t, "go1.24.5", cells[0].Toolchain)
	assert.Equal(t, ledger.StatusPassed, cells[0].Status)
	assert.Equal(t, "", cells[0].Step)
	assert.Equal(t, int64(0), cells[0].ExitCode)
	assert.Equal(t, int64(1000), cells[0].DurationMS)

	assert.Equal(t, "app", cells[1].Template)
	assert.Equal(t, "go1.25.0", cells[1].Toolchain)
	assert.Equal(t, ledger.StatusFailed, cells[1].Status)
	assert.Equal(t, "go test", cells[1].Step)
	assert.Equal(t, int64(1), cells[1].ExitCode)
	assert.Contains(t, cells[1].Output, "go test")
	assert.Equal(t, int64(1000), cells[1].DurationMS)
}

func TestRunStepTimeout(t *testing.T) {
	ex := &fakeExec{}
	sc := &fakeScaffold{}
	r, err := NewRunner(RunnerOptions{
		Grid:        testGrid(),
		WorkDir:     t.TempDir(),
		Scaffold:    sc.scaffold,
		StepTimeout: time.Minute,
		IDs:         testutil.NewFixedGenerator("run-1"),
		Clock:       testutil.NewFixedClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC), time.Second),
		Exec:        ex.run,
	})
	require.NoError(t, err)

	_, err = r.Run(context.Background())
	require.NoError(t, err)

	require.NotEmpty(t, ex.calls)
	for _, c := range ex.calls {
		assert.True(t, c.deadline, "step %s %s must carry a deadline", c.cell, c.cmd)
	}
}

func TestRunFinishesLedgerPassed(t *testing.T) {
	led := openTestLedger(t)
	r := newTestRunner(t, testGrid(), &fakeExec{}, &fakeScaffold{}, led)

	ctx := context.Background()
	report, err := r.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusPassed, report.Status)

	runs, err := led.MatrixRuns(ctx, ledger.Equals{Field: "id", Value: "run-1"}, 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, ledger.StatusPassed, runs[0].Status)

	cells, err := led.MatrixCells(ctx, "run-1")
	require.NoError(t, err)
	assert.Len(t, cells, 4)
}

func TestRunScaffoldFailure(t *testing.T) {
	sc := &fakeScaffold{err: errors.New("disk full")}
	r := newTestRunner(t, testGrid(), &fakeExec{}, sc, nil)

	report, err := r.Run(context.Background())
	require.Error(t, err)
	assert.Nil(t, report)
	assert.Contains(t, err.Error(), "scaffold cell app/go1.24.5")
	assert.Contains(t, err.Error(), "disk full")

	var stepErr *StepError
	assert.False(t, errors.As(err, &stepErr))
}

func TestRunSpawnFailure(t *testing.T) {
	ex := &fakeExec{
		spawnErr: map[string]error{"app-go1.24.5 go mod tidy": errors.New("exec: \"go\": not found")},
	}
	r := newTestRunner(t, testGrid(), ex, &fakeScaffold{}, nil)

	report, err := r.Run(context.Background())
	require.Error(t, err)
	assert.Nil(t, report)
	assert.Contains(t, err.Error(), `step "go mod tidy"`)
	assert.Contains(t, err.Error(), "not found")

	var stepErr *StepError
	assert.False(t, errors.As(err, &stepErr))
}
