package matrix

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/alluvium-dev/alluvium/internal/ledger"
	"github.com/alluvium-dev/alluvium/internal/runid"
)

// Step is one external command of a cell.
type Step struct {
	Name string
	Argv []string
}

// stepsFor returns the fixed step list for a template. Synth templates
// additionally run the scaffolded app so a broken synthesis fails the
// cell, not just a broken build.
func stepsFor(t Template) []Step {
	steps := []Step{
		{Name: "go mod tidy", Argv: []string{"go", "mod", "tidy"}},
		{Name: "go vet", Argv: []string{"go", "vet", "./..."}},
		{Name: "go build", Argv: []string{"go", "build", "./..."}},
		{Name: "go test", Argv: []string{"go", "test", "./..."}},
	}
	if t.Synth {
		steps = append(steps, Step{Name: "go run", Argv: []string{"go", "run", "."}})
	}
	return steps
}

// StepError reports the first failing step of a run. The whole matrix
// aborts on it: later cells are not attempted.
type StepError struct {
	Template  string
	Toolchain string
	Step      string
	ExitCode  int
	Output    string
}

// Error implements the error interface.
func (e *StepError) Error() string {
	return fmt.Sprintf("cell %s/%s: step %q exited %d",
		e.Template, e.Toolchain, e.Step, e.ExitCode)
}

// ExecFunc runs one command in dir with the given environment and
// returns its combined output and exit code. A non-nil error means the
// command could not be run at all; a failing command is (output, code,
// nil).
type ExecFunc func(ctx context.Context, dir string, env []string, argv []string) (string, int, error)

// ScaffoldFunc materializes a template into dir before its steps run.
type ScaffoldFunc func(dir string, template Template) error

// RunnerOptions configures a Runner. Grid, WorkDir, and Scaffold are
// required; everything else has production defaults. StepTimeout zero
// means no per-step deadline.
type RunnerOptions struct {
	Grid        *Grid
	GridFile    string
	WorkDir     string
	Scaffold    ScaffoldFunc
	StepTimeout time.Duration

	Logger *slog.Logger
	Ledger *ledger.Ledger
	IDs    runid.Generator
	Clock  runid.Clock
	Exec   ExecFunc
}

// Runner executes a grid cell by cell.
type Runner struct {
	grid        *Grid
	gridFile    string
	workDir     string
	scaffold    ScaffoldFunc
	stepTimeout time.Duration

	logger *slog.Logger
	led    *ledger.Ledger
	ids    runid.Generator
	clock  runid.Clock
	exec   ExecFunc
}

// NewRunner validates options and applies defaults.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if opts.Grid == nil {
		return nil, fmt.Errorf("matrix runner: Grid is required")
	}
	if opts.WorkDir == "" {
		return nil, fmt.Errorf("matrix runner: WorkDir is required")
	}
	if opts.Scaffold == nil {
		return nil, fmt.Errorf("matrix runner: Scaffold is required")
	}

	r := &Runner{
		grid:        opts.Grid,
		gridFile:    opts.GridFile,
		workDir:     opts.WorkDir,
		scaffold:    opts.Scaffold,
		stepTimeout: opts.StepTimeout,
		logger:      opts.Logger,
		led:         opts.Ledger,
		ids:         opts.IDs,
		clock:       opts.Clock,
		exec:        opts.Exec,
	}
	if r.logger == nil {
		r.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if r.ids == nil {
		r.ids = runid.UUIDv7Generator{}
	}
	if r.clock == nil {
		r.clock = runid.SystemClock{}
	}
	if r.exec == nil {
		r.exec = execCommand
	}
	return r, nil
}

// CellResult is the outcome of one (template, toolchain) cell. Output
// holds the failing step's combined output and is empty for passed
// cells.
type CellResult struct {
	Template   string
	Toolchain  string
	Status     string
	FailedStep string
	ExitCode   int
	Output     string
	Duration   time.Duration
}

// Report is the outcome of a whole run. On a failed run, Cells holds
// every cell up to and including the failing one.
type Report struct {
	RunID  string
	Status string
	Cells  []CellResult
}

// Run executes every cell sequentially: templates in grid order, each
// against every toolchain in grid order. The first failing step aborts
// the whole run and is returned as a *StepError alongside the partial
// report. Infrastructure failures (scaffold, spawn, ledger) abort with
// a plain error and no report.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	runID := r.ids.Generate()
	report := &Report{RunID: runID, Status: ledger.StatusPassed}

	if r.led != nil {
		err := r.led.WriteMatrixRun(ctx, ledger.MatrixRun{
			ID:        runID,
			CreatedAt: r.clock.Now().Format(time.RFC3339),
			GridFile:  r.gridFile,
			Status:    ledger.StatusRunning,
		})
		if err != nil {
			return nil, err
		}
	}

	var failure *StepError
cells:
	for _, tmpl := range r.grid.Templates {
		for _, toolchain := range r.grid.Toolchains {
			result, stepErr, err := r.runCell(ctx, tmpl, toolchain)
			if err != nil {
				return nil, err
			}

			report.Cells = append(report.Cells, result)
			if r.led != nil {
				_, _, err := r.led.WriteMatrixCell(ctx, ledger.MatrixCell{
					RunID:      runID,
					Template:   result.Template,
					Toolchain:  result.Toolchain,
					Step:       result.FailedStep,
					Status:     result.Status,
					ExitCode:   int64(result.ExitCode),
					Output:     result.Output,
					DurationMS: result.Duration.Milliseconds(),
				})
				if err != nil {
					return nil, err
				}
			}

			if stepErr != nil {
				failure = stepErr
				break cells
			}
		}
	}

	if failure != nil {
		report.Status = ledger.StatusFailed
	}
	if r.led != nil {
		if err := r.led.FinishMatrixRun(ctx, runID, report.Status); err != nil {
			return nil, err
		}
	}
	if failure != nil {
		return report, failure
	}
	return report, nil
}

// runCell scaffolds the cell directory and runs its steps with the
// cell's toolchain pinned via GOTOOLCHAIN.
func (r *Runner) runCell(ctx context.Context, tmpl Template, toolchain string) (CellResult, *StepError, error) {
	start := r.clock.Now()
	dir := filepath.Join(r.workDir, tmpl.Name+"-"+toolchain)

	logger := r.logger.With("template", tmpl.Name, "toolchain", toolchain)
	logger.Info("cell started", "dir", dir)

	if err := r.scaffold(dir, tmpl); err != nil {
		return CellResult{}, nil, fmt.Errorf("scaffold cell %s/%s: %w", tmpl.Name, toolchain, err)
	}

	env := append(os.Environ(), "GOTOOLCHAIN="+toolchain)
	for _, step := range stepsFor(tmpl) {
		logger.Debug("step started", "step", step.Name)
		output, code, err := r.runStep(ctx, dir, env, step)
		if err != nil {
			return CellResult{}, nil, fmt.Errorf("cell %s/%s: step %q: %w",
				tmpl.Name, toolchain, step.Name, err)
		}
		if code != 0 {
			logger.Error("step failed", "step", step.Name, "exit_code", code)
			result := CellResult{
				Template:   tmpl.Name,
				Toolchain:  toolchain,
				Status:     ledger.StatusFailed,
				FailedStep: step.Name,
				ExitCode:   code,
				Output:     output,
				Duration:   r.clock.Now().Sub(start),
			}
			return result, &StepError{
				Template:  tmpl.Name,
				Toolchain: toolchain,
				Step:      step.Name,
				ExitCode:  code,
				Output:    output,
			}, nil
		}
	}

	result := CellResult{
		Template:  tmpl.Name,
		Toolchain: toolchain,
		Status:    ledger.StatusPassed,
		Duration:  r.clock.Now().Sub(start),
	}
	logger.Info("cell passed", "duration", result.Duration)
	return result, nil, nil
}

// runStep applies the per-step deadline, if any, around one exec call.
func (r *Runner) runStep(ctx context.Context, dir string, env []string, step Step) (string, int, error) {
	if r.stepTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.stepTimeout)
		defer cancel()
	}
	return r.exec(ctx, dir, env, step.Argv)
}

// execCommand is the production ExecFunc: it spawns the command with
// combined output capture and translates a nonzero exit into a code
// instead of an error.
func execCommand(ctx context.Context, dir string, env []string, argv []string) (string, int, error) {
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = dir
	cmd.Env = env

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return out.String(), exitErr.ExitCode(), nil
		}
		return out.String(), -1, err
	}
	return out.String(), 0, nil
}
