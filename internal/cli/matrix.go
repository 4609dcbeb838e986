package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/alluvium-dev/alluvium/internal/ledger"
	"github.com/alluvium-dev/alluvium/internal/matrix"
	"github.com/alluvium-dev/alluvium/internal/scaffold"
)

// MatrixOptions holds flags for the matrix command.
type MatrixOptions struct {
	*RootOptions
	GridFile   string
	WorkDir    string
	ReplaceDir string
	Timeout    time.Duration

	// Exec allows overriding step execution (for testing). If nil,
	// steps run as real child processes.
	Exec matrix.ExecFunc
}

// MatrixCellResult describes one executed cell.
type MatrixCellResult struct {
	Template   string `json:"template"`
	Toolchain  string `json:"toolchain"`
	Status     string `json:"status"`
	FailedStep string `json:"failed_step,omitempty"`
	ExitCode   int    `json:"exit_code,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

// MatrixResult holds the matrix run outcome.
type MatrixResult struct {
	RunID  string             `json:"run_id,omitempty"`
	Status string             `json:"status"`
	Cells  []MatrixCellResult `json:"cells"`
}

// NewMatrixCommand creates the matrix command.
func NewMatrixCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MatrixOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "matrix [grid.hcl] [template...]",
		Short: "Run the template version matrix",
		Long: `Scaffold every template against every Go toolchain in the grid and
run the verification sequence per cell: go mod tidy, go vet, go build,
go test, and (for synth templates) go run.

Cells run strictly sequentially, templates outer, toolchains inner.
The first failing step aborts the whole run; the failing cell is
recorded to the ledger before the run stops. Positional template names
narrow the grid.

Exit codes:
  0 - All cells passed
  1 - A step failed
  2 - Command error (bad grid file, scaffold failure)

Examples:
  alluvium matrix
  alluvium matrix grid.hcl
  alluvium matrix grid.hcl app sample-app
  alluvium matrix --db runs.db --replace $(pwd) --timeout 10m`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMatrix(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.GridFile, "grid", "", `grid file (default "grid.hcl")`)
	cmd.Flags().StringVar(&opts.WorkDir, "workdir", "", "cell work directory (default: temp dir, removed on success)")
	cmd.Flags().StringVar(&opts.ReplaceDir, "replace", "", "local library checkout for scaffolded replace directives")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 0, "per-step timeout (0 = none)")

	return cmd
}

func runMatrix(opts *MatrixOptions, args []string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	gridPath, templates := splitMatrixArgs(opts, args)

	grid, err := matrix.LoadGrid(gridPath)
	if err != nil {
		return outputMatrixError(formatter, ErrCodeGrid, err.Error())
	}
	grid, err = grid.Select(templates)
	if err != nil {
		return outputMatrixError(formatter, ErrCodeGrid, err.Error())
	}
	formatter.VerboseLog("Grid %s: %d template(s) x %d toolchain(s)",
		gridPath, len(grid.Templates), len(grid.Toolchains))

	workDir := opts.WorkDir
	ephemeral := false
	if workDir == "" {
		workDir, err = os.MkdirTemp("", "alluvium-matrix-")
		if err != nil {
			return outputMatrixError(formatter, ErrCodeGeneric, fmt.Sprintf("creating work directory: %v", err))
		}
		ephemeral = true
	}

	var led *ledger.Ledger
	if opts.Database != "" {
		led, err = ledger.Open(opts.Database)
		if err != nil {
			return outputMatrixError(formatter, ErrCodeDatabase, err.Error())
		}
		defer func() {
			if closeErr := led.Close(); closeErr != nil {
				opts.logger().Error("error closing ledger", "error", closeErr)
			}
		}()
	}

	runner, err := matrix.NewRunner(matrix.RunnerOptions{
		Grid:        grid,
		GridFile:    gridPath,
		WorkDir:     workDir,
		Scaffold:    scaffoldCell(opts.ReplaceDir),
		StepTimeout: opts.Timeout,
		Logger:      opts.logger(),
		Ledger:      led,
		Exec:        opts.Exec,
	})
	if err != nil {
		return outputMatrixError(formatter, ErrCodeGeneric, err.Error())
	}

	report, err := runner.Run(commandContext(cmd))

	var stepErr *matrix.StepError
	switch {
	case err == nil:
		if ephemeral {
			if rmErr := os.RemoveAll(workDir); rmErr != nil {
				opts.logger().Error("error removing work directory", "error", rmErr)
			}
		}
		return outputMatrixReport(formatter, toMatrixResult(report), nil)
	case errors.As(err, &stepErr):
		// Keep the work dir so the failing cell can be inspected.
		if ephemeral {
			formatter.VerboseLog("Work directory kept at %s", workDir)
		}
		return outputMatrixReport(formatter, toMatrixResult(report), stepErr)
	default:
		// Scaffold/spawn/ledger failures abort without a report.
		return outputMatrixError(formatter, ErrCodeGeneric, err.Error())
	}
}

// splitMatrixArgs resolves the grid file and template selection from
// the positional arguments. A first argument ending in .hcl names the
// grid file; every other argument is a template name.
func splitMatrixArgs(opts *MatrixOptions, args []string) (string, []string) {
	gridPath := opts.GridFile
	if len(args) > 0 && strings.HasSuffix(args[0], ".hcl") {
		gridPath = args[0]
		args = args[1:]
	}
	if gridPath == "" && opts.Config != nil {
		gridPath = opts.Config.Grid
	}
	if gridPath == "" {
		gridPath = "grid.hcl"
	}
	return gridPath, args
}

// scaffoldCell adapts the embedded scaffolder to the runner's cell
// contract. The cell module path is the template name.
func scaffoldCell(replaceDir string) matrix.ScaffoldFunc {
	return func(dir string, t matrix.Template) error {
		return scaffold.Scaffold(dir, scaffold.Params{
			Template:   t.Name,
			Module:     t.Name,
			ReplaceDir: replaceDir,
		})
	}
}

func toMatrixResult(report *matrix.Report) MatrixResult {
	result := MatrixResult{RunID: report.RunID, Status: report.Status}
	for _, cell := range report.Cells {
		result.Cells = append(result.Cells, MatrixCellResult{
			Template:   cell.Template,
			Toolchain:  cell.Toolchain,
			Status:     cell.Status,
			FailedStep: cell.FailedStep,
			ExitCode:   cell.ExitCode,
			DurationMS: cell.Duration.Milliseconds(),
		})
	}
	return result
}

// outputMatrixReport renders the run outcome. A non-nil stepErr means
// the run aborted on that step.
func outputMatrixReport(formatter *OutputFormatter, result MatrixResult, stepErr *matrix.StepError) error {
	if formatter.Format == "json" {
		response := CLIResponse{Status: "ok", Data: result}
		if stepErr != nil {
			response.Status = "error"
			response.Error = &CLIError{Code: ErrCodeStep, Message: stepErr.Error()}
		}

		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}

		if stepErr != nil {
			// Step failures = exit code 1
			return NewExitError(ExitFailure, stepErr.Error())
		}
		return nil
	}

	// Text format
	for _, cell := range result.Cells {
		mark := "✓"
		if cell.Status != ledger.StatusPassed {
			mark = "✗"
		}
		fmt.Fprintf(formatter.Writer, "%s %s/%s (%s)\n",
			mark, cell.Template, cell.Toolchain, time.Duration(cell.DurationMS)*time.Millisecond)
	}
	fmt.Fprintln(formatter.Writer)

	if stepErr != nil {
		fmt.Fprintf(formatter.Writer, "✗ Matrix failed at %s/%s: step %q exited %d\n",
			stepErr.Template, stepErr.Toolchain, stepErr.Step, stepErr.ExitCode)
		if stepErr.Output != "" {
			fmt.Fprintln(formatter.Writer)
			fmt.Fprintln(formatter.Writer, strings.TrimRight(stepErr.Output, "\n"))
		}
		// Step failures = exit code 1
		return NewExitError(ExitFailure, stepErr.Error())
	}

	fmt.Fprintf(formatter.Writer, "✓ Matrix passed: %d cell(s)", len(result.Cells))
	if result.RunID != "" {
		fmt.Fprintf(formatter.Writer, " (run %s)", result.RunID)
	}
	fmt.Fprintln(formatter.Writer)
	return nil
}

// outputMatrixError outputs a matrix infrastructure error.
func outputMatrixError(formatter *OutputFormatter, code, message string) error {
	_ = formatter.Error(code, message, nil)
	// Infrastructure errors are command-level errors (exit code 2)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}
