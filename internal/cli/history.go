package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/alluvium-dev/alluvium/internal/ledger"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Run       string
	Template  string
	Toolchain string
	Status    string
	Stack     string
	Synth     bool
	Limit     int
}

// historyRun is the JSON shape of a recorded matrix run.
type historyRun struct {
	ID        string `json:"id"`
	CreatedAt string `json:"created_at"`
	GridFile  string `json:"grid_file"`
	Status    string `json:"status"`
}

// historyCell is the JSON shape of a recorded matrix cell.
type historyCell struct {
	RunID      string `json:"run_id"`
	Template   string `json:"template"`
	Toolchain  string `json:"toolchain"`
	Status     string `json:"status"`
	Step       string `json:"step,omitempty"`
	ExitCode   int64  `json:"exit_code,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

// historySynth is the JSON shape of a recorded synthesis.
type historySynth struct {
	ID           string `json:"id"`
	CreatedAt    string `json:"created_at"`
	Stack        string `json:"stack"`
	TemplateHash string `json:"template_hash"`
	OutDir       string `json:"out_dir"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Query the run ledger",
		Long: `List recorded matrix runs, matrix cells, or syntheses from the run
ledger, newest first.

By default lists matrix runs. --run lists one run's cells in execution
order. --template (optionally with --toolchain or --status) lists
matching cells across runs. --synth lists recorded syntheses.

Examples:
  alluvium history --db runs.db
  alluvium history --db runs.db --status failed
  alluvium history --db runs.db --run 01936bdc-6b21-7d3e-...
  alluvium history --db runs.db --template app --status failed
  alluvium history --db runs.db --synth --stack Ingest`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Run, "run", "", "list the cells of this run")
	cmd.Flags().StringVar(&opts.Template, "template", "", "filter cells by template")
	cmd.Flags().StringVar(&opts.Toolchain, "toolchain", "", "filter cells by toolchain")
	cmd.Flags().StringVar(&opts.Status, "status", "", "filter by status (passed|failed|running)")
	cmd.Flags().StringVar(&opts.Stack, "stack", "", "filter syntheses by stack")
	cmd.Flags().BoolVar(&opts.Synth, "synth", false, "list syntheses instead of matrix runs")
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "maximum rows")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	if opts.Database == "" {
		return outputHistoryError(formatter, "no database configured: pass --db or set database in alluvium.yaml")
	}
	// Open would create an empty database here; history never should.
	if _, err := os.Stat(opts.Database); os.IsNotExist(err) {
		return outputHistoryError(formatter, fmt.Sprintf("database not found: %s", opts.Database))
	}

	led, err := ledger.Open(opts.Database)
	if err != nil {
		return outputHistoryError(formatter, err.Error())
	}
	defer func() {
		if closeErr := led.Close(); closeErr != nil {
			opts.logger().Error("error closing ledger", "error", closeErr)
		}
	}()

	ctx := commandContext(cmd)

	switch {
	case opts.Synth:
		return historySynths(ctx, opts, formatter, led)
	case opts.Run != "":
		return historyRunCells(ctx, opts, formatter, led)
	case opts.Template != "" || opts.Toolchain != "":
		return historyFindCells(ctx, opts, formatter, led)
	default:
		return historyRuns(ctx, opts, formatter, led)
	}
}

func historyRuns(ctx context.Context, opts *HistoryOptions, formatter *OutputFormatter, led *ledger.Ledger) error {
	var f ledger.Filter
	if opts.Status != "" {
		f = ledger.Equals{Field: "status", Value: opts.Status}
	}

	runs, err := led.MatrixRuns(ctx, f, opts.Limit)
	if err != nil {
		return outputHistoryError(formatter, err.Error())
	}

	rows := make([]historyRun, 0, len(runs))
	for _, run := range runs {
		rows = append(rows, historyRun{
			ID:        run.ID,
			CreatedAt: run.CreatedAt,
			GridFile:  run.GridFile,
			Status:    run.Status,
		})
	}

	if formatter.Format == "json" {
		return formatter.Success(rows)
	}

	if len(rows) == 0 {
		fmt.Fprintln(formatter.Writer, "No matrix runs recorded.")
		return nil
	}
	for _, row := range rows {
		fmt.Fprintf(formatter.Writer, "%s  %s  %-7s  %s\n",
			row.ID, row.CreatedAt, row.Status, row.GridFile)
	}
	return nil
}

func historyRunCells(ctx context.Context, opts *HistoryOptions, formatter *OutputFormatter, led *ledger.Ledger) error {
	cells, err := led.MatrixCells(ctx, opts.Run)
	if err != nil {
		return outputHistoryError(formatter, err.Error())
	}

	rows := toHistoryCells(cells)

	if formatter.Format == "json" {
		return formatter.Success(rows)
	}

	if len(rows) == 0 {
		fmt.Fprintf(formatter.Writer, "No cells recorded for run %s.\n", opts.Run)
		return nil
	}
	writeCellRows(formatter, rows, false)
	return nil
}

func historyFindCells(ctx context.Context, opts *HistoryOptions, formatter *OutputFormatter, led *ledger.Ledger) error {
	var members []ledger.Filter
	if opts.Template != "" {
		members = append(members, ledger.Equals{Field: "template", Value: opts.Template})
	}
	if opts.Toolchain != "" {
		members = append(members, ledger.Equals{Field: "toolchain", Value: opts.Toolchain})
	}
	if opts.Status != "" {
		members = append(members, ledger.Equals{Field: "status", Value: opts.Status})
	}

	cells, err := led.FindMatrixCells(ctx, ledger.And{Filters: members}, opts.Limit)
	if err != nil {
		return outputHistoryError(formatter, err.Error())
	}

	rows := toHistoryCells(cells)

	if formatter.Format == "json" {
		return formatter.Success(rows)
	}

	if len(rows) == 0 {
		fmt.Fprintln(formatter.Writer, "No matching cells recorded.")
		return nil
	}
	writeCellRows(formatter, rows, true)
	return nil
}

func historySynths(ctx context.Context, opts *HistoryOptions, formatter *OutputFormatter, led *ledger.Ledger) error {
	var f ledger.Filter
	if opts.Stack != "" {
		f = ledger.Equals{Field: "stack", Value: opts.Stack}
	}

	runs, err := led.SynthRuns(ctx, f, opts.Limit)
	if err != nil {
		return outputHistoryError(formatter, err.Error())
	}

	rows := make([]historySynth, 0, len(runs))
	for _, run := range runs {
		rows = append(rows, historySynth{
			ID:           run.ID,
			CreatedAt:    run.CreatedAt,
			Stack:        run.Stack,
			TemplateHash: run.TemplateHash,
			OutDir:       run.OutDir,
		})
	}

	if formatter.Format == "json" {
		return formatter.Success(rows)
	}

	if len(rows) == 0 {
		fmt.Fprintln(formatter.Writer, "No syntheses recorded.")
		return nil
	}
	for _, row := range rows {
		fmt.Fprintf(formatter.Writer, "%s  %s  %s  %s  %s\n",
			row.ID, row.CreatedAt, row.Stack, shortHash(row.TemplateHash), row.OutDir)
	}
	return nil
}

func toHistoryCells(cells []ledger.MatrixCell) []historyCell {
	rows := make([]historyCell, 0, len(cells))
	for _, cell := range cells {
		rows = append(rows, historyCell{
			RunID:      cell.RunID,
			Template:   cell.Template,
			Toolchain:  cell.Toolchain,
			Status:     cell.Status,
			Step:       cell.Step,
			ExitCode:   cell.ExitCode,
			DurationMS: cell.DurationMS,
		})
	}
	return rows
}

// writeCellRows prints cell rows in text format. withRun prefixes each
// row with its run ID for cross-run listings.
func writeCellRows(formatter *OutputFormatter, rows []historyCell, withRun bool) {
	for _, row := range rows {
		mark := "✓"
		if row.Status != ledger.StatusPassed {
			mark = "✗"
		}
		fmt.Fprintf(formatter.Writer, "%s %s/%s  %s",
			mark, row.Template, row.Toolchain, time.Duration(row.DurationMS)*time.Millisecond)
		if row.Step != "" {
			fmt.Fprintf(formatter.Writer, "  failed at %q (exit %d)", row.Step, row.ExitCode)
		}
		if withRun {
			fmt.Fprintf(formatter.Writer, "  run %s", row.RunID)
		}
		fmt.Fprintln(formatter.Writer)
	}
}

// outputHistoryError outputs a ledger query error.
func outputHistoryError(formatter *OutputFormatter, message string) error {
	_ = formatter.Error(ErrCodeDatabase, message, nil)
	// History errors are command-level errors (exit code 2)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", ErrCodeDatabase, message))
}
