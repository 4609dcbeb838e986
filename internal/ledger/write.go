package ledger

import (
	"context"
	"fmt"
)

// SynthRun is one recorded synthesis of one stack.
type SynthRun struct {
	ID           string
	CreatedAt    string
	Stack        string
	TemplateHash string
	OutDir       string
}

// MatrixRun is one recorded matrix execution.
type MatrixRun struct {
	ID        string
	CreatedAt string
	GridFile  string
	Status    string
}

// MatrixCell is one (template, toolchain) cell of a matrix run. Step
// names the step that failed and Output holds that step's captured
// output; both are empty for passed cells.
type MatrixCell struct {
	ID         int64
	RunID      string
	Template   string
	Toolchain  string
	Step       string
	Status     string
	ExitCode   int64
	Output     string
	DurationMS int64
}

// Run statuses.
const (
	StatusPassed = "passed"
	StatusFailed = "failed"
	// StatusRunning marks a matrix run that has started but not finished;
	// FinishMatrixRun replaces it.
	StatusRunning = "running"
)

// WriteSynthRun inserts a synthesis record.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - duplicate IDs are
// silently ignored. Other constraint violations still return errors.
func (l *Ledger) WriteSynthRun(ctx context.Context, run SynthRun) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO synth_runs
		(id, created_at, stack, template_hash, out_dir)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		run.ID,
		run.CreatedAt,
		run.Stack,
		run.TemplateHash,
		run.OutDir,
	)
	if err != nil {
		return fmt.Errorf("write synth run: %w", err)
	}

	return nil
}

// WriteMatrixRun inserts a matrix run record.
// Uses ON CONFLICT(id) DO NOTHING for idempotency.
func (l *Ledger) WriteMatrixRun(ctx context.Context, run MatrixRun) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO matrix_runs
		(id, created_at, grid_file, status)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		run.ID,
		run.CreatedAt,
		run.GridFile,
		run.Status,
	)
	if err != nil {
		return fmt.Errorf("write matrix run: %w", err)
	}

	return nil
}

// FinishMatrixRun sets the final status of a matrix run.
func (l *Ledger) FinishMatrixRun(ctx context.Context, id, status string) error {
	res, err := l.db.ExecContext(ctx, `
		UPDATE matrix_runs SET status = ? WHERE id = ?
	`, status, id)
	if err != nil {
		return fmt.Errorf("finish matrix run: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish matrix run: rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("finish matrix run: no run %q", id)
	}
	return nil
}

// WriteMatrixCell inserts a cell record for a run.
// Returns the cell ID and whether a new record was inserted.
//
// Uses ON CONFLICT(run_id, template, toolchain) DO NOTHING: a cell is
// recorded at most once per run. If the cell already exists, returns
// the existing ID and inserted=false.
//
// Note: The run referenced by RunID must exist (foreign key constraint).
func (l *Ledger) WriteMatrixCell(ctx context.Context, cell MatrixCell) (id int64, inserted bool, err error) {
	// Use a transaction to ensure atomicity of insert-or-select
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, false, fmt.Errorf("write matrix cell: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	result, err := tx.ExecContext(ctx, `
		INSERT INTO matrix_cells
		(run_id, template, toolchain, step, status, exit_code, output, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, template, toolchain) DO NOTHING
	`,
		cell.RunID,
		cell.Template,
		cell.Toolchain,
		cell.Step,
		cell.Status,
		cell.ExitCode,
		cell.Output,
		cell.DurationMS,
	)
	if err != nil {
		return 0, false, fmt.Errorf("write matrix cell: insert: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, false, fmt.Errorf("write matrix cell: rows affected: %w", err)
	}

	if rowsAffected > 0 {
		id, err = result.LastInsertId()
		if err != nil {
			return 0, false, fmt.Errorf("write matrix cell: last insert id: %w", err)
		}
		inserted = true
	} else {
		// Conflict - cell already recorded, fetch the existing ID
		err = tx.QueryRowContext(ctx, `
			SELECT id FROM matrix_cells
			WHERE run_id = ? AND template = ? AND toolchain = ?
		`, cell.RunID, cell.Template, cell.Toolchain).Scan(&id)
		if err != nil {
			return 0, false, fmt.Errorf("write matrix cell: select existing: %w", err)
		}
		inserted = false
	}

	if err := tx.Commit(); err != nil {
		return 0, false, fmt.Errorf("write matrix cell: commit: %w", err)
	}

	return id, inserted, nil
}
