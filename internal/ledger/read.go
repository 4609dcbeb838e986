package ledger

import (
	"context"
	"fmt"
)

// SynthRuns returns recorded syntheses, newest first. The optional
// filter narrows by column (stack, template_hash, out_dir); limit <= 0
// means no limit.
//
// Ordering is deterministic: created_at DESC with the run ID as
// tiebreaker, COLLATE BINARY for stable text ordering across SQLite
// versions.
func (l *Ledger) SynthRuns(ctx context.Context, f Filter, limit int) ([]SynthRun, error) {
	where, params, err := compileFilter(f)
	if err != nil {
		return nil, fmt.Errorf("query synth runs: %w", err)
	}

	query := `
		SELECT id, created_at, stack, template_hash, out_dir
		FROM synth_runs`
	if where != "" {
		query += " WHERE " + where
	}
	query += " ORDER BY created_at DESC, id COLLATE BINARY ASC"
	if limit > 0 {
		query += " LIMIT ?"
		params = append(params, limit)
	}

	rows, err := l.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("query synth runs: %w", err)
	}
	defer rows.Close()

	var runs []SynthRun
	for rows.Next() {
		var run SynthRun
		if err := rows.Scan(&run.ID, &run.CreatedAt, &run.Stack, &run.TemplateHash, &run.OutDir); err != nil {
			return nil, fmt.Errorf("scan synth run: %w", err)
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate synth runs: %w", err)
	}

	if runs == nil {
		runs = []SynthRun{}
	}

	return runs, nil
}

// MatrixRuns returns recorded matrix runs, newest first. The optional
// filter narrows by column (grid_file, status); limit <= 0 means no
// limit.
func (l *Ledger) MatrixRuns(ctx context.Context, f Filter, limit int) ([]MatrixRun, error) {
	where, params, err := compileFilter(f)
	if err != nil {
		return nil, fmt.Errorf("query matrix runs: %w", err)
	}

	query := `
		SELECT id, created_at, grid_file, status
		FROM matrix_runs`
	if where != "" {
		query += " WHERE " + where
	}
	query += " ORDER BY created_at DESC, id COLLATE BINARY ASC"
	if limit > 0 {
		query += " LIMIT ?"
		params = append(params, limit)
	}

	rows, err := l.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("query matrix runs: %w", err)
	}
	defer rows.Close()

	var runs []MatrixRun
	for rows.Next() {
		var run MatrixRun
		if err := rows.Scan(&run.ID, &run.CreatedAt, &run.GridFile, &run.Status); err != nil {
			return nil, fmt.Errorf("scan matrix run: %w", err)
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate matrix runs: %w", err)
	}

	if runs == nil {
		runs = []MatrixRun{}
	}

	return runs, nil
}

// MatrixCells returns the cells of a run in execution order (insertion
// ID ascending).
func (l *Ledger) MatrixCells(ctx context.Context, runID string) ([]MatrixCell, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, run_id, template, toolchain, step, status, exit_code, output, duration_ms
		FROM matrix_cells
		WHERE run_id = ?
		ORDER BY id ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query matrix cells: %w", err)
	}
	defer rows.Close()

	var cells []MatrixCell
	for rows.Next() {
		var cell MatrixCell
		if err := rows.Scan(
			&cell.ID, &cell.RunID, &cell.Template, &cell.Toolchain,
			&cell.Step, &cell.Status, &cell.ExitCode, &cell.Output, &cell.DurationMS,
		); err != nil {
			return nil, fmt.Errorf("scan matrix cell: %w", err)
		}
		cells = append(cells, cell)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate matrix cells: %w", err)
	}

	if cells == nil {
		cells = []MatrixCell{}
	}

	return cells, nil
}

// FindMatrixCells returns cells across runs matching the filter, most
// recently recorded first. Cells carry no timestamp; the insertion ID
// is the recording order. The filter narrows by column (run_id,
// template, toolchain, status); limit <= 0 means no limit.
func (l *Ledger) FindMatrixCells(ctx context.Context, f Filter, limit int) ([]MatrixCell, error) {
	where, params, err := compileFilter(f)
	if err != nil {
		return nil, fmt.Errorf("query matrix cells: %w", err)
	}

	query := `
		SELECT id, run_id, template, toolchain, step, status, exit_code, output, duration_ms
		FROM matrix_cells`
	if where != "" {
		query += " WHERE " + where
	}
	query += " ORDER BY id DESC"
	if limit > 0 {
		query += " LIMIT ?"
		params = append(params, limit)
	}

	rows, err := l.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("query matrix cells: %w", err)
	}
	defer rows.Close()

	var cells []MatrixCell
	for rows.Next() {
		var cell MatrixCell
		if err := rows.Scan(
			&cell.ID, &cell.RunID, &cell.Template, &cell.Toolchain,
			&cell.Step, &cell.Status, &cell.ExitCode, &cell.Output, &cell.DurationMS,
		); err != nil {
			return nil, fmt.Errorf("scan matrix cell: %w", err)
		}
		cells = append(cells, cell)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate matrix cells: %w", err)
	}

	if cells == nil {
		cells = []MatrixCell{}
	}

	return cells, nil
}
