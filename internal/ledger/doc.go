// Package ledger provides SQLite-backed history for synthesis and
// matrix runs.
//
// Three tables:
//   - synth_runs: one row per synthesis, keyed by run ID, carrying the
//     stack name and its template hash
//   - matrix_runs: one row per matrix execution with its final status
//   - matrix_cells: one row per (template, toolchain) cell of a run
//
// Writes are idempotent: every insert uses ON CONFLICT DO NOTHING, so
// recording the same run twice is a no-op. Reads are deterministic: run
// queries order by created_at DESC with the run ID as tiebreaker
// (COLLATE BINARY), cell queries by insertion ID, so identical
// databases list identical histories.
//
// Rows never store wall-clock values the ledger invented itself;
// callers supply run IDs and timestamps, which keeps this package pure
// storage and the callers testable with fixed clocks and generators.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package ledger
