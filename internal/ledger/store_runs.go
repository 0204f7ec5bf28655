package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrRunNotFound is returned when a run ID has no row.
var ErrRunNotFound = errors.New("run not found")

const runColumns = "id, input_dir, state, started_at, finished_at, total, processed, succeeded, failed, no_evidence, deleted, renamed, skipped, conflicts, warnings, error_message"

func scanRun(scanner interface{ Scan(dest ...any) error }) (*Run, error) {
	var (
		run         Run
		state       string
		startedRaw  sql.NullString
		finishedRaw sql.NullString
		errMsg      sql.NullString
		c           = &run.Counts
	)
	if err := scanner.Scan(
		&run.ID, &run.InputDir, &state, &startedRaw, &finishedRaw,
		&c.Total, &c.Processed, &c.Succeeded, &c.Failed, &c.NoEvidence,
		&c.Deleted, &c.Renamed, &c.Skipped, &c.Conflicts, &c.Warnings,
		&errMsg,
	); err != nil {
		return nil, err
	}
	run.State = RunState(state)
	run.StartedAt = parseTime(startedRaw)
	run.FinishedAt = parseTime(finishedRaw)
	run.ErrorMessage = errMsg.String
	return &run, nil
}

// BeginRun inserts a running run row.
func (s *Store) BeginRun(ctx context.Context, id, inputDir string, total int) (*Run, error) {
	started := time.Now().UTC()
	if _, err := s.execWithRetry(ctx,
		`INSERT INTO runs (id, input_dir, state, started_at, total) VALUES (?, ?, ?, ?, ?)`,
		id, inputDir, RunRunning, formatTime(started), total,
	); err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}
	return s.GetRun(ctx, id)
}

// FinishRun records the final state and counters of a run.
func (s *Store) FinishRun(ctx context.Context, id string, state RunState, counts Counts, errMsg string) error {
	res, err := s.execWithRetry(ctx,
		`UPDATE runs SET state = ?, finished_at = ?, total = ?, processed = ?, succeeded = ?, failed = ?,
            no_evidence = ?, deleted = ?, renamed = ?, skipped = ?, conflicts = ?, warnings = ?, error_message = ?
         WHERE id = ?`,
		state, formatTime(time.Now()), counts.Total, counts.Processed, counts.Succeeded, counts.Failed,
		counts.NoEvidence, counts.Deleted, counts.Renamed, counts.Skipped, counts.Conflicts, counts.Warnings,
		nullableString(errMsg), id,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}

// GetRun fetches a run by ID.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// LatestRun returns the most recently started run.
func (s *Store) LatestRun(ctx context.Context) (*Run, error) {
	runs, err := s.ListRuns(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, ErrRunNotFound
	}
	return &runs[0], nil
}

// ListRuns returns runs newest first. A non-positive limit returns all.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC, rowid DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// AbandonStaleRuns marks runs still flagged running as failed. A run is only
// ever running while its process holds the tracking lock, so callers invoke
// this after acquiring it.
func (s *Store) AbandonStaleRuns(ctx context.Context, reason string) (int64, error) {
	res, err := s.execWithRetry(ctx,
		`UPDATE runs SET state = ?, finished_at = ?, error_message = ? WHERE state = ?`,
		RunFailed, formatTime(time.Now()), reason, RunRunning,
	)
	if err != nil {
		return 0, fmt.Errorf("abandon stale runs: %w", err)
	}
	return res.RowsAffected()
}
