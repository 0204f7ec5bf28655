package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrItemNotFound is returned when an item row does not exist.
var ErrItemNotFound = errors.New("item not found")

const itemColumns = "id, run_id, seq, rel_path, kind, size_bytes, status, final_path, tag, confidence, stride, strides, iterations, correlation_id, error_message, created_at, updated_at"

func scanItem(scanner interface{ Scan(dest ...any) error }) (*Item, error) {
	var (
		item       Item
		status     string
		finalPath  sql.NullString
		tag        sql.NullString
		confidence sql.NullFloat64
		stride     sql.NullInt64
		strides    sql.NullString
		corrID     sql.NullString
		errMsg     sql.NullString
		createdRaw sql.NullString
		updatedRaw sql.NullString
	)
	if err := scanner.Scan(
		&item.ID, &item.RunID, &item.Seq, &item.RelPath, &item.Kind, &item.SizeBytes,
		&status, &finalPath, &tag, &confidence, &stride, &strides, &item.Iterations,
		&corrID, &errMsg, &createdRaw, &updatedRaw,
	); err != nil {
		return nil, err
	}
	item.Status = Status(status)
	item.FinalPath = finalPath.String
	item.Tag = tag.String
	item.Confidence = confidence.Float64
	item.Stride = int(stride.Int64)
	item.Strides = parseStrides(strides.String)
	item.CorrelationID = corrID.String
	item.ErrorMessage = errMsg.String
	item.CreatedAt = parseTime(createdRaw)
	item.UpdatedAt = parseTime(updatedRaw)
	return &item, nil
}

// NewItem describes an enumerated file for AddItems.
type NewItem struct {
	Seq       int64
	RelPath   string
	Kind      string
	SizeBytes int64
}

// AddItems inserts discovered items for a run in one transaction.
func (s *Store) AddItems(ctx context.Context, runID string, items []NewItem) error {
	if len(items) == 0 {
		return nil
	}
	ctx = ensureContext(ctx)
	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin items tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO items (run_id, seq, rel_path, kind, size_bytes, status, created_at, updated_at)
             VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare item insert: %w", err)
		}
		defer stmt.Close()

		now := formatTime(time.Now())
		for _, it := range items {
			if _, err := stmt.ExecContext(ctx, runID, it.Seq, it.RelPath, it.Kind, it.SizeBytes, StatusDiscovered, now, now); err != nil {
				return fmt.Errorf("insert item %s: %w", it.RelPath, err)
			}
		}
		return tx.Commit()
	})
}

// UpdateItem persists the mutable fields of item, keyed by run and seq.
func (s *Store) UpdateItem(ctx context.Context, item *Item) error {
	if item == nil {
		return errors.New("update item: nil item")
	}
	item.UpdatedAt = time.Now().UTC()
	res, err := s.execWithRetry(ctx,
		`UPDATE items SET status = ?, final_path = ?, tag = ?, confidence = ?, stride = ?, strides = ?,
            iterations = ?, correlation_id = ?, error_message = ?, updated_at = ?
         WHERE run_id = ? AND seq = ?`,
		item.Status, nullableString(item.FinalPath), nullableString(item.Tag), item.Confidence,
		item.Stride, nullableString(formatStrides(item.Strides)), item.Iterations,
		nullableString(item.CorrelationID), nullableString(item.ErrorMessage), formatTime(item.UpdatedAt),
		item.RunID, item.Seq,
	)
	if err != nil {
		return fmt.Errorf("update item: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: run %s seq %d", ErrItemNotFound, item.RunID, item.Seq)
	}
	return nil
}

// GetItem fetches one item of a run.
func (s *Store) GetItem(ctx context.Context, runID string, seq int64) (*Item, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT `+itemColumns+` FROM items WHERE run_id = ? AND seq = ?`, runID, seq)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: run %s seq %d", ErrItemNotFound, runID, seq)
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return item, nil
}

// ListItems returns a run's items in sequence order, optionally filtered by
// status.
func (s *Store) ListItems(ctx context.Context, runID string, statuses ...Status) ([]Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE run_id = ?`
	args := []any{runID}
	if len(statuses) > 0 {
		placeholders := make([]string, len(statuses))
		for i, st := range statuses {
			placeholders[i] = "?"
			args = append(args, st)
		}
		query += ` AND status IN (` + strings.Join(placeholders, ",") + `)`
	}
	query += ` ORDER BY seq`
	return s.queryItems(ctx, query, args...)
}

// ItemHistory returns every recorded row for a relative path across runs,
// oldest first.
func (s *Store) ItemHistory(ctx context.Context, relPath string) ([]Item, error) {
	return s.queryItems(ctx,
		`SELECT `+itemColumns+` FROM items WHERE rel_path = ? ORDER BY created_at, id`, relPath)
}

func (s *Store) queryItems(ctx context.Context, query string, args ...any) ([]Item, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// StatusCounts returns a count of a run's items grouped by status.
func (s *Store) StatusCounts(ctx context.Context, runID string) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT status, COUNT(1) FROM items WHERE run_id = ? GROUP BY status`, runID)
	if err != nil {
		return nil, fmt.Errorf("status counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[status] = count
	}
	return counts, rows.Err()
}
