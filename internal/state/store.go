// Package state persists the run ledger and the staged-object cleanup queue.
//
// The cleanup queue exists so that scheduled deletions survive a process
// restart: every staged object is recorded before its deletion timer starts,
// and a boot-time sweep removes anything whose deadline passed while the
// service was down.
package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// RunStatus enumerates pipeline run outcomes.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// Run is one pipeline invocation as recorded in the ledger. Layer text is
// never stored here.
type Run struct {
	ID          string
	Status      RunStatus
	TargetLang  string
	InputKey    string
	OutputKey   string
	LastError   string
	CreatedAt   time.Time
	CompletedAt *time.Time
}

// ErrRunNotFound is returned by GetRun for unknown run ids.
var ErrRunNotFound = errors.New("run not found")

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// CreateRun records a new run in the running state.
func (s *Store) CreateRun(ctx context.Context, id, targetLang string) error {
	if id == "" {
		return fmt.Errorf("run id is empty")
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx, `
INSERT INTO run_log(id, status, target_lang, created_at)
VALUES(?, ?, ?, ?);
`, id, RunRunning, targetLang, now)
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	return nil
}

// SetRunKeys records the staged input/output object keys for a run.
func (s *Store) SetRunKeys(ctx context.Context, id, inputKey, outputKey string) error {
	_, err := s.db.ExecContext(ctx, `
UPDATE run_log SET input_key = ?, output_key = ? WHERE id = ?;
`, inputKey, outputKey, id)
	if err != nil {
		return fmt.Errorf("set run keys: %w", err)
	}
	return nil
}

// CompleteRun marks a run as succeeded or failed. lastError is recorded for
// operators only; it is never surfaced to API callers.
func (s *Store) CompleteRun(ctx context.Context, id string, status RunStatus, lastError string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(ctx, `
UPDATE run_log SET status = ?, last_error = NULLIF(?, ''), completed_at = ? WHERE id = ?;
`, status, lastError, now, id)
	if err != nil {
		return fmt.Errorf("complete run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrRunNotFound
	}
	return nil
}

// GetRun returns the run record for id, or ErrRunNotFound.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, status, target_lang, input_key, output_key, last_error, created_at, completed_at
FROM run_log WHERE id = ?;
`, id)

	var (
		r            Run
		statusS      string
		inputKey     sql.NullString
		outputKey    sql.NullString
		lastError    sql.NullString
		createdAtS   string
		completedAtS sql.NullString
	)
	err := row.Scan(&r.ID, &statusS, &r.TargetLang, &inputKey, &outputKey, &lastError, &createdAtS, &completedAtS)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}

	r.Status = RunStatus(statusS)
	r.InputKey = inputKey.String
	r.OutputKey = outputKey.String
	r.LastError = lastError.String
	if t, err := time.Parse(time.RFC3339Nano, createdAtS); err == nil {
		r.CreatedAt = t
	}
	if completedAtS.Valid {
		if t, err := time.Parse(time.RFC3339Nano, completedAtS.String); err == nil {
			r.CompletedAt = &t
		}
	}
	return &r, nil
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id FROM run_log ORDER BY created_at DESC LIMIT ?;
`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan run id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	runs := make([]*Run, 0, len(ids))
	for _, id := range ids {
		r, err := s.GetRun(ctx, id)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, nil
}

// ScheduleDeletion records that objectKey must be deleted at deleteAfter.
// The record is written before any timer starts so a crash cannot orphan the
// object silently.
func (s *Store) ScheduleDeletion(ctx context.Context, objectKey string, deleteAfter time.Time) error {
	if objectKey == "" {
		return fmt.Errorf("object key is empty")
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx, `
INSERT INTO cleanup_queue(object_key, delete_after, created_at)
VALUES(?, ?, ?)
ON CONFLICT(object_key) DO UPDATE SET delete_after = excluded.delete_after, deleted_at = NULL;
`, objectKey, deleteAfter.UTC().Format(time.RFC3339Nano), now)
	if err != nil {
		return fmt.Errorf("schedule deletion: %w", err)
	}
	return nil
}

// DueDeletions returns object keys whose deadline is at or before now and
// which have not been deleted yet.
func (s *Store) DueDeletions(ctx context.Context, now time.Time) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT object_key FROM cleanup_queue
WHERE deleted_at IS NULL AND delete_after <= ?
ORDER BY delete_after ASC;
`, now.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("list due deletions: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scan due deletion: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// MarkDeleted records that objectKey was removed from the object store.
func (s *Store) MarkDeleted(ctx context.Context, objectKey string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx, `
UPDATE cleanup_queue SET deleted_at = ? WHERE object_key = ?;
`, now, objectKey)
	if err != nil {
		return fmt.Errorf("mark deleted: %w", err)
	}
	return nil
}
