package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const maxErrorBytes = 4 * 1024

// Queue is the SQLite-backed outbox of addressed notifications.
type Queue struct {
	db  *sql.DB
	now func() time.Time
}

func New(db *sql.DB) *Queue {
	return &Queue{db: db, now: time.Now}
}

const jobColumns = `id, plugin, request_name, payload, digest, status, attempt, max_attempts,
  created_at, started_at, completed_at, next_retry_at, last_error`

func (q *Queue) Enqueue(ctx context.Context, req EnqueueRequest) (string, error) {
	if req.Plugin == "" {
		return "", fmt.Errorf("plugin is empty")
	}
	if req.RequestName == "" {
		return "", fmt.Errorf("request name is empty")
	}
	if len(req.Payload) == 0 {
		return "", fmt.Errorf("payload is empty")
	}

	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}
	maxAttempts := req.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	now := q.now()
	due := now.Add(max(req.Delay, 0))

	args := []any{id, req.Plugin, req.RequestName, string(req.Payload), req.Digest, StatusQueued, maxAttempts, formatTime(now), formatTime(due)}
	if req.Digest == nil || req.DedupeWindow <= 0 {
		if _, err := q.db.ExecContext(ctx, `
INSERT INTO job_queue(
  id, plugin, request_name, payload, digest, status, attempt, max_attempts, created_at, next_retry_at
)
VALUES(?, ?, ?, ?, ?, ?, 0, ?, ?, ?);
`, args...); err != nil {
			return "", fmt.Errorf("enqueue job: %w", err)
		}
		return id, nil
	}

	// One statement, so the existence check and the insert share the write lock.
	args = append(args, *req.Digest, formatTime(now.Add(-req.DedupeWindow)))
	res, err := q.db.ExecContext(ctx, `
INSERT INTO job_queue(
  id, plugin, request_name, payload, digest, status, attempt, max_attempts, created_at, next_retry_at
)
SELECT ?, ?, ?, ?, ?, ?, 0, ?, ?, ?
WHERE NOT EXISTS (
  SELECT 1 FROM job_queue WHERE digest = ? AND created_at >= ?
);
`, args...)
	if err != nil {
		return "", fmt.Errorf("enqueue job: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return "", fmt.Errorf("enqueue job: %w", err)
	}
	if n == 0 {
		return "", ErrDuplicate
	}
	return id, nil
}

// Dequeue claims the oldest due job, marks it running and counts the attempt.
// Returns (nil, nil) if nothing is due.
func (q *Queue) Dequeue(ctx context.Context) (*Job, error) {
	nowS := formatTime(q.now())

	row := q.db.QueryRowContext(ctx, `
WITH next AS (
  SELECT id
  FROM job_queue
  WHERE status = ? AND next_retry_at <= ?
  ORDER BY next_retry_at ASC, created_at ASC, rowid ASC
  LIMIT 1
)
UPDATE job_queue
SET status = ?, started_at = ?, attempt = attempt + 1
WHERE id IN (SELECT id FROM next)
RETURNING `+jobColumns+`;
`, StatusQueued, nowS, StatusRunning, nowS)

	j, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("dequeue job: %w", err)
	}
	return j, nil
}

// Get loads a job by id.
func (q *Queue) Get(ctx context.Context, id string) (*Job, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM job_queue WHERE id = ?;`, id)
	j, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return j, nil
}

// Complete marks a running job terminal (succeeded or dead) and appends a
// row to job_log.
func (q *Queue) Complete(ctx context.Context, jobID string, status Status, lastError *string) error {
	if jobID == "" {
		return fmt.Errorf("jobID is empty")
	}
	if status != StatusSucceeded && status != StatusDead {
		return fmt.Errorf("invalid terminal status: %q", status)
	}
	return q.finishAttempt(ctx, jobID, status, status, lastError, nil)
}

// Retry puts a running job back in the queue, due after the given backoff,
// and logs the failed attempt.
func (q *Queue) Retry(ctx context.Context, jobID string, lastError string, after time.Duration) error {
	if jobID == "" {
		return fmt.Errorf("jobID is empty")
	}
	due := q.now().Add(max(after, 0))
	return q.finishAttempt(ctx, jobID, StatusQueued, statusRetry, &lastError, &due)
}

func (q *Queue) finishAttempt(ctx context.Context, jobID string, status, logStatus Status, lastError *string, nextRetry *time.Time) error {
	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var (
		attempt int
		current string
	)
	err = tx.QueryRowContext(ctx, `
SELECT attempt, status FROM job_queue WHERE id = ?;
`, jobID).Scan(&attempt, &current)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrJobNotFound
	}
	if err != nil {
		return fmt.Errorf("load job for completion: %w", err)
	}
	if Status(current) != StatusRunning {
		return fmt.Errorf("job %s is %s, not running", jobID, current)
	}

	nowS := formatTime(q.now())
	errVal := truncate(lastError)

	if nextRetry != nil {
		_, err = tx.ExecContext(ctx, `
UPDATE job_queue
SET status = ?, next_retry_at = ?, last_error = ?, started_at = NULL
WHERE id = ?;
`, status, formatTime(*nextRetry), errVal, jobID)
	} else {
		_, err = tx.ExecContext(ctx, `
UPDATE job_queue
SET status = ?, completed_at = ?, last_error = ?
WHERE id = ?;
`, status, nowS, errVal, jobID)
	}
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
INSERT INTO job_log(id, job_id, plugin, request_name, status, attempt, created_at, completed_at, last_error)
SELECT ?, id, plugin, request_name, ?, attempt, created_at, ?, ?
FROM job_queue WHERE id = ?;
`, fmt.Sprintf("%s-%d", jobID, attempt), logStatus, nowS, errVal, jobID)
	if err != nil {
		return fmt.Errorf("insert job_log: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// RecoverRunning re-queues jobs left running by a previous process. The
// interrupted attempt still counts.
func (q *Queue) RecoverRunning(ctx context.Context) (int64, error) {
	res, err := q.db.ExecContext(ctx, `
UPDATE job_queue
SET status = ?, started_at = NULL, next_retry_at = ?
WHERE status = ?;
`, StatusQueued, formatTime(q.now()), StatusRunning)
	if err != nil {
		return 0, fmt.Errorf("recover running jobs: %w", err)
	}
	return res.RowsAffected()
}

// Depth counts jobs that are queued or running.
func (q *Queue) Depth(ctx context.Context) (int, error) {
	var n int
	err := q.db.QueryRowContext(ctx, `
SELECT COUNT(*) FROM job_queue WHERE status IN (?, ?);
`, StatusQueued, StatusRunning).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("queue depth: %w", err)
	}
	return n, nil
}

// Log returns the newest job_log rows, newest first.
func (q *Queue) Log(ctx context.Context, limit int) ([]LogEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := q.db.QueryContext(ctx, `
SELECT l.id, l.job_id, l.plugin, l.request_name, l.status, l.attempt, l.completed_at, l.last_error
FROM job_log l
ORDER BY l.completed_at DESC, l.rowid DESC
LIMIT ?;
`, limit)
	if err != nil {
		return nil, fmt.Errorf("query job_log: %w", err)
	}
	return scanLog(rows)
}

// History returns every logged attempt of one job, oldest first.
func (q *Queue) History(ctx context.Context, jobID string) ([]LogEntry, error) {
	rows, err := q.db.QueryContext(ctx, `
SELECT l.id, l.job_id, l.plugin, l.request_name, l.status, l.attempt, l.completed_at, l.last_error
FROM job_log l
WHERE l.job_id = ?
ORDER BY l.attempt ASC, l.rowid ASC;
`, jobID)
	if err != nil {
		return nil, fmt.Errorf("query job history: %w", err)
	}
	return scanLog(rows)
}

func scanLog(rows *sql.Rows) ([]LogEntry, error) {
	defer rows.Close()

	var out []LogEntry
	for rows.Next() {
		var (
			e          LogEntry
			status     string
			completedS string
			lastError  sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.JobID, &e.Plugin, &e.RequestName, &status, &e.Attempt, &completedS, &lastError); err != nil {
			return nil, fmt.Errorf("scan job_log: %w", err)
		}
		e.Status = Status(status)
		e.CompletedAt = parseTime(completedS)
		if lastError.Valid {
			e.LastError = &lastError.String
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*Job, error) {
	var (
		j            Job
		payload      string
		digest       sql.NullString
		statusS      string
		createdAtS   string
		startedAtS   sql.NullString
		completedAtS sql.NullString
		nextRetryAtS string
		lastError    sql.NullString
	)
	err := row.Scan(
		&j.ID, &j.Plugin, &j.RequestName, &payload, &digest, &statusS, &j.Attempt, &j.MaxAttempts,
		&createdAtS, &startedAtS, &completedAtS, &nextRetryAtS, &lastError,
	)
	if err != nil {
		return nil, err
	}

	j.Payload = []byte(payload)
	j.Status = Status(statusS)
	j.CreatedAt = parseTime(createdAtS)
	j.NextRetryAt = parseTime(nextRetryAtS)
	if digest.Valid {
		j.Digest = &digest.String
	}
	if startedAtS.Valid {
		t := parseTime(startedAtS.String)
		j.StartedAt = &t
	}
	if completedAtS.Valid {
		t := parseTime(completedAtS.String)
		j.CompletedAt = &t
	}
	if lastError.Valid {
		j.LastError = &lastError.String
	}
	return &j, nil
}

func truncate(s *string) any {
	if s == nil {
		return nil
	}
	v := *s
	if len(v) > maxErrorBytes {
		v = v[:maxErrorBytes]
	}
	return v
}
