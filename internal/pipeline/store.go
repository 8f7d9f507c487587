// Package pipeline answers the two read-only questions a stage notification
// needs: what caused a pipeline run, and which group a pipeline belongs to.
package pipeline

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattjoyce/notifyd/internal/domain"
)

// Store keeps the build cause of each pipeline run in SQLite. Pipeline names
// match case-insensitively.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func key(name string) string {
	return strings.ToLower(name)
}

// Record saves (or replaces) the build cause of run name/counter.
func (s *Store) Record(ctx context.Context, name string, counter int, cause domain.BuildCause) error {
	if name == "" {
		return fmt.Errorf("pipeline name is empty")
	}
	if counter <= 0 {
		return fmt.Errorf("pipeline counter must be positive, got %d", counter)
	}
	raw, err := json.Marshal(cause)
	if err != nil {
		return fmt.Errorf("encode build cause: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
INSERT INTO pipeline_runs(pipeline_key, pipeline_name, counter, build_cause, recorded_at)
VALUES(?, ?, ?, ?, ?)
ON CONFLICT(pipeline_key, counter) DO UPDATE SET
  pipeline_name = excluded.pipeline_name,
  build_cause = excluded.build_cause,
  recorded_at = excluded.recorded_at;
`, key(name), name, counter, string(raw), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("record pipeline run: %w", err)
	}
	return nil
}

// FindBuildCause returns the recorded cause of run name/counter, or nil if the
// run is unknown.
func (s *Store) FindBuildCause(ctx context.Context, name string, counter int) (*domain.BuildCause, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `
SELECT build_cause FROM pipeline_runs WHERE pipeline_key = ? AND counter = ?;
`, key(name), counter).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read build cause: %w", err)
	}

	var cause domain.BuildCause
	if err := json.Unmarshal([]byte(raw), &cause); err != nil {
		return nil, fmt.Errorf("stored build cause is invalid JSON for %s/%d: %w", name, counter, err)
	}
	return &cause, nil
}
