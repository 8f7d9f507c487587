package storage

import (
	"context"
	"path/filepath"
	"testing"
)

func TestOpenSQLiteMigratesSchema(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "notifyd.db")
	db, err := OpenSQLite(ctx, dbPath)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	for _, table := range []string{"job_queue", "job_log", "pipeline_runs"} {
		var name string
		if err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?;", table).Scan(&name); err != nil {
			t.Fatalf("table %q missing: %v", table, err)
		}
	}

	version, err := SchemaVersion(ctx, db)
	if err != nil {
		t.Fatalf("SchemaVersion: %v", err)
	}
	if version != 2 {
		t.Fatalf("schema version = %d, want 2", version)
	}
}

func TestOpenSQLiteIsIdempotent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "notifyd.db")
	for i := range 2 {
		db, err := OpenSQLite(ctx, dbPath)
		if err != nil {
			t.Fatalf("open #%d: %v", i+1, err)
		}
		_ = db.Close()
	}
}

func TestOpenSQLiteMemory(t *testing.T) {
	t.Parallel()

	db, err := OpenSQLite(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("OpenSQLite(:memory:): %v", err)
	}
	defer db.Close()

	if _, err := db.Exec(`INSERT INTO pipeline_runs(pipeline_key, pipeline_name, counter, build_cause, recorded_at) VALUES ('p','P',1,'{}','now')`); err != nil {
		t.Fatalf("insert: %v", err)
	}
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM pipeline_runs`).Scan(&n); err != nil || n != 1 {
		t.Fatalf("count = %d, err = %v", n, err)
	}
}

func TestOpenSQLiteRejectsEmptyPath(t *testing.T) {
	t.Parallel()
	if _, err := OpenSQLite(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty path")
	}
}
