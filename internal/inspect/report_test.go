package inspect

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mattjoyce/notifyd/internal/delivery"
	"github.com/mattjoyce/notifyd/internal/notification"
	"github.com/mattjoyce/notifyd/internal/queue"
	"github.com/mattjoyce/notifyd/internal/storage"
)

func openQueue(t *testing.T) *queue.Queue {
	t.Helper()
	db, err := storage.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "notifyd.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return queue.New(db)
}

// postOne posts a single agent message and returns its message id.
func postOne(t *testing.T, q *queue.Queue) string {
	t.Helper()
	ctx := context.Background()
	msg := notification.NewMessage("slack", notification.AgentData{
		UUID: "u-1", HostName: "build-01", AgentState: "Idle", BuildState: "Idle",
	})
	if err := delivery.NewOutbox(q, delivery.OutboxConfig{MaxAttempts: 3}).Post(ctx, msg, 0); err != nil {
		t.Fatalf("Post: %v", err)
	}
	j, err := q.Dequeue(ctx)
	if err != nil || j == nil {
		t.Fatalf("Dequeue: %#v %v", j, err)
	}
	return j.ID
}

func TestBuildReportRendersAttempts(t *testing.T) {
	t.Parallel()
	q := openQueue(t)
	ctx := context.Background()

	id := postOne(t, q)
	if err := q.Retry(ctx, id, "connection refused", time.Hour); err != nil {
		t.Fatalf("Retry: %v", err)
	}

	out, err := BuildReport(ctx, q, id)
	if err != nil {
		t.Fatalf("BuildReport: %v", err)
	}
	for _, want := range []string{
		"Message ID  : " + id,
		"Plugin      : slack",
		"Request     : agent-status-changed",
		"Status      : queued",
		"Attempts    : 1/3",
		"Next retry  :",
		"Summary     : agent build-01 (u-1) Idle/Idle",
		"Last error  : connection refused",
		"[1] retry",
		`"host_name": "build-01"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
}

func TestBuildJSONReport(t *testing.T) {
	t.Parallel()
	q := openQueue(t)
	ctx := context.Background()

	id := postOne(t, q)
	if err := q.Complete(ctx, id, queue.StatusSucceeded, nil); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	raw, err := BuildJSONReport(ctx, q, id)
	if err != nil {
		t.Fatalf("BuildJSONReport: %v", err)
	}
	var report Report
	if err := json.Unmarshal([]byte(raw), &report); err != nil {
		t.Fatalf("unmarshal report: %v", err)
	}
	if report.Status != "succeeded" || report.CompletedAt == nil || report.NextRetryAt != nil {
		t.Fatalf("unexpected report: %+v", report)
	}
	if len(report.Attempts) != 1 || report.Attempts[0].Status != "succeeded" {
		t.Fatalf("attempts = %+v", report.Attempts)
	}
}

func TestBuildReportErrors(t *testing.T) {
	t.Parallel()
	q := openQueue(t)

	if _, err := BuildReport(context.Background(), q, " "); err == nil {
		t.Fatal("expected error for blank id")
	}
	_, err := BuildReport(context.Background(), q, "missing")
	if !errors.Is(err, queue.ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
}

func TestBuildReportUndecodablePayload(t *testing.T) {
	t.Parallel()
	q := openQueue(t)
	ctx := context.Background()

	id, err := q.Enqueue(ctx, queue.EnqueueRequest{Plugin: "p", RequestName: "agent-status-changed", Payload: json.RawMessage(`{"not":"an envelope"}`)})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	out, err := BuildReport(ctx, q, id)
	if err != nil {
		t.Fatalf("BuildReport: %v", err)
	}
	if !strings.Contains(out, "<undecodable>") || !strings.Contains(out, "No attempts logged.") {
		t.Fatalf("report:\n%s", out)
	}
}
