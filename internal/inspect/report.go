// Package inspect renders the delivery history of one outbox message.
package inspect

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mattjoyce/notifyd/internal/notification"
	"github.com/mattjoyce/notifyd/internal/protocol"
	"github.com/mattjoyce/notifyd/internal/queue"
)

// Report is the structured JSON representation of a message report.
type Report struct {
	MessageID   string          `json:"message_id"`
	Plugin      string          `json:"plugin"`
	RequestName string          `json:"request_name"`
	Status      string          `json:"status"`
	Attempt     int             `json:"attempt"`
	MaxAttempts int             `json:"max_attempts"`
	CreatedAt   time.Time       `json:"created_at"`
	NextRetryAt *time.Time      `json:"next_retry_at,omitempty"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	LastError   string          `json:"last_error,omitempty"`
	Summary     string          `json:"summary,omitempty"`
	Data        json.RawMessage `json:"data,omitempty"`
	Attempts    []Attempt       `json:"attempts"`
}

// Attempt is one logged delivery attempt.
type Attempt struct {
	Attempt     int       `json:"attempt"`
	Status      string    `json:"status"`
	CompletedAt time.Time `json:"completed_at"`
	Error       string    `json:"error,omitempty"`
}

// BuildReport renders a terminal-friendly report for a message.
func BuildReport(ctx context.Context, q *queue.Queue, messageID string) (string, error) {
	report, err := gatherReportData(ctx, q, messageID)
	if err != nil {
		return "", err
	}

	var out strings.Builder
	fmt.Fprintf(&out, "Message Report\n")
	fmt.Fprintf(&out, "Message ID  : %s\n", report.MessageID)
	fmt.Fprintf(&out, "Plugin      : %s\n", report.Plugin)
	fmt.Fprintf(&out, "Request     : %s\n", report.RequestName)
	fmt.Fprintf(&out, "Status      : %s\n", report.Status)
	fmt.Fprintf(&out, "Attempts    : %d/%d\n", report.Attempt, report.MaxAttempts)
	fmt.Fprintf(&out, "Created     : %s\n", report.CreatedAt.Format(time.RFC3339))
	if report.NextRetryAt != nil {
		fmt.Fprintf(&out, "Next retry  : %s\n", report.NextRetryAt.Format(time.RFC3339))
	}
	if report.CompletedAt != nil {
		fmt.Fprintf(&out, "Completed   : %s\n", report.CompletedAt.Format(time.RFC3339))
	}
	fmt.Fprintf(&out, "Summary     : %s\n", renderUnset(report.Summary, "<undecodable>"))
	if report.LastError != "" {
		fmt.Fprintf(&out, "Last error  : %s\n", report.LastError)
	}
	fmt.Fprintf(&out, "\n")

	if len(report.Attempts) == 0 {
		fmt.Fprintf(&out, "No attempts logged.\n")
	}
	for _, a := range report.Attempts {
		fmt.Fprintf(&out, "[%d] %-9s %s\n", a.Attempt, a.Status, a.CompletedAt.Format(time.RFC3339))
		if a.Error != "" {
			fmt.Fprintf(&out, "    error : %s\n", a.Error)
		}
	}

	fmt.Fprintf(&out, "\nData:\n")
	for _, line := range strings.Split(strings.TrimSpace(prettyJSON(report.Data)), "\n") {
		fmt.Fprintf(&out, "  %s\n", line)
	}

	return strings.TrimRight(out.String(), "\n") + "\n", nil
}

// BuildJSONReport returns the machine-readable JSON report.
func BuildJSONReport(ctx context.Context, q *queue.Queue, messageID string) (string, error) {
	report, err := gatherReportData(ctx, q, messageID)
	if err != nil {
		return "", err
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal json report: %w", err)
	}
	return string(data), nil
}

func gatherReportData(ctx context.Context, q *queue.Queue, messageID string) (*Report, error) {
	if strings.TrimSpace(messageID) == "" {
		return nil, fmt.Errorf("message id is required")
	}

	job, err := q.Get(ctx, messageID)
	if err != nil {
		return nil, fmt.Errorf("load message %s: %w", messageID, err)
	}

	report := &Report{
		MessageID:   job.ID,
		Plugin:      job.Plugin,
		RequestName: job.RequestName,
		Status:      string(job.Status),
		Attempt:     job.Attempt,
		MaxAttempts: job.MaxAttempts,
		CreatedAt:   job.CreatedAt,
		CompletedAt: job.CompletedAt,
		Attempts:    []Attempt{},
	}
	if job.Status == queue.StatusQueued {
		next := job.NextRetryAt
		report.NextRetryAt = &next
	}
	if job.LastError != nil {
		report.LastError = *job.LastError
	}

	if env, err := protocol.Decode(bytes.NewReader(job.Payload)); err == nil {
		report.Data = env.Data
		if p, err := env.Payload(); err == nil {
			report.Summary = notification.Summary(p)
		}
	} else {
		report.Data = job.Payload
	}

	history, err := q.History(ctx, job.ID)
	if err != nil {
		return nil, err
	}
	for _, e := range history {
		a := Attempt{Attempt: e.Attempt, Status: string(e.Status), CompletedAt: e.CompletedAt}
		if e.LastError != nil {
			a.Error = *e.LastError
		}
		report.Attempts = append(report.Attempts, a)
	}
	return report, nil
}

func prettyJSON(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "{}"
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return string(raw)
	}
	return string(out)
}

func renderUnset(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
