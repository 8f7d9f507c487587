package queue

import (
	"encoding/json"
	"errors"
	"time"
)

type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusDead      Status = "dead"

	// statusRetry only appears in job_log, for attempts that were re-queued.
	statusRetry Status = "retry"
)

// Job is one addressed notification waiting for, or done with, delivery.
type Job struct {
	ID          string
	Plugin      string
	RequestName string
	Payload     json.RawMessage
	Digest      *string
	Status      Status
	Attempt     int
	MaxAttempts int
	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
	NextRetryAt time.Time
	LastError   *string
}

type EnqueueRequest struct {
	// ID is optional; a UUID is generated when empty.
	ID          string
	Plugin      string
	RequestName string
	Payload     json.RawMessage
	Digest      *string
	MaxAttempts int
	// Delay postpones the first delivery attempt.
	Delay time.Duration
	// DedupeWindow, with a Digest, skips the insert when a job with the same
	// digest was enqueued within the window. Enqueue then returns ErrDuplicate.
	DedupeWindow time.Duration
}

// LogEntry is one row of job_log.
type LogEntry struct {
	ID          string
	JobID       string
	Plugin      string
	RequestName string
	Status      Status
	Attempt     int
	CompletedAt time.Time
	LastError   *string
}

var (
	ErrJobNotFound = errors.New("job not found")
	ErrDuplicate   = errors.New("duplicate job inside dedupe window")
)

const defaultMaxAttempts = 5

// timeFormat is fixed-width so stored timestamps order correctly as text.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeFormat, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
