package delivery

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mattjoyce/notifyd/internal/events"
	"github.com/mattjoyce/notifyd/internal/metrics"
	"github.com/mattjoyce/notifyd/internal/protocol"
	"github.com/mattjoyce/notifyd/internal/queue"
)

// RelayConfig tunes the outbox relay.
type RelayConfig struct {
	PollInterval time.Duration
	// BackoffBase is the delay before the first retry; it doubles per attempt.
	BackoffBase time.Duration
	// MaxBackoff caps the retry delay. Zero means one hour.
	MaxBackoff time.Duration
}

func (c RelayConfig) withDefaults() RelayConfig {
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = 5 * time.Second
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = time.Hour
	}
	return c
}

// Relay drains due outbox jobs into a Transport.
type Relay struct {
	queue     *queue.Queue
	transport Transport
	cfg       RelayConfig
	hub       *events.Hub
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

func NewRelay(q *queue.Queue, t Transport, cfg RelayConfig, hub *events.Hub, m *metrics.Metrics, logger *slog.Logger) *Relay {
	if logger == nil {
		logger = slog.Default()
	}
	return &Relay{
		queue:     q,
		transport: t,
		cfg:       cfg.withDefaults(),
		hub:       hub,
		metrics:   m,
		logger:    logger.With("component", "relay", "transport", t.Name()),
	}
}

// Start re-queues jobs interrupted by a previous run, then polls until ctx
// is cancelled.
func (r *Relay) Start(ctx context.Context) error {
	if n, err := r.queue.RecoverRunning(ctx); err != nil {
		return err
	} else if n > 0 {
		r.logger.Warn("recovered interrupted deliveries", "count", n)
	}

	r.logger.Info("relay started", "poll_interval", r.cfg.PollInterval)
	defer r.logger.Info("relay stopped")

	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := r.Drain(ctx); err != nil {
				r.logger.Error("failed to drain outbox", "error", err)
			}
		}
	}
}

// Drain delivers every job that is due now and returns how many it handled.
func (r *Relay) Drain(ctx context.Context) (int, error) {
	n := 0
	for ctx.Err() == nil {
		job, err := r.queue.Dequeue(ctx)
		if err != nil {
			return n, fmt.Errorf("dequeue: %w", err)
		}
		if job == nil {
			return n, nil
		}
		r.deliver(ctx, job)
		n++
	}
	return n, ctx.Err()
}

func (r *Relay) deliver(ctx context.Context, job *queue.Job) {
	logger := r.logger.With("message_id", job.ID, "plugin", job.Plugin, "request_name", job.RequestName, "attempt", job.Attempt)

	env, err := protocol.Decode(bytes.NewReader(job.Payload))
	if err != nil {
		// A corrupt envelope will not get better on retry.
		r.bury(ctx, logger, job, fmt.Sprintf("invalid envelope: %v", err))
		return
	}

	if err := r.transport.Publish(ctx, env); err != nil {
		if job.Attempt >= job.MaxAttempts {
			r.bury(ctx, logger, job, err.Error())
			return
		}
		wait := Backoff(r.cfg.BackoffBase, r.cfg.MaxBackoff, job.Attempt)
		logger.Warn("delivery failed, will retry", "error", err, "retry_in", wait)
		if qerr := r.queue.Retry(ctx, job.ID, err.Error(), wait); qerr != nil {
			logger.Error("failed to schedule retry", "error", qerr)
			return
		}
		r.metrics.Delivery(metrics.OutcomeRetry)
		r.hub.Publish(events.DeliveryRetry, map[string]any{
			"message_id": job.ID,
			"plugin":     job.Plugin,
			"attempt":    job.Attempt,
			"error":      err.Error(),
		})
		return
	}

	if err := r.queue.Complete(ctx, job.ID, queue.StatusSucceeded, nil); err != nil {
		logger.Error("failed to complete job", "error", err)
		return
	}
	logger.Debug("delivered")
	r.metrics.Delivery(metrics.OutcomeSucceeded)
	r.hub.Publish(events.DeliverySucceeded, map[string]any{
		"message_id":   job.ID,
		"plugin":       job.Plugin,
		"request_name": job.RequestName,
		"attempt":      job.Attempt,
	})
}

func (r *Relay) bury(ctx context.Context, logger *slog.Logger, job *queue.Job, reason string) {
	logger.Error("delivery dead", "error", reason)
	if err := r.queue.Complete(ctx, job.ID, queue.StatusDead, &reason); err != nil {
		logger.Error("failed to mark job dead", "error", err)
		return
	}
	r.metrics.Delivery(metrics.OutcomeDead)
	r.hub.Publish(events.DeliveryDead, map[string]any{
		"message_id": job.ID,
		"plugin":     job.Plugin,
		"attempt":    job.Attempt,
		"error":      reason,
	})
}

// Backoff is base * 2^(attempt-1), capped at limit.
func Backoff(base, limit time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= limit || d <= 0 {
			return limit
		}
	}
	return min(d, limit)
}
