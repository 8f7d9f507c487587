package delivery

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/zeebo/blake3"

	"github.com/mattjoyce/notifyd/internal/notification"
	"github.com/mattjoyce/notifyd/internal/protocol"
	"github.com/mattjoyce/notifyd/internal/queue"
)

// OutboxConfig tunes the SQLite outbox.
type OutboxConfig struct {
	MaxAttempts int
	// DedupeWindow drops a message identical to one enqueued within the
	// window. Zero disables deduplication.
	DedupeWindow time.Duration
}

// Outbox is a notification.Poster that persists every message to the
// job queue. A Relay delivers them.
type Outbox struct {
	queue *queue.Queue
	cfg   OutboxConfig
	now   func() time.Time
}

func NewOutbox(q *queue.Queue, cfg OutboxConfig) *Outbox {
	return &Outbox{queue: q, cfg: cfg, now: time.Now}
}

// Post enqueues msg due after delay. It returns once the row is committed.
func (o *Outbox) Post(ctx context.Context, msg notification.Message, delay time.Duration) error {
	env, err := protocol.NewNotification(msg, o.now())
	if err != nil {
		return err
	}

	var digest *string
	if o.cfg.DedupeWindow > 0 {
		d := Digest(env)
		digest = &d
	}

	raw, err := protocol.Marshal(env)
	if err != nil {
		return err
	}
	_, err = o.queue.Enqueue(ctx, queue.EnqueueRequest{
		ID:           env.MessageID,
		Plugin:       env.PluginID,
		RequestName:  env.RequestName,
		Payload:      raw,
		Digest:       digest,
		MaxAttempts:  o.cfg.MaxAttempts,
		Delay:        delay,
		DedupeWindow: o.cfg.DedupeWindow,
	})
	if errors.Is(err, queue.ErrDuplicate) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("post to outbox: %w", err)
	}
	return nil
}

// Digest identifies an envelope by target, request name and data, ignoring
// its message id and timestamp.
func Digest(n *protocol.Notification) string {
	h := blake3.New()
	_, _ = h.Write([]byte(n.PluginID))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(n.RequestName))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write(n.Data)
	return hex.EncodeToString(h.Sum(nil))
}
