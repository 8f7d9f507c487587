// Package delivery owns addressed notifications once the dispatcher posts
// them: it persists or buffers them, applies the delay hint, and hands them
// to a Transport with retries.
package delivery

import (
	"context"
	"log/slog"

	"github.com/mattjoyce/notifyd/internal/protocol"
)

// Transport publishes one envelope to wherever plugins consume it. Publish
// must be safe for concurrent use.
type Transport interface {
	Name() string
	Publish(ctx context.Context, n *protocol.Notification) error
	Close() error
}

// LogTransport writes envelopes to the log. It is the default transport and
// the one used in tests.
type LogTransport struct {
	logger *slog.Logger
}

func NewLogTransport(logger *slog.Logger) *LogTransport {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogTransport{logger: logger.With("component", "transport.log")}
}

func (t *LogTransport) Name() string { return "log" }

func (t *LogTransport) Publish(ctx context.Context, n *protocol.Notification) error {
	t.logger.InfoContext(ctx, "notification delivered",
		"message_id", n.MessageID,
		"plugin", n.PluginID,
		"request_name", n.RequestName,
		"bytes", len(n.Data),
	)
	return nil
}

func (t *LogTransport) Close() error { return nil }
