// Package bus publishes notification envelopes to message brokers that
// plugins subscribe to.
package bus

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"

	"github.com/mattjoyce/notifyd/internal/protocol"
)

// NATSConfig configures the JetStream transport.
type NATSConfig struct {
	URL           string
	SubjectPrefix string
	// Stream, when set, is created if missing and bound to "<prefix>.>".
	Stream string
}

// NATS publishes each envelope to "<prefix>.<plugin>.<request_name>" on
// JetStream, with the message id as the JetStream dedupe id.
type NATS struct {
	conn   *nats.Conn
	js     nats.JetStreamContext
	prefix string
}

// DialNATS connects and, if cfg.Stream is set, ensures the stream exists.
func DialNATS(cfg NATSConfig, opts ...nats.Option) (*NATS, error) {
	if cfg.URL == "" {
		return nil, errors.New("nats url is empty")
	}
	prefix := cfg.SubjectPrefix
	if prefix == "" {
		prefix = "notifyd"
	}

	opts = append([]nats.Option{nats.Name("notifyd")}, opts...)
	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	if cfg.Stream != "" {
		if err := ensureStream(js, cfg.Stream, prefix); err != nil {
			nc.Close()
			return nil, err
		}
	}
	return &NATS{conn: nc, js: js, prefix: prefix}, nil
}

func ensureStream(js nats.JetStreamContext, name, prefix string) error {
	_, err := js.StreamInfo(name)
	if err == nil {
		return nil
	}
	if !errors.Is(err, nats.ErrStreamNotFound) {
		return fmt.Errorf("stream info %s: %w", name, err)
	}
	_, err = js.AddStream(&nats.StreamConfig{
		Name:     name,
		Subjects: []string{prefix + ".>"},
	})
	if err != nil {
		return fmt.Errorf("add stream %s: %w", name, err)
	}
	return nil
}

func (b *NATS) Name() string { return "nats" }

func (b *NATS) Publish(ctx context.Context, n *protocol.Notification) error {
	msg, err := natsMessage(b.prefix, n)
	if err != nil {
		return err
	}
	if _, err := b.js.PublishMsg(msg, nats.Context(ctx)); err != nil {
		return fmt.Errorf("publish %s: %w", msg.Subject, err)
	}
	return nil
}

// Close drains the connection, falling back to a hard close.
func (b *NATS) Close() error {
	if b == nil || b.conn == nil {
		return nil
	}
	if err := b.conn.Drain(); err != nil {
		b.conn.Close()
	}
	return nil
}

func natsMessage(prefix string, n *protocol.Notification) (*nats.Msg, error) {
	raw, err := protocol.Marshal(n)
	if err != nil {
		return nil, err
	}
	msg := nats.NewMsg(Subject(prefix, n.PluginID, n.RequestName))
	msg.Data = raw
	msg.Header.Set(nats.MsgIdHdr, n.MessageID)
	msg.Header.Set("Notifyd-Request-Name", n.RequestName)
	return msg, nil
}

// Subject builds the subject for a plugin and request name. Characters that
// NATS treats as separators or wildcards are replaced with '_'.
func Subject(prefix, pluginID, requestName string) string {
	return prefix + "." + subjectToken(pluginID) + "." + subjectToken(requestName)
}

func subjectToken(s string) string {
	if s == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\r', '\n':
			return '_'
		}
		return r
	}, s)
}
