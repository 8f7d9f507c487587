package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/mattjoyce/notifyd/internal/notification"
)

// NewNotification wraps a dispatched message in a version 1 envelope with a
// fresh message id.
func NewNotification(msg notification.Message, postedAt time.Time) (*Notification, error) {
	if msg.Data() == nil {
		return nil, fmt.Errorf("message for %q has no payload", msg.PluginID())
	}
	data, err := json.Marshal(msg.Data())
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msg.Kind(), err)
	}
	return &Notification{
		Protocol:    Version,
		MessageID:   uuid.NewString(),
		PluginID:    msg.PluginID(),
		RequestName: msg.RequestName(),
		Data:        data,
		PostedAt:    postedAt.UTC(),
	}, nil
}

// Validate checks the fields every transport relies on.
func (n *Notification) Validate() error {
	if n.Protocol != Version {
		return fmt.Errorf("%w: %d", ErrUnsupportedProtocol, n.Protocol)
	}
	if n.MessageID == "" {
		return fmt.Errorf("notification missing required field: message_id")
	}
	if n.PluginID == "" {
		return fmt.Errorf("notification missing required field: plugin_id")
	}
	if _, err := notification.ParseKind(n.RequestName); err != nil {
		return err
	}
	if len(n.Data) == 0 {
		return fmt.Errorf("notification missing required field: data")
	}
	return nil
}

// Payload decodes the data field into its typed payload.
func (n *Notification) Payload() (notification.Payload, error) {
	return notification.DecodePayload(notification.Kind(n.RequestName), n.Data)
}

// Encode validates n and writes it as one JSON line.
func Encode(w io.Writer, n *Notification) error {
	if err := n.Validate(); err != nil {
		return err
	}
	if err := json.NewEncoder(w).Encode(n); err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}
	return nil
}

// Marshal is Encode into a byte slice without the trailing newline.
func Marshal(n *Notification) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, n); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Decode reads one envelope from r. Unknown fields are rejected.
func Decode(r io.Reader) (*Notification, error) {
	var n Notification
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&n); err != nil {
		return nil, fmt.Errorf("failed to decode notification: %w", err)
	}
	if err := n.Validate(); err != nil {
		return nil, err
	}
	return &n, nil
}
