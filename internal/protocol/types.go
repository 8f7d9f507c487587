package protocol

import (
	"encoding/json"
	"errors"
	"time"
)

// Version is the only envelope version notifyd speaks.
const Version = 1

var ErrUnsupportedProtocol = errors.New("unsupported protocol version")

// Notification is the envelope a plugin receives for one addressed message.
type Notification struct {
	Protocol    int             `json:"protocol"`
	MessageID   string          `json:"message_id"`
	PluginID    string          `json:"plugin_id"`
	RequestName string          `json:"request_name"` // agent-status-changed | stage-status-changed
	Data        json.RawMessage `json:"data"`
	PostedAt    time.Time       `json:"posted_at"`
}
