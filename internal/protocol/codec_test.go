package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/mattjoyce/notifyd/internal/notification"
)

var postedAt = time.Date(2026, 2, 8, 12, 0, 0, 0, time.UTC)

func validNotification() *Notification {
	return &Notification{
		Protocol:    1,
		MessageID:   "msg-1",
		PluginID:    "slack",
		RequestName: "agent-status-changed",
		Data:        json.RawMessage(`{"uuid":"u"}`),
		PostedAt:    postedAt,
	}
}

func TestNewNotification(t *testing.T) {
	msg := notification.NewMessage("slack", notification.AgentData{UUID: "u", HostName: "h"})
	n, err := NewNotification(msg, postedAt.In(time.FixedZone("AEST", 10*3600)))
	if err != nil {
		t.Fatalf("NewNotification: %v", err)
	}
	if n.Protocol != Version || n.PluginID != "slack" || n.RequestName != "agent-status-changed" {
		t.Fatalf("unexpected envelope: %#v", n)
	}
	if n.MessageID == "" {
		t.Fatal("message id should be generated")
	}
	if n.PostedAt.Location() != time.UTC || !n.PostedAt.Equal(postedAt) {
		t.Fatalf("posted_at = %v, want %v in UTC", n.PostedAt, postedAt)
	}

	p, err := n.Payload()
	if err != nil {
		t.Fatalf("Payload: %v", err)
	}
	if got := p.(notification.AgentData); got.HostName != "h" {
		t.Fatalf("payload = %#v", got)
	}

	if _, err := NewNotification(notification.Message{}, postedAt); err == nil {
		t.Fatal("expected error for message without payload")
	}
}

func TestEncode(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(n *Notification)
		wantErr string
		checkFn func(t *testing.T, output string)
	}{
		{
			name: "valid agent notification",
			checkFn: func(t *testing.T, output string) {
				for _, want := range []string{`"protocol":1`, `"message_id":"msg-1"`, `"plugin_id":"slack"`, `"request_name":"agent-status-changed"`, `"data":{"uuid":"u"}`} {
					if !strings.Contains(output, want) {
						t.Errorf("output missing %s: %s", want, output)
					}
				}
				if !strings.HasSuffix(output, "\n") {
					t.Error("encoded envelope should end with a newline")
				}
			},
		},
		{
			name:    "unsupported protocol version",
			mutate:  func(n *Notification) { n.Protocol = 2 },
			wantErr: "unsupported protocol version",
		},
		{
			name:    "missing plugin id",
			mutate:  func(n *Notification) { n.PluginID = "" },
			wantErr: "plugin_id",
		},
		{
			name:    "missing message id",
			mutate:  func(n *Notification) { n.MessageID = "" },
			wantErr: "message_id",
		},
		{
			name:    "unknown request name",
			mutate:  func(n *Notification) { n.RequestName = "plugin-settings-changed" },
			wantErr: "unknown notification kind",
		},
		{
			name:    "missing data",
			mutate:  func(n *Notification) { n.Data = nil },
			wantErr: "data",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := validNotification()
			if tt.mutate != nil {
				tt.mutate(n)
			}
			var buf bytes.Buffer
			err := Encode(&buf, n)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("Encode() error = %v, want containing %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Encode() unexpected error: %v", err)
			}
			if tt.checkFn != nil {
				tt.checkFn(t, buf.String())
			}
		})
	}
}

func TestUnsupportedProtocolIsSentinel(t *testing.T) {
	n := validNotification()
	n.Protocol = 0
	if err := n.Validate(); !errors.Is(err, ErrUnsupportedProtocol) {
		t.Fatalf("expected ErrUnsupportedProtocol, got %v", err)
	}
}

func TestMarshalDecodeRoundTrip(t *testing.T) {
	raw, err := Marshal(validNotification())
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if bytes.HasSuffix(raw, []byte("\n")) {
		t.Fatal("Marshal should trim the trailing newline")
	}

	got, err := Decode(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.MessageID != "msg-1" || !got.PostedAt.Equal(postedAt) || string(got.Data) != `{"uuid":"u"}` {
		t.Fatalf("round trip mismatch: %#v", got)
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid", `{"protocol":1,"message_id":"m","plugin_id":"p","request_name":"stage-status-changed","data":{},"posted_at":"2026-02-08T12:00:00Z"}`, false},
		{"unknown field", `{"protocol":1,"message_id":"m","plugin_id":"p","request_name":"stage-status-changed","data":{},"extra":true}`, true},
		{"bad version", `{"protocol":3,"message_id":"m","plugin_id":"p","request_name":"stage-status-changed","data":{}}`, true},
		{"not json", `hello`, true},
		{"empty", ``, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tt.input))
			if (err != nil) != tt.wantErr {
				t.Fatalf("Decode() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
