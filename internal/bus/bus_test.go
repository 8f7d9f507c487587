package bus

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/notifyd/internal/protocol"
)

func envelope() *protocol.Notification {
	return &protocol.Notification{
		Protocol:    protocol.Version,
		MessageID:   "msg-42",
		PluginID:    "slack.notifier",
		RequestName: "stage-status-changed",
		Data:        json.RawMessage(`{"stage":{}}`),
		PostedAt:    time.Date(2026, 2, 8, 12, 0, 0, 0, time.UTC),
	}
}

func TestSubject(t *testing.T) {
	tests := []struct {
		plugin, request, want string
	}{
		{"slack", "agent-status-changed", "notifyd.slack.agent-status-changed"},
		{"com.example.slack", "agent-status-changed", "notifyd.com_example_slack.agent-status-changed"},
		{"wild*card>", "x", "notifyd.wild_card_.x"},
		{"with space", "x", "notifyd.with_space.x"},
		{"", "x", "notifyd._.x"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Subject("notifyd", tt.plugin, tt.request))
	}
}

func TestNATSMessage(t *testing.T) {
	msg, err := natsMessage("gocd", envelope())
	require.NoError(t, err)

	assert.Equal(t, "gocd.slack_notifier.stage-status-changed", msg.Subject)
	assert.Equal(t, "msg-42", msg.Header.Get(nats.MsgIdHdr))
	assert.Equal(t, "stage-status-changed", msg.Header.Get("Notifyd-Request-Name"))

	var got protocol.Notification
	require.NoError(t, json.Unmarshal(msg.Data, &got))
	assert.Equal(t, "slack.notifier", got.PluginID)
}

func TestNATSMessageRejectsInvalidEnvelope(t *testing.T) {
	n := envelope()
	n.Protocol = 2
	_, err := natsMessage("gocd", n)
	assert.ErrorIs(t, err, protocol.ErrUnsupportedProtocol)
}

func TestDialNATSRequiresURL(t *testing.T) {
	_, err := DialNATS(NATSConfig{})
	assert.Error(t, err)
}

func TestKafkaMessage(t *testing.T) {
	msg, err := kafkaMessage(envelope())
	require.NoError(t, err)

	assert.Equal(t, []byte("slack.notifier"), msg.Key)
	assert.Equal(t, envelope().PostedAt, msg.Time)
	headers := map[string]string{}
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, map[string]string{"message_id": "msg-42", "request_name": "stage-status-changed"}, headers)

	decoded, err := protocol.Decode(bytes.NewReader(msg.Value))
	require.NoError(t, err)
	assert.Equal(t, "msg-42", decoded.MessageID)
}

func TestNewKafkaValidation(t *testing.T) {
	_, err := NewKafka(KafkaConfig{Topic: "t"})
	assert.Error(t, err)
	_, err = NewKafka(KafkaConfig{Brokers: []string{"localhost:9092"}})
	assert.Error(t, err)

	k, err := NewKafka(KafkaConfig{Brokers: []string{"localhost:9092"}, Topic: "notifications"})
	require.NoError(t, err)
	assert.Equal(t, "kafka", k.Name())
	assert.NoError(t, k.Close())
}
