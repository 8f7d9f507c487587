package bus

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/mattjoyce/notifyd/internal/protocol"
)

// KafkaConfig configures the Kafka transport.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// Kafka publishes envelopes to one topic keyed by plugin id, so each
// plugin's messages stay in one partition and keep their order.
type Kafka struct {
	writer *kafka.Writer
}

func NewKafka(cfg KafkaConfig) (*Kafka, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka brokers are empty")
	}
	if cfg.Topic == "" {
		return nil, errors.New("kafka topic is empty")
	}
	return &Kafka{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.Topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			BatchTimeout: 10 * time.Millisecond,
		},
	}, nil
}

func (k *Kafka) Name() string { return "kafka" }

func (k *Kafka) Publish(ctx context.Context, n *protocol.Notification) error {
	msg, err := kafkaMessage(n)
	if err != nil {
		return err
	}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write kafka message: %w", err)
	}
	return nil
}

func (k *Kafka) Close() error {
	return k.writer.Close()
}

func kafkaMessage(n *protocol.Notification) (kafka.Message, error) {
	raw, err := protocol.Marshal(n)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Key:   []byte(n.PluginID),
		Value: raw,
		Time:  n.PostedAt,
		Headers: []kafka.Header{
			{Key: "message_id", Value: []byte(n.MessageID)},
			{Key: "request_name", Value: []byte(n.RequestName)},
		},
	}, nil
}
