package config

import "time"

// Delivery backends and transports.
const (
	BackendOutbox = "outbox"
	BackendMemory = "memory"

	TransportLog   = "log"
	TransportNATS  = "nats"
	TransportKafka = "kafka"
)

// Config is the root notifyd configuration.
type Config struct {
	Service        ServiceConfig      `yaml:"service" envPrefix:"SERVICE_"`
	State          StateConfig        `yaml:"state" envPrefix:"STATE_"`
	PluginsDir     string             `yaml:"plugins_dir" env:"PLUGINS_DIR"`
	Notifications  NotificationConfig `yaml:"notifications" envPrefix:"NOTIFICATIONS_"`
	Delivery       DeliveryConfig     `yaml:"delivery" envPrefix:"DELIVERY_"`
	PipelineGroups []PipelineGroup    `yaml:"pipeline_groups,omitempty"`
	API            APIConfig          `yaml:"api" envPrefix:"API_"`
	Telemetry      TelemetryConfig    `yaml:"telemetry" envPrefix:"TELEMETRY_"`
	Webhooks       WebhooksConfig     `yaml:"webhooks,omitempty" envPrefix:"WEBHOOKS_"`

	// SourcePath is the file the config was loaded from. Empty for Defaults().
	SourcePath string `yaml:"-"`
}

type ServiceConfig struct {
	Name      string `yaml:"name" env:"NAME"`
	LogLevel  string `yaml:"log_level" env:"LOG_LEVEL"`
	LogFormat string `yaml:"log_format" env:"LOG_FORMAT"` // json | text
}

type StateConfig struct {
	Path string `yaml:"path" env:"PATH"`
}

// NotificationConfig controls the dispatcher.
type NotificationConfig struct {
	// Delay postpones delivery of every posted message. Zero posts immediately.
	Delay time.Duration `yaml:"delay" env:"DELAY"`
	// LookupFailure is abort or omit.
	LookupFailure string `yaml:"lookup_failure" env:"LOOKUP_FAILURE"`
}

// DeliveryConfig selects where posted messages go and how they are retried.
type DeliveryConfig struct {
	Backend      string        `yaml:"backend" env:"BACKEND"`     // outbox | memory
	Transport    string        `yaml:"transport" env:"TRANSPORT"` // log | nats | kafka
	PollInterval time.Duration `yaml:"poll_interval" env:"POLL_INTERVAL"`
	MaxAttempts  int           `yaml:"max_attempts" env:"MAX_ATTEMPTS"`
	BackoffBase  time.Duration `yaml:"backoff_base" env:"BACKOFF_BASE"`
	MaxBackoff   time.Duration `yaml:"max_backoff" env:"MAX_BACKOFF"`
	DedupeWindow time.Duration `yaml:"dedupe_window" env:"DEDUPE_WINDOW"`
	Workers      int           `yaml:"workers" env:"WORKERS"`
	Buffer       int           `yaml:"buffer" env:"BUFFER"`
	NATS         NATSConfig    `yaml:"nats" envPrefix:"NATS_"`
	Kafka        KafkaConfig   `yaml:"kafka" envPrefix:"KAFKA_"`
}

type NATSConfig struct {
	URL           string `yaml:"url" env:"URL"`
	SubjectPrefix string `yaml:"subject_prefix" env:"SUBJECT_PREFIX"`
	Stream        string `yaml:"stream" env:"STREAM"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers" env:"BROKERS" envSeparator:","`
	Topic   string   `yaml:"topic" env:"TOPIC"`
}

// PipelineGroup maps a group name to the pipelines it contains.
type PipelineGroup struct {
	Name      string   `yaml:"name"`
	Pipelines []string `yaml:"pipelines"`
}

type APIConfig struct {
	Enabled bool   `yaml:"enabled" env:"ENABLED"`
	Listen  string `yaml:"listen" env:"LISTEN"`
	APIKey  string `yaml:"api_key" env:"KEY"`
	// CORSOrigins enables CORS for browser dashboards. Empty disables it.
	CORSOrigins []string `yaml:"cors_origins,omitempty" env:"CORS_ORIGINS"`
}

type TelemetryConfig struct {
	OTLPEndpoint string `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
}

// WebhooksConfig configures the signed ingest listener. It only starts when
// at least one endpoint is listed.
type WebhooksConfig struct {
	Listen string `yaml:"listen" env:"LISTEN"`
	// RateLimit caps requests per minute from one client IP. Zero disables it.
	RateLimit int               `yaml:"rate_limit,omitempty" env:"RATE_LIMIT"`
	Endpoints []WebhookEndpoint `yaml:"endpoints"`
}

// WebhookEndpoint accepts one notification kind at Path. The body must be
// signed with HMAC-SHA256 of Secret in SignatureHeader.
type WebhookEndpoint struct {
	Path            string `yaml:"path"`
	Kind            string `yaml:"kind"`
	Secret          string `yaml:"secret"`
	SignatureHeader string `yaml:"signature_header,omitempty"`
	MaxBodySize     string `yaml:"max_body_size,omitempty"` // e.g. 512KB, 1MB
}

// ChecksumManifest is the .checksums file written by `notifyd config lock`.
type ChecksumManifest struct {
	Version     int               `yaml:"version"`
	GeneratedAt string            `yaml:"generated_at"`
	Hashes      map[string]string `yaml:"hashes"`
}

// Defaults returns a Config with every optional field set.
func Defaults() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:      "notifyd",
			LogLevel:  "info",
			LogFormat: "json",
		},
		State: StateConfig{
			Path: "./data/notifyd.db",
		},
		PluginsDir: "./plugins",
		Notifications: NotificationConfig{
			LookupFailure: "abort",
		},
		Delivery: DeliveryConfig{
			Backend:      BackendOutbox,
			Transport:    TransportLog,
			PollInterval: time.Second,
			MaxAttempts:  5,
			BackoffBase:  5 * time.Second,
			MaxBackoff:   time.Hour,
			Workers:      4,
			Buffer:       256,
			NATS: NATSConfig{
				URL:           "nats://127.0.0.1:4222",
				SubjectPrefix: "notifyd",
			},
			Kafka: KafkaConfig{
				Topic: "notifyd.notifications",
			},
		},
		API: APIConfig{
			Listen: "127.0.0.1:8080",
		},
	}
}
