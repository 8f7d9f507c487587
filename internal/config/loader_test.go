package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		env     map[string]string
		wantErr string
		checkFn func(t *testing.T, cfg *Config)
	}{
		{
			name: "empty file gets defaults",
			yaml: ``,
			checkFn: func(t *testing.T, cfg *Config) {
				if cfg.Delivery.Backend != "outbox" || cfg.Delivery.Transport != "log" {
					t.Errorf("delivery defaults not applied: %+v", cfg.Delivery)
				}
				if cfg.Notifications.Delay != 0 {
					t.Errorf("default delay = %v, want 0", cfg.Notifications.Delay)
				}
				if cfg.Notifications.LookupFailure != "abort" {
					t.Errorf("default lookup_failure = %q", cfg.Notifications.LookupFailure)
				}
				if cfg.Delivery.DedupeWindow != 0 {
					t.Errorf("dedupe must be off by default, got %v", cfg.Delivery.DedupeWindow)
				}
			},
		},
		{
			name: "full config",
			yaml: `
service:
  name: ci
  log_level: debug
  log_format: text
state:
  path: ./state/notifyd.db
plugins_dir: ./plugins
notifications:
  delay: 2s
  lookup_failure: omit
delivery:
  backend: memory
  transport: kafka
  workers: 2
  kafka:
    brokers: [k1:9092, k2:9092]
    topic: gocd
pipeline_groups:
  - name: release
    pipelines: [build, deploy]
api:
  enabled: true
  listen: :9090
  api_key: secret
telemetry:
  otlp_endpoint: localhost:4318
`,
			checkFn: func(t *testing.T, cfg *Config) {
				if cfg.Service.LogFormat != "text" || cfg.Service.LogLevel != "debug" {
					t.Errorf("service not parsed: %+v", cfg.Service)
				}
				if cfg.Notifications.Delay != 2*time.Second || cfg.Notifications.LookupFailure != "omit" {
					t.Errorf("notifications not parsed: %+v", cfg.Notifications)
				}
				if cfg.Delivery.Backend != "memory" || len(cfg.Delivery.Kafka.Brokers) != 2 || cfg.Delivery.Kafka.Topic != "gocd" {
					t.Errorf("delivery not parsed: %+v", cfg.Delivery)
				}
				if len(cfg.PipelineGroups) != 1 || cfg.PipelineGroups[0].Pipelines[1] != "deploy" {
					t.Errorf("pipeline_groups not parsed: %+v", cfg.PipelineGroups)
				}
				if !filepath.IsAbs(cfg.State.Path) || !strings.HasSuffix(cfg.State.Path, filepath.Join("state", "notifyd.db")) {
					t.Errorf("state.path not anchored at config dir: %s", cfg.State.Path)
				}
				if cfg.Telemetry.OTLPEndpoint != "localhost:4318" {
					t.Errorf("telemetry not parsed: %+v", cfg.Telemetry)
				}
			},
		},
		{
			name: "env interpolation",
			yaml: `
api:
  enabled: true
  api_key: ${TEST_NOTIFYD_KEY}
`,
			env: map[string]string{"TEST_NOTIFYD_KEY": "from-env"},
			checkFn: func(t *testing.T, cfg *Config) {
				if cfg.API.APIKey != "from-env" {
					t.Errorf("api_key = %q", cfg.API.APIKey)
				}
			},
		},
		{
			name: "NOTIFYD_ overrides win over the file",
			yaml: `
delivery:
  max_attempts: 3
`,
			env: map[string]string{
				"NOTIFYD_DELIVERY_MAX_ATTEMPTS":  "9",
				"NOTIFYD_NOTIFICATIONS_DELAY":    "500ms",
				"NOTIFYD_DELIVERY_KAFKA_BROKERS": "a:1,b:2",
				"NOTIFYD_STATE_PATH":             ":memory:",
			},
			checkFn: func(t *testing.T, cfg *Config) {
				if cfg.Delivery.MaxAttempts != 9 {
					t.Errorf("max_attempts = %d, want 9", cfg.Delivery.MaxAttempts)
				}
				if cfg.Notifications.Delay != 500*time.Millisecond {
					t.Errorf("delay = %v", cfg.Notifications.Delay)
				}
				if len(cfg.Delivery.Kafka.Brokers) != 2 {
					t.Errorf("brokers = %v", cfg.Delivery.Kafka.Brokers)
				}
				if cfg.State.Path != ":memory:" {
					t.Errorf(":memory: must not be anchored, got %s", cfg.State.Path)
				}
			},
		},
		{
			name:    "unset env var in api key",
			yaml:    "api:\n  enabled: true\n  api_key: ${TEST_NOTIFYD_MISSING}\n",
			wantErr: "TEST_NOTIFYD_MISSING",
		},
		{
			name:    "unknown key",
			yaml:    "delivery:\n  backend: outbox\n  retries: 3\n",
			wantErr: "retries",
		},
		{
			name:    "invalid lookup policy",
			yaml:    "notifications:\n  lookup_failure: ignore\n",
			wantErr: "lookup_failure",
		},
		{
			name:    "negative delay",
			yaml:    "notifications:\n  delay: -1s\n",
			wantErr: "delay",
		},
		{
			name:    "invalid backend",
			yaml:    "delivery:\n  backend: redis\n",
			wantErr: "delivery.backend",
		},
		{
			name:    "kafka without brokers",
			yaml:    "delivery:\n  transport: kafka\n",
			wantErr: "kafka.brokers",
		},
		{
			name:    "invalid log level",
			yaml:    "service:\n  log_level: loud\n",
			wantErr: "log_level",
		},
		{
			name:    "duplicate pipeline group",
			yaml:    "pipeline_groups:\n  - name: a\n  - name: A\n",
			wantErr: "duplicate group",
		},
		{
			name:    "api without key",
			yaml:    "api:\n  enabled: true\n",
			wantErr: "api_key",
		},
		{
			name:    "max_backoff below base",
			yaml:    "delivery:\n  backoff_base: 10s\n  max_backoff: 1s\n",
			wantErr: "max_backoff",
		},
		{
			name: "webhook endpoints",
			yaml: `
api:
  enabled: true
  api_key: k
  cors_origins: [https://dash.example.com]
webhooks:
  listen: 127.0.0.1:8081
  rate_limit: 60
  endpoints:
    - path: /webhook/stage
      kind: stage-status-changed
      secret: s3cret
      max_body_size: 512KB
`,
			checkFn: func(t *testing.T, cfg *Config) {
				if len(cfg.Webhooks.Endpoints) != 1 || cfg.Webhooks.Endpoints[0].Kind != "stage-status-changed" {
					t.Errorf("webhooks not parsed: %+v", cfg.Webhooks)
				}
				if cfg.Webhooks.RateLimit != 60 {
					t.Errorf("rate_limit = %d", cfg.Webhooks.RateLimit)
				}
				if len(cfg.API.CORSOrigins) != 1 || cfg.API.CORSOrigins[0] != "https://dash.example.com" {
					t.Errorf("cors_origins = %v", cfg.API.CORSOrigins)
				}
			},
		},
		{
			name:    "negative webhook rate limit",
			yaml:    "webhooks:\n  rate_limit: -1\n",
			wantErr: "rate_limit",
		},
		{
			name:    "webhook with unknown kind",
			yaml:    "webhooks:\n  listen: :8081\n  endpoints:\n    - path: /w\n      kind: job-status-changed\n      secret: s\n",
			wantErr: "kind",
		},
		{
			name:    "webhook without listen",
			yaml:    "webhooks:\n  endpoints:\n    - path: /w\n      kind: stage-status-changed\n      secret: s\n",
			wantErr: "webhooks.listen",
		},
		{
			name:    "webhook duplicate path",
			yaml:    "webhooks:\n  listen: :8081\n  endpoints:\n    - {path: /w, kind: stage-status-changed, secret: s}\n    - {path: /w, kind: agent-status-changed, secret: s}\n",
			wantErr: "duplicate path",
		},
		{
			name:    "webhook secret from unset env",
			yaml:    "webhooks:\n  listen: :8081\n  endpoints:\n    - {path: /w, kind: stage-status-changed, secret: \"${TEST_NOTIFYD_NO_SECRET}\"}\n",
			wantErr: "TEST_NOTIFYD_NO_SECRET",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := writeConfig(t, t.TempDir(), tt.yaml)

			cfg, err := Load(path)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("Load() error = %v, want containing %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Load() unexpected error: %v", err)
			}
			if cfg.SourcePath != path {
				t.Errorf("SourcePath = %q, want %q", cfg.SourcePath, path)
			}
			if tt.checkFn != nil {
				tt.checkFn(t, cfg)
			}
		})
	}
}

func TestLoadRejectsTamperedConfig(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "service:\n  name: a\n")
	if _, err := Lock(path, false); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err != nil {
		t.Fatalf("locked config should load: %v", err)
	}

	writeConfig(t, dir, "service:\n  name: b\n")
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "hash mismatch") {
		t.Fatalf("expected hash mismatch, got %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestDiscoverConfigPath(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "")

	t.Setenv("NOTIFYD_CONFIG", path)
	got, err := DiscoverConfigPath()
	if err != nil {
		t.Fatalf("DiscoverConfigPath() failed: %v", err)
	}
	if got != path {
		t.Fatalf("DiscoverConfigPath() = %q, want %q", got, path)
	}
}

func TestInterpolateEnvLeavesUnsetPlaceholders(t *testing.T) {
	t.Setenv("TEST_NOTIFYD_SET", "x")
	got := interpolateEnv("a=${TEST_NOTIFYD_SET} b=${TEST_NOTIFYD_UNSET_VAR}")
	if got != "a=x b=${TEST_NOTIFYD_UNSET_VAR}" {
		t.Fatalf("interpolateEnv() = %q", got)
	}
	if _, ok := os.LookupEnv("TEST_NOTIFYD_UNSET_VAR"); ok {
		t.Skip("environment unexpectedly defines TEST_NOTIFYD_UNSET_VAR")
	}
}
