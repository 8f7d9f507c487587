package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/mattjoyce/notifyd/internal/notification"
)

// EnvPrefix prefixes every environment override, e.g. NOTIFYD_STATE_PATH.
const EnvPrefix = "NOTIFYD_"

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Load reads configPath, interpolates ${VAR} references, applies NOTIFYD_*
// overrides and validates the result. When a .checksums file sits next to
// the config, the file must match it.
func Load(configPath string) (*Config, error) {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path: %w", err)
	}

	if err := VerifyLock(absPath); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", absPath, err)
	}
	cfg.SourcePath = absPath
	resolveRelativePaths(cfg, filepath.Dir(absPath))
	return cfg, nil
}

// Parse decodes YAML on top of Defaults(), applies environment overrides and
// validates. Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := Defaults()

	expanded := interpolateEnv(string(data))
	dec := yaml.NewDecoder(strings.NewReader(expanded))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("environment overrides: %w", err)
	}
	return nil
}

// resolveRelativePaths anchors state.path and plugins_dir at the config file's
// directory so the daemon behaves the same from any working directory.
func resolveRelativePaths(cfg *Config, baseDir string) {
	if cfg.State.Path != "" && cfg.State.Path != ":memory:" && !filepath.IsAbs(cfg.State.Path) {
		cfg.State.Path = filepath.Join(baseDir, cfg.State.Path)
	}
	if cfg.PluginsDir != "" && !filepath.IsAbs(cfg.PluginsDir) {
		cfg.PluginsDir = filepath.Join(baseDir, cfg.PluginsDir)
	}
}

// DiscoverConfigPath finds the config file by checking standard locations.
// Priority order: $NOTIFYD_CONFIG, ./notifyd.yaml, ~/.config/notifyd/notifyd.yaml, /etc/notifyd/notifyd.yaml
func DiscoverConfigPath() (string, error) {
	candidates := make([]string, 0, 4)
	if p := os.Getenv(EnvPrefix + "CONFIG"); p != "" {
		candidates = append(candidates, p)
	}
	candidates = append(candidates, "./notifyd.yaml")
	if homeDir, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(homeDir, ".config", "notifyd", "notifyd.yaml"))
	}
	candidates = append(candidates, "/etc/notifyd/notifyd.yaml")

	for _, p := range candidates {
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p, nil
		}
	}
	return "", fmt.Errorf("no config found (checked: %s)", strings.Join(candidates, ", "))
}

// interpolateEnv replaces ${VAR} with its value. Unset variables are left in
// place so validate can name them.
func interpolateEnv(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		return match
	})
}

func validate(cfg *Config) error {
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[strings.ToLower(cfg.Service.LogLevel)] {
		return fmt.Errorf("service.log_level must be one of: debug, info, warn, error (got %q)", cfg.Service.LogLevel)
	}
	switch cfg.Service.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("service.log_format must be json or text (got %q)", cfg.Service.LogFormat)
	}

	if cfg.State.Path == "" {
		return fmt.Errorf("state.path is required")
	}
	if cfg.PluginsDir == "" {
		return fmt.Errorf("plugins_dir is required")
	}

	if cfg.Notifications.Delay < 0 {
		return fmt.Errorf("notifications.delay must not be negative")
	}
	if _, err := notification.ParseLookupPolicy(cfg.Notifications.LookupFailure); err != nil {
		return fmt.Errorf("notifications.lookup_failure: %w", err)
	}

	if err := validateDelivery(&cfg.Delivery); err != nil {
		return err
	}

	seen := make(map[string]bool, len(cfg.PipelineGroups))
	for i, g := range cfg.PipelineGroups {
		if strings.TrimSpace(g.Name) == "" {
			return fmt.Errorf("pipeline_groups[%d].name is required", i)
		}
		key := strings.ToLower(g.Name)
		if seen[key] {
			return fmt.Errorf("pipeline_groups: duplicate group %q", g.Name)
		}
		seen[key] = true
	}

	if cfg.API.Enabled {
		if cfg.API.Listen == "" {
			return fmt.Errorf("api.listen is required when the API is enabled")
		}
		if cfg.API.APIKey == "" {
			return fmt.Errorf("api.api_key is required when the API is enabled")
		}
		if m := envVarPattern.FindStringSubmatch(cfg.API.APIKey); len(m) > 1 {
			return fmt.Errorf("api.api_key: environment variable ${%s} is not set", m[1])
		}
	}
	return validateWebhooks(&cfg.Webhooks)
}

func validateWebhooks(w *WebhooksConfig) error {
	if w.RateLimit < 0 {
		return fmt.Errorf("webhooks.rate_limit must be >= 0 (got %d)", w.RateLimit)
	}
	if len(w.Endpoints) == 0 {
		return nil
	}
	if w.Listen == "" {
		return fmt.Errorf("webhooks.listen is required when endpoints are configured")
	}
	paths := make(map[string]bool, len(w.Endpoints))
	for i, ep := range w.Endpoints {
		if !strings.HasPrefix(ep.Path, "/") {
			return fmt.Errorf("webhooks.endpoints[%d].path must start with / (got %q)", i, ep.Path)
		}
		if paths[ep.Path] {
			return fmt.Errorf("webhooks.endpoints: duplicate path %q", ep.Path)
		}
		paths[ep.Path] = true
		if _, err := notification.ParseKind(ep.Kind); err != nil {
			return fmt.Errorf("webhooks.endpoints[%d].kind: %w", i, err)
		}
		if ep.Secret == "" {
			return fmt.Errorf("webhooks.endpoints[%d].secret is required", i)
		}
		if m := envVarPattern.FindStringSubmatch(ep.Secret); len(m) > 1 {
			return fmt.Errorf("webhooks.endpoints[%d].secret: environment variable ${%s} is not set", i, m[1])
		}
	}
	return nil
}

func validateDelivery(d *DeliveryConfig) error {
	switch d.Backend {
	case BackendOutbox, BackendMemory:
	default:
		return fmt.Errorf("delivery.backend must be outbox or memory (got %q)", d.Backend)
	}

	switch d.Transport {
	case TransportLog:
	case TransportNATS:
		if d.NATS.URL == "" {
			return fmt.Errorf("delivery.nats.url is required for the nats transport")
		}
	case TransportKafka:
		if len(d.Kafka.Brokers) == 0 {
			return fmt.Errorf("delivery.kafka.brokers is required for the kafka transport")
		}
		if d.Kafka.Topic == "" {
			return fmt.Errorf("delivery.kafka.topic is required for the kafka transport")
		}
	default:
		return fmt.Errorf("delivery.transport must be one of: log, nats, kafka (got %q)", d.Transport)
	}

	if d.PollInterval <= 0 {
		return fmt.Errorf("delivery.poll_interval must be positive")
	}
	if d.MaxAttempts < 1 {
		return fmt.Errorf("delivery.max_attempts must be at least 1")
	}
	if d.BackoffBase <= 0 {
		return fmt.Errorf("delivery.backoff_base must be positive")
	}
	if d.MaxBackoff < d.BackoffBase {
		return fmt.Errorf("delivery.max_backoff must not be below delivery.backoff_base")
	}
	if d.DedupeWindow < 0 {
		return fmt.Errorf("delivery.dedupe_window must not be negative")
	}
	if d.Backend == BackendMemory && d.Workers < 1 {
		return fmt.Errorf("delivery.workers must be at least 1 for the memory backend")
	}
	return nil
}
