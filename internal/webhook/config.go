package webhook

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mattjoyce/notifyd/internal/config"
	"github.com/mattjoyce/notifyd/internal/notification"
)

// FromConfig converts the loaded webhooks section, parsing kinds and body
// size limits.
func FromConfig(wc config.WebhooksConfig) (Config, error) {
	cfg := Config{
		Listen:    wc.Listen,
		RateLimit: wc.RateLimit,
		Endpoints: make([]EndpointConfig, len(wc.Endpoints)),
	}

	for i, ep := range wc.Endpoints {
		kind, err := notification.ParseKind(ep.Kind)
		if err != nil {
			return Config{}, fmt.Errorf("webhook endpoint %q: %w", ep.Path, err)
		}
		if ep.Secret == "" {
			return Config{}, fmt.Errorf("webhook endpoint %q: no secret configured", ep.Path)
		}
		maxBodySize, err := parseMaxBodySize(ep.MaxBodySize)
		if err != nil {
			return Config{}, fmt.Errorf("webhook endpoint %q: invalid max_body_size %q: %w", ep.Path, ep.MaxBodySize, err)
		}

		cfg.Endpoints[i] = EndpointConfig{
			Path:            ep.Path,
			Kind:            kind,
			Secret:          ep.Secret,
			SignatureHeader: ep.SignatureHeader,
			MaxBodySize:     maxBodySize,
		}
	}
	return cfg, nil
}

// parseMaxBodySize parses "512KB", "1MB" or a plain byte count. Empty means
// DefaultMaxBodySize.
func parseMaxBodySize(size string) (int64, error) {
	if size == "" {
		return DefaultMaxBodySize, nil
	}

	upper := strings.ToUpper(strings.TrimSpace(size))
	multiplier := int64(1)
	for _, unit := range []struct {
		suffix string
		factor int64
	}{
		{"KB", 1 << 10},
		{"MB", 1 << 20},
		{"GB", 1 << 30},
	} {
		if trimmed, ok := strings.CutSuffix(upper, unit.suffix); ok {
			upper, multiplier = trimmed, unit.factor
			break
		}
	}

	value, err := strconv.ParseInt(strings.TrimSpace(upper), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size value: %w", err)
	}
	if value <= 0 {
		return 0, fmt.Errorf("size must be positive")
	}
	if value > (1<<62)/multiplier {
		return 0, fmt.Errorf("size too large")
	}
	return value * multiplier, nil
}
