package config

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// GetPath retrieves a value using a dot-notation path, e.g.
// "delivery.nats.url" or "pipeline_groups.0.name".
func (c *Config) GetPath(path string) (any, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}

	var m map[string]any
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return getValue(m, path)
}

func getValue(m map[string]any, path string) (any, error) {
	var current any = m

	for part := range strings.SplitSeq(path, ".") {
		if part == "" {
			continue
		}

		switch node := current.(type) {
		case map[string]any:
			val, exists := node[part]
			if !exists {
				return nil, fmt.Errorf("path %q: key %q not found", path, part)
			}
			current = val
		case []any:
			i, err := strconv.Atoi(part)
			if err != nil || i < 0 || i >= len(node) {
				return nil, fmt.Errorf("path %q: index %q out of range", path, part)
			}
			current = node[i]
		default:
			return nil, fmt.Errorf("path %q breaks at %q (not a map)", path, part)
		}
	}

	return current, nil
}
