package plugin

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Subscription declares one notification kind a plugin wants to receive.
type Subscription struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
}

// Subscriptions is the list of notification kinds a plugin is interested in.
//
// Accepted formats:
//   - string array: notifications: [agent-status-changed, stage-status-changed]
//   - object array: notifications: [{name: stage-status-changed, description: ...}]
type Subscriptions []Subscription

func (s *Subscriptions) UnmarshalYAML(n *yaml.Node) error {
	if n == nil {
		*s = nil
		return nil
	}
	if n.Kind != yaml.SequenceNode {
		return fmt.Errorf("notifications must be a sequence")
	}

	out := make([]Subscription, 0, len(n.Content))
	for _, item := range n.Content {
		switch item.Kind {
		case yaml.ScalarNode:
			out = append(out, Subscription{Name: strings.TrimSpace(item.Value)})
		case yaml.MappingNode:
			var tmp Subscription
			if err := item.Decode(&tmp); err != nil {
				return fmt.Errorf("invalid notification object: %w", err)
			}
			tmp.Name = strings.TrimSpace(tmp.Name)
			out = append(out, tmp)
		default:
			return fmt.Errorf("invalid notification entry (must be string or object)")
		}
	}

	*s = out
	return nil
}

// Names returns the subscribed kinds in manifest order.
func (s Subscriptions) Names() []string {
	out := make([]string, 0, len(s))
	for _, sub := range s {
		out = append(out, sub.Name)
	}
	return out
}

// Manifest is the on-disk manifest.yaml of a notification plugin.
type Manifest struct {
	Name          string        `yaml:"name"`
	Version       string        `yaml:"version"`
	Protocol      int           `yaml:"protocol"`
	Description   string        `yaml:"description,omitempty"`
	Notifications Subscriptions `yaml:"notifications"`
}

// Plugin is a registered notification plugin.
type Plugin struct {
	ID            string // Plugin id (manifest name)
	Path          string // Absolute path to plugin directory, empty when registered in code
	Version       string
	Protocol      int
	Description   string
	Notifications Subscriptions
}

// InterestedIn reports whether the plugin subscribes to kind.
func (p *Plugin) InterestedIn(kind string) bool {
	for _, sub := range p.Notifications {
		if sub.Name == kind {
			return true
		}
	}
	return false
}
