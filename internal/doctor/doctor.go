// Package doctor checks a loaded notifyd configuration against the plugins
// it will actually dispatch to.
package doctor

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/mattjoyce/notifyd/internal/config"
	"github.com/mattjoyce/notifyd/internal/notification"
	"github.com/mattjoyce/notifyd/internal/plugin"
)

// Result holds the outcome of a validation run.
type Result struct {
	Valid    bool    `json:"valid"`
	Errors   []Issue `json:"errors,omitempty"`
	Warnings []Issue `json:"warnings,omitempty"`
}

// Issue describes a single validation error or warning.
type Issue struct {
	Category string `json:"category"`
	Message  string `json:"message"`
	Field    string `json:"field,omitempty"`
}

// Doctor validates configuration against discovered plugins.
type Doctor struct {
	cfg      *config.Config
	registry *plugin.Registry
}

// New creates a Doctor from a loaded config and plugin registry. registry
// may be nil when discovery failed.
func New(cfg *config.Config, registry *plugin.Registry) *Doctor {
	return &Doctor{cfg: cfg, registry: registry}
}

// Validate runs all checks and returns a result.
func (d *Doctor) Validate() *Result {
	r := &Result{Valid: true}

	d.validatePaths(r)
	d.validatePlugins(r)
	d.validateDelivery(r)
	d.warnPipelineGroups(r)
	d.warnAPI(r)
	d.validateWebhooks(r)

	r.Valid = len(r.Errors) == 0
	return r
}

func (d *Doctor) addError(r *Result, category, field, msg string) {
	r.Errors = append(r.Errors, Issue{Category: category, Field: field, Message: msg})
}

func (d *Doctor) addWarning(r *Result, category, field, msg string) {
	r.Warnings = append(r.Warnings, Issue{Category: category, Field: field, Message: msg})
}

func (d *Doctor) validatePaths(r *Result) {
	if d.cfg.PluginsDir == "" {
		d.addError(r, "service", "plugins_dir", "plugins_dir is required")
	} else if info, err := os.Stat(d.cfg.PluginsDir); err != nil {
		d.addError(r, "service", "plugins_dir", fmt.Sprintf("plugins_dir %s is not readable: %v", d.cfg.PluginsDir, err))
	} else if !info.IsDir() {
		d.addError(r, "service", "plugins_dir", fmt.Sprintf("plugins_dir %s is not a directory", d.cfg.PluginsDir))
	}

	if d.cfg.State.Path == "" {
		d.addError(r, "service", "state.path", "state.path is required")
	}
}

// validatePlugins reports kinds nobody receives and subscriptions notifyd
// never dispatches.
func (d *Doctor) validatePlugins(r *Result) {
	if d.registry == nil || d.registry.Len() == 0 {
		d.addWarning(r, "plugins", "plugins_dir", "no plugins discovered; every notification will have zero subscribers")
		return
	}

	for _, p := range d.registry.All() {
		for _, sub := range p.Notifications {
			if _, err := notification.ParseKind(sub.Name); err != nil {
				d.addWarning(r, "plugins", p.ID,
					fmt.Sprintf("subscribes to unknown notification %q; it will never be delivered", sub.Name))
			}
		}
	}

	for _, kind := range notification.Kinds() {
		if d.registry.PluginsInterestedIn(string(kind)).Len() == 0 {
			d.addWarning(r, "plugins", "", fmt.Sprintf("no plugin subscribes to %s", kind))
		}
	}
}

func (d *Doctor) validateDelivery(r *Result) {
	dc := d.cfg.Delivery
	if dc.Backend == config.BackendMemory && dc.Transport != config.TransportLog {
		d.addWarning(r, "delivery", "delivery.backend",
			"memory backend drops undelivered messages on restart; use outbox for "+dc.Transport)
	}
	if dc.Backend == config.BackendOutbox && d.cfg.State.Path == ":memory:" {
		d.addWarning(r, "delivery", "state.path", "outbox on :memory: loses queued messages on restart")
	}
	if dc.DedupeWindow > 0 {
		d.addWarning(r, "delivery", "delivery.dedupe_window",
			"dedupe is on: identical notifications inside the window are delivered once")
	}
	if dc.Backend == config.BackendMemory && dc.DedupeWindow > 0 {
		d.addError(r, "delivery", "delivery.dedupe_window", "dedupe_window requires the outbox backend")
	}
}

func (d *Doctor) warnPipelineGroups(r *Result) {
	owner := make(map[string]string)
	for _, g := range d.cfg.PipelineGroups {
		field := fmt.Sprintf("pipeline_groups.%s", g.Name)
		if len(g.Pipelines) == 0 {
			d.addWarning(r, "pipeline_groups", field, "group has no pipelines")
		}
		for _, p := range g.Pipelines {
			key := strings.ToLower(p)
			if first, ok := owner[key]; ok {
				d.addWarning(r, "pipeline_groups", field,
					fmt.Sprintf("pipeline %q is also in group %q; %q wins", p, first, first))
				continue
			}
			owner[key] = g.Name
		}
	}
}

func (d *Doctor) warnAPI(r *Result) {
	if !d.cfg.API.Enabled {
		if len(d.cfg.Webhooks.Endpoints) == 0 {
			d.addWarning(r, "api", "api.enabled", "API disabled and no webhooks; nothing can post notifications")
		}
		return
	}
	if len(d.cfg.API.APIKey) < 16 {
		d.addWarning(r, "api", "api.api_key", "api_key is shorter than 16 characters")
	}
}

func (d *Doctor) validateWebhooks(r *Result) {
	wh := d.cfg.Webhooks
	if len(wh.Endpoints) == 0 {
		return
	}
	if d.cfg.API.Enabled && wh.Listen == d.cfg.API.Listen {
		d.addError(r, "webhooks", "webhooks.listen", "webhooks and api cannot share listener "+wh.Listen)
	}
	for i, ep := range wh.Endpoints {
		if len(ep.Secret) < 16 {
			d.addWarning(r, "webhooks", fmt.Sprintf("webhooks.endpoints[%d].secret", i), "secret is shorter than 16 characters")
		}
	}
}

// FormatHuman returns a human-readable validation report.
func FormatHuman(r *Result) string {
	var b strings.Builder

	switch {
	case r.Valid && len(r.Warnings) == 0:
		b.WriteString("Configuration valid.\n")
		return b.String()
	case r.Valid:
		fmt.Fprintf(&b, "Configuration valid (%d warning(s))\n", len(r.Warnings))
	default:
		fmt.Fprintf(&b, "Configuration invalid (%d error(s), %d warning(s))\n", len(r.Errors), len(r.Warnings))
	}

	for _, e := range r.Errors {
		writeIssue(&b, "ERROR", e)
	}
	for _, w := range r.Warnings {
		writeIssue(&b, "WARN ", w)
	}
	return b.String()
}

func writeIssue(b *strings.Builder, level string, i Issue) {
	if i.Field != "" {
		fmt.Fprintf(b, "  %s [%s] %s: %s\n", level, i.Category, i.Field, i.Message)
		return
	}
	fmt.Fprintf(b, "  %s [%s] %s\n", level, i.Category, i.Message)
}

// FormatJSON returns the result as indented JSON.
func FormatJSON(r *Result) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
