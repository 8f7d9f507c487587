package doctor

import (
	"strings"
	"testing"
	"time"

	"github.com/mattjoyce/notifyd/internal/config"
	"github.com/mattjoyce/notifyd/internal/plugin"
)

func validConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Defaults()
	cfg.PluginsDir = t.TempDir()
	cfg.State.Path = "/tmp/notifyd-test.db"
	cfg.API.Enabled = true
	cfg.API.APIKey = "0123456789abcdef0123"
	return cfg
}

func registryWith(plugins ...*plugin.Plugin) *plugin.Registry {
	r := plugin.NewRegistry()
	for _, p := range plugins {
		_ = r.Add(p)
	}
	return r
}

func slackPlugin() *plugin.Plugin {
	return &plugin.Plugin{
		ID:       "slack",
		Protocol: 1,
		Notifications: plugin.Subscriptions{
			{Name: "agent-status-changed"},
			{Name: "stage-status-changed"},
		},
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	t.Parallel()
	r := New(validConfig(t), registryWith(slackPlugin())).Validate()
	if !r.Valid {
		t.Fatalf("expected valid, got errors: %v", r.Errors)
	}
	if len(r.Warnings) != 0 {
		t.Fatalf("expected no warnings, got %v", r.Warnings)
	}
	if got := FormatHuman(r); got != "Configuration valid.\n" {
		t.Fatalf("FormatHuman = %q", got)
	}
}

func TestValidate_PluginsDir(t *testing.T) {
	t.Parallel()

	cfg := validConfig(t)
	cfg.PluginsDir = ""
	r := New(cfg, registryWith(slackPlugin())).Validate()
	if r.Valid {
		t.Fatal("expected invalid")
	}
	assertHasError(t, r, "service", "plugins_dir is required")

	cfg = validConfig(t)
	cfg.PluginsDir = cfg.PluginsDir + "/missing"
	r = New(cfg, registryWith(slackPlugin())).Validate()
	assertHasError(t, r, "service", "not readable")
}

func TestValidate_NoPlugins(t *testing.T) {
	t.Parallel()
	r := New(validConfig(t), nil).Validate()
	if !r.Valid {
		t.Fatalf("no plugins should only warn, got %v", r.Errors)
	}
	assertHasWarning(t, r, "plugins", "zero subscribers")
}

func TestValidate_Subscriptions(t *testing.T) {
	t.Parallel()
	email := &plugin.Plugin{
		ID:            "email",
		Protocol:      1,
		Notifications: plugin.Subscriptions{{Name: "stage-status-changed"}, {Name: "plugin-settings-changed"}},
	}
	r := New(validConfig(t), registryWith(email)).Validate()
	assertHasWarning(t, r, "plugins", `unknown notification "plugin-settings-changed"`)
	assertHasWarning(t, r, "plugins", "no plugin subscribes to agent-status-changed")
}

func TestValidate_Delivery(t *testing.T) {
	t.Parallel()

	cfg := validConfig(t)
	cfg.Delivery.Backend = "memory"
	cfg.Delivery.Transport = "nats"
	cfg.Delivery.DedupeWindow = time.Minute
	r := New(cfg, registryWith(slackPlugin())).Validate()
	if r.Valid {
		t.Fatal("dedupe on the memory backend should be an error")
	}
	assertHasError(t, r, "delivery", "requires the outbox backend")
	assertHasWarning(t, r, "delivery", "drops undelivered messages")

	cfg = validConfig(t)
	cfg.State.Path = ":memory:"
	r = New(cfg, registryWith(slackPlugin())).Validate()
	assertHasWarning(t, r, "delivery", ":memory:")
}

func TestValidate_PipelineGroups(t *testing.T) {
	t.Parallel()
	cfg := validConfig(t)
	cfg.PipelineGroups = []config.PipelineGroup{
		{Name: "release", Pipelines: []string{"deploy"}},
		{Name: "ops", Pipelines: []string{"Deploy"}},
		{Name: "empty"},
	}
	r := New(cfg, registryWith(slackPlugin())).Validate()
	if !r.Valid {
		t.Fatalf("group warnings must not invalidate, got %v", r.Errors)
	}
	assertHasWarning(t, r, "pipeline_groups", `"release" wins`)
	assertHasWarning(t, r, "pipeline_groups", "no pipelines")
}

func TestValidate_API(t *testing.T) {
	t.Parallel()
	cfg := validConfig(t)
	cfg.API.APIKey = "short"
	r := New(cfg, registryWith(slackPlugin())).Validate()
	assertHasWarning(t, r, "api", "shorter than 16")

	cfg.API.Enabled = false
	r = New(cfg, registryWith(slackPlugin())).Validate()
	assertHasWarning(t, r, "api", "API disabled")
}

func TestValidate_Webhooks(t *testing.T) {
	t.Parallel()
	cfg := validConfig(t)
	cfg.Webhooks = config.WebhooksConfig{
		Listen:    cfg.API.Listen,
		Endpoints: []config.WebhookEndpoint{{Path: "/w", Kind: "stage-status-changed", Secret: "tiny"}},
	}
	r := New(cfg, registryWith(slackPlugin())).Validate()
	if r.Valid {
		t.Fatal("shared listener should be invalid")
	}
	assertHasError(t, r, "webhooks", "cannot share listener")
	assertHasWarning(t, r, "webhooks", "shorter than 16")

	cfg.API.Enabled = false
	r = New(cfg, registryWith(slackPlugin())).Validate()
	if !r.Valid {
		t.Fatalf("webhooks alone should be valid: %v", r.Errors)
	}
	for _, w := range r.Warnings {
		if w.Category == "api" {
			t.Errorf("no api warning expected when webhooks are configured: %v", w)
		}
	}
}

func TestFormat(t *testing.T) {
	t.Parallel()
	r := &Result{
		Valid:    false,
		Errors:   []Issue{{Category: "service", Field: "state.path", Message: "state.path is required"}},
		Warnings: []Issue{{Category: "plugins", Message: "no plugin subscribes to stage-status-changed"}},
	}

	human := FormatHuman(r)
	for _, want := range []string{
		"Configuration invalid (1 error(s), 1 warning(s))",
		"ERROR [service] state.path: state.path is required",
		"WARN  [plugins] no plugin subscribes",
	} {
		if !strings.Contains(human, want) {
			t.Errorf("FormatHuman missing %q:\n%s", want, human)
		}
	}

	js, err := FormatJSON(r)
	if err != nil {
		t.Fatalf("FormatJSON: %v", err)
	}
	if !strings.Contains(js, `"valid": false`) || !strings.Contains(js, `"field": "state.path"`) {
		t.Fatalf("FormatJSON = %s", js)
	}
}

func assertHasError(t *testing.T, r *Result, category, substring string) {
	t.Helper()
	for _, e := range r.Errors {
		if e.Category == category && strings.Contains(e.Message, substring) {
			return
		}
	}
	t.Fatalf("expected error with category=%q containing %q, got: %v", category, substring, r.Errors)
}

func assertHasWarning(t *testing.T, r *Result, category, substring string) {
	t.Helper()
	for _, w := range r.Warnings {
		if w.Category == category && strings.Contains(w.Message, substring) {
			return
		}
	}
	t.Fatalf("expected warning with category=%q containing %q, got: %v", category, substring, r.Warnings)
}
