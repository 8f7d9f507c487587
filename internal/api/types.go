package api

// NotifyResponse is returned by POST /notify/agent and POST /notify/stage.
type NotifyResponse struct {
	Status  string   `json:"status"`
	Kind    string   `json:"kind"`
	Plugins []string `json:"plugins"`
}

// PluginSummary is one entry of GET /plugins.
type PluginSummary struct {
	ID            string   `json:"id"`
	Version       string   `json:"version,omitempty"`
	Description   string   `json:"description,omitempty"`
	Notifications []string `json:"notifications"`
}

// PluginListResponse is returned by GET /plugins.
type PluginListResponse struct {
	Plugins []PluginSummary `json:"plugins"`
}

// ErrorResponse is returned on errors
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthzResponse is returned by GET /healthz.
type HealthzResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	QueueDepth    int    `json:"queue_depth"`
	PluginsLoaded int    `json:"plugins_loaded"`
}
