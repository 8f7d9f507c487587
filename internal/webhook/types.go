package webhook

import (
	"context"

	"github.com/mattjoyce/notifyd/internal/domain"
	"github.com/mattjoyce/notifyd/internal/notification"
)

// Notifier receives verified status changes.
type Notifier interface {
	NotifyAgentStatus(ctx context.Context, agent domain.Agent) error
	NotifyStageStatus(ctx context.Context, stage domain.Stage) error
}

// Config holds webhook server configuration.
type Config struct {
	Listen string
	// RateLimit is requests per minute per client IP; zero disables limiting.
	RateLimit int
	Endpoints []EndpointConfig
}

// EndpointConfig binds a URL path to one notification kind.
type EndpointConfig struct {
	Path string
	Kind notification.Kind

	// Secret is the HMAC-SHA256 key shared with the sender.
	Secret string

	// SignatureHeader carries the signature, as "sha256=<hex>" or "<hex>".
	SignatureHeader string

	MaxBodySize int64
}

// AcceptedResponse is returned once a status change was dispatched.
type AcceptedResponse struct {
	Status string `json:"status"`
	Kind   string `json:"kind"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

const (
	DefaultMaxBodySize     = 1 << 20
	DefaultSignatureHeader = "X-Hub-Signature-256"
)
