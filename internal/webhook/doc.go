// Package webhook accepts status changes from CI servers that sign their
// payloads instead of sending an API key.
//
// Each endpoint is bound to one notification kind. A request body is
// verified with HMAC-SHA256 against the endpoint's secret before it is
// decoded and handed to the dispatcher.
//
// # Configuration
//
//	webhooks:
//	  listen: "127.0.0.1:8081"
//	  endpoints:
//	    - path: /webhook/stage
//	      kind: stage-status-changed
//	      secret: ${GOCD_WEBHOOK_SECRET}
//	      signature_header: X-Hub-Signature-256
//	      max_body_size: 1MB
//
// # Responses
//
//   - 202 Accepted: the status change was dispatched
//   - 400 Bad Request: the body is not a valid agent or stage
//   - 403 Forbidden: missing or invalid signature (no details)
//   - 413 Payload Too Large: body exceeds max_body_size
//   - 502 Bad Gateway: a build cause or group lookup failed
//   - 500 Internal Server Error: the dispatcher failed otherwise
package webhook
