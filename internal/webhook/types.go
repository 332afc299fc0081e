package webhook

import (
	"context"

	"github.com/mattjoyce/octox/internal/delivery"
	"github.com/mattjoyce/octox/internal/event"
	"github.com/mattjoyce/octox/internal/github"
)

//go:generate mockgen -destination=mocks/mock_webhook.go -package=mocks github.com/mattjoyce/octox/internal/webhook Executor,HealthChecker

// Executor runs the workflow for a decoded event.
type Executor interface {
	Execute(ctx context.Context, ev event.Event) (any, error)
}

// HealthChecker verifies the app can authenticate against GitHub.
type HealthChecker interface {
	CheckApp(ctx context.Context) error
}

// Recorder stores delivery outcomes.
type Recorder interface {
	Record(ctx context.Context, rec delivery.Record) (string, error)
}

// Config holds webhook server configuration.
type Config struct {
	Listen string

	// Secret is the HMAC secret for signature verification
	Secret github.WebhookSecret

	// MaxBodySize is the maximum allowed request body size in bytes (default: 1MB)
	MaxBodySize int64
}

// Request headers GitHub sends with every delivery.
const (
	EventHeader    = "X-GitHub-Event"
	DeliveryHeader = "X-GitHub-Delivery"
)

// ErrorResponse is the JSON response for webhook errors.
type ErrorResponse struct {
	Error string `json:"error"`
}

// AckResponse is returned when a workflow declines an event.
type AckResponse struct {
	Message string `json:"message"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	GitHub string `json:"github"`
}

const DefaultMaxBodySize = 1048576 // 1 MB
