// Package provider defines the outbound contract for external AI-generation
// services. Providers accept a request and return an opaque task id; the
// actual artifact arrives later through the webhook receiver.
package provider

import (
	"context"
	"encoding/json"

	"artforge.app/orchestrator/internal/model"
)

// SubmitRequest carries one generation request to a provider. JobID is sent
// as an external reference; the provider echoes only its own task id back.
type SubmitRequest struct {
	JobID       int64
	Kind        model.GenerationKind
	Prompt      string
	Params      json.RawMessage
	CallbackURL string
}

// SubmitResult is a provider's synchronous acceptance of a request.
type SubmitResult struct {
	TaskID string
}

// Provider is a single external generation service. Implementations must
// never be called directly by business code; all calls go through a
// reliable client so the dependency gets breaker and retry protection.
type Provider interface {
	Name() string
	Submit(ctx context.Context, req SubmitRequest) (SubmitResult, error)

	// Ping is a cheap representative call used by health checks.
	Ping(ctx context.Context) error
}
