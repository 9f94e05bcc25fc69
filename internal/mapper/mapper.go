// Package mapper identifies which provider sent an inbound webhook and
// normalizes its payload into the canonical callback shape. Identification
// is an explicit, ordered list of (match, normalize) pairs: header match is
// tried before payload-shape sniffing, and the "nothing matched" case is
// reported distinctly from a matched normalizer failing on its payload.
package mapper

import (
	"context"
	"errors"
	"fmt"

	"artforge.app/orchestrator/internal/model"
)

// Callback is the canonical, provider-agnostic completion notification.
type Callback struct {
	Provider    string
	TaskID      string
	Outcome     model.Outcome
	ArtifactRef *string
	ErrorDetail *string
}

// Normalizer recognizes and translates one provider's webhook dialect.
type Normalizer interface {
	Provider() string

	// MatchHeader reports whether the delivery carries this provider's
	// identifying header. Must be cheap and side-effect free.
	MatchHeader(headers map[string]string) bool

	// MatchShape reports whether the payload structurally looks like this
	// provider's dialect. Consulted only when no header matched.
	MatchShape(body map[string]any) bool

	// Normalize translates a matched payload. Errors here mean the payload
	// was recognized but malformed.
	Normalize(ctx context.Context, body map[string]any, headers map[string]string) (Callback, error)
}

// ErrUnknownProvider is returned when no normalizer claims a payload.
var ErrUnknownProvider = errors.New("unknown webhook provider")

// Registry resolves callbacks against its normalizers in registration order.
type Registry struct {
	normalizers []Normalizer
}

func NewRegistry(normalizers ...Normalizer) *Registry {
	return &Registry{normalizers: normalizers}
}

// Default returns the registry for every provider dialect we accept.
func Default() *Registry {
	return NewRegistry(
		NewRunaNormalizer(),
		NewLumenNormalizer(),
		NewVoxelNormalizer(),
	)
}

// Resolve finds the claiming normalizer and applies it. Resolution is two
// tiers: every header match is tried before any payload-shape sniff, so a
// provider's signed header always outranks another dialect's structural
// coincidence regardless of registration order.
func (r *Registry) Resolve(ctx context.Context, body map[string]any, headers map[string]string) (Callback, error) {
	for _, n := range r.normalizers {
		if n.MatchHeader(headers) {
			return r.apply(ctx, n, body, headers)
		}
	}
	for _, n := range r.normalizers {
		if n.MatchShape(body) {
			return r.apply(ctx, n, body, headers)
		}
	}
	return Callback{}, ErrUnknownProvider
}

func (r *Registry) apply(ctx context.Context, n Normalizer, body map[string]any, headers map[string]string) (Callback, error) {
	cb, err := n.Normalize(ctx, body, headers)
	if err != nil {
		return Callback{}, fmt.Errorf("normalizing %s payload: %w", n.Provider(), err)
	}
	return cb, nil
}

func stringField(body map[string]any, key string) string {
	if v, ok := body[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func nestedMap(body map[string]any, key string) map[string]any {
	if v, ok := body[key]; ok {
		if m, ok := v.(map[string]any); ok {
			return m
		}
	}
	return nil
}

func ptrIfSet(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
