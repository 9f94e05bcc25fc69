// Package reliable composes the circuit breaker and retry policy into the
// single sanctioned path for calling an external dependency. The breaker
// wraps the retry policy, not the reverse: a burst of retried attempts is
// one health observation, so a single flaky call cannot trip the breaker on
// its own retries.
package reliable

import (
	"context"
	"log/slog"

	"artforge.app/orchestrator/common/logger"
	"artforge.app/orchestrator/internal/breaker"
	"artforge.app/orchestrator/internal/provider"
	"artforge.app/orchestrator/internal/retry"
)

// Client guards one named dependency.
type Client struct {
	name    string
	circuit *breaker.Circuit
	policy  retry.Policy
}

// New builds a Client for a dependency, pulling its circuit from the
// injected registry.
func New(name string, registry *breaker.Registry, policy retry.Policy) *Client {
	return &Client{
		name:    name,
		circuit: registry.Get(name),
		policy:  policy,
	}
}

// Name returns the guarded dependency's name.
func (c *Client) Name() string {
	return c.name
}

// Do runs op behind the breaker, with the retry policy applied inside it.
func (c *Client) Do(ctx context.Context, op func(context.Context) error) error {
	return c.circuit.Do(ctx, func(ctx context.Context) error {
		return c.policy.Do(ctx, c.name, op)
	})
}

// Do executes fn through the client and returns its result.
// Convenience wrapper for operations that return a value.
func Do[T any](ctx context.Context, c *Client, fn func(context.Context) (T, error)) (T, error) {
	var result T
	err := c.Do(ctx, func(ctx context.Context) error {
		var fnErr error
		result, fnErr = fn(ctx)
		return fnErr
	})
	return result, err
}

// ProviderClient is the reliable wrapper around one generation provider.
type ProviderClient struct {
	*Client
	provider provider.Provider
}

// NewProvider wraps a provider in a reliable client. Rejections count as
// breaker failures but are not retried; transport failures are retried
// first and reach the breaker only once the policy is exhausted.
func NewProvider(p provider.Provider, registry *breaker.Registry, policy retry.Policy) *ProviderClient {
	policy.Retryable = provider.Retryable
	return &ProviderClient{
		Client:   New(p.Name(), registry, policy),
		provider: p,
	}
}

// Submit sends a generation request through the protected path.
func (c *ProviderClient) Submit(ctx context.Context, req provider.SubmitRequest) (provider.SubmitResult, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{Provider: logger.Ptr(c.name)})
	return Do(ctx, c.Client, func(ctx context.Context) (provider.SubmitResult, error) {
		return c.provider.Submit(ctx, req)
	})
}

// HealthCheck performs a cheap representative call through the same
// reliable path, for the readiness probe.
func (c *ProviderClient) HealthCheck(ctx context.Context) bool {
	err := c.Do(ctx, c.provider.Ping)
	if err != nil {
		slog.DebugContext(ctx, "provider health check failed", "dependency", c.name, "error", err)
	}
	return err == nil
}
