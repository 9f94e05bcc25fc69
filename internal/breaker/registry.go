package breaker

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Registry owns the one-circuit-per-dependency instances. It is constructed
// at the composition root and injected into every reliable client, so there
// is no hidden global breaker state. Circuits are created lazily on first
// use with the registry's shared options plus a state-change log hook.
type Registry struct {
	mu       sync.RWMutex
	circuits map[string]*Circuit
	opts     []Option
}

// NewRegistry creates a Registry whose circuits are configured with opts.
func NewRegistry(opts ...Option) *Registry {
	return &Registry{
		circuits: make(map[string]*Circuit),
		opts:     opts,
	}
}

// Get returns the circuit for the named dependency, creating it on first use.
func (r *Registry) Get(name string) *Circuit {
	r.mu.RLock()
	c, ok := r.circuits[name]
	r.mu.RUnlock()
	if ok {
		return c
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.circuits[name]; ok {
		return c
	}

	opts := append([]Option{OnStateChange(logStateChange)}, r.opts...)
	c = New(name, opts...)
	r.circuits[name] = c
	return c
}

// Stats returns snapshots for every circuit created so far.
func (r *Registry) Stats() []Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := make([]Stats, 0, len(r.circuits))
	for _, c := range r.circuits {
		stats = append(stats, c.Stats())
	}
	return stats
}

// Reset forces the named circuit back to Closed. Returns false if no circuit
// with that name exists yet.
func (r *Registry) Reset(name string) bool {
	r.mu.RLock()
	c, ok := r.circuits[name]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	c.Reset()
	return true
}

// Monitor logs a snapshot of every circuit at the given period until the
// context is cancelled. This is the stats aggregation feed; it only reads,
// never mutates circuit state.
func (r *Registry) Monitor(ctx context.Context, period time.Duration) {
	if period <= 0 {
		return
	}

	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, stats := range r.Stats() {
				slog.LogAttrs(ctx, slog.LevelInfo, "circuit breaker snapshot",
					slog.String("dependency", stats.Name),
					slog.String("state", stats.State),
					slog.Int("consecutive_failures", stats.ConsecutiveFailures),
					slog.Uint64("total_requests", stats.TotalRequests),
					slog.Uint64("total_failures", stats.TotalFailures),
				)
			}
		}
	}
}

func logStateChange(name string, from, to State, stats Stats) {
	slog.LogAttrs(context.Background(), slog.LevelWarn, "circuit breaker state change",
		slog.String("dependency", name),
		slog.String("from", from.String()),
		slog.String("to", to.String()),
		slog.Uint64("total_requests", stats.TotalRequests),
		slog.Uint64("total_failures", stats.TotalFailures),
	)
}
