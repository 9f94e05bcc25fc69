// Package breaker implements a per-dependency circuit breaker. Each guarded
// external dependency (a generation provider, the bot gateway) gets its own
// Circuit; a Circuit rejects calls outright once the dependency looks
// unhealthy and periodically lets trial calls through to detect recovery.
package breaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State represents the circuit breaker state.
type State int

const (
	// Closed is the normal operating state. Requests flow through.
	Closed State = iota

	// Open is the tripped state. Requests are rejected immediately.
	Open

	// HalfOpen is the recovery testing state. Trial requests are allowed.
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Func is the function signature for protected operations.
type Func func(ctx context.Context) error

// Condition determines whether an error should count as a failure.
type Condition func(error) bool

// OnStateChangeFunc is called when the circuit changes state.
type OnStateChangeFunc func(name string, from, to State, stats Stats)

// ErrOpen is returned when the circuit is open and rejecting requests.
// A rejection never invokes the guarded operation, which is what
// distinguishes it from an operation that ran and failed.
var ErrOpen = errors.New("circuit breaker open")

// IsOpen reports whether err is a rejection due to an open circuit.
func IsOpen(err error) bool {
	return errors.Is(err, ErrOpen)
}

// Default values.
const (
	DefaultFailureThreshold = 5
	DefaultSuccessThreshold = 2
	DefaultRecoveryTimeout  = 30 * time.Second
)

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Stats is a point-in-time snapshot of a circuit, consumed by the admin
// stats endpoint and the state-change log hook.
type Stats struct {
	Name                 string    `json:"name"`
	State                string    `json:"state"`
	ConsecutiveFailures  int       `json:"consecutive_failures"`
	ConsecutiveSuccesses int       `json:"consecutive_successes"`
	TotalRequests        uint64    `json:"total_requests"`
	TotalSuccesses       uint64    `json:"total_successes"`
	TotalFailures        uint64    `json:"total_failures"`
	LastFailureAt        time.Time `json:"last_failure_at,omitzero"`
	LastOpenedAt         time.Time `json:"last_opened_at,omitzero"`
}

// Circuit is a circuit breaker for a single named dependency.
// Safe for concurrent use; independent circuits never share a lock.
type Circuit struct {
	name string
	cfg  config

	mu        sync.Mutex
	state     State
	failures  int
	successes int
	openedAt  time.Time

	lastFailureAt  time.Time
	totalRequests  uint64
	totalSuccesses uint64
	totalFailures  uint64
}

// New creates a Circuit with the given options.
func New(name string, opts ...Option) *Circuit {
	cfg := config{
		failureThreshold: DefaultFailureThreshold,
		successThreshold: DefaultSuccessThreshold,
		recoveryTimeout:  DefaultRecoveryTimeout,
		condition:        defaultCondition,
		clock:            realClock{},
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Circuit{
		name:  name,
		cfg:   cfg,
		state: Closed,
	}
}

// Do executes fn with circuit breaker protection. While Open, fn is not
// invoked and ErrOpen is returned. The breaker itself never retries; retry
// is composed inside it by the reliable client, so one Do call is one
// health observation no matter how many attempts ran underneath.
func (c *Circuit) Do(ctx context.Context, fn Func) error {
	if err := c.allow(); err != nil {
		return err
	}

	fnErr := fn(ctx)
	c.record(fnErr)
	return fnErr
}

// State returns the current state, applying the recovery timeout first so
// an expired Open circuit reports HalfOpen.
func (c *Circuit) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentState()
}

// Name returns the name of the guarded dependency.
func (c *Circuit) Name() string {
	return c.name
}

// Stats returns a snapshot of the circuit's counters.
func (c *Circuit) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statsLocked()
}

// Reset forces the circuit back to Closed and zeroes the consecutive
// counters, including on a circuit that never left Closed. Administrative
// operation; cumulative totals are preserved for metrics continuity.
func (c *Circuit) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setState(Closed)
	c.failures = 0
	c.successes = 0
}

func (c *Circuit) allow() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.totalRequests++
	if c.currentState() == Open {
		return ErrOpen
	}
	return nil
}

func (c *Circuit) record(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	isFailure := c.cfg.condition(err)
	if isFailure {
		c.totalFailures++
		c.lastFailureAt = c.cfg.clock.Now()
	} else {
		c.totalSuccesses++
	}

	switch c.currentState() {
	case Closed:
		if isFailure {
			c.failures++
			if c.failures >= c.cfg.failureThreshold {
				c.setState(Open)
			}
		} else {
			c.failures = 0
		}

	case HalfOpen:
		if isFailure {
			// A single failed trial reopens the circuit and restarts
			// the recovery timeout.
			c.setState(Open)
		} else {
			c.successes++
			if c.successes >= c.cfg.successThreshold {
				c.setState(Closed)
			}
		}
	}
}

func (c *Circuit) currentState() State {
	if c.state == Open && c.cfg.clock.Now().Sub(c.openedAt) >= c.cfg.recoveryTimeout {
		c.setState(HalfOpen)
	}
	return c.state
}

func (c *Circuit) setState(to State) {
	if c.state == to {
		return
	}
	from := c.state
	c.state = to

	c.failures = 0
	c.successes = 0

	if to == Open {
		c.openedAt = c.cfg.clock.Now()
	}

	if c.cfg.onStateChange != nil {
		c.cfg.onStateChange(c.name, from, to, c.statsLocked())
	}
}

func (c *Circuit) statsLocked() Stats {
	return Stats{
		Name:                 c.name,
		State:                c.state.String(),
		ConsecutiveFailures:  c.failures,
		ConsecutiveSuccesses: c.successes,
		TotalRequests:        c.totalRequests,
		TotalSuccesses:       c.totalSuccesses,
		TotalFailures:        c.totalFailures,
		LastFailureAt:        c.lastFailureAt,
		LastOpenedAt:         c.openedAt,
	}
}

func defaultCondition(err error) bool {
	return err != nil
}
