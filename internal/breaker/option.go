package breaker

import "time"

type config struct {
	failureThreshold int
	successThreshold int
	recoveryTimeout  time.Duration
	condition        Condition
	clock            Clock

	onStateChange OnStateChangeFunc
}

// Option configures a Circuit.
type Option func(*config)

// WithFailureThreshold sets consecutive failures before opening the circuit.
// Default is 5.
func WithFailureThreshold(n int) Option {
	return func(c *config) {
		if n >= 1 {
			c.failureThreshold = n
		}
	}
}

// WithSuccessThreshold sets consecutive successes in half-open state
// required before closing the circuit. Default is 2.
func WithSuccessThreshold(n int) Option {
	return func(c *config) {
		if n >= 1 {
			c.successThreshold = n
		}
	}
}

// WithRecoveryTimeout sets how long the circuit stays open before the next
// call is allowed through as a trial. Default is 30 seconds.
func WithRecoveryTimeout(d time.Duration) Option {
	return func(c *config) {
		c.recoveryTimeout = d
	}
}

// If sets the condition that determines whether an error counts as a failure.
// By default, any non-nil error is a failure.
func If(cond Condition) Option {
	return func(c *config) {
		c.condition = cond
	}
}

// WithClock sets the clock for time operations. Useful for testing.
func WithClock(clock Clock) Option {
	return func(c *config) {
		c.clock = clock
	}
}

// OnStateChange sets a hook called when the circuit changes state.
func OnStateChange(fn OnStateChangeFunc) Option {
	return func(c *config) {
		c.onStateChange = fn
	}
}
