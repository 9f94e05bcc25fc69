package provider

import (
	"errors"
	"fmt"
)

// RejectedError means the provider was reached but declined the request
// (bad parameters, quota, unsupported input). Retrying the same request is
// pointless; the submitter moves on to the next provider in the chain.
type RejectedError struct {
	Provider string
	Status   int
	Detail   string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("provider %s rejected request (status %d): %s", e.Provider, e.Status, e.Detail)
}

// UnreachableError means the provider could not be reached or answered with
// a server-side failure. These are retryable under the retry policy.
type UnreachableError struct {
	Provider string
	Cause    error
}

func (e *UnreachableError) Error() string {
	return fmt.Sprintf("provider %s unreachable: %v", e.Provider, e.Cause)
}

func (e *UnreachableError) Unwrap() error {
	return e.Cause
}

// IsRejected reports whether err is a provider rejection.
func IsRejected(err error) bool {
	var rejected *RejectedError
	return errors.As(err, &rejected)
}

// IsUnreachable reports whether err is a transport-level provider failure.
func IsUnreachable(err error) bool {
	var unreachable *UnreachableError
	return errors.As(err, &unreachable)
}

// Retryable is the retry predicate for provider calls: only transport-level
// failures are worth another attempt against the same provider.
func Retryable(err error) bool {
	return IsUnreachable(err)
}
