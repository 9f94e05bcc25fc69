package service

import (
	"errors"
	"fmt"
	"strings"
)

// ErrJobNotFound is returned for lookups of jobs that do not exist.
var ErrJobNotFound = errors.New("job not found")

// ErrUserNotFound is returned when the user has no balance row.
var ErrUserNotFound = errors.New("user not found")

// ErrInsufficientBalance is returned when the user's balance cannot cover
// the reservation. Nothing is mutated when this is returned.
var ErrInsufficientBalance = errors.New("insufficient balance")

// ErrAlreadyTerminal is returned when an operation requires a live job but
// the job has already settled.
var ErrAlreadyTerminal = errors.New("job already terminal")

// ValidationError reports a malformed submission. The field name is safe to
// surface to the caller.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ProvidersExhaustedError is returned when every provider in the fallback
// chain declined the job. It carries the per-provider reasons in chain order.
type ProvidersExhaustedError struct {
	Kind    string
	Reasons []string
}

func (e *ProvidersExhaustedError) Error() string {
	return fmt.Sprintf("all %s providers exhausted: %s", e.Kind, strings.Join(e.Reasons, "; "))
}

func IsProvidersExhausted(err error) bool {
	var pe *ProvidersExhaustedError
	return errors.As(err, &pe)
}
