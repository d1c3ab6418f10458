package domain

import (
	"errors"
	"fmt"
)

// Failure kinds surfaced by the pipeline. Use errors.Is against these; the
// concrete error types below carry the details.
var (
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrUpstreamProtocol    = errors.New("upstream protocol error")
	ErrValidation          = errors.New("validation error")
	ErrSettlementMismatch  = errors.New("settlement mismatch")
)

// UpstreamError reports a failed call to a third-party service after the
// resilience policies gave up. Kind is ErrUpstreamUnavailable or
// ErrUpstreamProtocol; Cause is the raw transport or decode error.
type UpstreamError struct {
	Upstream string
	Kind     error
	Cause    error
}

func (e *UpstreamError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s: %v", e.Upstream, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Upstream, e.Kind, e.Cause)
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *UpstreamError) Unwrap() []error {
	return []error{e.Kind, e.Cause}
}

// Unavailable wraps cause as an ErrUpstreamUnavailable failure of upstream.
func Unavailable(upstream string, cause error) *UpstreamError {
	return &UpstreamError{Upstream: upstream, Kind: ErrUpstreamUnavailable, Cause: cause}
}

// Protocol wraps cause as an ErrUpstreamProtocol failure of upstream.
func Protocol(upstream string, cause error) *UpstreamError {
	return &UpstreamError{Upstream: upstream, Kind: ErrUpstreamProtocol, Cause: cause}
}

// ValidationError is raised at the boundary where bad input is detected.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Invalid builds a ValidationError with a formatted reason.
func Invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
