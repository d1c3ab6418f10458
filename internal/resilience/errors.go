package resilience

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/yourorg/hotel-broker/internal/domain"
)

// ErrCircuitOpen is returned without touching the network while an
// upstream's breaker is open.
var ErrCircuitOpen = errors.New("circuit open")

// StatusError is a non-2xx HTTP answer from an upstream.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("http %d", e.Code)
	}
	return fmt.Sprintf("http %d: %s", e.Code, e.Body)
}

// Transient reports whether the status is worth retrying: 5xx or 429.
func (e *StatusError) Transient() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= http.StatusInternalServerError
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying. The executor surfaces it as an
// upstream protocol error.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

type outcome int

const (
	outcomeSuccess outcome = iota
	outcomeTransient
	outcomePermanent
	outcomeCancelled
	outcomeOpen
)

// classify decides how the chain treats the result of one attempt. The
// caller's ctx wins over whatever error the attempt produced.
func classify(ctx context.Context, err error) outcome {
	if err == nil {
		return outcomeSuccess
	}
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return outcomeCancelled
	}
	if errors.Is(err, ErrCircuitOpen) {
		return outcomeOpen
	}
	var se *StatusError
	if errors.As(err, &se) {
		if se.Transient() {
			return outcomeTransient
		}
		return outcomePermanent
	}
	var pe *permanentError
	var ue *domain.UpstreamError
	if errors.As(err, &pe) || errors.As(err, &ue) || errors.Is(err, domain.ErrValidation) {
		return outcomePermanent
	}
	return outcomeTransient
}
