package feeds

import (
	"context"
	"errors"
	"strings"

	"github.com/kjstillabower/glancecast/internal/circuitbreaker"
	"github.com/kjstillabower/glancecast/internal/completion"
	"github.com/kjstillabower/glancecast/internal/schema"
)

var (
	// ErrUpstreamUnavailable covers transport failures, non-2xx replies and provider errors.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	// ErrUpstreamMalformed covers replies that could not be parsed or failed their contract.
	ErrUpstreamMalformed = errors.New("upstream reply malformed")
)

// PublicError carries a message safe to show the user alongside the underlying cause.
type PublicError struct {
	Msg string
	Err error
}

func (e *PublicError) Error() string {
	if e.Err == nil {
		return e.Msg
	}
	return e.Msg + ": " + e.Err.Error()
}

func (e *PublicError) Unwrap() error { return e.Err }

// PublicMessage returns the user-facing message carried by err, if any.
func PublicMessage(err error) (string, bool) {
	var pe *PublicError
	if errors.As(err, &pe) && pe.Msg != "" {
		return pe.Msg, true
	}
	return "", false
}

// ErrorCategory is a stable label for error classification in metrics.
type ErrorCategory string

const (
	ErrorCategoryTimeout     ErrorCategory = "timeout"
	ErrorCategoryNetwork     ErrorCategory = "network"
	ErrorCategoryUnavailable ErrorCategory = "upstream_unavailable"
	ErrorCategoryMalformed   ErrorCategory = "malformed"
	ErrorCategoryEmptyOutput ErrorCategory = "empty_output"
	ErrorCategoryCircuitOpen ErrorCategory = "circuit_open"
	ErrorCategoryUnknown     ErrorCategory = "unknown"
)

// CategorizeError maps an error to a stable ErrorCategory for metrics and logs.
func CategorizeError(err error) ErrorCategory {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		return ErrorCategoryTimeout
	case errors.Is(err, circuitbreaker.ErrOpen):
		return ErrorCategoryCircuitOpen
	case errors.Is(err, completion.ErrEmptyOutput) || errors.Is(err, schema.ErrEmpty):
		return ErrorCategoryEmptyOutput
	case errors.Is(err, ErrUpstreamMalformed) || errors.Is(err, schema.ErrMalformed):
		return ErrorCategoryMalformed
	}

	errStr := err.Error()
	if strings.Contains(errStr, "connection refused") || strings.Contains(errStr, "no such host") ||
		strings.Contains(errStr, "connection reset") {
		return ErrorCategoryNetwork
	}
	if errors.Is(err, ErrUpstreamUnavailable) || errors.Is(err, completion.ErrUnavailable) {
		return ErrorCategoryUnavailable
	}
	if strings.Contains(errStr, "timeout") {
		return ErrorCategoryTimeout
	}
	return ErrorCategoryUnknown
}
