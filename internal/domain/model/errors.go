package model

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bibbank/trust-engine/internal/domain/valueobject"
)

// ErrCacheUnavailable is returned when the dedup/cache layer cannot serve a
// request. Callers should treat it as retryable.
var ErrCacheUnavailable = errors.New("verdict cache unavailable")

// ErrEvaluatorTimeout marks an evaluator that did not answer before its deadline.
var ErrEvaluatorTimeout = errors.New("evaluator timed out")

var errNaNScore = errors.New("evaluator returned a non-numeric score")

// ValidationError reports a malformed request identifier.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// NewValidationError creates a ValidationError for the given field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// EvaluatorError wraps the failure of a single evaluator invocation.
// It never escapes the fan-out step; it is folded into a SignalResult.
type EvaluatorError struct {
	Signal valueobject.SignalName
	Err    error
}

func (e *EvaluatorError) Error() string {
	return fmt.Sprintf("evaluator %s: %v", e.Signal, e.Err)
}

func (e *EvaluatorError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the evaluator failed by exceeding its deadline.
func (e *EvaluatorError) Timeout() bool {
	return errors.Is(e.Err, ErrEvaluatorTimeout)
}

// InsufficientSignalsError is returned by fusion when no signal is available.
type InsufficientSignalsError struct {
	Missing []valueobject.SignalName
}

func (e *InsufficientSignalsError) Error() string {
	if len(e.Missing) == 0 {
		return "insufficient signals: no evaluators registered"
	}
	names := make([]string, len(e.Missing))
	for i, n := range e.Missing {
		names[i] = n.String()
	}
	return fmt.Sprintf("insufficient signals: %s unavailable", strings.Join(names, ", "))
}

// CacheUnavailable wraps an infrastructure failure of the verdict cache.
func CacheUnavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrCacheUnavailable, op, err)
}
