package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidation marks bad input rejected before any state change.
	ErrValidation = errors.New("validation error")
	// ErrStaleState marks an optimistic-concurrency conflict on a ledger
	// transition; the caller's in-memory view is out of date.
	ErrStaleState = errors.New("stale state")
	// ErrTransient marks a retryable stage failure.
	ErrTransient = errors.New("transient failure")
	// ErrFatal marks a non-retryable stage failure.
	ErrFatal = errors.New("fatal failure")
	// ErrKilled marks a failure caused by an explicit kill command.
	ErrKilled = errors.New("killed")
	// ErrNotFound marks a missing job, media record, or resource.
	ErrNotFound = errors.New("not found")
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// ErrorKind is the persisted classification of a job failure.
type ErrorKind string

const (
	KindValidation ErrorKind = "validation"
	KindTransient  ErrorKind = "transient"
	KindFatal      ErrorKind = "fatal"
	KindKilled     ErrorKind = "killed"
	KindUnknown    ErrorKind = "unknown"
)

// Classify maps an error to its persisted kind using the sentinel markers.
func Classify(err error) ErrorKind {
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, ErrKilled):
		return KindKilled
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrFatal):
		return KindFatal
	case errors.Is(err, ErrTransient):
		return KindTransient
	default:
		return KindUnknown
	}
}

// IsRetryable reports whether a stage failure should return the job to the
// queue for the same stage rather than failing it outright.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrKilled) || errors.Is(err, ErrFatal) || errors.Is(err, ErrValidation) {
		return false
	}
	return errors.Is(err, ErrTransient)
}

// Message extracts the human-readable portion of a wrapped stage error,
// stripping the sentinel prefix when present.
func Message(err error) string {
	if err == nil {
		return ""
	}
	text := strings.TrimSpace(err.Error())
	for _, marker := range []error{ErrValidation, ErrStaleState, ErrTransient, ErrFatal, ErrKilled, ErrNotFound} {
		prefix := marker.Error() + ": "
		if strings.HasPrefix(text, prefix) {
			return strings.TrimSpace(strings.TrimPrefix(text, prefix))
		}
	}
	return text
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
