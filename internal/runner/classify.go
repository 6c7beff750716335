package runner

import (
	"context"
	"errors"
	"strings"

	"murmur/internal/proc"
	"murmur/internal/services"
)

// classify wraps a stage tool failure with the sentinel deciding its fate:
// timeouts and output matching a transient marker mean the stage can be
// rerun, anything else fails the job. Context cancellation passes through
// untouched so shutdown is never mistaken for a stage failure.
func (r *Runner) classify(stageName, operation string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return services.Wrap(services.ErrTransient, stageName, operation, "stage timed out", err)
	}

	var exitErr *proc.ExitError
	if errors.As(err, &exitErr) && r.matchesTransientMarker(exitErr.Tail) {
		return services.Wrap(services.ErrTransient, stageName, operation, "tool reported a retryable condition", err)
	}

	return services.Wrap(services.ErrFatal, stageName, operation, "tool failed", err)
}

func (r *Runner) matchesTransientMarker(tail []string) bool {
	for _, line := range tail {
		for _, marker := range r.markers {
			if marker != "" && strings.Contains(line, marker) {
				return true
			}
		}
	}
	return false
}
