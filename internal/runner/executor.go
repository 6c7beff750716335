package runner

import (
	"context"

	"murmur/internal/proc"
	"murmur/internal/services"
)

// HandleRegistry receives the live process handle for a job while its tool
// runs, so control actions can suspend or kill the process group.
type HandleRegistry interface {
	Attach(jobID int64, handle *proc.Handle)
	Detach(jobID int64)
}

// trackingExecutor runs tool commands through proc and publishes the handle
// to the registry for the duration of the run. The job id travels in the
// context, stamped by the worker before dispatch.
type trackingExecutor struct {
	registry HandleRegistry
}

func (e trackingExecutor) Run(ctx context.Context, command proc.Command, onStdout, onStderr func(string)) error {
	handle, err := proc.Start(ctx, command, onStdout, onStderr)
	if err != nil {
		return err
	}

	jobID, tracked := services.JobIDFromContext(ctx)
	if tracked && e.registry != nil {
		e.registry.Attach(jobID, handle)
		defer e.registry.Detach(jobID)
	}

	if waitErr := handle.Wait(); waitErr != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &proc.ExitError{Binary: command.Binary, Code: handle.ExitCode(), Tail: handle.Tail()}
	}
	return nil
}
