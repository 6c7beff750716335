package proc

import (
	"context"
	"fmt"
	"strings"
)

// ExitError reports a tool that exited unsuccessfully, carrying its trailing
// output so callers can classify the failure.
type ExitError struct {
	Binary string
	Code   int
	Tail   []string
}

func (e *ExitError) Error() string {
	last := ""
	if len(e.Tail) > 0 {
		last = ": " + e.Tail[len(e.Tail)-1]
	}
	return fmt.Sprintf("%s exited with code %d%s", e.Binary, e.Code, last)
}

// Output returns the trailing output joined into one string.
func (e *ExitError) Output() string {
	return strings.Join(e.Tail, "\n")
}

// Run starts the command and waits for it to finish, converting a non-zero
// exit into an ExitError with the output tail attached.
func Run(ctx context.Context, command Command, onStdout, onStderr func(string)) error {
	handle, err := Start(ctx, command, onStdout, onStderr)
	if err != nil {
		return err
	}
	if waitErr := handle.Wait(); waitErr != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &ExitError{Binary: command.Binary, Code: handle.ExitCode(), Tail: handle.Tail()}
	}
	return nil
}
