package proc

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// tailLines is how many trailing output lines a handle retains for
// failure classification.
const tailLines = 40

// Command describes an external tool invocation.
type Command struct {
	Binary string
	Args   []string
	Dir    string
	Env    []string
}

// Handle tracks a running tool and its process group. Signals are always
// delivered to the group so that shell wrappers and tool children suspend
// and die together with the tool itself.
type Handle struct {
	cmd  *exec.Cmd
	pgid int

	stateMu   sync.Mutex
	suspended bool
	finished  bool

	waitOnce sync.Once
	waitErr  error
	done     chan struct{}
	tailMu   sync.Mutex
	tail     []string
	scanners sync.WaitGroup
}

// Start launches the command in its own process group and begins streaming
// its output. onStdout and onStderr may be nil; lines are delivered from
// dedicated goroutines, one per stream.
func Start(ctx context.Context, command Command, onStdout, onStderr func(string)) (*Handle, error) {
	if strings.TrimSpace(command.Binary) == "" {
		return nil, errors.New("binary required")
	}

	cmd := exec.Command(command.Binary, command.Args...) //nolint:gosec
	cmd.Dir = command.Dir
	if len(command.Env) > 0 {
		cmd.Env = command.Env
	}
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", command.Binary, err)
	}

	handle := &Handle{
		cmd:  cmd,
		pgid: cmd.Process.Pid,
		done: make(chan struct{}),
	}

	handle.scanners.Add(2)
	go handle.scan(stdout, onStdout)
	go handle.scan(stderr, onStderr)

	watchCtx, cancel := context.WithCancel(ctx)
	go func() {
		select {
		case <-watchCtx.Done():
			if ctx.Err() != nil {
				handle.signalGroup(unix.SIGKILL)
			}
		case <-handle.done:
		}
	}()

	go func() {
		handle.scanners.Wait()
		handle.waitOnce.Do(func() {
			handle.waitErr = cmd.Wait()
		})
		handle.stateMu.Lock()
		handle.finished = true
		handle.stateMu.Unlock()
		close(handle.done)
		cancel()
	}()

	return handle, nil
}

func (h *Handle) scan(r io.Reader, forward func(string)) {
	defer h.scanners.Done()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		h.record(line)
		if forward != nil {
			forward(line)
		}
	}
}

func (h *Handle) record(line string) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return
	}
	h.tailMu.Lock()
	h.tail = append(h.tail, trimmed)
	if len(h.tail) > tailLines {
		h.tail = h.tail[len(h.tail)-tailLines:]
	}
	h.tailMu.Unlock()
}

// Tail returns the most recent output lines, oldest first.
func (h *Handle) Tail() []string {
	h.tailMu.Lock()
	defer h.tailMu.Unlock()
	out := make([]string, len(h.tail))
	copy(out, h.tail)
	return out
}

// PID returns the process id of the tool, which also names its group.
func (h *Handle) PID() int {
	return h.pgid
}

// Suspend stops the process group. Safe to call repeatedly.
func (h *Handle) Suspend() error {
	h.stateMu.Lock()
	defer h.stateMu.Unlock()
	if h.finished {
		return errors.New("process already exited")
	}
	if h.suspended {
		return nil
	}
	if err := h.signalGroup(unix.SIGSTOP); err != nil {
		return fmt.Errorf("suspend process group %d: %w", h.pgid, err)
	}
	h.suspended = true
	return nil
}

// Resume continues a suspended process group. Safe to call repeatedly.
func (h *Handle) Resume() error {
	h.stateMu.Lock()
	defer h.stateMu.Unlock()
	if h.finished {
		return errors.New("process already exited")
	}
	if !h.suspended {
		return nil
	}
	if err := h.signalGroup(unix.SIGCONT); err != nil {
		return fmt.Errorf("resume process group %d: %w", h.pgid, err)
	}
	h.suspended = false
	return nil
}

// Suspended reports whether the group is currently stopped.
func (h *Handle) Suspended() bool {
	h.stateMu.Lock()
	defer h.stateMu.Unlock()
	return h.suspended
}

// Kill terminates the process group: SIGTERM first, then SIGKILL after
// grace elapses without the process exiting. A suspended group is resumed
// first so the termination signal can be delivered.
func (h *Handle) Kill(grace time.Duration) error {
	h.stateMu.Lock()
	if h.finished {
		h.stateMu.Unlock()
		return nil
	}
	if h.suspended {
		_ = h.signalGroup(unix.SIGCONT)
		h.suspended = false
	}
	h.stateMu.Unlock()

	if err := h.signalGroup(unix.SIGTERM); err != nil && !errors.Is(err, unix.ESRCH) {
		return fmt.Errorf("terminate process group %d: %w", h.pgid, err)
	}

	select {
	case <-h.done:
		return nil
	case <-time.After(grace):
	}

	if err := h.signalGroup(unix.SIGKILL); err != nil && !errors.Is(err, unix.ESRCH) {
		return fmt.Errorf("kill process group %d: %w", h.pgid, err)
	}
	<-h.done
	return nil
}

// Wait blocks until the process exits and returns its exit error.
func (h *Handle) Wait() error {
	<-h.done
	return h.waitErr
}

// Done is closed once the process has exited and output is drained.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// ExitCode returns the exit code after Wait, or -1 when killed by signal
// or not yet exited.
func (h *Handle) ExitCode() int {
	select {
	case <-h.done:
	default:
		return -1
	}
	if h.waitErr == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(h.waitErr, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

func (h *Handle) signalGroup(sig unix.Signal) error {
	return unix.Kill(-h.pgid, sig)
}
