package whisper

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"murmur/internal/proc"
)

// Executor abstracts command execution for testability.
type Executor interface {
	Run(ctx context.Context, command proc.Command, onStdout, onStderr func(string)) error
}

// Option configures the client.
type Option func(*Client)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(c *Client) {
		if exec != nil {
			c.exec = exec
		}
	}
}

// Client wraps the whisper CLI.
type Client struct {
	binary   string
	model    string
	modelDir string
	language string
	timeout  time.Duration
	exec     Executor
}

// New constructs a whisper client.
func New(binary, model, modelDir, language string, timeoutSeconds int, opts ...Option) (*Client, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, errors.New("whisper binary required")
	}
	if strings.TrimSpace(model) == "" {
		return nil, errors.New("whisper model required")
	}
	client := &Client{
		binary:   binary,
		model:    model,
		modelDir: modelDir,
		language: language,
		timeout:  time.Duration(timeoutSeconds) * time.Second,
		exec:     procExecutor{},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Transcribe runs whisper over the audio file, writing JSON output into
// outDir, and returns the transcript path.
func (c *Client) Transcribe(ctx context.Context, audioPath, outDir string, onOutput func(string)) (string, error) {
	if strings.TrimSpace(audioPath) == "" {
		return "", errors.New("audio path required")
	}
	if outDir == "" {
		return "", errors.New("output directory required")
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", fmt.Errorf("create transcript dir: %w", err)
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	args := []string{
		audioPath,
		"--model", c.model,
		"--output_format", "json",
		"--output_dir", outDir,
	}
	if c.modelDir != "" {
		args = append(args, "--model_dir", c.modelDir)
	}
	if c.language != "" {
		args = append(args, "--language", c.language)
	}

	if err := c.exec.Run(ctx, proc.Command{Binary: c.binary, Args: args}, onOutput, onOutput); err != nil {
		return "", fmt.Errorf("whisper transcribe: %w", err)
	}

	transcriptPath := TranscriptPath(audioPath, outDir)
	if _, err := os.Stat(transcriptPath); err != nil {
		return "", fmt.Errorf("whisper produced no transcript at %s: %w", transcriptPath, err)
	}
	return transcriptPath, nil
}

// TranscriptPath returns where whisper writes JSON output for an input file:
// the input's base name with a .json extension inside outDir.
func TranscriptPath(audioPath, outDir string) string {
	base := filepath.Base(audioPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(outDir, stem+".json")
}

type procExecutor struct{}

func (procExecutor) Run(ctx context.Context, command proc.Command, onStdout, onStderr func(string)) error {
	return proc.Run(ctx, command, onStdout, onStderr)
}
