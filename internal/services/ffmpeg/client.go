package ffmpeg

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

// Client wraps ffmpeg and ffprobe.
type Client struct {
	ffmpegBinary  string
	ffprobeBinary string
	timeout       time.Duration
	exec          Executor
}

// New constructs an ffmpeg client.
func New(ffmpegBinary, ffprobeBinary string, timeoutSeconds int, opts ...Option) (*Client, error) {
	ffmpegBinary = strings.TrimSpace(ffmpegBinary)
	ffprobeBinary = strings.TrimSpace(ffprobeBinary)
	if ffmpegBinary == "" {
		return nil, errors.New("ffmpeg binary required")
	}
	if ffprobeBinary == "" {
		return nil, errors.New("ffprobe binary required")
	}
	client := &Client{
		ffmpegBinary:  ffmpegBinary,
		ffprobeBinary: ffprobeBinary,
		timeout:       time.Duration(timeoutSeconds) * time.Second,
		exec:          procExecutor{},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// HasAudio reports whether the file contains at least one audio stream.
func (c *Client) HasAudio(ctx context.Context, path string) (bool, error) {
	if strings.TrimSpace(path) == "" {
		return false, errors.New("path required")
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	var streams []string
	err := c.exec.Run(ctx, proc.Command{
		Binary: c.ffprobeBinary,
		Args: []string{
			"-v", "error",
			"-select_streams", "a",
			"-show_entries", "stream=codec_type",
			"-of", "csv=p=0",
			path,
		},
	}, func(line string) {
		if strings.TrimSpace(line) != "" {
			streams = append(streams, line)
		}
	}, nil)
	if err != nil {
		return false, fmt.Errorf("ffprobe %s: %w", path, err)
	}
	return len(streams) > 0, nil
}

// Merge remuxes the video and audio streams into outputPath without
// re-encoding. The result is written to a temporary name first and renamed
// into place, so a partial write never looks like a finished file. An empty
// audioPath remuxes the video alone.
func (c *Client) Merge(ctx context.Context, videoPath, audioPath, outputPath string) error {
	if strings.TrimSpace(videoPath) == "" {
		return errors.New("video path required")
	}
	if strings.TrimSpace(outputPath) == "" {
		return errors.New("output path required")
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	partial := outputPath + ".part" + filepath.Ext(outputPath)

	args := []string{"-nostdin", "-y", "-i", videoPath}
	if audioPath != "" {
		args = append(args, "-i", audioPath)
	}
	args = append(args, "-c", "copy", partial)

	if err := c.exec.Run(ctx, proc.Command{Binary: c.ffmpegBinary, Args: args}, nil, nil); err != nil {
		_ = os.Remove(partial)
		return fmt.Errorf("ffmpeg merge: %w", err)
	}
	if err := os.Rename(partial, outputPath); err != nil {
		return fmt.Errorf("finalize merge output: %w", err)
	}
	return nil
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout > 0 {
		return context.WithTimeout(ctx, c.timeout)
	}
	return context.WithCancel(ctx)
}

type procExecutor struct{}

func (procExecutor) Run(ctx context.Context, command proc.Command, onStdout, onStderr func(string)) error {
	return proc.Run(ctx, command, onStdout, onStderr)
}
