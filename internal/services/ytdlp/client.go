package ytdlp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"murmur/internal/proc"
)

// Metadata is the subset of yt-dlp's JSON dump the pipeline keeps.
type Metadata struct {
	ID              string  `json:"id"`
	Title           string  `json:"title"`
	Channel         string  `json:"channel"`
	Uploader        string  `json:"uploader"`
	DurationSeconds float64 `json:"duration"`
	UploadDate      string  `json:"upload_date"`
	WebpageURL      string  `json:"webpage_url"`
}

// ChannelName prefers the channel field, falling back to uploader.
func (m Metadata) ChannelName() string {
	if m.Channel != "" {
		return m.Channel
	}
	return m.Uploader
}

// Download holds the artifacts an acquisition produced.
type Download struct {
	VideoPath string
	AudioPath string
}

// ProgressFunc receives download progress as a percentage and message.
type ProgressFunc func(percent float64, message string)

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

// Client wraps yt-dlp CLI interactions.
type Client struct {
	binary    string
	maxHeight int
	maxFPS    int
	timeout   time.Duration
	exec      Executor
}

// New constructs a yt-dlp client.
func New(binary string, maxHeight, maxFPS, timeoutSeconds int, opts ...Option) (*Client, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, errors.New("yt-dlp binary required")
	}
	client := &Client{
		binary:    binary,
		maxHeight: maxHeight,
		maxFPS:    maxFPS,
		timeout:   time.Duration(timeoutSeconds) * time.Second,
		exec:      procExecutor{},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Metadata fetches the source's JSON description without downloading it.
func (c *Client) Metadata(ctx context.Context, url string) (*Metadata, error) {
	if strings.TrimSpace(url) == "" {
		return nil, errors.New("url required")
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	var payload strings.Builder
	err := c.exec.Run(ctx, proc.Command{
		Binary: c.binary,
		Args:   []string{"--dump-single-json", "--no-download", "--no-playlist", url},
	}, func(line string) {
		payload.WriteString(line)
		payload.WriteString("\n")
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("yt-dlp metadata: %w", err)
	}

	var meta Metadata
	if err := json.Unmarshal([]byte(payload.String()), &meta); err != nil {
		return nil, fmt.Errorf("parse yt-dlp metadata: %w", err)
	}
	if meta.ID == "" {
		return nil, errors.New("yt-dlp metadata missing media id")
	}
	return &meta, nil
}

// Download fetches the video and audio streams into destDir as separate
// files so they can be remuxed later. Sources without a separate audio
// stream yield an empty AudioPath.
func (c *Client) Download(ctx context.Context, url, destDir string, progress ProgressFunc) (*Download, error) {
	if strings.TrimSpace(url) == "" {
		return nil, errors.New("url required")
	}
	if destDir == "" {
		return nil, errors.New("destination directory required")
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, fmt.Errorf("create destination: %w", err)
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	sortSpec := fmt.Sprintf("res:%d,fps:%d", c.maxHeight, c.maxFPS)

	videoPath, err := c.downloadStream(ctx, url, destDir, "video", "bestvideo*", sortSpec, progress)
	if err != nil {
		return nil, fmt.Errorf("download video: %w", err)
	}

	audioPath, err := c.downloadStream(ctx, url, destDir, "audio", "bestaudio", sortSpec, progress)
	if err != nil {
		// Some sources only publish a muxed stream; the merge stage copes
		// with a missing audio file.
		var exitErr *proc.ExitError
		if !errors.As(err, &exitErr) {
			return nil, fmt.Errorf("download audio: %w", err)
		}
		audioPath = ""
	}

	return &Download{VideoPath: videoPath, AudioPath: audioPath}, nil
}

func (c *Client) downloadStream(ctx context.Context, url, destDir, name, format, sortSpec string, progress ProgressFunc) (string, error) {
	args := []string{
		"--no-playlist",
		"--newline",
		"-S", sortSpec,
		"-f", format,
		"-o", filepath.Join(destDir, name+".%(ext)s"),
		url,
	}
	forward := func(line string) {
		if progress == nil {
			return
		}
		if percent, ok := parseProgress(line); ok {
			progress(percent, name)
		}
	}
	if err := c.exec.Run(ctx, proc.Command{Binary: c.binary, Args: args}, forward, forward); err != nil {
		return "", err
	}
	return findStreamFile(destDir, name)
}

func findStreamFile(dir, name string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("inspect download dir: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		base := entry.Name()
		if strings.HasPrefix(base, name+".") && !strings.HasSuffix(base, ".part") {
			return filepath.Join(dir, base), nil
		}
	}
	return "", fmt.Errorf("yt-dlp produced no %s file in %s", name, dir)
}

// parseProgress extracts the percentage from yt-dlp's --newline output,
// e.g. "[download]  42.3% of 10.00MiB at 1.00MiB/s".
func parseProgress(line string) (float64, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "[download]") {
		return 0, false
	}
	rest := strings.TrimSpace(strings.TrimPrefix(line, "[download]"))
	fields := strings.Fields(rest)
	if len(fields) == 0 || !strings.HasSuffix(fields[0], "%") {
		return 0, false
	}
	percent, err := strconv.ParseFloat(strings.TrimSuffix(fields[0], "%"), 64)
	if err != nil {
		return 0, false
	}
	return percent, true
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
