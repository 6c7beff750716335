package config

import (
	"fmt"
	"strings"
)

// Validate checks the configuration for values the daemon cannot run with.
func (c *Config) Validate() error {
	var problems []string

	requiredPaths := map[string]string{
		"paths.data_dir":       c.Paths.DataDir,
		"paths.media_dir":      c.Paths.MediaDir,
		"paths.transcript_dir": c.Paths.TranscriptDir,
		"paths.log_dir":        c.Paths.LogDir,
	}
	for key, value := range requiredPaths {
		if strings.TrimSpace(value) == "" {
			problems = append(problems, fmt.Sprintf("%s must be set", key))
		}
	}

	requiredTools := map[string]string{
		"tools.ytdlp":   c.Tools.YtDlp,
		"tools.whisper": c.Tools.Whisper,
		"tools.ffmpeg":  c.Tools.FFmpeg,
		"tools.ffprobe": c.Tools.FFprobe,
	}
	for key, value := range requiredTools {
		if strings.TrimSpace(value) == "" {
			problems = append(problems, fmt.Sprintf("%s must be set", key))
		}
	}

	if c.Workers.Count < 1 {
		problems = append(problems, "workers.count must be at least 1")
	}
	if c.Workers.PollInterval < 1 {
		problems = append(problems, "workers.poll_interval must be at least 1 second")
	}
	if c.Workers.MaxRetries < 0 {
		problems = append(problems, "workers.max_retries must not be negative")
	}
	if c.Workers.KillGraceSeconds < 0 {
		problems = append(problems, "workers.kill_grace_seconds must not be negative")
	}
	if c.Workers.HeartbeatInterval < 1 {
		problems = append(problems, "workers.heartbeat_interval must be at least 1 second")
	}
	if c.Workers.HeartbeatTimeout <= c.Workers.HeartbeatInterval {
		problems = append(problems, "workers.heartbeat_timeout must exceed workers.heartbeat_interval")
	}

	if c.Acquisition.MaxHeight < 1 {
		problems = append(problems, "acquisition.max_height must be positive")
	}
	if c.Acquisition.TimeoutSeconds < 1 {
		problems = append(problems, "acquisition.timeout_seconds must be positive")
	}
	if c.Transcription.TimeoutSeconds < 1 {
		problems = append(problems, "transcription.timeout_seconds must be positive")
	}
	if strings.TrimSpace(c.Transcription.Model) == "" {
		problems = append(problems, "transcription.model must be set")
	}

	switch c.Logging.Format {
	case "", "console", "json":
	default:
		problems = append(problems, fmt.Sprintf("logging.format %q is not one of console, json", c.Logging.Format))
	}

	if c.Notifications.WebhookURL != "" && !strings.HasPrefix(c.Notifications.WebhookURL, "http") {
		problems = append(problems, "notifications.webhook_url must be an http or https URL")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}
