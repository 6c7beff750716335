package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"murmur/internal/config"
)

func TestDefaultValidates(t *testing.T) {
	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if exists {
		t.Fatalf("expected exists=false for %s", resolved)
	}
	if cfg.Workers.Count != 2 {
		t.Fatalf("expected default worker count 2, got %d", cfg.Workers.Count)
	}
	if cfg.Tools.YtDlp != "yt-dlp" {
		t.Fatalf("expected default ytdlp binary, got %q", cfg.Tools.YtDlp)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	contents := `
[paths]
data_dir = "` + dir + `/state"

[workers]
count = 4
max_retries = 0

[transcription]
model = "medium"
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists {
		t.Fatal("expected exists=true")
	}
	if cfg.Workers.Count != 4 {
		t.Fatalf("expected worker count 4, got %d", cfg.Workers.Count)
	}
	if cfg.Workers.MaxRetries != 0 {
		t.Fatalf("expected max_retries 0, got %d", cfg.Workers.MaxRetries)
	}
	if cfg.Transcription.Model != "medium" {
		t.Fatalf("expected model medium, got %q", cfg.Transcription.Model)
	}
	if cfg.Paths.DataDir != filepath.Join(dir, "state") {
		t.Fatalf("expected expanded data_dir, got %q", cfg.Paths.DataDir)
	}
	// Untouched sections keep defaults.
	if cfg.Acquisition.MaxHeight != 1080 {
		t.Fatalf("expected default max_height, got %d", cfg.Acquisition.MaxHeight)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	contents := `
[workers]
count = 0

[logging]
format = "xml"
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}

	_, _, _, err := config.Load(path)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "workers.count") {
		t.Fatalf("expected workers.count problem, got %v", err)
	}
	if !strings.Contains(err.Error(), "logging.format") {
		t.Fatalf("expected logging.format problem, got %v", err)
	}
}

func TestEnsureDirectories(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(dir, "data")
	cfg.Paths.MediaDir = filepath.Join(dir, "media")
	cfg.Paths.TranscriptDir = filepath.Join(dir, "transcripts")
	cfg.Paths.LogDir = filepath.Join(dir, "logs")

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	for _, p := range []string{cfg.Paths.DataDir, cfg.Paths.MediaDir, cfg.Paths.TranscriptDir, cfg.Paths.LogDir} {
		info, err := os.Stat(p)
		if err != nil {
			t.Fatalf("stat %s: %v", p, err)
		}
		if !info.IsDir() {
			t.Fatalf("%s is not a directory", p)
		}
	}
}

func TestWriteSampleRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := config.WriteSample(path); err != nil {
		t.Fatalf("first WriteSample: %v", err)
	}
	if err := config.WriteSample(path); err == nil {
		t.Fatal("expected overwrite refusal")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "[workers]") {
		t.Fatal("sample config missing workers section")
	}
}
