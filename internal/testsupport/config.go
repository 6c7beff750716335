package testsupport

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"murmur/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.MediaDir = filepath.Join(base, "media")
	cfgVal.Paths.TranscriptDir = filepath.Join(base, "transcripts")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Workers.Count = 1
	cfgVal.Workers.PollInterval = 1
	cfgVal.Workers.HeartbeatInterval = 1
	cfgVal.Workers.HeartbeatTimeout = 60
	cfgVal.Workers.KillGraceSeconds = 1

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return builder.cfg
}

// WithWorkerCount overrides the pool size on the test config.
func WithWorkerCount(count int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Workers.Count = count
	}
}

// WithWebhook points notifications at the given endpoint.
func WithWebhook(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Notifications.WebhookURL = url
	}
}

// WithStubbedBinaries writes executable stubs standing in for the external
// tools and points the config's tool paths at them. The stubs fake the
// pipeline end to end: metadata dumps, stream downloads, transcripts, and
// merges all produce plausible files. toolDelaySeconds slows each stub down
// so tests can catch jobs mid-stage.
func WithStubbedBinaries(toolDelaySeconds int) ConfigOption {
	return func(b *configBuilder) {
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}

		write := func(name, body string) string {
			target := filepath.Join(binDir, name)
			script := fmt.Sprintf("#!/bin/sh\ndelay=%d\n%s", toolDelaySeconds, body)
			if err := os.WriteFile(target, []byte(script), 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
			return target
		}

		b.cfg.Tools.YtDlp = write("yt-dlp", `
out=""
prev=""
dump=0
for a in "$@"; do
  [ "$prev" = "-o" ] && out="$a"
  [ "$a" = "--dump-single-json" ] && dump=1
  prev="$a"
done
if [ "$dump" = "1" ]; then
  echo '{"id":"stub1","title":"Stub Video","channel":"Stub Channel","duration":12.5,"upload_date":"20260101"}'
  exit 0
fi
sleep "$delay"
out=$(printf '%s' "$out" | sed 's/%(ext)s/mp4/')
mkdir -p "$(dirname "$out")"
echo streamdata > "$out"
echo "[download] 100.0% of 1.00MiB in 00:01"
`)

		b.cfg.Tools.Whisper = write("whisper", `
input="$1"
outdir=""
prev=""
for a in "$@"; do
  [ "$prev" = "--output_dir" ] && outdir="$a"
  prev="$a"
done
sleep "$delay"
mkdir -p "$outdir"
stem=$(basename "$input")
stem="${stem%.*}"
printf '{"segments":[{"start":0.0,"end":2.0,"text":"hello from the stub"},{"start":2.0,"end":4.0,"text":"transcripts are fun"}]}' > "$outdir/$stem.json"
`)

		b.cfg.Tools.FFmpeg = write("ffmpeg", `
sleep "$delay"
for a in "$@"; do last="$a"; done
mkdir -p "$(dirname "$last")"
echo merged > "$last"
`)

		b.cfg.Tools.FFprobe = write("ffprobe", `
echo audio
`)
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
