package runner_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"murmur/internal/config"
	"murmur/internal/ledger"
	"murmur/internal/proc"
	"murmur/internal/runner"
	"murmur/internal/services"
	"murmur/internal/services/ffmpeg"
	"murmur/internal/services/whisper"
	"murmur/internal/services/ytdlp"
	"murmur/internal/stage"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(dir, "data")
	cfg.Paths.MediaDir = filepath.Join(dir, "media")
	cfg.Paths.TranscriptDir = filepath.Join(dir, "transcripts")
	cfg.Paths.LogDir = filepath.Join(dir, "logs")
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatal(err)
	}
	return &cfg
}

func openStore(t *testing.T, cfg *config.Config) *ledger.Store {
	t.Helper()
	store, err := ledger.Open(cfg)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

type scriptedExecutor struct {
	handle func(command proc.Command, onStdout func(string)) error
}

func (s scriptedExecutor) Run(_ context.Context, command proc.Command, onStdout, _ func(string)) error {
	return s.handle(command, onStdout)
}

func fakeYtDlp(t *testing.T) *ytdlp.Client {
	t.Helper()
	exec := scriptedExecutor{handle: func(command proc.Command, onStdout func(string)) error {
		args := strings.Join(command.Args, " ")
		if strings.Contains(args, "--dump-single-json") {
			onStdout(`{"id":"vid42","title":"Demo","channel":"Chan","duration":30,"upload_date":"20260102"}`)
			return nil
		}
		for i, arg := range command.Args {
			if arg == "-o" && i+1 < len(command.Args) {
				name := strings.Replace(command.Args[i+1], "%(ext)s", "mp4", 1)
				if err := os.MkdirAll(filepath.Dir(name), 0o755); err != nil {
					return err
				}
				return os.WriteFile(name, []byte("stream"), 0o644)
			}
		}
		return nil
	}}
	client, err := ytdlp.New("yt-dlp", 1080, 60, 0, ytdlp.WithExecutor(exec))
	if err != nil {
		t.Fatal(err)
	}
	return client
}

func fakeWhisper(t *testing.T) *whisper.Client {
	t.Helper()
	exec := scriptedExecutor{handle: func(command proc.Command, _ func(string)) error {
		var outDir string
		for i, arg := range command.Args {
			if arg == "--output_dir" && i+1 < len(command.Args) {
				outDir = command.Args[i+1]
			}
		}
		transcript := `{"segments":[{"start":0.0,"end":2.0,"text":"hello world"},{"start":2.0,"end":4.0,"text":"from the test"}]}`
		path := whisper.TranscriptPath(command.Args[0], outDir)
		if err := os.MkdirAll(outDir, 0o755); err != nil {
			return err
		}
		return os.WriteFile(path, []byte(transcript), 0o644)
	}}
	client, err := whisper.New("whisper", "small", "", "en", 0, whisper.WithExecutor(exec))
	if err != nil {
		t.Fatal(err)
	}
	return client
}

func fakeFFmpeg(t *testing.T) *ffmpeg.Client {
	t.Helper()
	exec := scriptedExecutor{handle: func(command proc.Command, onStdout func(string)) error {
		if command.Binary == "ffprobe" {
			onStdout("audio")
			return nil
		}
		return os.WriteFile(command.Args[len(command.Args)-1], []byte("merged"), 0o644)
	}}
	client, err := ffmpeg.New("ffmpeg", "ffprobe", 0, ffmpeg.WithExecutor(exec))
	if err != nil {
		t.Fatal(err)
	}
	return client
}

func newRunner(t *testing.T, cfg *config.Config, store *ledger.Store) *runner.Runner {
	t.Helper()
	r, err := runner.New(cfg, store, nil, nil,
		runner.WithYtDlp(fakeYtDlp(t)),
		runner.WithWhisper(fakeWhisper(t)),
		runner.WithFFmpeg(fakeFFmpeg(t)),
	)
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func TestRunnerWalksJobToDone(t *testing.T) {
	cfg := testConfig(t)
	store := openStore(t, cfg)
	r := newRunner(t, cfg, store)
	ctx := context.Background()

	job, err := store.Enqueue(ctx, "https://example.com/watch?v=vid42")
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < len(stage.Order); i++ {
		claimed, err := store.ClaimNext(ctx)
		if err != nil {
			t.Fatalf("claim %d: %v", i, err)
		}
		if claimed == nil {
			t.Fatalf("expected claimable job at step %d", i)
		}
		if err := r.Run(ctx, claimed); err != nil {
			t.Fatalf("run %s: %v", claimed.Stage, err)
		}
	}

	final, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatal(err)
	}
	if final.Status != stage.StatusDone {
		t.Fatalf("expected done, got %s (%s)", final.Status, final.ErrorMessage)
	}
	if final.MediaID != "vid42" {
		t.Fatalf("expected media id recorded, got %q", final.MediaID)
	}
	if final.OutputPath == "" || filepath.Base(final.OutputPath) != "vid42.mp4" {
		t.Fatalf("unexpected output path %q", final.OutputPath)
	}

	media, err := store.GetMedia(ctx, "vid42")
	if err != nil {
		t.Fatal(err)
	}
	if media.IndexedAt == nil {
		t.Fatal("expected media indexed after pipeline")
	}

	hits, err := store.Search(ctx, "hello", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 1 || hits[0].MediaID != "vid42" {
		t.Fatalf("unexpected hits: %+v", hits)
	}
}

func TestRunnerClassifiesTransientMarkers(t *testing.T) {
	cfg := testConfig(t)
	store := openStore(t, cfg)
	ctx := context.Background()

	exec := scriptedExecutor{handle: func(command proc.Command, _ func(string)) error {
		return &proc.ExitError{Binary: "yt-dlp", Code: 1, Tail: []string{"ERROR: HTTP Error 429: Too Many Requests"}}
	}}
	failing, err := ytdlp.New("yt-dlp", 1080, 60, 0, ytdlp.WithExecutor(exec))
	if err != nil {
		t.Fatal(err)
	}
	r, err := runner.New(cfg, store, nil, nil, runner.WithYtDlp(failing))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := store.Enqueue(ctx, "https://example.com/v"); err != nil {
		t.Fatal(err)
	}
	job, err := store.ClaimNext(ctx)
	if err != nil || job == nil {
		t.Fatalf("claim: %v", err)
	}

	runErr := r.Run(ctx, job)
	if runErr == nil {
		t.Fatal("expected stage failure")
	}
	if services.Classify(runErr) != services.KindTransient {
		t.Fatalf("expected transient classification, got %v: %v", services.Classify(runErr), runErr)
	}
}

func TestRunnerClassifiesUnknownToolFailureFatal(t *testing.T) {
	cfg := testConfig(t)
	store := openStore(t, cfg)
	ctx := context.Background()

	exec := scriptedExecutor{handle: func(command proc.Command, _ func(string)) error {
		return &proc.ExitError{Binary: "yt-dlp", Code: 1, Tail: []string{"ERROR: unsupported URL"}}
	}}
	failing, err := ytdlp.New("yt-dlp", 1080, 60, 0, ytdlp.WithExecutor(exec))
	if err != nil {
		t.Fatal(err)
	}
	r, err := runner.New(cfg, store, nil, nil, runner.WithYtDlp(failing))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := store.Enqueue(ctx, "https://example.com/v"); err != nil {
		t.Fatal(err)
	}
	job, err := store.ClaimNext(ctx)
	if err != nil || job == nil {
		t.Fatalf("claim: %v", err)
	}

	runErr := r.Run(ctx, job)
	if !errors.Is(runErr, services.ErrFatal) {
		t.Fatalf("expected fatal, got %v", runErr)
	}
}

func TestRunnerRejectsSilentVideo(t *testing.T) {
	cfg := testConfig(t)
	store := openStore(t, cfg)
	ctx := context.Background()

	silentProbe := scriptedExecutor{handle: func(command proc.Command, _ func(string)) error {
		return nil // ffprobe reports no audio streams
	}}
	probe, err := ffmpeg.New("ffmpeg", "ffprobe", 0, ffmpeg.WithExecutor(silentProbe))
	if err != nil {
		t.Fatal(err)
	}
	r, err := runner.New(cfg, store, nil, nil,
		runner.WithYtDlp(fakeYtDlp(t)),
		runner.WithFFmpeg(probe),
	)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := store.Enqueue(ctx, "https://example.com/v"); err != nil {
		t.Fatal(err)
	}
	// Acquire first so the job reaches transcribe with artifacts.
	job, err := store.ClaimNext(ctx)
	if err != nil || job == nil {
		t.Fatalf("claim: %v", err)
	}
	if err := r.Run(ctx, job); err != nil {
		t.Fatalf("acquire: %v", err)
	}

	job, err = store.ClaimNext(ctx)
	if err != nil || job == nil {
		t.Fatalf("claim transcribe: %v", err)
	}
	runErr := r.Run(ctx, job)
	if !errors.Is(runErr, services.ErrFatal) {
		t.Fatalf("expected fatal for silent media, got %v", runErr)
	}
	if !strings.Contains(runErr.Error(), "no audio stream") {
		t.Fatalf("unexpected message: %v", runErr)
	}
}
