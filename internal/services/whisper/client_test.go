package whisper_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"murmur/internal/proc"
	"murmur/internal/services/whisper"
)

type fakeExecutor struct {
	calls  []proc.Command
	handle func(command proc.Command) error
}

func (f *fakeExecutor) Run(_ context.Context, command proc.Command, _, _ func(string)) error {
	f.calls = append(f.calls, command)
	if f.handle != nil {
		return f.handle(command)
	}
	return nil
}

func TestTranscribeBuildsArgsAndFindsOutput(t *testing.T) {
	outDir := t.TempDir()
	exec := &fakeExecutor{
		handle: func(_ proc.Command) error {
			return os.WriteFile(filepath.Join(outDir, "audio.json"), []byte(`{"segments":[]}`), 0o644)
		},
	}
	client, err := whisper.New("whisper", "small", "/models", "en", 0, whisper.WithExecutor(exec))
	if err != nil {
		t.Fatal(err)
	}

	path, err := client.Transcribe(context.Background(), "/media/vid/audio.m4a", outDir, nil)
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if filepath.Base(path) != "audio.json" {
		t.Fatalf("unexpected transcript path %q", path)
	}

	args := strings.Join(exec.calls[0].Args, " ")
	for _, want := range []string{"--model small", "--model_dir /models", "--language en", "--output_format json"} {
		if !strings.Contains(args, want) {
			t.Fatalf("missing %q in args: %s", want, args)
		}
	}
}

func TestTranscribeFailsWithoutOutput(t *testing.T) {
	client, err := whisper.New("whisper", "small", "", "", 0, whisper.WithExecutor(&fakeExecutor{}))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := client.Transcribe(context.Background(), "/media/vid/audio.m4a", t.TempDir(), nil); err == nil {
		t.Fatal("expected error when tool produces no transcript")
	}
}

func TestLoadSegmentsNormalizesText(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audio.json")
	// "e" followed by a combining acute accent decomposes; NFC recomposes it.
	contents := `{
		"text": "full text",
		"segments": [
			{"start": 0.0, "end": 2.5, "text": " café talk "},
			{"start": 2.5, "end": 3.0, "text": "   "},
			{"start": 3.0, "end": 4.25, "text": "second line"}
		]
	}`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}

	segments, err := whisper.LoadSegments(path)
	if err != nil {
		t.Fatalf("LoadSegments: %v", err)
	}
	if len(segments) != 2 {
		t.Fatalf("expected blank segment dropped, got %d segments", len(segments))
	}
	if segments[0].Text != "café talk" {
		t.Fatalf("expected NFC-normalized text, got %q", segments[0].Text)
	}
	if segments[0].StartMS != 0 || segments[0].EndMS != 2500 {
		t.Fatalf("unexpected timing: %+v", segments[0])
	}
	if segments[1].StartMS != 3000 || segments[1].EndMS != 4250 {
		t.Fatalf("unexpected timing: %+v", segments[1])
	}
}

func TestLoadSegmentsRejectsMalformedJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audio.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := whisper.LoadSegments(path); err == nil {
		t.Fatal("expected parse error")
	}
}
