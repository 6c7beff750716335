package ffmpeg_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"murmur/internal/proc"
	"murmur/internal/services/ffmpeg"
)

type fakeExecutor struct {
	calls  []proc.Command
	handle func(command proc.Command, onStdout func(string)) error
}

func (f *fakeExecutor) Run(_ context.Context, command proc.Command, onStdout, _ func(string)) error {
	f.calls = append(f.calls, command)
	if f.handle != nil {
		return f.handle(command, onStdout)
	}
	return nil
}

func TestHasAudio(t *testing.T) {
	exec := &fakeExecutor{
		handle: func(_ proc.Command, onStdout func(string)) error {
			onStdout("audio")
			return nil
		},
	}
	client, err := ffmpeg.New("ffmpeg", "ffprobe", 0, ffmpeg.WithExecutor(exec))
	if err != nil {
		t.Fatal(err)
	}

	ok, err := client.HasAudio(context.Background(), "/media/vid/video.mp4")
	if err != nil {
		t.Fatalf("HasAudio: %v", err)
	}
	if !ok {
		t.Fatal("expected audio stream detected")
	}
	if exec.calls[0].Binary != "ffprobe" {
		t.Fatalf("expected ffprobe invocation, got %s", exec.calls[0].Binary)
	}
}

func TestHasAudioFalseOnSilentOutput(t *testing.T) {
	client, err := ffmpeg.New("ffmpeg", "ffprobe", 0, ffmpeg.WithExecutor(&fakeExecutor{}))
	if err != nil {
		t.Fatal(err)
	}
	ok, err := client.HasAudio(context.Background(), "/media/vid/video.mp4")
	if err != nil {
		t.Fatalf("HasAudio: %v", err)
	}
	if ok {
		t.Fatal("expected no audio stream")
	}
}

func TestMergeWritesTempThenRenames(t *testing.T) {
	dir := t.TempDir()
	output := filepath.Join(dir, "final.mp4")
	exec := &fakeExecutor{
		handle: func(command proc.Command, _ func(string)) error {
			// Last arg is the partial output path.
			target := command.Args[len(command.Args)-1]
			if target == output {
				t.Errorf("merge must not write the final name directly")
			}
			return os.WriteFile(target, []byte("merged"), 0o644)
		},
	}
	client, err := ffmpeg.New("ffmpeg", "ffprobe", 0, ffmpeg.WithExecutor(exec))
	if err != nil {
		t.Fatal(err)
	}

	if err := client.Merge(context.Background(), "/media/v.mp4", "/media/a.m4a", output); err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if _, err := os.Stat(output); err != nil {
		t.Fatalf("expected final output: %v", err)
	}

	args := strings.Join(exec.calls[0].Args, " ")
	if !strings.Contains(args, "-c copy") {
		t.Fatalf("expected stream copy, args: %s", args)
	}
	if !strings.Contains(args, "-i /media/v.mp4 -i /media/a.m4a") {
		t.Fatalf("expected both inputs, args: %s", args)
	}
}

func TestMergeVideoOnly(t *testing.T) {
	dir := t.TempDir()
	output := filepath.Join(dir, "final.mp4")
	exec := &fakeExecutor{
		handle: func(command proc.Command, _ func(string)) error {
			return os.WriteFile(command.Args[len(command.Args)-1], []byte("merged"), 0o644)
		},
	}
	client, err := ffmpeg.New("ffmpeg", "ffprobe", 0, ffmpeg.WithExecutor(exec))
	if err != nil {
		t.Fatal(err)
	}

	if err := client.Merge(context.Background(), "/media/v.mp4", "", output); err != nil {
		t.Fatalf("Merge: %v", err)
	}
	args := strings.Join(exec.calls[0].Args, " ")
	if strings.Count(args, "-i ") != 1 {
		t.Fatalf("expected single input, args: %s", args)
	}
}
