package stage_test

import (
	"testing"

	"murmur/internal/stage"
)

func TestOrderAdvances(t *testing.T) {
	got := []stage.Stage{stage.First()}
	current := stage.First()
	for {
		next, ok := stage.Next(current)
		if !ok {
			break
		}
		got = append(got, next)
		current = next
	}
	want := []stage.Stage{stage.Acquire, stage.Transcribe, stage.Merge, stage.Index}
	if len(got) != len(want) {
		t.Fatalf("expected %d stages, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("stage %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestParseRejectsUnknown(t *testing.T) {
	if _, err := stage.Parse("upload"); err == nil {
		t.Fatal("expected error for unknown stage")
	}
	s, err := stage.Parse(" Transcribe ")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if s != stage.Transcribe {
		t.Fatalf("expected transcribe, got %s", s)
	}
}

func TestStatusRoundTrip(t *testing.T) {
	for _, s := range stage.Order {
		active := stage.ActiveStatus(s)
		if !active.Active() {
			t.Fatalf("%s: expected active status", s)
		}
		if back, ok := stage.StageOf(active); !ok || back != s {
			t.Fatalf("%s: StageOf(%s) = %s, %v", s, active, back, ok)
		}

		paused := stage.PausedStatus(s)
		if !paused.Valid() {
			t.Fatalf("%s: paused status %s not valid", s, paused)
		}
		if !paused.Paused() {
			t.Fatalf("%s: expected paused status", paused)
		}
		if back, ok := stage.StageOf(paused); !ok || back != s {
			t.Fatalf("%s: StageOf(%s) = %s, %v", s, paused, back, ok)
		}
	}
}

func TestDoneStatus(t *testing.T) {
	if got := stage.DoneStatus(stage.Acquire); got != stage.StatusQueued {
		t.Fatalf("acquire completion should requeue, got %s", got)
	}
	if got := stage.DoneStatus(stage.Index); got != stage.StatusDone {
		t.Fatalf("index completion should finish, got %s", got)
	}
}

func TestTerminal(t *testing.T) {
	if !stage.StatusDone.Terminal() || !stage.StatusFailed.Terminal() {
		t.Fatal("done and failed are terminal")
	}
	if stage.StatusQueued.Terminal() || stage.StatusPausedMerge.Terminal() {
		t.Fatal("queued and paused are not terminal")
	}
}
