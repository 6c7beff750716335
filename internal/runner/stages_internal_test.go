package runner

import (
	"context"
	"testing"
	"time"
)

func TestStageTimeoutBoundsContext(t *testing.T) {
	ctx, cancel := stageTimeout(context.Background(), 300)
	defer cancel()

	deadline, ok := ctx.Deadline()
	if !ok {
		t.Fatal("expected a deadline")
	}
	remaining := time.Until(deadline)
	if remaining <= 0 || remaining > 300*time.Second {
		t.Fatalf("unexpected deadline %s away", remaining)
	}

	unbounded, cancel2 := stageTimeout(context.Background(), 0)
	defer cancel2()
	if _, ok := unbounded.Deadline(); ok {
		t.Fatal("zero seconds must not set a deadline")
	}
}
