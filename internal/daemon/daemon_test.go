package daemon

import (
	"context"
	"testing"
	"time"

	"murmur/internal/stage"
	"murmur/internal/testsupport"
)

func newDaemon(t *testing.T) *Daemon {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries(0))
	store := testsupport.MustOpenStore(t, cfg)
	d, err := New(cfg, store, nil)
	if err != nil {
		t.Fatalf("new daemon: %v", err)
	}
	return d
}

func TestDaemonStartStop(t *testing.T) {
	d := newDaemon(t)
	ctx := context.Background()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer d.Stop()

	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	status := d.Status(ctx)
	if !status.Running {
		t.Fatal("expected running status")
	}
	if status.PID <= 0 {
		t.Fatalf("expected pid, got %d", status.PID)
	}
	if len(status.Dependencies) == 0 {
		t.Fatal("expected dependency report")
	}
	for _, dep := range status.Dependencies {
		if !dep.Available {
			t.Fatalf("expected stubbed tool %s available: %s", dep.Name, dep.Detail)
		}
	}

	d.Stop()
	if d.Status(ctx).Running {
		t.Fatal("expected stopped status")
	}
}

func TestDaemonLockExcludesSecondInstance(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries(0))
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	first, err := New(cfg, store, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := first.Start(ctx); err != nil {
		t.Fatalf("start first: %v", err)
	}
	defer first.Stop()

	cfg.Paths.APIBind = "127.0.0.1:0"
	second, err := New(cfg, store, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := second.Start(ctx); err == nil {
		second.Stop()
		t.Fatal("expected lock contention to fail second start")
	}
}

func TestDaemonRequeuesInterruptedJobs(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries(0))
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	job := testsupport.MustEnqueue(t, store, "https://example.com/watch?v=stub1")
	if _, err := store.ClaimNext(ctx); err != nil {
		t.Fatalf("claim: %v", err)
	}

	d, err := New(cfg, store, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := d.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer d.Stop()

	// The interrupted job goes back to queued and then runs to completion.
	testsupport.Eventually(t, 60*time.Second, func() bool {
		got, err := store.GetByID(ctx, job.ID)
		if err != nil {
			t.Fatalf("get job: %v", err)
		}
		return got.Status == stage.StatusDone
	}, "requeued job should complete")
}

func TestTestNotificationWithoutWebhook(t *testing.T) {
	d := newDaemon(t)
	sent, message, err := d.TestNotification(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sent || message == "" {
		t.Fatalf("expected not-configured report, got sent=%v message=%q", sent, message)
	}
}
