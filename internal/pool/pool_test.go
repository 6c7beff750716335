package pool_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"murmur/internal/ledger"
	"murmur/internal/pool"
	"murmur/internal/stage"
	"murmur/internal/testsupport"
)

func jobStatus(t *testing.T, store *ledger.Store, id int64) stage.Status {
	t.Helper()
	job, err := store.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	return job.Status
}

func startSupervisor(t *testing.T, sup *pool.Supervisor) {
	t.Helper()
	if err := sup.Start(context.Background()); err != nil {
		t.Fatalf("start supervisor: %v", err)
	}
	t.Cleanup(sup.Stop)
}

func TestPoolRunsJobToCompletion(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries(0))
	store := testsupport.MustOpenStore(t, cfg)
	job := testsupport.MustEnqueue(t, store, "https://example.com/watch?v=stub1")

	sup, err := pool.New(cfg, store, nil)
	if err != nil {
		t.Fatalf("new supervisor: %v", err)
	}
	startSupervisor(t, sup)

	testsupport.Eventually(t, 60*time.Second, func() bool {
		return jobStatus(t, store, job.ID) == stage.StatusDone
	}, "job should complete")

	final, err := store.GetByID(context.Background(), job.ID)
	if err != nil {
		t.Fatal(err)
	}
	if final.MediaID != "stub1" {
		t.Fatalf("expected media id stub1, got %q", final.MediaID)
	}
	if _, err := os.Stat(final.OutputPath); err != nil {
		t.Fatalf("expected merged output on disk: %v", err)
	}

	hits, err := store.Search(context.Background(), "transcripts", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 1 || hits[0].MediaID != "stub1" {
		t.Fatalf("unexpected search hits: %+v", hits)
	}
}

func TestPauseAndResumeLiveProcess(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries(2))
	store := testsupport.MustOpenStore(t, cfg)
	job := testsupport.MustEnqueue(t, store, "https://example.com/watch?v=stub1")

	sup, err := pool.New(cfg, store, nil)
	if err != nil {
		t.Fatalf("new supervisor: %v", err)
	}
	startSupervisor(t, sup)

	testsupport.Eventually(t, 30*time.Second, func() bool {
		return jobStatus(t, store, job.ID) == stage.StatusAcquiring
	}, "job should start acquiring")

	result, err := sup.Pause(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("pause: %v", err)
	}
	if result.Outcome != pool.Accepted {
		t.Fatalf("expected pause accepted, got %s (%s)", result.Outcome, result.Reason)
	}
	testsupport.Eventually(t, 10*time.Second, func() bool {
		return jobStatus(t, store, job.ID) == stage.StatusPausedAcquire
	}, "job should show paused status")

	// Pausing twice is rejected.
	again, err := sup.Pause(context.Background(), job.ID)
	if err != nil {
		t.Fatal(err)
	}
	if again.Outcome != pool.Rejected {
		t.Fatalf("expected second pause rejected, got %s", again.Outcome)
	}

	slots := sup.Slots()
	foundPaused := false
	for _, slot := range slots {
		if slot.JobID == job.ID && slot.Paused {
			foundPaused = true
		}
	}
	if !foundPaused {
		t.Fatalf("expected a paused slot owning job %d: %+v", job.ID, slots)
	}

	resumed, err := sup.Resume(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if resumed.Outcome != pool.Accepted {
		t.Fatalf("expected resume accepted, got %s (%s)", resumed.Outcome, resumed.Reason)
	}

	testsupport.Eventually(t, 120*time.Second, func() bool {
		return jobStatus(t, store, job.ID) == stage.StatusDone
	}, "paused and resumed job should still complete")
}

func TestKillRemovesArtifacts(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries(3))
	store := testsupport.MustOpenStore(t, cfg)
	job := testsupport.MustEnqueue(t, store, "https://example.com/watch?v=stub1")

	sup, err := pool.New(cfg, store, nil)
	if err != nil {
		t.Fatalf("new supervisor: %v", err)
	}
	startSupervisor(t, sup)

	mediaDir := filepath.Join(cfg.Paths.MediaDir, "stub1")
	testsupport.Eventually(t, 30*time.Second, func() bool {
		if jobStatus(t, store, job.ID) != stage.StatusAcquiring {
			return false
		}
		_, err := os.Stat(mediaDir)
		return err == nil
	}, "acquire should be underway with artifacts on disk")

	result, err := sup.Kill(context.Background(), job.ID, true)
	if err != nil {
		t.Fatalf("kill: %v", err)
	}
	if result.Outcome != pool.Accepted {
		t.Fatalf("expected kill accepted, got %s (%s)", result.Outcome, result.Reason)
	}

	testsupport.Eventually(t, 30*time.Second, func() bool {
		return jobStatus(t, store, job.ID) == stage.StatusFailed
	}, "killed job should fail")

	final, err := store.GetByID(context.Background(), job.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(final.ErrorMessage, "killed") {
		t.Fatalf("expected kill reason, got %q", final.ErrorMessage)
	}

	testsupport.Eventually(t, 10*time.Second, func() bool {
		_, err := os.Stat(mediaDir)
		return os.IsNotExist(err)
	}, "artifacts should be removed")
}

func TestKillQueuedJobWithoutWorker(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries(0))
	store := testsupport.MustOpenStore(t, cfg)
	job := testsupport.MustEnqueue(t, store, "https://example.com/watch?v=stub1")

	sup, err := pool.New(cfg, store, nil)
	if err != nil {
		t.Fatalf("new supervisor: %v", err)
	}
	// Supervisor intentionally not started; no worker owns the job.

	result, err := sup.Kill(context.Background(), job.ID, false)
	if err != nil {
		t.Fatalf("kill: %v", err)
	}
	if result.Outcome != pool.Accepted {
		t.Fatalf("expected accepted, got %s (%s)", result.Outcome, result.Reason)
	}
	if got := jobStatus(t, store, job.ID); got != stage.StatusFailed {
		t.Fatalf("expected failed, got %s", got)
	}
}

func TestPauseRejectedForIdleJob(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries(0))
	store := testsupport.MustOpenStore(t, cfg)
	job := testsupport.MustEnqueue(t, store, "https://example.com/watch?v=stub1")

	sup, err := pool.New(cfg, store, nil)
	if err != nil {
		t.Fatal(err)
	}

	result, err := sup.Pause(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("pause: %v", err)
	}
	if result.Outcome != pool.Rejected {
		t.Fatalf("expected rejected for queued job, got %s", result.Outcome)
	}
}

func TestResumeOrphanedPausedJobRequeues(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries(0))
	store := testsupport.MustOpenStore(t, cfg)
	job := testsupport.MustEnqueue(t, store, "https://example.com/watch?v=stub1")
	ctx := context.Background()

	// Simulate a daemon restart that left a paused job behind.
	claimed, err := store.ClaimNext(ctx)
	if err != nil || claimed == nil {
		t.Fatalf("claim: %v", err)
	}
	if err := store.Advance(ctx, job.ID, stage.StatusAcquiring, stage.StatusPausedAcquire, ledger.Patch{}); err != nil {
		t.Fatalf("advance to paused: %v", err)
	}

	sup, err := pool.New(cfg, store, nil)
	if err != nil {
		t.Fatal(err)
	}

	result, err := sup.Resume(ctx, job.ID)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if result.Outcome != pool.Accepted {
		t.Fatalf("expected accepted, got %s (%s)", result.Outcome, result.Reason)
	}
	if got := jobStatus(t, store, job.ID); got != stage.StatusQueued {
		t.Fatalf("expected requeued, got %s", got)
	}
}

func TestStageDeadlineDuringPauseRequeues(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries(5))
	cfg.Acquisition.TimeoutSeconds = 1
	store := testsupport.MustOpenStore(t, cfg)
	job := testsupport.MustEnqueue(t, store, "https://example.com/watch?v=stub1")

	sup, err := pool.New(cfg, store, nil)
	if err != nil {
		t.Fatalf("new supervisor: %v", err)
	}
	startSupervisor(t, sup)

	testsupport.Eventually(t, 30*time.Second, func() bool {
		return jobStatus(t, store, job.ID) == stage.StatusAcquiring
	}, "job should start acquiring")

	result, err := sup.Pause(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("pause: %v", err)
	}
	if result.Outcome != pool.Accepted {
		t.Fatalf("expected pause accepted, got %s (%s)", result.Outcome, result.Reason)
	}
	testsupport.Eventually(t, 10*time.Second, func() bool {
		return jobStatus(t, store, job.ID) == stage.StatusPausedAcquire
	}, "job should show paused status")

	// The acquisition deadline fires against the suspended process. The
	// run must come back to the queue instead of stranding the paused row.
	testsupport.Eventually(t, 30*time.Second, func() bool {
		return jobStatus(t, store, job.ID) != stage.StatusPausedAcquire
	}, "timed-out paused job should leave the paused status")

	// Every rerun hits the same short deadline, so the retry budget drains
	// and the job lands in failed with the transient classification.
	testsupport.Eventually(t, 120*time.Second, func() bool {
		return jobStatus(t, store, job.ID) == stage.StatusFailed
	}, "retry budget should drain to a recorded failure")

	final, err := store.GetByID(context.Background(), job.ID)
	if err != nil {
		t.Fatal(err)
	}
	if final.ErrorKind != "transient" {
		t.Fatalf("expected transient error kind, got %q", final.ErrorKind)
	}
	if final.Attempt == 0 {
		t.Fatal("expected failed runs counted as attempts")
	}
	if final.ErrorMessage == "" {
		t.Fatal("expected error message recorded")
	}
}
