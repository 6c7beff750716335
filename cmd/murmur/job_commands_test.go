package main

import (
	"context"
	"strings"
	"testing"

	"murmur/internal/testsupport"
)

func TestEnqueueAndListViaSocket(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"enqueue", "https://example.com/watch?v=one"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	requireContains(t, out, "Queued job 1")

	out, _, err = runCLI(t, []string{"jobs", "list"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("jobs list: %v", err)
	}
	requireContains(t, out, "https://example.com/watch?v=one")
	requireContains(t, out, "queued")
}

func TestJobsListFallsBackToLedger(t *testing.T) {
	env := setupCLITestEnv(t)
	testsupport.MustEnqueue(t, env.store, "https://example.com/offline")

	// A dead socket path forces the direct-ledger fallback.
	out, _, err := runCLI(t, []string{"jobs", "list"}, env.socketPath+".missing", env.configPath)
	if err != nil {
		t.Fatalf("jobs list offline: %v", err)
	}
	requireContains(t, out, "https://example.com/offline")
}

func TestJobsShowUnknownID(t *testing.T) {
	env := setupCLITestEnv(t)

	if _, _, err := runCLI(t, []string{"jobs", "show", "99"}, env.socketPath, env.configPath); err == nil {
		t.Fatal("expected error for unknown job id")
	}
	if _, _, err := runCLI(t, []string{"jobs", "show", "abc"}, env.socketPath, env.configPath); err == nil {
		t.Fatal("expected error for non-numeric job id")
	}
}

func TestJobsShowPrintsDetails(t *testing.T) {
	env := setupCLITestEnv(t)
	job := testsupport.MustEnqueue(t, env.store, "https://example.com/show-me")

	out, _, err := runCLI(t, []string{"jobs", "show", "1"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("jobs show: %v", err)
	}
	requireContains(t, out, "https://example.com/show-me")
	requireContains(t, out, string(job.Status))
}

func TestJobsRetryWithoutFailures(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"jobs", "retry"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("jobs retry: %v", err)
	}
	requireContains(t, out, "No failed jobs to retry")
}

func TestJobsClearRemovesNothingWhenEmpty(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"jobs", "clear"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("jobs clear: %v", err)
	}
	requireContains(t, out, "Removed 0 jobs")

	out, _, err = runCLI(t, []string{"jobs", "clear", "--failed"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("jobs clear --failed: %v", err)
	}
	requireContains(t, out, "Removed 0 jobs")
}

func TestPauseRejectsIdleJob(t *testing.T) {
	env := setupCLITestEnv(t)
	testsupport.MustEnqueue(t, env.store, "https://example.com/idle")

	out, _, err := runCLI(t, []string{"pause", "1"}, env.socketPath, env.configPath)
	if err == nil {
		t.Fatal("expected pause of a queued job to fail")
	}
	requireContains(t, out, "rejected")
}

func TestKillQueuedJob(t *testing.T) {
	env := setupCLITestEnv(t)
	job := testsupport.MustEnqueue(t, env.store, "https://example.com/doomed")

	out, _, err := runCLI(t, []string{"kill", "1"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("kill: %v", err)
	}
	requireContains(t, out, "accepted")

	updated, err := env.store.GetByID(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if !strings.Contains(string(updated.Status), "failed") {
		t.Fatalf("expected killed job to be failed, got %s", updated.Status)
	}
	if updated.ErrorKind != "killed" {
		t.Fatalf("expected killed error kind, got %q", updated.ErrorKind)
	}

	shown, _, err := runCLI(t, []string{"jobs", "show", "1"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("jobs show: %v", err)
	}
	requireContains(t, shown, "Error kind: killed")
}

func TestControlCommandsRequireValidID(t *testing.T) {
	env := setupCLITestEnv(t)

	for _, args := range [][]string{{"pause", "zero"}, {"resume", "-4"}, {"kill", "x"}} {
		if _, _, err := runCLI(t, args, env.socketPath, env.configPath); err == nil {
			t.Fatalf("expected invalid id error for %v", args)
		}
	}
}
