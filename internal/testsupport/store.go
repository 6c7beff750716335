package testsupport

import (
	"context"
	"testing"

	"murmur/internal/config"
	"murmur/internal/ledger"
)

// MustOpenStore opens a ledger.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *ledger.Store {
	t.Helper()

	store, err := ledger.Open(cfg)
	if err != nil {
		t.Fatalf("ledger.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

// MustEnqueue inserts a job for tests using the provided store.
func MustEnqueue(t testing.TB, store *ledger.Store, url string) *ledger.Job {
	t.Helper()

	job, err := store.Enqueue(context.Background(), url)
	if err != nil {
		t.Fatalf("store.Enqueue: %v", err)
	}
	return job
}
