package api_test

import (
	"context"
	"testing"

	"murmur/internal/api"
	"murmur/internal/testsupport"
)

func TestServiceAgainstStore(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	job := testsupport.MustEnqueue(t, store, "https://example.com/watch?v=abc")
	svc := api.NewService(store)

	items, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 1 || items[0].ID != job.ID {
		t.Fatalf("unexpected items: %+v", items)
	}

	item, err := svc.Describe(ctx, job.ID)
	if err != nil {
		t.Fatalf("describe: %v", err)
	}
	if item == nil || item.URL != job.URL {
		t.Fatalf("unexpected item: %+v", item)
	}

	stats, err := svc.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Queued != 1 || stats.Total != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	hits, err := svc.Search(ctx, "anything", 5)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 0 {
		t.Fatalf("expected no hits on empty index, got %+v", hits)
	}
}

func TestNilServiceIsSafe(t *testing.T) {
	var svc *api.Service
	if items, err := svc.List(context.Background()); err != nil || items != nil {
		t.Fatalf("expected nil service to be inert, got %v %v", items, err)
	}
	if api.NewService(nil) != nil {
		t.Fatal("expected nil reader to yield nil service")
	}
}
