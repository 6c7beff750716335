package api_test

import (
	"testing"
	"time"

	"murmur/internal/api"
	"murmur/internal/ledger"
	"murmur/internal/pool"
	"murmur/internal/stage"
)

func TestFromJob(t *testing.T) {
	beat := time.Date(2026, time.March, 4, 10, 30, 0, 0, time.UTC)
	job := &ledger.Job{
		ID:              7,
		URL:             "https://example.com/watch?v=abc",
		Status:          stage.StatusTranscribing,
		Stage:           stage.Transcribe,
		MediaID:         "abc",
		Attempt:         1,
		ErrorMessage:    "yt-dlp: tool reported a retryable condition",
		ErrorKind:       "transient",
		ProgressPercent: 42.5,
		ProgressMessage: "transcribing",
		VideoPath:       "/media/abc/video.mp4",
		LastHeartbeat:   &beat,
		CreatedAt:       beat.Add(-time.Hour),
		UpdatedAt:       beat,
	}

	dto := api.FromJob(job)
	if dto.ID != 7 || dto.Status != "transcribing" || dto.Stage != "transcribe" {
		t.Fatalf("unexpected conversion: %+v", dto)
	}
	if dto.Progress.Percent != 42.5 || dto.Progress.Message != "transcribing" {
		t.Fatalf("unexpected progress: %+v", dto.Progress)
	}
	if dto.ErrorKind != "transient" || dto.ErrorMessage == "" {
		t.Fatalf("expected classified error carried over: %+v", dto)
	}
	if dto.LastHeartbeat != "2026-03-04T10:30:00.000Z" {
		t.Fatalf("unexpected heartbeat format: %q", dto.LastHeartbeat)
	}
	if dto.CreatedAt == "" || dto.UpdatedAt == "" {
		t.Fatal("expected timestamps to be formatted")
	}
}

func TestFromJobNil(t *testing.T) {
	dto := api.FromJob(nil)
	if dto.ID != 0 || dto.URL != "" {
		t.Fatalf("expected zero value, got %+v", dto)
	}
	if items := api.FromJobs(nil); items != nil {
		t.Fatalf("expected nil slice, got %+v", items)
	}
}

func TestFromSearchHits(t *testing.T) {
	hits := api.FromSearchHits([]ledger.SearchHit{{
		MediaID:   "abc",
		Title:     "A Talk",
		SourceURL: "https://example.com/watch?v=abc",
		StartMS:   1500,
		EndMS:     4000,
		Text:      "hello there",
		Rank:      -1.5,
	}})
	if len(hits) != 1 {
		t.Fatalf("expected one hit, got %d", len(hits))
	}
	if hits[0].StartMS != 1500 || hits[0].Text != "hello there" {
		t.Fatalf("unexpected hit: %+v", hits[0])
	}
}

func TestFromSlots(t *testing.T) {
	started := time.Date(2026, time.March, 4, 10, 0, 0, 0, time.UTC)
	slots := api.FromSlots([]pool.SlotState{
		{Slot: 0, JobID: 3, URL: "https://example.com", Stage: stage.Acquire, Paused: true, StartedAt: started},
		{Slot: 1},
	})
	if len(slots) != 2 {
		t.Fatalf("expected 2 slots, got %d", len(slots))
	}
	if !slots[0].Paused || slots[0].Stage != "acquire" || slots[0].StartedAt == "" {
		t.Fatalf("unexpected busy slot: %+v", slots[0])
	}
	if slots[1].JobID != 0 || slots[1].StartedAt != "" {
		t.Fatalf("unexpected idle slot: %+v", slots[1])
	}
}

func TestFromStats(t *testing.T) {
	stats := api.FromStats(ledger.Stats{Queued: 2, Processing: 1, Done: 4, Failed: 1, Total: 8})
	if stats.Queued != 2 || stats.Total != 8 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}
