package api

import (
	"context"

	"murmur/internal/ledger"
	"murmur/internal/stage"
)

// LedgerReader abstracts the read-only store operations the query surface needs.
type LedgerReader interface {
	ListJobs(ctx context.Context, statuses ...stage.Status) ([]*ledger.Job, error)
	GetByID(ctx context.Context, id int64) (*ledger.Job, error)
	Search(ctx context.Context, query string, limit int) ([]ledger.SearchHit, error)
	Stats(ctx context.Context) (ledger.Stats, error)
}

// Service exposes read-only ledger operations returning API DTOs.
type Service struct {
	store LedgerReader
}

// NewService constructs a Service around the provided reader.
func NewService(store LedgerReader) *Service {
	if store == nil {
		return nil
	}
	return &Service{store: store}
}

// List returns jobs filtered by status.
func (s *Service) List(ctx context.Context, statuses ...stage.Status) ([]JobItem, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	jobs, err := s.store.ListJobs(ctx, statuses...)
	if err != nil {
		return nil, err
	}
	return FromJobs(jobs), nil
}

// Describe fetches a single job.
func (s *Service) Describe(ctx context.Context, id int64) (*JobItem, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	job, err := s.store.GetByID(ctx, id)
	if err != nil || job == nil {
		return nil, err
	}
	dto := FromJob(job)
	return &dto, nil
}

// Search runs a full-text transcript query.
func (s *Service) Search(ctx context.Context, query string, limit int) ([]SearchHit, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	hits, err := s.store.Search(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	return FromSearchHits(hits), nil
}

// Stats returns aggregate job counters.
func (s *Service) Stats(ctx context.Context) (JobStats, error) {
	if s == nil || s.store == nil {
		return JobStats{}, nil
	}
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return JobStats{}, err
	}
	return FromStats(stats), nil
}
