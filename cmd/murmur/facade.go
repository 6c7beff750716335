package main

import (
	"context"
	"fmt"

	"murmur/internal/api"
	"murmur/internal/ipc"
	"murmur/internal/ledger"
	"murmur/internal/stage"
)

// jobAPI is the job surface shared by the IPC client and direct store
// access, so read and maintenance commands work whether or not the daemon
// is running.
type jobAPI interface {
	Stats(ctx context.Context) (api.JobStats, error)
	List(ctx context.Context, statuses []string) ([]api.JobItem, error)
	Describe(ctx context.Context, id int64) (*api.JobItem, error)
	Search(ctx context.Context, query string, limit int) ([]api.SearchHit, error)
	Enqueue(ctx context.Context, urls []string) ([]api.JobItem, error)
	Retry(ctx context.Context, ids []int64) ([]api.JobItem, error)
	ClearDone(ctx context.Context) (int64, error)
	ClearFailed(ctx context.Context) (int64, error)
}

// withJobAPI runs fn against the daemon when its socket is reachable and
// falls back to opening the ledger directly otherwise.
func (c *commandContext) withJobAPI(fn func(jobAPI) error) error {
	if client, err := c.dialClient(); err == nil {
		defer client.Close()
		return fn(&jobIPCAdapter{client: client})
	}

	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := ledger.Open(cfg)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer store.Close()
	return fn(&jobStoreAdapter{store: store, service: api.NewService(store)})
}

type jobIPCAdapter struct {
	client *ipc.Client
}

func (a *jobIPCAdapter) Stats(context.Context) (api.JobStats, error) {
	resp, err := a.client.Status()
	if err != nil {
		return api.JobStats{}, err
	}
	return resp.Stats, nil
}

func (a *jobIPCAdapter) List(_ context.Context, statuses []string) ([]api.JobItem, error) {
	resp, err := a.client.Jobs(statuses)
	if err != nil {
		return nil, err
	}
	return resp.Items, nil
}

func (a *jobIPCAdapter) Describe(_ context.Context, id int64) (*api.JobItem, error) {
	resp, err := a.client.Describe(id)
	if err != nil {
		return nil, err
	}
	return &resp.Item, nil
}

func (a *jobIPCAdapter) Search(_ context.Context, query string, limit int) ([]api.SearchHit, error) {
	resp, err := a.client.Search(query, limit)
	if err != nil {
		return nil, err
	}
	return resp.Hits, nil
}

func (a *jobIPCAdapter) Enqueue(_ context.Context, urls []string) ([]api.JobItem, error) {
	resp, err := a.client.Enqueue(urls)
	if err != nil {
		return nil, err
	}
	return resp.Items, nil
}

func (a *jobIPCAdapter) Retry(_ context.Context, ids []int64) ([]api.JobItem, error) {
	resp, err := a.client.Retry(ids)
	if err != nil {
		return nil, err
	}
	return resp.Items, nil
}

func (a *jobIPCAdapter) ClearDone(context.Context) (int64, error) {
	resp, err := a.client.ClearDone()
	if err != nil {
		return 0, err
	}
	return resp.Removed, nil
}

func (a *jobIPCAdapter) ClearFailed(context.Context) (int64, error) {
	resp, err := a.client.ClearFailed()
	if err != nil {
		return 0, err
	}
	return resp.Removed, nil
}

type jobStoreAdapter struct {
	store   *ledger.Store
	service *api.Service
}

func (a *jobStoreAdapter) Stats(ctx context.Context) (api.JobStats, error) {
	return a.service.Stats(ctx)
}

func (a *jobStoreAdapter) List(ctx context.Context, statuses []string) ([]api.JobItem, error) {
	filters := make([]stage.Status, 0, len(statuses))
	for _, value := range statuses {
		parsed, err := stage.ParseStatus(value)
		if err != nil {
			return nil, err
		}
		filters = append(filters, parsed)
	}
	return a.service.List(ctx, filters...)
}

func (a *jobStoreAdapter) Describe(ctx context.Context, id int64) (*api.JobItem, error) {
	return a.service.Describe(ctx, id)
}

func (a *jobStoreAdapter) Search(ctx context.Context, query string, limit int) ([]api.SearchHit, error) {
	return a.service.Search(ctx, query, limit)
}

func (a *jobStoreAdapter) Enqueue(ctx context.Context, urls []string) ([]api.JobItem, error) {
	jobs, err := a.store.EnqueueAll(ctx, urls)
	if err != nil {
		return nil, err
	}
	return api.FromJobs(jobs), nil
}

func (a *jobStoreAdapter) Retry(ctx context.Context, ids []int64) ([]api.JobItem, error) {
	jobs, err := a.store.RetryFailed(ctx, ids...)
	if err != nil {
		return nil, err
	}
	return api.FromJobs(jobs), nil
}

func (a *jobStoreAdapter) ClearDone(ctx context.Context) (int64, error) {
	return a.store.ClearDone(ctx)
}

func (a *jobStoreAdapter) ClearFailed(ctx context.Context) (int64, error) {
	return a.store.ClearFailed(ctx)
}
