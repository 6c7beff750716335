package pool

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"murmur/internal/config"
	"murmur/internal/ledger"
	"murmur/internal/logging"
	"murmur/internal/notifications"
	"murmur/internal/proc"
	"murmur/internal/runner"
	"murmur/internal/stage"
)

// Supervisor owns the worker slots, routes control actions to the worker
// holding a job, and keeps stale jobs flowing back into the queue.
type Supervisor struct {
	cfg      *config.Config
	store    *ledger.Store
	logger   *slog.Logger
	notifier notifications.Service
	runner   *runner.Runner

	mu      sync.Mutex
	workers []*worker
	byJob   map[int64]*worker

	wg      sync.WaitGroup
	started bool
	cancel  context.CancelFunc
}

// Option configures the supervisor.
type Option func(*Supervisor)

// WithRunner overrides the stage runner (primarily for tests).
func WithRunner(r *runner.Runner) Option {
	return func(s *Supervisor) {
		if r != nil {
			s.runner = r
		}
	}
}

// WithNotifier overrides the notification service.
func WithNotifier(n notifications.Service) Option {
	return func(s *Supervisor) {
		if n != nil {
			s.notifier = n
		}
	}
}

// New constructs a supervisor with cfg.Workers.Count slots.
func New(cfg *config.Config, store *ledger.Store, logger *slog.Logger, opts ...Option) (*Supervisor, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config required")
	}
	if store == nil {
		return nil, fmt.Errorf("store required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	sup := &Supervisor{
		cfg:      cfg,
		store:    store,
		logger:   logger,
		notifier: notifications.NewService(cfg),
		byJob:    make(map[int64]*worker),
	}
	for _, opt := range opts {
		opt(sup)
	}

	if sup.runner == nil {
		r, err := runner.New(cfg, store, logger, sup)
		if err != nil {
			return nil, fmt.Errorf("build runner: %w", err)
		}
		sup.runner = r
	}

	for slot := 0; slot < cfg.Workers.Count; slot++ {
		sup.workers = append(sup.workers, newWorker(sup, slot))
	}
	return sup, nil
}

// Start launches the worker slots and the heartbeat reclaimer. It returns
// immediately; Stop blocks until everything drains.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return fmt.Errorf("supervisor already started")
	}
	s.started = true
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	for _, w := range s.workers {
		s.wg.Add(1)
		go func(w *worker) {
			defer s.wg.Done()
			w.run(runCtx)
		}(w)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.reclaimLoop(runCtx)
	}()

	s.logger.Info("worker pool started", logging.Int("workers", len(s.workers)))
	return nil
}

// Stop cancels all workers and waits for them to finish their teardown.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
}

// Attach implements runner.HandleRegistry: the live process handle becomes
// visible to control actions for the duration of the tool run. A pause that
// arrived while no process was live lands here, suspending the fresh
// process before it does real work.
func (s *Supervisor) Attach(jobID int64, handle *proc.Handle) {
	s.mu.Lock()
	w := s.byJob[jobID]
	s.mu.Unlock()
	if w != nil {
		w.attachHandle(handle)
	}
}

// Detach implements runner.HandleRegistry.
func (s *Supervisor) Detach(jobID int64) {
	s.mu.Lock()
	w := s.byJob[jobID]
	s.mu.Unlock()
	if w != nil {
		w.attachHandle(nil)
	}
}

func (s *Supervisor) adopt(jobID int64, w *worker) {
	s.mu.Lock()
	s.byJob[jobID] = w
	s.mu.Unlock()
}

func (s *Supervisor) release(jobID int64) {
	s.mu.Lock()
	delete(s.byJob, jobID)
	s.mu.Unlock()
}

func (s *Supervisor) workerFor(jobID int64) *worker {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.byJob[jobID]
}

// SlotState describes one worker slot for status reporting. Stage progress
// lives on the job row; this is pool occupancy only.
type SlotState struct {
	Slot      int
	JobID     int64
	URL       string
	Stage     stage.Stage
	Paused    bool
	StartedAt time.Time
}

// Slots reports the current occupancy of every worker slot. Idle slots have
// JobID zero.
func (s *Supervisor) Slots() []SlotState {
	states := make([]SlotState, 0, len(s.workers))
	for _, w := range s.workers {
		states = append(states, w.state())
	}
	return states
}

// wipeArtifacts removes everything a job produced on disk, keyed by the
// media identity resolved during acquire. Jobs killed before metadata
// resolution have nothing on disk yet.
func (s *Supervisor) wipeArtifacts(logger *slog.Logger, job *ledger.Job) {
	if job.MediaID == "" {
		fresh, err := s.store.GetByID(context.Background(), job.ID)
		if err == nil {
			job = fresh
		}
	}
	if job.MediaID == "" {
		return
	}
	for _, dir := range []string{
		filepath.Join(s.cfg.Paths.MediaDir, job.MediaID),
		filepath.Join(s.cfg.Paths.TranscriptDir, job.MediaID),
	} {
		if err := os.RemoveAll(dir); err != nil {
			logger.Warn("artifact cleanup failed",
				logging.String("dir", dir), logging.Error(err))
		}
	}
}

func (s *Supervisor) reclaimLoop(ctx context.Context) {
	interval := time.Duration(s.cfg.Workers.HeartbeatInterval) * time.Second
	timeout := time.Duration(s.cfg.Workers.HeartbeatTimeout) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-timeout)
			reclaimed, err := s.store.ReclaimStale(ctx, cutoff)
			if err != nil {
				if ctx.Err() == nil {
					s.logger.Warn("stale job reclaim failed", logging.Error(err))
				}
				continue
			}
			if reclaimed > 0 {
				s.logger.Info("reclaimed stale jobs", logging.Int64("count", reclaimed))
			}
		}
	}
}
