package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"log/slog"

	"github.com/gofrs/flock"

	"murmur/internal/config"
	"murmur/internal/deps"
	"murmur/internal/ledger"
	"murmur/internal/logging"
	"murmur/internal/notifications"
	"murmur/internal/pool"
	"murmur/internal/stage"
)

// Daemon coordinates the worker pool and enforces single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *ledger.Store
	pool     *pool.Supervisor
	notifier notifications.Service
	api      *apiServer
	logPath  string

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	Workers      int
	Stats        ledger.Stats
	Slots        []pool.SlotState
	DatabasePath string
	LockFilePath string
	Dependencies []deps.Status
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *ledger.Store, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil {
		return nil, errors.New("daemon requires config and store")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	sup, err := pool.New(cfg, store, logger)
	if err != nil {
		return nil, fmt.Errorf("build worker pool: %w", err)
	}

	lockPath := filepath.Join(cfg.Paths.LogDir, "murmurd.lock")
	d := &Daemon{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		pool:     sup,
		notifier: notifications.NewService(cfg),
		logPath:  filepath.Join(cfg.Paths.LogDir, "murmur.log"),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	d.api, err = newAPIServer(cfg, d, logger)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// Start acquires the daemon lock, requeues interrupted jobs, and launches
// the worker pool and HTTP surface.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another murmur daemon instance is already running")
	}

	if missing := deps.Missing(deps.CheckBinaries(deps.Required(d.cfg))); len(missing) > 0 {
		names := make([]string, 0, len(missing))
		for _, status := range missing {
			names = append(names, status.Name)
		}
		d.logger.Warn("external tools unavailable, jobs will fail at their stage",
			logging.String("tools", strings.Join(names, ", ")))
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	requeued, err := d.store.ResetStuckProcessing(runCtx)
	if err != nil {
		d.releaseLock()
		cancel()
		d.cancel = nil
		return fmt.Errorf("requeue interrupted jobs: %w", err)
	}
	if requeued > 0 {
		d.logger.Info("requeued interrupted jobs", logging.Int64("count", requeued))
	}

	if err := d.pool.Start(runCtx); err != nil {
		d.releaseLock()
		cancel()
		d.cancel = nil
		return fmt.Errorf("start worker pool: %w", err)
	}
	if err := d.api.start(runCtx); err != nil {
		d.pool.Stop()
		d.releaseLock()
		cancel()
		d.cancel = nil
		return err
	}

	d.running.Store(true)
	if err := d.notifier.NotifyDaemonStarted(runCtx, d.cfg.Workers.Count); err != nil {
		d.logger.Warn("startup notification failed", logging.Error(err))
	}
	d.logger.Info("murmur daemon started",
		logging.String("lock", d.lockPath),
		logging.Int("workers", d.cfg.Workers.Count))
	return nil
}

// Stop halts background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.pool.Stop()
	d.api.stop()
	d.releaseLock()
	d.running.Store(false)
	d.logger.Info("murmur daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	return d.store.Close()
}

func (d *Daemon) releaseLock() {
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
}

// Status returns the current daemon status. Stats failures leave the
// counters zeroed rather than failing the whole report.
func (d *Daemon) Status(ctx context.Context) Status {
	stats, err := d.store.Stats(ctx)
	if err != nil {
		d.logger.Warn("stats unavailable", logging.Error(err))
	}
	return Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		Workers:      d.cfg.Workers.Count,
		Stats:        stats,
		Slots:        d.pool.Slots(),
		DatabasePath: d.cfg.DatabasePath(),
		LockFilePath: d.lockPath,
		Dependencies: deps.CheckBinaries(deps.Required(d.cfg)),
	}
}

// Enqueue adds URLs to the ledger as fresh jobs.
func (d *Daemon) Enqueue(ctx context.Context, urls []string) ([]*ledger.Job, error) {
	return d.store.EnqueueAll(ctx, urls)
}

// ListJobs returns jobs filtered by optional statuses.
func (d *Daemon) ListJobs(ctx context.Context, statuses []stage.Status) ([]*ledger.Job, error) {
	return d.store.ListJobs(ctx, statuses...)
}

// GetJob fetches a single job by id.
func (d *Daemon) GetJob(ctx context.Context, id int64) (*ledger.Job, error) {
	return d.store.GetByID(ctx, id)
}

// Search runs a full-text transcript query.
func (d *Daemon) Search(ctx context.Context, query string, limit int) ([]ledger.SearchHit, error) {
	return d.store.Search(ctx, query, limit)
}

// Pause suspends a running job's live process.
func (d *Daemon) Pause(ctx context.Context, id int64) (pool.ControlResult, error) {
	return d.pool.Pause(ctx, id)
}

// Resume continues a paused job.
func (d *Daemon) Resume(ctx context.Context, id int64) (pool.ControlResult, error) {
	return d.pool.Resume(ctx, id)
}

// Kill terminates a job, optionally deleting its artifacts.
func (d *Daemon) Kill(ctx context.Context, id int64, deleteArtifacts bool) (pool.ControlResult, error) {
	return d.pool.Kill(ctx, id, deleteArtifacts)
}

// RetryFailed clones failed jobs (optionally a subset) back to queued.
func (d *Daemon) RetryFailed(ctx context.Context, ids []int64) ([]*ledger.Job, error) {
	return d.store.RetryFailed(ctx, ids...)
}

// ClearDone removes completed jobs from the ledger.
func (d *Daemon) ClearDone(ctx context.Context) (int64, error) {
	return d.store.ClearDone(ctx)
}

// ClearFailed removes failed jobs from the ledger.
func (d *Daemon) ClearFailed(ctx context.Context) (int64, error) {
	return d.store.ClearFailed(ctx)
}

// LedgerHealth returns detailed database diagnostics.
func (d *Daemon) LedgerHealth(ctx context.Context) ledger.Health {
	return d.store.CheckHealth(ctx)
}

// TestNotification sends a test event through the configured webhook.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if strings.TrimSpace(d.cfg.Notifications.WebhookURL) == "" {
		return false, "webhook url not configured", nil
	}
	if err := d.notifier.TestNotification(ctx); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// LogPath returns the path to the daemon log file.
func (d *Daemon) LogPath() string {
	return d.logPath
}
