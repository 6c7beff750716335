package pool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"murmur/internal/ledger"
	"murmur/internal/logging"
	"murmur/internal/proc"
	"murmur/internal/services"
	"murmur/internal/stage"
)

type worker struct {
	sup    *Supervisor
	slot   int
	logger *slog.Logger

	control chan *controlRequest

	mu        sync.Mutex
	job       *ledger.Job
	handle    *proc.Handle
	cancelJob context.CancelFunc
	paused    bool
	killed    bool
	killWipe  bool
	startedAt time.Time
}

func newWorker(sup *Supervisor, slot int) *worker {
	return &worker{
		sup:     sup,
		slot:    slot,
		logger:  sup.logger.With(logging.Int(logging.FieldSlot, slot)),
		control: make(chan *controlRequest),
	}
}

func (w *worker) run(ctx context.Context) {
	poll := time.Duration(w.sup.cfg.Workers.PollInterval) * time.Second
	for {
		if ctx.Err() != nil {
			return
		}
		job, err := w.sup.store.ClaimNext(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Error("claim failed", logging.Error(err))
		}
		if job == nil {
			select {
			case <-ctx.Done():
				return
			case <-time.After(poll):
			}
			continue
		}
		w.execute(ctx, job)
	}
}

func (w *worker) execute(ctx context.Context, job *ledger.Job) {
	jobCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	jobCtx = services.WithJobID(jobCtx, job.ID)
	jobCtx = services.WithSlot(jobCtx, w.slot)

	w.mu.Lock()
	w.job = job
	w.cancelJob = cancel
	w.paused = false
	w.killed = false
	w.killWipe = false
	w.startedAt = time.Now()
	w.mu.Unlock()

	w.sup.adopt(job.ID, w)
	defer func() {
		w.sup.release(job.ID)
		w.mu.Lock()
		w.job = nil
		w.handle = nil
		w.cancelJob = nil
		w.mu.Unlock()
	}()

	logger := logging.WithContext(jobCtx, w.logger)

	resultCh := make(chan error, 1)
	go func() {
		resultCh <- w.sup.runner.Run(jobCtx, job)
	}()

	heartbeat := time.NewTicker(time.Duration(w.sup.cfg.Workers.HeartbeatInterval) * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case err := <-resultCh:
			w.finish(ctx, logger, job, err)
			return
		case <-heartbeat.C:
			if w.isPaused() {
				continue
			}
			if err := w.sup.store.UpdateHeartbeat(jobCtx, job.ID); err != nil && jobCtx.Err() == nil {
				logger.Warn("heartbeat update failed", logging.Error(err))
			}
		case req := <-w.control:
			w.handleControl(jobCtx, logger, job, req)
		}
	}
}

func (w *worker) handleControl(ctx context.Context, logger *slog.Logger, job *ledger.Job, req *controlRequest) {
	switch req.action {
	case actionPause:
		w.handlePause(ctx, logger, job, req)
	case actionResume:
		w.handleResume(ctx, logger, job, req)
	case actionKill:
		w.handleKill(logger, req)
	default:
		req.respond(Rejected, fmt.Sprintf("unknown action %q", req.action))
	}
}

func (w *worker) handlePause(ctx context.Context, logger *slog.Logger, job *ledger.Job, req *controlRequest) {
	w.mu.Lock()
	if w.paused {
		w.mu.Unlock()
		req.respond(Rejected, "job already paused")
		return
	}
	handle := w.handle
	w.paused = true
	w.mu.Unlock()

	// A nil handle means the stage is between tool invocations. The paused
	// flag makes the next attach suspend the new process immediately.
	if handle != nil {
		if err := handle.Suspend(); err != nil {
			w.setPaused(false)
			req.respond(Rejected, fmt.Sprintf("suspend failed: %v", err))
			return
		}
	}

	if err := w.sup.store.Advance(ctx, job.ID, stage.ActiveStatus(job.Stage), stage.PausedStatus(job.Stage), ledger.Patch{}); err != nil {
		logger.Warn("pause status update failed", logging.Error(err))
	}
	logger.Info("job paused", logging.String(logging.FieldStage, string(job.Stage)))
	req.respond(Accepted, "")
}

func (w *worker) handleResume(ctx context.Context, logger *slog.Logger, job *ledger.Job, req *controlRequest) {
	w.mu.Lock()
	if !w.paused {
		w.mu.Unlock()
		req.respond(Rejected, "job is not paused")
		return
	}
	handle := w.handle
	w.paused = false
	w.mu.Unlock()

	if handle != nil {
		if err := handle.Resume(); err != nil {
			w.setPaused(true)
			req.respond(Rejected, fmt.Sprintf("resume failed: %v", err))
			return
		}
	}

	if err := w.sup.store.Advance(ctx, job.ID, stage.PausedStatus(job.Stage), stage.ActiveStatus(job.Stage), ledger.Patch{}); err != nil {
		logger.Warn("resume status update failed", logging.Error(err))
	}
	logger.Info("job resumed", logging.String(logging.FieldStage, string(job.Stage)))
	req.respond(Accepted, "")
}

func (w *worker) handleKill(logger *slog.Logger, req *controlRequest) {
	w.mu.Lock()
	if w.killed {
		w.mu.Unlock()
		req.respond(Rejected, "kill already in progress")
		return
	}
	w.killed = true
	w.killWipe = req.deleteArtifacts
	handle := w.handle
	cancel := w.cancelJob
	w.mu.Unlock()

	grace := time.Duration(w.sup.cfg.Workers.KillGraceSeconds) * time.Second
	go func() {
		if handle != nil {
			if err := handle.Kill(grace); err != nil {
				logger.Warn("kill escalation failed", logging.Error(err))
			}
		}
		if cancel != nil {
			cancel()
		}
	}()
	logger.Info("job kill requested")
	req.respond(Accepted, "")
}

func (w *worker) finish(ctx context.Context, logger *slog.Logger, job *ledger.Job, runErr error) {
	w.mu.Lock()
	killed := w.killed
	wipe := w.killWipe
	w.mu.Unlock()

	if killed {
		w.finishKilled(ctx, logger, job, wipe)
		return
	}

	if runErr == nil {
		w.finishCompleted(ctx, logger, job)
		return
	}
	if errors.Is(runErr, context.Canceled) && ctx.Err() != nil {
		// Daemon shutdown: the startup reset requeues this job.
		logger.Debug("stage interrupted by shutdown")
		return
	}

	message := services.Message(runErr)
	if services.IsRetryable(runErr) && job.Attempt < w.sup.cfg.Workers.MaxRetries {
		err := w.sup.store.RequeueTransient(ctx, job, message)
		if errors.Is(err, services.ErrStaleState) {
			// The stage died under an operator pause, typically a
			// deadline firing against a suspended process. Requeue
			// from the paused status so the job is not stranded.
			attempt := job.Attempt + 1
			kind := services.KindTransient
			err = w.sup.store.Advance(ctx, job.ID, stage.PausedStatus(job.Stage), stage.StatusQueued, ledger.Patch{
				ErrorMessage:   &message,
				ErrorKind:      &kind,
				Attempt:        &attempt,
				ClearHeartbeat: true,
			})
		}
		if err != nil {
			logger.Error("requeue failed", logging.Error(err))
		}
		logger.Warn("stage failed, requeued",
			logging.String("reason", message),
			logging.Int("attempt", job.Attempt+1),
		)
		return
	}

	kind := services.Classify(runErr)
	err := w.sup.store.RecordFailure(ctx, job, message, kind)
	if errors.Is(err, services.ErrStaleState) {
		attempt := job.Attempt + 1
		err = w.sup.store.Advance(ctx, job.ID, stage.PausedStatus(job.Stage), stage.StatusFailed, ledger.Patch{
			ErrorMessage:   &message,
			ErrorKind:      &kind,
			Attempt:        &attempt,
			ClearHeartbeat: true,
		})
	}
	if err != nil {
		logger.Error("failure record failed", logging.Error(err))
	}
	logger.Error("job failed", logging.String("reason", message))
	if err := w.sup.notifier.NotifyJobFailed(ctx, job.ID, job.URL, message); err != nil {
		logger.Debug("failure notification failed", logging.Error(err))
	}
}

func (w *worker) finishCompleted(ctx context.Context, logger *slog.Logger, job *ledger.Job) {
	current, err := w.sup.store.GetByID(ctx, job.ID)
	if err != nil {
		logger.Warn("post-stage lookup failed", logging.Error(err))
		return
	}
	if current.Status != stage.StatusDone {
		return
	}

	title := ""
	if current.MediaID != "" {
		if media, err := w.sup.store.GetMedia(ctx, current.MediaID); err == nil {
			title = media.Title
		}
	}
	logger.Info("job completed",
		logging.String(logging.FieldEventType, "job_done"),
		logging.String(logging.FieldMediaID, current.MediaID),
	)
	if err := w.sup.notifier.NotifyJobCompleted(ctx, job.ID, current.MediaID, title); err != nil {
		logger.Debug("completion notification failed", logging.Error(err))
	}
}

func (w *worker) finishKilled(ctx context.Context, logger *slog.Logger, job *ledger.Job, wipe bool) {
	killErr := services.Wrap(services.ErrKilled, string(job.Stage), "kill", "killed by operator", nil)
	message := services.Message(killErr)
	kind := services.KindKilled

	err := w.sup.store.RecordFailure(ctx, job, message, kind)
	if errors.Is(err, services.ErrStaleState) {
		// Pause landed first; fail from the paused status instead.
		err = w.sup.store.Advance(ctx, job.ID, stage.PausedStatus(job.Stage), stage.StatusFailed, ledger.Patch{
			ErrorMessage:   &message,
			ErrorKind:      &kind,
			ClearHeartbeat: true,
		})
	}
	if err != nil && !errors.Is(err, services.ErrStaleState) {
		logger.Error("kill record failed", logging.Error(err))
	}

	if wipe {
		w.sup.wipeArtifacts(logger, job)
	}
	logger.Info("job killed", logging.String(logging.FieldStage, string(job.Stage)))
}

func (w *worker) attachHandle(handle *proc.Handle) {
	w.mu.Lock()
	w.handle = handle
	paused := w.paused
	w.mu.Unlock()

	if handle != nil && paused {
		if err := handle.Suspend(); err != nil {
			w.logger.Warn("deferred suspend failed", logging.Error(err))
		}
	}
}

func (w *worker) isPaused() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.paused
}

func (w *worker) setPaused(paused bool) {
	w.mu.Lock()
	w.paused = paused
	w.mu.Unlock()
}

func (w *worker) state() SlotState {
	w.mu.Lock()
	defer w.mu.Unlock()
	state := SlotState{Slot: w.slot, Paused: w.paused}
	if w.job != nil {
		state.JobID = w.job.ID
		state.URL = w.job.URL
		state.Stage = w.job.Stage
		state.StartedAt = w.startedAt
	}
	return state
}
