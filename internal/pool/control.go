package pool

import (
	"context"
	"errors"
	"fmt"
	"time"

	"murmur/internal/ledger"
	"murmur/internal/services"
	"murmur/internal/stage"
)

// Outcome is the disposition of a control action.
type Outcome string

const (
	// Accepted means the action was applied.
	Accepted Outcome = "accepted"
	// Rejected means the action cannot apply to the job's current state.
	Rejected Outcome = "rejected"
	// Pending means the owning worker could not take the action in time;
	// the caller may retry.
	Pending Outcome = "pending"
)

// ControlResult reports what happened to a control action.
type ControlResult struct {
	Outcome Outcome
	Reason  string
}

type controlAction string

const (
	actionPause  controlAction = "pause"
	actionResume controlAction = "resume"
	actionKill   controlAction = "kill"
)

type controlRequest struct {
	action          controlAction
	deleteArtifacts bool
	resp            chan ControlResult
}

func (r *controlRequest) respond(outcome Outcome, reason string) {
	r.resp <- ControlResult{Outcome: outcome, Reason: reason}
}

const controlTimeout = 5 * time.Second

// Pause suspends a running job's tool process mid-flight.
func (s *Supervisor) Pause(ctx context.Context, jobID int64) (ControlResult, error) {
	return s.control(ctx, jobID, &controlRequest{action: actionPause})
}

// Resume continues a paused job. A paused job with no owning worker (for
// example after a daemon restart) is returned to the queue to rerun its
// stage instead, since its process is gone.
func (s *Supervisor) Resume(ctx context.Context, jobID int64) (ControlResult, error) {
	if w := s.workerFor(jobID); w != nil {
		return s.dispatch(ctx, w, &controlRequest{action: actionResume})
	}

	job, err := s.store.GetByID(ctx, jobID)
	if err != nil {
		return ControlResult{}, err
	}
	if !job.Status.Paused() {
		return ControlResult{Outcome: Rejected, Reason: fmt.Sprintf("job %d is %s, not paused", jobID, job.Status)}, nil
	}
	pausedStage, _ := stage.StageOf(job.Status)
	if err := s.store.Advance(ctx, jobID, job.Status, stage.StatusQueued, ledger.Patch{ClearHeartbeat: true}); err != nil {
		if errors.Is(err, services.ErrStaleState) {
			return ControlResult{Outcome: Rejected, Reason: "job state changed"}, nil
		}
		return ControlResult{}, err
	}
	return ControlResult{Outcome: Accepted, Reason: fmt.Sprintf("no live process, %s stage requeued", pausedStage)}, nil
}

// Kill terminates a job. Running jobs have their process group torn down;
// queued or paused jobs without an owner are failed directly.
// deleteArtifacts removes the job's on-disk output as well.
func (s *Supervisor) Kill(ctx context.Context, jobID int64, deleteArtifacts bool) (ControlResult, error) {
	if w := s.workerFor(jobID); w != nil {
		return s.dispatch(ctx, w, &controlRequest{action: actionKill, deleteArtifacts: deleteArtifacts})
	}

	job, err := s.store.GetByID(ctx, jobID)
	if err != nil {
		return ControlResult{}, err
	}
	switch {
	case job.Status.Terminal():
		return ControlResult{Outcome: Rejected, Reason: fmt.Sprintf("job %d is already %s", jobID, job.Status)}, nil
	case job.Status == stage.StatusQueued || job.Status.Paused():
		message := "killed by operator"
		kind := services.KindKilled
		if err := s.store.Advance(ctx, jobID, job.Status, stage.StatusFailed, ledger.Patch{
			ErrorMessage:   &message,
			ErrorKind:      &kind,
			ClearHeartbeat: true,
		}); err != nil {
			if errors.Is(err, services.ErrStaleState) {
				return ControlResult{Outcome: Rejected, Reason: "job state changed"}, nil
			}
			return ControlResult{}, err
		}
		if deleteArtifacts {
			s.wipeArtifacts(s.logger, job)
		}
		return ControlResult{Outcome: Accepted, Reason: "job was not running"}, nil
	default:
		// Active in the ledger but unowned: a stale claim the reclaimer
		// will requeue shortly.
		return ControlResult{Outcome: Pending, Reason: "job has no live worker yet"}, nil
	}
}

func (s *Supervisor) control(ctx context.Context, jobID int64, req *controlRequest) (ControlResult, error) {
	w := s.workerFor(jobID)
	if w == nil {
		job, err := s.store.GetByID(ctx, jobID)
		if err != nil {
			return ControlResult{}, err
		}
		return ControlResult{
			Outcome: Rejected,
			Reason:  fmt.Sprintf("job %d is %s with no live worker", jobID, job.Status),
		}, nil
	}
	return s.dispatch(ctx, w, req)
}

func (s *Supervisor) dispatch(ctx context.Context, w *worker, req *controlRequest) (ControlResult, error) {
	req.resp = make(chan ControlResult, 1)
	timer := time.NewTimer(controlTimeout)
	defer timer.Stop()

	select {
	case w.control <- req:
	case <-timer.C:
		return ControlResult{Outcome: Pending, Reason: "worker is busy, retry"}, nil
	case <-ctx.Done():
		return ControlResult{}, ctx.Err()
	}

	select {
	case result := <-req.resp:
		return result, nil
	case <-ctx.Done():
		return ControlResult{}, ctx.Err()
	}
}
