package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"murmur/internal/services"
	"murmur/internal/stage"
)

// Enqueue inserts a new job for the given URL and returns it. Only
// absolute http and https URLs are accepted.
func (s *Store) Enqueue(ctx context.Context, rawURL string) (*Job, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, services.Wrap(services.ErrValidation, "", "enqueue", "url required", nil)
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "", "enqueue", fmt.Sprintf("malformed url %q", rawURL), err)
	}
	if (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return nil, services.Wrap(services.ErrValidation, "", "enqueue",
			fmt.Sprintf("url %q must be absolute http or https", rawURL), nil)
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO jobs (url, status, stage, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		rawURL, stage.StatusQueued, stage.First(), now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("enqueue job: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("enqueue job id: %w", err)
	}
	return s.GetByID(ctx, id)
}

// EnqueueAll inserts jobs for every URL, skipping blanks. It returns the
// created jobs in input order.
func (s *Store) EnqueueAll(ctx context.Context, urls []string) ([]*Job, error) {
	jobs := make([]*Job, 0, len(urls))
	for _, rawURL := range urls {
		if strings.TrimSpace(rawURL) == "" {
			continue
		}
		job, err := s.Enqueue(ctx, rawURL)
		if err != nil {
			return jobs, err
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// ClaimNext atomically claims the oldest queued job for a worker, moving it
// into its stage's active status and stamping a fresh heartbeat. It returns
// nil when the queue is empty.
func (s *Store) ClaimNext(ctx context.Context) (*Job, error) {
	ctx = ensureContext(ctx)
	var claimed *Job

	err := retryOnBusy(ctx, func() error {
		claimed = nil
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin claim tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		row := tx.QueryRowContext(ctx,
			`SELECT `+jobColumns+` FROM jobs WHERE status = ? ORDER BY id LIMIT 1`,
			stage.StatusQueued,
		)
		job, err := scanJob(row)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("select queued job: %w", err)
		}

		now := time.Now().UTC().Format(time.RFC3339Nano)
		correlationID := uuid.NewString()
		activeStatus := stage.ActiveStatus(job.Stage)
		res, err := tx.ExecContext(ctx,
			`UPDATE jobs SET status = ?, correlation_id = ?, last_heartbeat = ?, updated_at = ?,
			        progress_percent = 0, progress_message = NULL, error_message = NULL, error_kind = NULL
			 WHERE id = ? AND status = ?`,
			activeStatus, correlationID, now, now, job.ID, stage.StatusQueued,
		)
		if err != nil {
			return fmt.Errorf("claim job %d: %w", job.ID, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("claim rows affected: %w", err)
		}
		if affected == 0 {
			// Another worker won the race inside this transaction window.
			return nil
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit claim: %w", err)
		}

		job.Status = activeStatus
		job.CorrelationID = correlationID
		job.ErrorMessage = ""
		job.ErrorKind = ""
		job.ProgressPercent = 0
		job.ProgressMessage = ""
		claimed = job
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// Patch contains the optional fields Advance can update alongside a status
// transition. Nil fields are left untouched.
type Patch struct {
	Stage           *stage.Stage
	MediaID         *string
	ErrorMessage    *string
	ErrorKind       *services.ErrorKind
	ProgressPercent *float64
	ProgressMessage *string
	VideoPath       *string
	AudioPath       *string
	OutputPath      *string
	TranscriptPath  *string
	Attempt         *int
	ClearHeartbeat  bool
}

// Advance transitions a job from an expected status to a new one, applying
// the patch in the same statement. A stale expectation yields
// services.ErrStaleState so callers can detect concurrent control actions.
func (s *Store) Advance(ctx context.Context, id int64, from, to stage.Status, patch Patch) error {
	if !to.Valid() {
		return services.Wrap(services.ErrValidation, "", "advance", fmt.Sprintf("invalid status %q", to), nil)
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	sets := []string{"status = ?", "updated_at = ?"}
	args := []any{to, now}

	if patch.Stage != nil {
		sets = append(sets, "stage = ?")
		args = append(args, *patch.Stage)
	}
	if patch.MediaID != nil {
		sets = append(sets, "media_id = ?")
		args = append(args, nullableString(*patch.MediaID))
	}
	if patch.ErrorMessage != nil {
		sets = append(sets, "error_message = ?")
		args = append(args, nullableString(*patch.ErrorMessage))
	}
	if patch.ErrorKind != nil {
		sets = append(sets, "error_kind = ?")
		args = append(args, nullableString(string(*patch.ErrorKind)))
	}
	if patch.ProgressPercent != nil {
		sets = append(sets, "progress_percent = ?")
		args = append(args, *patch.ProgressPercent)
	}
	if patch.ProgressMessage != nil {
		sets = append(sets, "progress_message = ?")
		args = append(args, nullableString(*patch.ProgressMessage))
	}
	if patch.VideoPath != nil {
		sets = append(sets, "video_path = ?")
		args = append(args, nullableString(*patch.VideoPath))
	}
	if patch.AudioPath != nil {
		sets = append(sets, "audio_path = ?")
		args = append(args, nullableString(*patch.AudioPath))
	}
	if patch.OutputPath != nil {
		sets = append(sets, "output_path = ?")
		args = append(args, nullableString(*patch.OutputPath))
	}
	if patch.TranscriptPath != nil {
		sets = append(sets, "transcript_path = ?")
		args = append(args, nullableString(*patch.TranscriptPath))
	}
	if patch.Attempt != nil {
		sets = append(sets, "attempt = ?")
		args = append(args, *patch.Attempt)
	}
	if patch.ClearHeartbeat {
		sets = append(sets, "last_heartbeat = NULL")
	}

	args = append(args, id, from)
	res, err := s.execWithRetry(ctx,
		`UPDATE jobs SET `+strings.Join(sets, ", ")+` WHERE id = ? AND status = ?`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("advance job %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("advance rows affected: %w", err)
	}
	if affected == 0 {
		return services.Wrap(services.ErrStaleState, string(from), "advance",
			fmt.Sprintf("job %d is no longer %s", id, from), nil)
	}
	return nil
}

// CompleteStage moves a job past its current stage: intermediate stages
// return to queued with the next stage recorded, the final stage finishes
// the job.
func (s *Store) CompleteStage(ctx context.Context, job *Job, patch Patch) error {
	from := stage.ActiveStatus(job.Stage)
	to := stage.DoneStatus(job.Stage)
	if next, ok := stage.Next(job.Stage); ok {
		patch.Stage = &next
	}
	patch.ClearHeartbeat = true
	return s.Advance(ctx, job.ID, from, to, patch)
}

// RequeueTransient returns a job to queued after a retryable failure,
// bumping its attempt counter. The stage is untouched so it reruns.
func (s *Store) RequeueTransient(ctx context.Context, job *Job, message string) error {
	attempt := job.Attempt + 1
	kind := services.KindTransient
	return s.Advance(ctx, job.ID, stage.ActiveStatus(job.Stage), stage.StatusQueued, Patch{
		ErrorMessage:   &message,
		ErrorKind:      &kind,
		Attempt:        &attempt,
		ClearHeartbeat: true,
	})
}

// RecordFailure marks a job failed with the given message and classified
// kind, counting the failed run as one more attempt.
func (s *Store) RecordFailure(ctx context.Context, job *Job, message string, kind services.ErrorKind) error {
	attempt := job.Attempt + 1
	return s.Advance(ctx, job.ID, stage.ActiveStatus(job.Stage), stage.StatusFailed, Patch{
		ErrorMessage:   &message,
		ErrorKind:      &kind,
		Attempt:        &attempt,
		ClearHeartbeat: true,
	})
}

// GetByID loads one job.
func (s *Store) GetByID(ctx context.Context, id int64) (*Job, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.Wrap(services.ErrNotFound, "", "get job", fmt.Sprintf("job %d not found", id), nil)
	}
	if err != nil {
		return nil, fmt.Errorf("load job %d: %w", id, err)
	}
	return job, nil
}

// ListJobs returns jobs filtered by status, newest first. No statuses means
// all jobs.
func (s *Store) ListJobs(ctx context.Context, statuses ...stage.Status) ([]*Job, error) {
	ctx = ensureContext(ctx)
	query := `SELECT ` + jobColumns + ` FROM jobs`
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		query += ` WHERE status IN (` + makePlaceholders(len(statuses)) + `)`
		for _, status := range statuses {
			args = append(args, status)
		}
	}
	query += ` ORDER BY id DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// UpdateProgress records stage progress for an in-flight job.
func (s *Store) UpdateProgress(ctx context.Context, id int64, percent float64, message string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	return s.execWithoutResultRetry(ctx,
		`UPDATE jobs SET progress_percent = ?, progress_message = ?, updated_at = ? WHERE id = ?`,
		percent, nullableString(message), now, id,
	)
}

// UpdateHeartbeat stamps the liveness timestamp for an in-flight job.
func (s *Store) UpdateHeartbeat(ctx context.Context, id int64) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if err := s.execWithoutResultRetry(ctx,
		`UPDATE jobs SET last_heartbeat = ?, updated_at = ? WHERE id = ?`,
		now, now, id,
	); err != nil {
		return fmt.Errorf("update heartbeat: %w", err)
	}
	return nil
}

// ResetStuckProcessing returns active jobs to queued. Run at daemon startup
// to recover work orphaned by a crash; paused jobs keep their suspension.
func (s *Store) ResetStuckProcessing(ctx context.Context) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(ctx,
		`UPDATE jobs SET status = ?, last_heartbeat = NULL, progress_percent = 0,
		        progress_message = NULL, updated_at = ?
		 WHERE status IN (?, ?, ?, ?)`,
		stage.StatusQueued, now,
		stage.StatusAcquiring, stage.StatusTranscribing, stage.StatusMerging, stage.StatusIndexing,
	)
	if err != nil {
		return 0, fmt.Errorf("reset stuck jobs: %w", err)
	}
	return res.RowsAffected()
}

// ReclaimStale requeues active jobs whose heartbeat expired before cutoff.
func (s *Store) ReclaimStale(ctx context.Context, cutoff time.Time) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(ctx,
		`UPDATE jobs SET status = ?, last_heartbeat = NULL, progress_percent = 0,
		        progress_message = NULL, updated_at = ?
		 WHERE status IN (?, ?, ?, ?) AND last_heartbeat IS NOT NULL AND last_heartbeat < ?`,
		stage.StatusQueued, now,
		stage.StatusAcquiring, stage.StatusTranscribing, stage.StatusMerging, stage.StatusIndexing,
		cutoff.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("reclaim stale jobs: %w", err)
	}
	return res.RowsAffected()
}

// RetryFailed clones failed jobs into fresh queued ones and returns the new
// jobs. The failed originals stay for the record. No ids means all failed.
func (s *Store) RetryFailed(ctx context.Context, ids ...int64) ([]*Job, error) {
	ctx = ensureContext(ctx)
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE status = ?`
	args := []any{stage.StatusFailed}
	if len(ids) > 0 {
		query += ` AND id IN (` + makePlaceholders(len(ids)) + `)`
		for _, id := range ids {
			args = append(args, id)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list failed jobs: %w", err)
	}
	var failed []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan failed job: %w", err)
		}
		failed = append(failed, job)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	retried := make([]*Job, 0, len(failed))
	for _, job := range failed {
		clone, err := s.Enqueue(ctx, job.URL)
		if err != nil {
			return retried, fmt.Errorf("retry job %d: %w", job.ID, err)
		}
		retried = append(retried, clone)
	}
	return retried, nil
}

// ClearDone deletes completed jobs, returning how many were removed.
func (s *Store) ClearDone(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM jobs WHERE status = ?`, stage.StatusDone)
	if err != nil {
		return 0, fmt.Errorf("clear done jobs: %w", err)
	}
	return res.RowsAffected()
}

// ClearFailed deletes failed jobs, returning how many were removed.
func (s *Store) ClearFailed(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM jobs WHERE status = ?`, stage.StatusFailed)
	if err != nil {
		return 0, fmt.Errorf("clear failed jobs: %w", err)
	}
	return res.RowsAffected()
}
