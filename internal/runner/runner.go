package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"murmur/internal/config"
	"murmur/internal/ledger"
	"murmur/internal/logging"
	"murmur/internal/services"
	"murmur/internal/services/ffmpeg"
	"murmur/internal/services/whisper"
	"murmur/internal/services/ytdlp"
	"murmur/internal/stage"
)

// Runner executes one pipeline stage for a claimed job, persisting the
// stage's outputs and the resulting status transition.
type Runner struct {
	cfg     *config.Config
	store   *ledger.Store
	logger  *slog.Logger
	ytdlp   *ytdlp.Client
	whisper *whisper.Client
	ffmpeg  *ffmpeg.Client
	markers []string
}

// Option configures the runner.
type Option func(*Runner)

// WithYtDlp overrides the acquisition client (primarily for tests).
func WithYtDlp(client *ytdlp.Client) Option {
	return func(r *Runner) {
		if client != nil {
			r.ytdlp = client
		}
	}
}

// WithWhisper overrides the transcription client (primarily for tests).
func WithWhisper(client *whisper.Client) Option {
	return func(r *Runner) {
		if client != nil {
			r.whisper = client
		}
	}
}

// WithFFmpeg overrides the merge client (primarily for tests).
func WithFFmpeg(client *ffmpeg.Client) Option {
	return func(r *Runner) {
		if client != nil {
			r.ffmpeg = client
		}
	}
}

// New constructs a runner whose tool clients execute through the registry,
// making live process handles visible for pause and kill. A nil registry
// disables tracking.
func New(cfg *config.Config, store *ledger.Store, logger *slog.Logger, registry HandleRegistry, opts ...Option) (*Runner, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config required")
	}
	if store == nil {
		return nil, fmt.Errorf("store required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	exec := trackingExecutor{registry: registry}

	ytdlpClient, err := ytdlp.New(cfg.Tools.YtDlp, cfg.Acquisition.MaxHeight, cfg.Acquisition.MaxFPS,
		cfg.Acquisition.TimeoutSeconds, ytdlp.WithExecutor(exec))
	if err != nil {
		return nil, fmt.Errorf("acquire client: %w", err)
	}
	whisperClient, err := whisper.New(cfg.Tools.Whisper, cfg.Transcription.Model, cfg.Transcription.ModelDir,
		cfg.Transcription.Language, cfg.Transcription.TimeoutSeconds, whisper.WithExecutor(exec))
	if err != nil {
		return nil, fmt.Errorf("transcribe client: %w", err)
	}
	ffmpegClient, err := ffmpeg.New(cfg.Tools.FFmpeg, cfg.Tools.FFprobe,
		cfg.Workers.MergeTimeoutSeconds, ffmpeg.WithExecutor(exec))
	if err != nil {
		return nil, fmt.Errorf("merge client: %w", err)
	}

	runner := &Runner{
		cfg:     cfg,
		store:   store,
		logger:  logger,
		ytdlp:   ytdlpClient,
		whisper: whisperClient,
		ffmpeg:  ffmpegClient,
		markers: cfg.Workers.TransientMarkers,
	}
	for _, opt := range opts {
		opt(runner)
	}
	return runner, nil
}

// Run executes the job's current stage. Errors come back wrapped with the
// sentinel taxonomy so the caller can decide between requeue and failure.
func (r *Runner) Run(ctx context.Context, job *ledger.Job) error {
	ctx = services.WithJobID(ctx, job.ID)
	ctx = services.WithStage(ctx, string(job.Stage))
	logger := logging.WithContext(ctx, r.logger)

	logger.Info("stage started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.String("url", job.URL),
	)

	var err error
	switch job.Stage {
	case stage.Acquire:
		err = r.runAcquire(ctx, logger, job)
	case stage.Transcribe:
		err = r.runTranscribe(ctx, logger, job)
	case stage.Merge:
		err = r.runMerge(ctx, logger, job)
	case stage.Index:
		err = r.runIndex(ctx, logger, job)
	default:
		err = services.Wrap(services.ErrFatal, string(job.Stage), "dispatch",
			fmt.Sprintf("no handler for stage %q", job.Stage), nil)
	}
	if err != nil {
		return err
	}

	logger.Info("stage finished", logging.String(logging.FieldEventType, "stage_done"))
	return nil
}

// completeStage persists a successful stage outcome. When a pause landed
// between the tool finishing and this transition, completion wins: the
// stage's work is already on disk, so the job advances from its paused
// status instead.
func (r *Runner) completeStage(ctx context.Context, job *ledger.Job, patch ledger.Patch) error {
	err := r.store.CompleteStage(ctx, job, patch)
	if !errors.Is(err, services.ErrStaleState) {
		return err
	}

	current, getErr := r.store.GetByID(ctx, job.ID)
	if getErr != nil {
		return getErr
	}
	if current.Status != stage.PausedStatus(job.Stage) {
		return err
	}

	to := stage.DoneStatus(job.Stage)
	if next, ok := stage.Next(job.Stage); ok {
		patch.Stage = &next
	}
	patch.ClearHeartbeat = true
	return r.store.Advance(ctx, job.ID, current.Status, to, patch)
}

func (r *Runner) progressFunc(ctx context.Context, job *ledger.Job) func(percent float64, message string) {
	var lastPercent float64 = -1
	return func(percent float64, message string) {
		if percent-lastPercent < 1 && percent < 100 {
			return
		}
		lastPercent = percent
		if err := r.store.UpdateProgress(ctx, job.ID, percent, message); err != nil {
			logging.WithContext(ctx, r.logger).Debug("progress update failed", logging.Error(err))
		}
	}
}
