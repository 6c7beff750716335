package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"murmur/internal/ledger"
	"murmur/internal/logging"
	"murmur/internal/services"
	"murmur/internal/services/whisper"
)

func (r *Runner) runAcquire(ctx context.Context, logger *slog.Logger, job *ledger.Job) error {
	meta, err := r.ytdlp.Metadata(ctx, job.URL)
	if err != nil {
		return r.classify("acquire", "fetch metadata", err)
	}
	logger.Info("metadata resolved",
		logging.String(logging.FieldMediaID, meta.ID),
		logging.String("title", meta.Title),
	)

	mediaDir := filepath.Join(r.cfg.Paths.MediaDir, meta.ID)
	download, err := r.ytdlp.Download(ctx, job.URL, mediaDir, r.progressFunc(ctx, job))
	if err != nil {
		return r.classify("acquire", "download", err)
	}

	metadataJSON, err := json.Marshal(meta)
	if err != nil {
		return services.Wrap(services.ErrFatal, "acquire", "encode metadata", "marshal media metadata", err)
	}
	if err := r.store.PersistMedia(ctx, ledger.Media{
		ID:              meta.ID,
		JobID:           job.ID,
		SourceURL:       job.URL,
		Title:           meta.Title,
		Channel:         meta.ChannelName(),
		DurationSeconds: meta.DurationSeconds,
		UploadDate:      meta.UploadDate,
		MetadataJSON:    string(metadataJSON),
	}); err != nil {
		return services.Wrap(services.ErrFatal, "acquire", "persist media", "record media metadata", err)
	}

	return r.completeStage(ctx, job, ledger.Patch{
		MediaID:   &meta.ID,
		VideoPath: &download.VideoPath,
		AudioPath: &download.AudioPath,
	})
}

func (r *Runner) runTranscribe(ctx context.Context, logger *slog.Logger, job *ledger.Job) error {
	source := job.AudioPath
	if source == "" {
		source = job.VideoPath
	}
	if source == "" {
		return services.Wrap(services.ErrFatal, "transcribe", "select input",
			fmt.Sprintf("job %d has no acquired media", job.ID), nil)
	}

	hasAudio, err := r.ffmpeg.HasAudio(ctx, source)
	if err != nil {
		return r.classify("transcribe", "probe audio", err)
	}
	if !hasAudio {
		return services.Wrap(services.ErrFatal, "transcribe", "probe audio",
			fmt.Sprintf("%s contains no audio stream", source), nil)
	}

	outDir := filepath.Join(r.cfg.Paths.TranscriptDir, job.MediaID)
	transcriptPath, err := r.whisper.Transcribe(ctx, source, outDir, func(line string) {
		logger.Debug("transcribe output", logging.String("line", line))
	})
	if err != nil {
		return r.classify("transcribe", "transcribe", err)
	}

	return r.completeStage(ctx, job, ledger.Patch{
		TranscriptPath: &transcriptPath,
	})
}

func (r *Runner) runMerge(ctx context.Context, logger *slog.Logger, job *ledger.Job) error {
	if job.VideoPath == "" {
		return services.Wrap(services.ErrFatal, "merge", "select input",
			fmt.Sprintf("job %d has no video artifact", job.ID), nil)
	}

	outputPath := filepath.Join(r.cfg.Paths.MediaDir, job.MediaID, job.MediaID+".mp4")
	if err := r.ffmpeg.Merge(ctx, job.VideoPath, job.AudioPath, outputPath); err != nil {
		return r.classify("merge", "remux", err)
	}
	logger.Info("streams merged", logging.String("output", outputPath))

	return r.completeStage(ctx, job, ledger.Patch{
		OutputPath: &outputPath,
	})
}

func (r *Runner) runIndex(ctx context.Context, logger *slog.Logger, job *ledger.Job) error {
	ctx, cancel := stageTimeout(ctx, r.cfg.Workers.IndexTimeoutSeconds)
	defer cancel()

	if job.TranscriptPath == "" {
		return services.Wrap(services.ErrFatal, "index", "load transcript",
			fmt.Sprintf("job %d has no transcript", job.ID), nil)
	}

	parsed, err := whisper.LoadSegments(job.TranscriptPath)
	if err != nil {
		return services.Wrap(services.ErrFatal, "index", "load transcript", "parse transcript", err)
	}

	segments := make([]ledger.Segment, 0, len(parsed))
	for _, segment := range parsed {
		segments = append(segments, ledger.Segment{
			MediaID: job.MediaID,
			StartMS: segment.StartMS,
			EndMS:   segment.EndMS,
			Text:    segment.Text,
		})
	}
	if err := r.store.PersistSegments(ctx, job.MediaID, segments); err != nil {
		return services.Wrap(services.ErrFatal, "index", "persist segments", "store transcript segments", err)
	}
	logger.Info("transcript indexed", logging.Int("segments", len(segments)))

	return r.completeStage(ctx, job, ledger.Patch{})
}

// stageTimeout bounds a stage that runs no external tool. The tool-backed
// stages carry their deadlines inside the service clients.
func stageTimeout(ctx context.Context, seconds int) (context.Context, context.CancelFunc) {
	if seconds > 0 {
		return context.WithTimeout(ctx, time.Duration(seconds)*time.Second)
	}
	return context.WithCancel(ctx)
}
