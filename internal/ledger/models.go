package ledger

import (
	"database/sql"
	"errors"
	"strings"
	"time"

	"murmur/internal/stage"
)

// Job is a single ingest unit of work moving through the pipeline.
type Job struct {
	ID              int64
	URL             string
	Status          stage.Status
	Stage           stage.Stage
	MediaID         string
	Attempt         int
	ErrorMessage    string
	ErrorKind       string
	CorrelationID   string
	ProgressPercent float64
	ProgressMessage string
	VideoPath       string
	AudioPath       string
	OutputPath      string
	TranscriptPath  string
	LastHeartbeat   *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Media describes an acquired source, keyed by its upstream identifier.
// JobID goes to zero once the job that acquired it is cleared.
type Media struct {
	ID              string
	JobID           int64
	SourceURL       string
	Title           string
	Channel         string
	DurationSeconds float64
	UploadDate      string
	MetadataJSON    string
	IndexedAt       *time.Time
	CreatedAt       time.Time
}

// Segment is one timestamped span of transcript text.
type Segment struct {
	ID      int64
	MediaID string
	StartMS int64
	EndMS   int64
	Text    string
}

// SearchHit is a ranked transcript match.
type SearchHit struct {
	MediaID   string
	Title     string
	Channel   string
	SourceURL string
	StartMS   int64
	EndMS     int64
	Text      string
	Rank      float64
}

// Stats aggregates job counts per lifecycle state.
type Stats struct {
	Queued     int
	Processing int
	Paused     int
	Done       int
	Failed     int
	Total      int
}

const jobColumns = "id, url, status, stage, media_id, attempt, error_message, error_kind, correlation_id, progress_percent, progress_message, video_path, audio_path, output_path, transcript_path, last_heartbeat, created_at, updated_at"

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		id               int64
		url              string
		statusStr        string
		stageStr         string
		mediaID          sql.NullString
		attempt          sql.NullInt64
		errorMessage     sql.NullString
		errorKind        sql.NullString
		correlationID    sql.NullString
		progressPercent  sql.NullFloat64
		progressMessage  sql.NullString
		videoPath        sql.NullString
		audioPath        sql.NullString
		outputPath       sql.NullString
		transcriptPath   sql.NullString
		lastHeartbeatRaw sql.NullString
		createdRaw       sql.NullString
		updatedRaw       sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&url,
		&statusStr,
		&stageStr,
		&mediaID,
		&attempt,
		&errorMessage,
		&errorKind,
		&correlationID,
		&progressPercent,
		&progressMessage,
		&videoPath,
		&audioPath,
		&outputPath,
		&transcriptPath,
		&lastHeartbeatRaw,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	job := &Job{
		ID:              id,
		URL:             url,
		Status:          stage.Status(statusStr),
		Stage:           stage.Stage(stageStr),
		MediaID:         mediaID.String,
		Attempt:         int(attempt.Int64),
		ErrorMessage:    errorMessage.String,
		ErrorKind:       errorKind.String,
		CorrelationID:   correlationID.String,
		ProgressPercent: progressPercent.Float64,
		ProgressMessage: progressMessage.String,
		VideoPath:       videoPath.String,
		AudioPath:       audioPath.String,
		OutputPath:      outputPath.String,
		TranscriptPath:  transcriptPath.String,
	}

	if created, err := parseTimeString(createdRaw.String); err == nil {
		job.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		job.UpdatedAt = updated
	}
	if lastHeartbeatRaw.Valid {
		if heartbeat, err := parseTimeString(lastHeartbeatRaw.String); err == nil {
			job.LastHeartbeat = &heartbeat
		}
	}
	return job, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", count), ", ")
}
