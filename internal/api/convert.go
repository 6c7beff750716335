package api

import (
	"murmur/internal/ledger"
	"murmur/internal/pool"
)

// FromJob converts a ledger record to its API representation.
func FromJob(job *ledger.Job) JobItem {
	if job == nil {
		return JobItem{}
	}
	dto := JobItem{
		ID:      job.ID,
		URL:     job.URL,
		Status:  string(job.Status),
		Stage:   string(job.Stage),
		MediaID: job.MediaID,
		Attempt: job.Attempt,
		Progress: JobProgress{
			Percent: job.ProgressPercent,
			Message: job.ProgressMessage,
		},
		ErrorMessage:   job.ErrorMessage,
		ErrorKind:      job.ErrorKind,
		CorrelationID:  job.CorrelationID,
		VideoPath:      job.VideoPath,
		AudioPath:      job.AudioPath,
		OutputPath:     job.OutputPath,
		TranscriptPath: job.TranscriptPath,
	}
	if job.LastHeartbeat != nil {
		dto.LastHeartbeat = job.LastHeartbeat.UTC().Format(dateTimeFormat)
	}
	if !job.CreatedAt.IsZero() {
		dto.CreatedAt = job.CreatedAt.UTC().Format(dateTimeFormat)
	}
	if !job.UpdatedAt.IsZero() {
		dto.UpdatedAt = job.UpdatedAt.UTC().Format(dateTimeFormat)
	}
	return dto
}

// FromJobs converts a slice of ledger records into API DTOs.
func FromJobs(jobs []*ledger.Job) []JobItem {
	if len(jobs) == 0 {
		return nil
	}
	out := make([]JobItem, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, FromJob(job))
	}
	return out
}

// FromSearchHits converts ranked ledger matches into API DTOs.
func FromSearchHits(hits []ledger.SearchHit) []SearchHit {
	if len(hits) == 0 {
		return nil
	}
	out := make([]SearchHit, 0, len(hits))
	for _, hit := range hits {
		out = append(out, SearchHit{
			MediaID:   hit.MediaID,
			Title:     hit.Title,
			Channel:   hit.Channel,
			SourceURL: hit.SourceURL,
			StartMS:   hit.StartMS,
			EndMS:     hit.EndMS,
			Text:      hit.Text,
			Rank:      hit.Rank,
		})
	}
	return out
}

// FromStats converts ledger counters into the API payload.
func FromStats(stats ledger.Stats) JobStats {
	return JobStats{
		Queued:     stats.Queued,
		Processing: stats.Processing,
		Paused:     stats.Paused,
		Done:       stats.Done,
		Failed:     stats.Failed,
		Total:      stats.Total,
	}
}

// FromSlots converts pool slot states into API DTOs.
func FromSlots(slots []pool.SlotState) []WorkerSlot {
	if len(slots) == 0 {
		return nil
	}
	out := make([]WorkerSlot, 0, len(slots))
	for _, slot := range slots {
		dto := WorkerSlot{
			Slot:   slot.Slot,
			JobID:  slot.JobID,
			URL:    slot.URL,
			Stage:  string(slot.Stage),
			Paused: slot.Paused,
		}
		if !slot.StartedAt.IsZero() {
			dto.StartedAt = slot.StartedAt.UTC().Format(dateTimeFormat)
		}
		out = append(out, dto)
	}
	return out
}
