package stage

import (
	"fmt"
	"strings"
)

// Status represents the lifecycle state of a ledger job.
type Status string

const (
	StatusQueued       Status = "queued"
	StatusAcquiring    Status = "acquiring"
	StatusTranscribing Status = "transcribing"
	StatusMerging      Status = "merging"
	StatusIndexing     Status = "indexing"
	StatusDone         Status = "done"
	StatusFailed       Status = "failed"

	StatusPausedAcquire    Status = "paused_acquire"
	StatusPausedTranscribe Status = "paused_transcribe"
	StatusPausedMerge      Status = "paused_merge"
	StatusPausedIndex      Status = "paused_index"
)

var allStatuses = []Status{
	StatusQueued,
	StatusAcquiring,
	StatusTranscribing,
	StatusMerging,
	StatusIndexing,
	StatusDone,
	StatusFailed,
	StatusPausedAcquire,
	StatusPausedTranscribe,
	StatusPausedMerge,
	StatusPausedIndex,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	_, ok := statusSet[s]
	return ok
}

// Terminal reports whether the job has finished for good.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusFailed
}

// Active reports whether a worker currently owns the job.
func (s Status) Active() bool {
	switch s {
	case StatusAcquiring, StatusTranscribing, StatusMerging, StatusIndexing:
		return true
	}
	return false
}

// Paused reports whether the job is suspended mid-stage.
func (s Status) Paused() bool {
	return strings.HasPrefix(string(s), "paused_")
}

// ActiveStatus returns the in-progress status for a stage.
func ActiveStatus(s Stage) Status {
	switch s {
	case Acquire:
		return StatusAcquiring
	case Transcribe:
		return StatusTranscribing
	case Merge:
		return StatusMerging
	case Index:
		return StatusIndexing
	}
	return StatusFailed
}

// PausedStatus returns the suspended status for a stage.
func PausedStatus(s Stage) Status {
	return Status("paused_" + string(s))
}

// StageOf returns the stage implied by an active or paused status.
func StageOf(status Status) (Stage, bool) {
	switch status {
	case StatusAcquiring, StatusPausedAcquire:
		return Acquire, true
	case StatusTranscribing, StatusPausedTranscribe:
		return Transcribe, true
	case StatusMerging, StatusPausedMerge:
		return Merge, true
	case StatusIndexing, StatusPausedIndex:
		return Index, true
	}
	return "", false
}

// DoneStatus returns the status a job advances to when a stage completes:
// the next stage's queued form does not exist, so completion of the last
// stage yields done and intermediate stages return to queued with the
// following stage recorded on the job.
func DoneStatus(s Stage) Status {
	if _, ok := Next(s); ok {
		return StatusQueued
	}
	return StatusDone
}

// ParseStatus converts a string to a known Status.
func ParseStatus(value string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(value)))
	if !s.Valid() {
		return "", fmt.Errorf("unknown status %q", value)
	}
	return s, nil
}
