package ipc

import "murmur/internal/api"

// JobItem mirrors the HTTP API job DTO for IPC callers.
type JobItem = api.JobItem

// SearchHit mirrors the HTTP API search DTO.
type SearchHit = api.SearchHit

// WorkerSlot mirrors the HTTP API slot DTO.
type WorkerSlot = api.WorkerSlot

// DependencyStatus mirrors the HTTP API dependency DTO.
type DependencyStatus = api.DependencyStatus

// JobStats mirrors the HTTP API stats DTO.
type JobStats = api.JobStats

// EnqueueRequest adds URLs to the ledger.
type EnqueueRequest struct {
	URLs []string `json:"urls"`
}

// EnqueueResponse returns the created jobs.
type EnqueueResponse struct {
	Items []JobItem `json:"items"`
}

// JobListRequest filters job listing by status.
type JobListRequest struct {
	Statuses []string `json:"statuses"`
}

// JobListResponse contains ledger jobs.
type JobListResponse struct {
	Items []JobItem `json:"items"`
}

// JobDescribeRequest fetches a single job by id.
type JobDescribeRequest struct {
	ID int64 `json:"id"`
}

// JobDescribeResponse contains a single job.
type JobDescribeResponse struct {
	Item JobItem `json:"item"`
}

// SearchRequest runs a full-text transcript query.
type SearchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

// SearchResponse returns ranked transcript matches.
type SearchResponse struct {
	Hits []SearchHit `json:"hits"`
}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse represents combined daemon and pool status information.
type StatusResponse struct {
	Running      bool               `json:"running"`
	PID          int                `json:"pid"`
	Workers      int                `json:"workers"`
	Stats        JobStats           `json:"stats"`
	Slots        []WorkerSlot       `json:"slots"`
	DatabasePath string             `json:"database_path"`
	LockPath     string             `json:"lock_path"`
	Dependencies []DependencyStatus `json:"dependencies"`
}

// ControlRequest targets one job with a lifecycle action.
type ControlRequest struct {
	ID              int64 `json:"id"`
	DeleteArtifacts bool  `json:"delete_artifacts"`
}

// ControlResponse reports the outcome of a lifecycle action.
type ControlResponse struct {
	Outcome string `json:"outcome"`
	Reason  string `json:"reason,omitempty"`
}

// RetryRequest retries failed jobs. Empty list means all failed jobs.
type RetryRequest struct {
	IDs []int64 `json:"ids"`
}

// RetryResponse returns the freshly queued clones.
type RetryResponse struct {
	Items []JobItem `json:"items"`
}

// ClearDoneRequest removes completed jobs.
type ClearDoneRequest struct{}

// ClearDoneResponse reports number of removed jobs.
type ClearDoneResponse struct {
	Removed int64 `json:"removed"`
}

// ClearFailedRequest removes failed jobs.
type ClearFailedRequest struct{}

// ClearFailedResponse reports number of removed jobs.
type ClearFailedResponse struct {
	Removed int64 `json:"removed"`
}

// HealthRequest fetches ledger diagnostics.
type HealthRequest struct{}

// HealthResponse reports ledger health information.
type HealthResponse struct {
	DBPath         string `json:"db_path"`
	DatabaseExists bool   `json:"database_exists"`
	SchemaVersion  int    `json:"schema_version"`
	IntegrityCheck bool   `json:"integrity_check"`
	TotalJobs      int    `json:"total_jobs"`
	IndexedMedia   int    `json:"indexed_media"`
	Error          string `json:"error,omitempty"`
}

// TestNotificationRequest triggers a notification test.
type TestNotificationRequest struct{}

// TestNotificationResponse reports notification test outcome.
type TestNotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}

// StopRequest stops daemon processing.
type StopRequest struct{}

// StopResponse indicates stop result.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}
