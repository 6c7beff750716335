package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// JobItem describes a ledger job in a transport-friendly format.
type JobItem struct {
	ID             int64       `json:"id"`
	URL            string      `json:"url"`
	Status         string      `json:"status"`
	Stage          string      `json:"stage"`
	MediaID        string      `json:"mediaId,omitempty"`
	Attempt        int         `json:"attempt"`
	Progress       JobProgress `json:"progress"`
	ErrorMessage   string      `json:"errorMessage,omitempty"`
	ErrorKind      string      `json:"errorKind,omitempty"`
	CorrelationID  string      `json:"correlationId,omitempty"`
	VideoPath      string      `json:"videoPath,omitempty"`
	AudioPath      string      `json:"audioPath,omitempty"`
	OutputPath     string      `json:"outputPath,omitempty"`
	TranscriptPath string      `json:"transcriptPath,omitempty"`
	LastHeartbeat  string      `json:"lastHeartbeat,omitempty"`
	CreatedAt      string      `json:"createdAt,omitempty"`
	UpdatedAt      string      `json:"updatedAt,omitempty"`
}

// JobProgress captures stage progress for a job.
type JobProgress struct {
	Percent float64 `json:"percent"`
	Message string  `json:"message,omitempty"`
}

// SearchHit is one ranked transcript match.
type SearchHit struct {
	MediaID   string  `json:"mediaId"`
	Title     string  `json:"title"`
	Channel   string  `json:"channel,omitempty"`
	SourceURL string  `json:"sourceUrl"`
	StartMS   int64   `json:"startMs"`
	EndMS     int64   `json:"endMs"`
	Text      string  `json:"text"`
	Rank      float64 `json:"rank"`
}

// JobStats aggregates job counts per lifecycle bucket.
type JobStats struct {
	Queued     int `json:"queued"`
	Processing int `json:"processing"`
	Paused     int `json:"paused"`
	Done       int `json:"done"`
	Failed     int `json:"failed"`
	Total      int `json:"total"`
}

// WorkerSlot reports the occupancy of one pool slot.
type WorkerSlot struct {
	Slot      int    `json:"slot"`
	JobID     int64  `json:"jobId,omitempty"`
	URL       string `json:"url,omitempty"`
	Stage     string `json:"stage,omitempty"`
	Paused    bool   `json:"paused"`
	StartedAt string `json:"startedAt,omitempty"`
}

// DependencyStatus captures availability of an external tool.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool               `json:"running"`
	PID          int                `json:"pid"`
	Workers      int                `json:"workers"`
	DatabasePath string             `json:"databasePath"`
	LockFilePath string             `json:"lockFilePath"`
	Stats        JobStats           `json:"stats"`
	Slots        []WorkerSlot       `json:"slots"`
	Dependencies []DependencyStatus `json:"dependencies"`
}

// JobListResponse wraps a collection of jobs for API responses.
type JobListResponse struct {
	Items []JobItem `json:"items"`
}

// JobItemResponse wraps a single job.
type JobItemResponse struct {
	Item JobItem `json:"item"`
}

// SearchResponse wraps ranked transcript matches.
type SearchResponse struct {
	Query string      `json:"query"`
	Hits  []SearchHit `json:"hits"`
}

// StatsResponse provides a normalized stats payload.
type StatsResponse struct {
	Stats JobStats `json:"stats"`
}
