package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// JobRequest is the transport form of a job submission. Exactly one of
// SourceURL or SourcePath must be set; everything else is optional and
// falls back to the daemon's configured defaults.
type JobRequest struct {
	SourceURL        string  `json:"sourceUrl,omitempty"`
	SourcePath       string  `json:"sourcePath,omitempty"`
	Title            string  `json:"title,omitempty"`
	Scale            float64 `json:"scale,omitempty"`
	TargetResolution string  `json:"targetResolution,omitempty"`
	Model            string  `json:"model,omitempty"`
	OutputFPS        float64 `json:"outputFps,omitempty"`
	CRF              *int    `json:"crf,omitempty"`
	Preset           string  `json:"preset,omitempty"`
}

// QueueItem describes a queue entry in a transport-friendly format.
type QueueItem struct {
	ID             int64         `json:"id"`
	Title          string        `json:"title"`
	SourceURL      string        `json:"sourceUrl,omitempty"`
	SourcePath     string        `json:"sourcePath,omitempty"`
	Status         string        `json:"status"`
	ProcessingLane string        `json:"processingLane"`
	Params         JobParams     `json:"params"`
	Source         SourceInfo    `json:"source"`
	Progress       QueueProgress `json:"progress"`
	ErrorMessage   string        `json:"errorMessage"`
	CreatedAt      string        `json:"createdAt,omitempty"`
	UpdatedAt      string        `json:"updatedAt,omitempty"`
	StagedFile     string        `json:"stagedFile,omitempty"`
	EncodedFile    string        `json:"encodedFile,omitempty"`
	FinalFile      string        `json:"finalFile,omitempty"`
	NeedsReview    bool          `json:"needsReview"`
	ReviewReason   string        `json:"reviewReason,omitempty"`
}

// JobParams echoes the upscale parameters a job carries. ResolvedScale is
// zero until intake has resolved the effective scale factor.
type JobParams struct {
	Scale            float64 `json:"scale,omitempty"`
	TargetResolution string  `json:"targetResolution,omitempty"`
	ResolvedScale    float64 `json:"resolvedScale,omitempty"`
	Model            string  `json:"model,omitempty"`
	OutputFPS        float64 `json:"outputFps,omitempty"`
	CRF              int     `json:"crf,omitempty"`
	Preset           string  `json:"preset,omitempty"`
}

// SourceInfo carries the probed characteristics of a staged source video.
// Fields are zero until intake has run.
type SourceInfo struct {
	Width      int     `json:"width,omitempty"`
	Height     int     `json:"height,omitempty"`
	FPS        float64 `json:"fps,omitempty"`
	HasAudio   bool    `json:"hasAudio"`
	FrameCount int     `json:"frameCount,omitempty"`
}

// QueueProgress captures stage progress information for a queue entry.
type QueueProgress struct {
	Stage   string  `json:"stage"`
	Percent float64 `json:"percent"`
	Message string  `json:"message"`
}

// WorkflowStatus summarizes workflow execution state.
type WorkflowStatus struct {
	Running     bool           `json:"running"`
	QueueStats  map[string]int `json:"queueStats"`
	LastError   string         `json:"lastError,omitempty"`
	LastItem    *QueueItem     `json:"lastItem,omitempty"`
	StageHealth []StageHealth  `json:"stageHealth"`
}

// StageHealth mirrors readiness reporting for workflow stages.
type StageHealth struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

// DependencyStatus captures availability of an external dependency.
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
	QueueDBPath  string             `json:"queueDbPath"`
	LockFilePath string             `json:"lockFilePath"`
	Workflow     WorkflowStatus     `json:"workflow"`
	Dependencies []DependencyStatus `json:"dependencies"`
}

// QueueStatsResponse provides a normalized queue stats payload.
type QueueStatsResponse struct {
	Counts map[string]int `json:"counts"`
}

// QueueListResponse wraps a collection of queue items for API responses.
type QueueListResponse struct {
	Items []QueueItem `json:"items"`
}

// QueueItemResponse wraps a single queue item.
type QueueItemResponse struct {
	Item QueueItem `json:"item"`
}

// ClearRequest selects which terminal queue items to drop.
type ClearRequest struct {
	Scope string `json:"scope"`
}

// ClearResponse reports how many queue items a clear removed.
type ClearResponse struct {
	Removed int64 `json:"removed"`
}

// RetryResponse reports how many items a retry reset to pending.
type RetryResponse struct {
	Updated int64 `json:"updated"`
}

// ErrorResponse is the body of every non-2xx API answer.
type ErrorResponse struct {
	Error string `json:"error"`
}
