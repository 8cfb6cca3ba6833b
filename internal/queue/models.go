package queue

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a queue item.
type Status string

const (
	StatusPending    Status = "pending"
	StatusFetching   Status = "fetching"
	StatusFetched    Status = "fetched"
	StatusExtracting Status = "extracting"
	StatusExtracted  Status = "extracted"
	StatusUpscaling  Status = "upscaling"
	StatusUpscaled   Status = "upscaled"
	StatusEncoding   Status = "encoding"
	StatusEncoded    Status = "encoded"
	StatusRemuxing   Status = "remuxing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusReview     Status = "review"
)

// UserStopReason is the review reason set when a user explicitly stops an item.
const UserStopReason = "Stop requested by user"

// DaemonStopReason is the error message set when items are failed due to daemon shutdown.
const DaemonStopReason = "Daemon stopped"

var allStatuses = []Status{
	StatusPending,
	StatusFetching,
	StatusFetched,
	StatusExtracting,
	StatusExtracted,
	StatusUpscaling,
	StatusUpscaled,
	StatusEncoding,
	StatusEncoded,
	StatusRemuxing,
	StatusCompleted,
	StatusFailed,
	StatusReview,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

var processingStatuses = map[Status]struct{}{
	StatusFetching:   {},
	StatusExtracting: {},
	StatusUpscaling:  {},
	StatusEncoding:   {},
	StatusRemuxing:   {},
}

type statusTransition struct {
	from Status
	to   Status
}

// stageRollbackTransitions map each in-flight status back to the state that
// precedes its stage, so interrupted work restarts at the right boundary.
var stageRollbackTransitions = []statusTransition{
	{from: StatusFetching, to: StatusPending},
	{from: StatusExtracting, to: StatusFetched},
	{from: StatusUpscaling, to: StatusExtracted},
	{from: StatusEncoding, to: StatusUpscaled},
	{from: StatusRemuxing, to: StatusEncoded},
}

// RollbackStatus returns the status an interrupted item should return to.
// Non-processing statuses are returned unchanged.
func RollbackStatus(status Status) Status {
	for _, transition := range stageRollbackTransitions {
		if transition.from == status {
			return transition.to
		}
	}
	return status
}

// DatabaseHealth captures diagnostic information about the queue database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	SchemaVersion    string
	TableExists      bool
	ColumnsPresent   []string
	MissingColumns   []string
	IntegrityCheck   bool
	TotalItems       int
	Error            string
}

// HealthSummary describes aggregated queue counts per key lifecycle states.
type HealthSummary struct {
	Total      int
	Pending    int
	Processing int
	Failed     int
	Review     int
	Completed  int
}

// Item represents a queue item persisted in SQLite.
type Item struct {
	ID               int64
	SourceURL        string
	SourcePath       string
	Title            string
	Status           Status
	Scale            float64
	TargetResolution string
	Model            string
	OutputFPS        float64
	CRF              int
	Preset           string
	ResolvedScale    float64
	SourceFPS        float64
	SourceWidth      int
	SourceHeight     int
	HasAudio         bool
	FrameCount       int
	StagedFile       string
	EncodedFile      string
	FinalFile        string
	ErrorMessage     string
	CreatedAt        time.Time
	UpdatedAt        time.Time
	ProgressStage    string
	ProgressPercent  float64
	ProgressMessage  string
	LastHeartbeat    *time.Time
	NeedsReview      bool
	ReviewReason     string
}

// Source returns whichever source reference the item carries.
func (i Item) Source() string {
	if i.SourceURL != "" {
		return i.SourceURL
	}
	return i.SourcePath
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsProcessing returns true when the status reflects an in-flight operation.
func (i Item) IsProcessing() bool {
	_, ok := processingStatuses[i.Status]
	return ok
}

// IsProcessingStatus reports whether a status reflects an in-flight operation.
func IsProcessingStatus(status Status) bool {
	_, ok := processingStatuses[status]
	return ok
}

// IsTerminal reports whether a status ends the workflow for an item.
func IsTerminal(status Status) bool {
	switch status {
	case StatusCompleted, StatusFailed, StatusReview:
		return true
	default:
		return false
	}
}

// IsUserStopReason reports whether a review reason represents a user-initiated stop.
func IsUserStopReason(reason string) bool {
	return strings.EqualFold(strings.TrimSpace(reason), UserStopReason)
}

// InitProgress resets progress fields for a new stage.
// If ProgressStage is currently empty, it is set to the provided stage value;
// otherwise the existing stage is preserved (to support resume scenarios).
// ProgressMessage is set to message, ProgressPercent is reset to 0,
// and ErrorMessage is cleared.
func (i *Item) InitProgress(stage, message string) {
	if i.ProgressStage == "" {
		i.ProgressStage = stage
	}
	i.ProgressMessage = message
	i.ProgressPercent = 0
	i.ErrorMessage = ""
}

// SetProgress updates all three progress fields atomically.
// Use this instead of setting ProgressStage, ProgressPercent, and ProgressMessage individually.
func (i *Item) SetProgress(stage, message string, percent float64) {
	i.ProgressStage = stage
	i.ProgressMessage = message
	i.ProgressPercent = percent
}

// SetProgressComplete sets progress to 100% with the given stage and message.
// Convenience method for stage completion.
func (i *Item) SetProgressComplete(stage, message string) {
	i.SetProgress(stage, message, 100)
}

// SetFailed marks the item as failed with the given error message.
// Clears heartbeat and sets progress fields appropriately.
func (i *Item) SetFailed(message string) {
	i.Status = StatusFailed
	i.ErrorMessage = message
	i.ProgressPercent = 0
	i.ProgressMessage = message
	i.LastHeartbeat = nil
	i.ProgressStage = "Failed"
}

// SetReview parks the item for operator attention with the given reason.
// A retry restarts the job from intake, so staged artifacts are not kept.
func (i *Item) SetReview(reason string) {
	i.Status = StatusReview
	i.NeedsReview = true
	i.ReviewReason = reason
	i.ErrorMessage = reason
	i.ProgressPercent = 0
	i.ProgressMessage = reason
	i.LastHeartbeat = nil
	i.ProgressStage = "Needs review"
}

// StageKey returns the normalized stage identifier used in API/CLI presentation.
func (s Status) StageKey() string {
	switch s {
	case "":
		return ""
	case StatusPending:
		return "queued"
	case StatusCompleted:
		return "final"
	case StatusFetching,
		StatusFetched,
		StatusExtracting,
		StatusExtracted,
		StatusUpscaling,
		StatusUpscaled,
		StatusEncoding,
		StatusEncoded,
		StatusRemuxing,
		StatusFailed,
		StatusReview:
		return string(s)
	default:
		return ""
	}
}

// ProcessingLane partitions workflow into source intake and frame processing work.
type ProcessingLane string

const (
	LaneIntake     ProcessingLane = "intake"
	LaneProcessing ProcessingLane = "processing"
)

// LaneForItem maps a queue item to its processing lane for observability purposes.
func LaneForItem(item *Item) ProcessingLane {
	if item == nil {
		return LaneIntake
	}
	switch item.Status {
	case StatusPending, StatusFetching:
		return LaneIntake
	case StatusFailed, StatusReview:
		if item.StagedFile != "" {
			return LaneProcessing
		}
		return LaneIntake
	default:
		return LaneProcessing
	}
}
