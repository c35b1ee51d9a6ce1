package jobs

import (
	"time"
)

// Status is the overall lifecycle state of a job.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

var statuses = []Status{StatusPending, StatusRunning, StatusSucceeded, StatusFailed, StatusCancelled}

// AllStatuses returns every status in display order.
func AllStatuses() []Status {
	return append([]Status(nil), statuses...)
}

// Terminal reports whether no further transitions may occur from s.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed || s == StatusCancelled
}

// ParseStatus converts a string into a known status.
func ParseStatus(value string) (Status, bool) {
	for _, s := range statuses {
		if string(s) == value {
			return s, true
		}
	}
	return "", false
}

// Stage names one step of the fixed production pipeline.
type Stage string

const (
	StageScript    Stage = "script"
	StageVoice     Stage = "voice"
	StageAssets    Stage = "assets"
	StageCompose   Stage = "compose"
	StageThumbnail Stage = "thumbnail"
	StagePublish   Stage = "publish"

	// StageDone is the pseudo-stage a job reaches after its final stage is recorded.
	StageDone Stage = "done"
)

var pipeline = []Stage{StageScript, StageVoice, StageAssets, StageCompose, StageThumbnail, StagePublish}

// Pipeline returns the full stage order.
func Pipeline() []Stage {
	return append([]Stage(nil), pipeline...)
}

// StagesThrough returns the stage order up to and including final.
func StagesThrough(final Stage) []Stage {
	idx := final.Index()
	if idx < 0 {
		return nil
	}
	return append([]Stage(nil), pipeline[:idx+1]...)
}

// Index returns the position of s in the pipeline, len(pipeline) for StageDone
// and -1 for unknown names.
func (s Stage) Index() int {
	if s == StageDone {
		return len(pipeline)
	}
	for i, candidate := range pipeline {
		if candidate == s {
			return i
		}
	}
	return -1
}

// Valid reports whether s is a real pipeline stage.
func (s Stage) Valid() bool {
	return s != StageDone && s.Index() >= 0
}

// ParseStage converts a string into a pipeline stage.
func ParseStage(value string) (Stage, bool) {
	stage := Stage(value)
	if !stage.Valid() {
		return "", false
	}
	return stage, true
}

// Next returns the stage that follows s for a job whose last stage is final.
// It returns StageDone after final and "" when s is not part of the job.
func Next(s, final Stage) Stage {
	idx, last := s.Index(), final.Index()
	if idx < 0 || last < 0 || s == StageDone || idx > last {
		return ""
	}
	if idx == last {
		return StageDone
	}
	return pipeline[idx+1]
}

// Before reports whether s comes strictly earlier in the pipeline than other.
func (s Stage) Before(other Stage) bool {
	return s.Index() < other.Index()
}

// NewJob carries the fields required to create a job.
type NewJob struct {
	Topic         string
	Niche         string
	LengthSeconds int
	Language      string
	VoiceProfile  string
	FinalStage    Stage
}

// Job is a snapshot of one production request.
type Job struct {
	ID              string
	Topic           string
	Niche           string
	LengthSeconds   int
	Language        string
	VoiceProfile    string
	Status          Status
	CurrentStage    Stage
	FinalStage      Stage
	LastFailedStage Stage
	ErrorMessage    string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	CompletedAt     time.Time

	// Attempts counts executions started per stage.
	Attempts map[Stage]int
	// Artifacts points at the current (latest successful) artifact per completed stage.
	Artifacts map[Stage]*Artifact
}

// Artifact is the recorded output of one successful stage attempt.
type Artifact struct {
	ID        string
	JobID     string
	Stage     Stage
	Attempt   int
	Path      string
	SHA256    string
	SizeBytes int64
	CreatedAt time.Time
}

// Input returns the artifact a job's given stage consumes, i.e. the current
// artifact of the previous stage, or nil for the first stage.
func (j *Job) Input(stage Stage) *Artifact {
	idx := stage.Index()
	if idx <= 0 || j == nil {
		return nil
	}
	return j.Artifacts[pipeline[idx-1]]
}

// ListOptions filters List results.
type ListOptions struct {
	Statuses []Status
	Offset   int
	Limit    int
}

// LedgerState is the state of a publish dedup ledger entry.
type LedgerState string

const (
	LedgerInFlight      LedgerState = "in_flight"
	LedgerPublished     LedgerState = "published"
	LedgerPendingUpload LedgerState = "pending_upload"
)

// LedgerEntry records an attempt to push a job's output to a non-idempotent service.
type LedgerEntry struct {
	JobID      string
	Stage      Stage
	State      LedgerState
	ExternalID string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
