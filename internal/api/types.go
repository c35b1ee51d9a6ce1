package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Job describes a production job in a transport-friendly format.
type Job struct {
	ID              string         `json:"id"`
	Topic           string         `json:"topic"`
	Niche           string         `json:"niche"`
	LengthSeconds   int            `json:"lengthSeconds"`
	Language        string         `json:"language"`
	VoiceProfile    string         `json:"voiceProfile"`
	Status          string         `json:"status"`
	CurrentStage    string         `json:"currentStage"`
	FinalStage      string         `json:"finalStage"`
	LastFailedStage string         `json:"lastFailedStage,omitempty"`
	ErrorMessage    string         `json:"errorMessage,omitempty"`
	CreatedAt       string         `json:"createdAt,omitempty"`
	UpdatedAt       string         `json:"updatedAt,omitempty"`
	CompletedAt     string         `json:"completedAt,omitempty"`
	Progress        JobProgress    `json:"progress"`
	Attempts        map[string]int `json:"attempts,omitempty"`
	Artifacts       []Artifact     `json:"artifacts"`
}

// JobProgress is the number of finished stages out of the job's total.
type JobProgress struct {
	Completed int     `json:"completed"`
	Total     int     `json:"total"`
	Percent   float64 `json:"percent"`
}

// Artifact is the recorded output of one stage.
type Artifact struct {
	Stage     string `json:"stage"`
	Attempt   int    `json:"attempt"`
	Path      string `json:"path"`
	SHA256    string `json:"sha256"`
	SizeBytes int64  `json:"sizeBytes"`
	CreatedAt string `json:"createdAt,omitempty"`
}

// QueueStats counts queued work items by visibility.
type QueueStats struct {
	Ready   int `json:"ready"`
	Leased  int `json:"leased"`
	Delayed int `json:"delayed"`
}

// WorkflowStatus summarizes workflow execution state.
type WorkflowStatus struct {
	Running     bool           `json:"running"`
	Workers     int            `json:"workers"`
	Processed   int64          `json:"processed"`
	Failed      int64          `json:"failed"`
	QueueStats  QueueStats     `json:"queueStats"`
	JobStats    map[string]int `json:"jobStats"`
	LastError   string         `json:"lastError,omitempty"`
	LastJobID   string         `json:"lastJobId,omitempty"`
	LastStage   string         `json:"lastStage,omitempty"`
	LastSeen    string         `json:"lastSeen,omitempty"`
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
	Database     string             `json:"database"`
	LockFilePath string             `json:"lockFilePath"`
	MediaDir     string             `json:"mediaDir"`
	Workflow     WorkflowStatus     `json:"workflow"`
	Dependencies []DependencyStatus `json:"dependencies"`
}

// StatsResponse provides job counts by status plus queue depth.
type StatsResponse struct {
	Jobs  map[string]int `json:"jobs"`
	Queue QueueStats     `json:"queue"`
}

// JobListResponse wraps a collection of jobs for API responses.
type JobListResponse struct {
	Items []Job `json:"items"`
}

// JobResponse wraps a single job.
type JobResponse struct {
	Job Job `json:"job"`
}

// SubmitResponse returns the identifier of an accepted job.
type SubmitResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// ErrorResponse is the body of every failed API call.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// JobIDsRequest names the jobs a bulk action applies to.
type JobIDsRequest struct {
	IDs []string `json:"ids"`
}
