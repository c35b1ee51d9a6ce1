package api

import (
	"time"

	"mediafactory/internal/deps"
	"mediafactory/internal/jobs"
	"mediafactory/internal/queue"
	"mediafactory/internal/stage"
	"mediafactory/internal/workflow"
)

// FromJob converts a job record to its API representation.
func FromJob(job *jobs.Job) Job {
	if job == nil {
		return Job{}
	}

	dto := Job{
		ID:              job.ID,
		Topic:           job.Topic,
		Niche:           job.Niche,
		LengthSeconds:   job.LengthSeconds,
		Language:        job.Language,
		VoiceProfile:    job.VoiceProfile,
		Status:          string(job.Status),
		CurrentStage:    string(job.CurrentStage),
		FinalStage:      string(job.FinalStage),
		LastFailedStage: string(job.LastFailedStage),
		ErrorMessage:    job.ErrorMessage,
		CreatedAt:       FormatTime(job.CreatedAt),
		UpdatedAt:       FormatTime(job.UpdatedAt),
		CompletedAt:     FormatTime(job.CompletedAt),
		Progress:        progressOf(job),
		Artifacts:       []Artifact{},
	}
	if len(job.Attempts) > 0 {
		dto.Attempts = make(map[string]int, len(job.Attempts))
		for s, n := range job.Attempts {
			dto.Attempts[string(s)] = n
		}
	}
	for _, s := range jobs.Pipeline() {
		if artifact := job.Artifacts[s]; artifact != nil {
			dto.Artifacts = append(dto.Artifacts, FromArtifact(artifact))
		}
	}
	return dto
}

// FromJobs converts a slice of job records.
func FromJobs(list []*jobs.Job) []Job {
	out := make([]Job, 0, len(list))
	for _, job := range list {
		if job == nil {
			continue
		}
		out = append(out, FromJob(job))
	}
	return out
}

// FromArtifact converts an artifact record.
func FromArtifact(artifact *jobs.Artifact) Artifact {
	return Artifact{
		Stage:     string(artifact.Stage),
		Attempt:   artifact.Attempt,
		Path:      artifact.Path,
		SHA256:    artifact.SHA256,
		SizeBytes: artifact.SizeBytes,
		CreatedAt: FormatTime(artifact.CreatedAt),
	}
}

func progressOf(job *jobs.Job) JobProgress {
	total := len(jobs.StagesThrough(job.FinalStage))
	completed := 0
	switch {
	case job.CurrentStage == jobs.StageDone:
		completed = total
	case job.CurrentStage.Index() >= 0:
		completed = min(job.CurrentStage.Index(), total)
	}
	progress := JobProgress{Completed: completed, Total: total}
	if total > 0 {
		progress.Percent = float64(completed) * 100 / float64(total)
	}
	return progress
}

// FromStatusSummary converts a workflow status summary to API payload.
func FromStatusSummary(summary workflow.StatusSummary) WorkflowStatus {
	wf := WorkflowStatus{
		Running:     summary.Running,
		Workers:     summary.Workers,
		Processed:   summary.Processed,
		Failed:      summary.Failed,
		QueueStats:  FromQueueStats(summary.QueueStats),
		JobStats:    MergeJobStats(summary.JobStats),
		LastError:   summary.LastError,
		LastJobID:   summary.LastJobID,
		LastStage:   string(summary.LastStage),
		LastSeen:    FormatTime(summary.LastSeen),
		StageHealth: StageHealthSlice(summary.StageHealth),
	}
	return wf
}

// FromQueueStats converts queue depth counters.
func FromQueueStats(stats queue.Stats) QueueStats {
	return QueueStats{Ready: stats.Ready, Leased: stats.Leased, Delayed: stats.Delayed}
}

// MergeJobStats produces a string-keyed representation of job stats that
// always lists every status.
func MergeJobStats(stats map[jobs.Status]int) map[string]int {
	out := make(map[string]int, len(jobs.AllStatuses()))
	for _, status := range jobs.AllStatuses() {
		out[string(status)] = stats[status]
	}
	return out
}

// StageHealthSlice converts stage health records, which the registry already
// returns in pipeline order.
func StageHealthSlice(health []stage.Health) []StageHealth {
	out := make([]StageHealth, 0, len(health))
	for _, h := range health {
		out = append(out, StageHealth{Name: h.Name, Ready: h.Ready, Detail: h.Detail})
	}
	return out
}

// DependencyStatuses converts binary lookup results.
func DependencyStatuses(statuses []deps.Status) []DependencyStatus {
	out := make([]DependencyStatus, len(statuses))
	for i, s := range statuses {
		out[i] = DependencyStatus{
			Name:        s.Name,
			Command:     s.Command,
			Description: s.Description,
			Optional:    s.Optional,
			Available:   s.Available,
			Detail:      s.Detail,
		}
	}
	return out
}

// FormatTime converts a time to RFC3339 or returns empty string.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
