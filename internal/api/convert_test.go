package api

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediafactory/internal/jobs"
	"mediafactory/internal/queue"
	"mediafactory/internal/stage"
	"mediafactory/internal/workflow"
)

func TestFromJobOrdersArtifactsAndComputesProgress(t *testing.T) {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("CET", 3600))
	job := &jobs.Job{
		ID:           "job-1",
		Topic:        "Test Video",
		Status:       jobs.StatusRunning,
		CurrentStage: jobs.StageAssets,
		FinalStage:   jobs.StageThumbnail,
		CreatedAt:    created,
		Attempts:     map[jobs.Stage]int{jobs.StageScript: 1, jobs.StageVoice: 2},
		Artifacts: map[jobs.Stage]*jobs.Artifact{
			jobs.StageVoice:  {Stage: jobs.StageVoice, Attempt: 2, Path: "/m/voice/attempt-2/voice.mp3"},
			jobs.StageScript: {Stage: jobs.StageScript, Attempt: 1, Path: "/m/script/attempt-1/script.json"},
		},
	}

	dto := FromJob(job)
	require.Len(t, dto.Artifacts, 2)
	assert.Equal(t, "script", dto.Artifacts[0].Stage)
	assert.Equal(t, "voice", dto.Artifacts[1].Stage)
	assert.Equal(t, 2, dto.Attempts["voice"])
	assert.Equal(t, "2026-03-01T11:00:00.000Z", dto.CreatedAt)
	assert.Empty(t, dto.CompletedAt)
	assert.Equal(t, JobProgress{Completed: 2, Total: 5, Percent: 40}, dto.Progress)

	job.CurrentStage = jobs.StageDone
	assert.Equal(t, 100.0, FromJob(job).Progress.Percent)
}

func TestFromStatusSummary(t *testing.T) {
	summary := workflow.StatusSummary{
		Running:    true,
		Workers:    2,
		Processed:  7,
		QueueStats: queue.Stats{Ready: 1, Delayed: 2},
		JobStats:   map[jobs.Status]int{jobs.StatusRunning: 1},
		LastStage:  jobs.StageVoice,
		StageHealth: []stage.Health{
			stage.Healthy("script"),
			stage.Degraded("voice", "silent narration"),
		},
	}

	wf := FromStatusSummary(summary)
	assert.True(t, wf.Running)
	assert.Equal(t, QueueStats{Ready: 1, Delayed: 2}, wf.QueueStats)
	assert.Equal(t, 1, wf.JobStats["running"])
	assert.Equal(t, 0, wf.JobStats["failed"])
	assert.Equal(t, "voice", wf.LastStage)
	assert.Empty(t, wf.LastSeen)
	require.Len(t, wf.StageHealth, 2)
	assert.Equal(t, StageHealth{Name: "voice", Ready: true, Detail: "silent narration"}, wf.StageHealth[1])
}
