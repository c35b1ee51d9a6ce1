package testsupport

import (
	"context"
	"testing"

	"mediafactory/internal/artifacts"
	"mediafactory/internal/jobs"
)

// CommitArtifact writes files as a committed attempt of stage and records the
// artifact on job, the way the worker does after a successful execution.
func CommitArtifact(t testing.TB, store *artifacts.Store, job *jobs.Job, stage jobs.Stage, primary string, files map[string]string) *jobs.Artifact {
	t.Helper()
	ctx := context.Background()
	number := job.Attempts[stage] + 1
	attempt, err := store.Begin(ctx, job.ID, stage, number)
	if err != nil {
		t.Fatalf("begin %s attempt: %v", stage, err)
	}
	for name, content := range files {
		if err := attempt.WriteFile(name, []byte(content)); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	if err := attempt.SetPrimary(primary); err != nil {
		t.Fatalf("set primary: %v", err)
	}
	artifact, err := attempt.Commit(ctx)
	if err != nil {
		t.Fatalf("commit %s: %v", stage, err)
	}
	if job.Attempts == nil {
		job.Attempts = map[jobs.Stage]int{}
	}
	if job.Artifacts == nil {
		job.Artifacts = map[jobs.Stage]*jobs.Artifact{}
	}
	job.Attempts[stage] = number
	job.Artifacts[stage] = &artifact
	return &artifact
}

// BeginAttempt opens the next attempt of stage for job.
func BeginAttempt(t testing.TB, store *artifacts.Store, job *jobs.Job, stage jobs.Stage) *artifacts.Attempt {
	t.Helper()
	attempt, err := store.Begin(context.Background(), job.ID, stage, job.Attempts[stage]+1)
	if err != nil {
		t.Fatalf("begin %s attempt: %v", stage, err)
	}
	return attempt
}

// SampleScript is a small valid script.json document.
const SampleScript = `{
  "title": "Test Video",
  "hook": "Learn this in eight minutes.",
  "sections": [
    {"heading": "Start", "body": "Do the first thing, for example open the box.", "b_roll": "box opening"},
    {"heading": "Finish", "body": "Do the last thing, for example close the lid and smile.", "b_roll": "closing lid"}
  ],
  "cta": "Subscribe for more.",
  "tags": ["test", "video"],
  "shorts": ["one"]
}`

// NewJob returns an in-memory job with the usual defaults.
func NewJob(id string) *jobs.Job {
	return &jobs.Job{
		ID:            id,
		Topic:         "Test Video",
		Niche:         "General",
		LengthSeconds: 480,
		Language:      "en",
		VoiceProfile:  "alloy",
		Status:        jobs.StatusRunning,
		FinalStage:    jobs.StageThumbnail,
		Attempts:      map[jobs.Stage]int{},
		Artifacts:     map[jobs.Stage]*jobs.Artifact{},
	}
}
