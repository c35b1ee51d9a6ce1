package stage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"mediafactory/internal/artifacts"
	"mediafactory/internal/jobs"
	"mediafactory/internal/services"
)

func TestArtifactDirRequiresUpstream(t *testing.T) {
	job := &jobs.Job{ID: "job-1", Artifacts: map[jobs.Stage]*jobs.Artifact{}}
	_, err := ArtifactDir(job, jobs.StageScript)
	if !errors.Is(err, services.ErrPermanent) {
		t.Fatalf("expected permanent error, got %v", err)
	}
}

func TestWriteAndLoadJSON(t *testing.T) {
	store := artifacts.NewStore(t.TempDir())
	ctx := context.Background()
	att, err := store.Begin(ctx, "job-1", jobs.StageScript, 1)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	req := Request{Job: &jobs.Job{ID: "job-1"}, Attempt: 1, Output: att}
	if err := WriteJSON(req, "script.json", map[string]string{"title": "Test Video"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := att.SetPrimary("script.json"); err != nil {
		t.Fatalf("primary: %v", err)
	}
	artifact, err := att.Commit(ctx)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}

	job := &jobs.Job{ID: "job-1", Artifacts: map[jobs.Stage]*jobs.Artifact{jobs.StageScript: &artifact}}
	dir, err := ArtifactDir(job, jobs.StageScript)
	if err != nil {
		t.Fatalf("dir: %v", err)
	}
	if dir != filepath.Dir(artifact.Path) {
		t.Fatalf("unexpected dir %q", dir)
	}
	var decoded map[string]string
	if err := LoadJSON(job, jobs.StageScript, "script.json", &decoded); err != nil {
		t.Fatalf("load: %v", err)
	}
	if decoded["title"] != "Test Video" {
		t.Fatalf("unexpected decoded value %+v", decoded)
	}
	if err := LoadJSON(job, jobs.StageScript, "missing.json", &decoded); !errors.Is(err, services.ErrPermanent) {
		t.Fatalf("expected permanent error for missing file, got %v", err)
	}
}
