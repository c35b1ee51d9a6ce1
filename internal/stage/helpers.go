package stage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"mediafactory/internal/jobs"
	"mediafactory/internal/services"
)

// ArtifactDir returns the committed directory of an upstream stage.
// A missing upstream artifact is a permanent failure: retrying cannot produce it.
func ArtifactDir(job *jobs.Job, stage jobs.Stage) (string, error) {
	if job == nil {
		return "", services.Wrap(services.ErrValidation, string(stage), "locate artifact", "job is required", nil)
	}
	artifact := job.Artifacts[stage]
	if artifact == nil || artifact.Path == "" {
		return "", services.Wrap(services.ErrPermanent, string(stage), "locate artifact",
			fmt.Sprintf("job %s has no %s artifact", job.ID, stage), nil)
	}
	return filepath.Dir(artifact.Path), nil
}

// ArtifactFile returns the path of a named file inside an upstream artifact.
func ArtifactFile(job *jobs.Job, stage jobs.Stage, name string) (string, error) {
	dir, err := ArtifactDir(job, stage)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

// LoadJSON decodes a JSON file from an upstream artifact into v.
func LoadJSON(job *jobs.Job, stage jobs.Stage, name string, v any) error {
	path, err := ArtifactFile(job, stage, name)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return services.Wrap(services.ErrPermanent, string(stage), "read artifact", name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return services.Wrap(services.ErrPermanent, string(stage), "decode artifact", name, err)
	}
	return nil
}

// WriteJSON writes v as indented JSON into the attempt output.
func WriteJSON(req Request, name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return services.Wrap(services.ErrPermanent, string(req.Output.Stage()), "encode output", name, err)
	}
	return req.Output.WriteFile(name, append(data, '\n'))
}
