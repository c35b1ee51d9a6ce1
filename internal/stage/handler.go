package stage

import (
	"context"

	"mediafactory/internal/artifacts"
	"mediafactory/internal/jobs"
)

// Request is everything an executor sees for one attempt.
type Request struct {
	Job     *jobs.Job
	Attempt int
	// Input is the current artifact of the previous stage, nil for the first stage.
	Input *jobs.Artifact
	// Output is the staging area the executor writes into. It must mark one
	// file as primary before returning nil.
	Output *artifacts.Attempt
}

// Executor describes the contract the worker needs from each stage.
// Executors never touch the job store; their outcome is the returned error,
// tagged with a services marker when it should not be retried.
type Executor interface {
	Stage() jobs.Stage
	Execute(context.Context, Request) error
	HealthCheck(context.Context) Health
}
