package stage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"mediafactory/internal/jobs"
	"mediafactory/internal/services"
)

// Registry maps stage names to executors.
type Registry struct {
	mu        sync.RWMutex
	executors map[jobs.Stage]Executor
}

// NewRegistry registers the provided executors, failing on duplicates.
func NewRegistry(executors ...Executor) (*Registry, error) {
	r := &Registry{executors: make(map[jobs.Stage]Executor)}
	for _, exec := range executors {
		if err := r.Register(exec); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds an executor. Registering a second executor for a stage is an error.
func (r *Registry) Register(exec Executor) error {
	if exec == nil {
		return fmt.Errorf("%w: nil executor", services.ErrConfiguration)
	}
	stage := exec.Stage()
	if !stage.Valid() {
		return fmt.Errorf("%w: executor for unknown stage %q", services.ErrConfiguration, stage)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.executors[stage]; exists {
		return fmt.Errorf("%w: executor for stage %s already registered", services.ErrConfiguration, stage)
	}
	r.executors[stage] = exec
	return nil
}

// Lookup returns the executor for stage.
func (r *Registry) Lookup(stage jobs.Stage) (Executor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	exec, ok := r.executors[stage]
	return exec, ok
}

// Require fails when any stage of the pipeline up to final has no executor.
func (r *Registry) Require(final jobs.Stage) error {
	stages := jobs.StagesThrough(final)
	if len(stages) == 0 {
		return fmt.Errorf("%w: unknown final stage %q", services.ErrConfiguration, final)
	}
	var missing []string
	for _, stage := range stages {
		if _, ok := r.Lookup(stage); !ok {
			missing = append(missing, string(stage))
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: no executor registered for %v", services.ErrConfiguration, missing)
	}
	return nil
}

// Stages returns the registered stages in pipeline order.
func (r *Registry) Stages() []jobs.Stage {
	r.mu.RLock()
	defer r.mu.RUnlock()
	stages := make([]jobs.Stage, 0, len(r.executors))
	for stage := range r.executors {
		stages = append(stages, stage)
	}
	sort.Slice(stages, func(i, j int) bool { return stages[i].Before(stages[j]) })
	return stages
}

// Health runs every executor's health check in pipeline order.
func (r *Registry) Health(ctx context.Context) []Health {
	stages := r.Stages()
	out := make([]Health, 0, len(stages))
	for _, stage := range stages {
		exec, _ := r.Lookup(stage)
		out = append(out, exec.HealthCheck(ctx))
	}
	return out
}
