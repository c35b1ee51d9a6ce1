// Package api is the orchestrator surface shared by the CLI and the HTTP
// daemon. It accepts production requests, reports job state and performs the
// operator actions (cancel, retry) on top of the job store and the queue.
//
// # Key Types
//
// Service: Submit, Status, Cancel, Retry, List and Stats. Submit validates
// the request, applies configured defaults, creates the job and enqueues its
// first stage, then returns without waiting for any stage to run.
//
// Job, Artifact, WorkflowStatus, DaemonStatus: transport DTOs rendered by
// the dashboard, the JSON API and the CLI.
//
// # Converters
//
// FromJob: jobs.Job -> Job with artifacts in pipeline order.
//
// FromStatusSummary: workflow.StatusSummary -> WorkflowStatus.
//
// # Design Notes
//
// DTOs use camelCase JSON tags. Timestamps use RFC3339 with milliseconds in
// UTC. Errors keep the services markers so callers can map them onto exit
// codes or HTTP statuses with errors.Is.
package api
