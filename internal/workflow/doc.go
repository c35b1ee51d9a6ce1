// Package workflow moves jobs through the production pipeline.
//
// A Worker leases one work item at a time from the shared queue, loads the
// job, runs the registered stage executor under a per-stage timeout while a
// heartbeat keeps the lease alive, and then commits the result: the artifact
// attempt is renamed into place, the job store advances the job with a
// compare-and-swap on the current stage, and the successor item is enqueued.
// Transient failures are nacked with exponential backoff until the retry
// ceiling; permanent failures mark the job failed with the stage and reason.
// Items are acked only after the matching store mutation committed, so a
// crash at any point leads to redelivery rather than loss.
//
// Pool runs several workers in one process and reports status for the
// daemon's API. Multiple processes may run pools against the same database.
package workflow
