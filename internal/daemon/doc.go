// Package daemon runs the long-lived mediafactory process.
//
// It ties the worker pool and the orchestrator service into one lifecycle
// guarded by a flock on the data directory, and serves the JSON API, the
// health probe and the HTML dashboard. Stage logic lives in the workflow and
// stage packages; this package only starts, stops and exposes them.
package daemon
