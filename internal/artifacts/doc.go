// Package artifacts manages the on-disk layout of stage outputs.
//
// Every stage attempt writes into <media_dir>/<job_id>/<stage>/attempt-<n>.partial
// and is renamed to attempt-<n> once the executor succeeds. Committed attempt
// directories are never rewritten; a failed attempt keeps its .partial
// directory (with an error.txt) for inspection. Directory creation and the
// commit rename happen under a per-job file lock so several worker processes
// can share one media directory.
package artifacts
