// Package jobs is the durable record of production jobs.
//
// A job walks the fixed stage order (script, voice, assets, compose,
// thumbnail, publish) one stage at a time. Advance is the only way forward and
// uses the stored current stage as a compare-and-swap guard, so a duplicate
// or late worker gets services.ErrConflict instead of re-applying a
// transition. Once a job is succeeded, failed or cancelled it is immutable;
// the one exception is Reopen, the operator retry of a failed job.
//
// The package also keeps artifact records (write-once per job, stage and
// attempt) and the publish dedup ledger.
package jobs
