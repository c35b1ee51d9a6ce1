// Package notifications delivers job events via pluggable notifiers.
//
// The default implementation publishes to ntfy using the topic configured in
// config.toml and degrades to a no-op when notifications are disabled. The
// job_succeeded and job_failed switches suppress the matching events without
// touching the callers.
package notifications
