// Package logging assembles structured slog loggers and formatting helpers used
// across mediafactory.
//
// It owns the console and JSON handlers, level and output plumbing, and
// context-aware helpers so worker and stage code can tag every line with the
// job ID, stage, attempt and worker name without threading them by hand. A
// no-op logger is provided for tests and wiring code that cannot fail.
package logging
