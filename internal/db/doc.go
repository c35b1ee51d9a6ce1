// Package db opens the relational store shared by the job record store and
// the work queue.
//
// Two backends are supported: an embedded SQLite file (modernc.org/sqlite,
// the default) and PostgreSQL through a pgx pool for deployments where
// workers run on several hosts. Both run the same embedded schema, and
// callers write statements once with "?" placeholders; the Postgres backend
// rebinds them. Timestamps are stored as unix milliseconds so comparisons in
// SQL behave identically on both.
package db
