package db

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current schema version. Bump this when the schema changes.
const schemaVersion = 1

// schemaLockKey serializes schema creation across processes sharing a Postgres database.
const schemaLockKey int64 = 0x6d66_0001

// ErrSchemaMismatch indicates the database schema version doesn't match the expected version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

func ensureSchema(ctx context.Context, d DB) error {
	return d.InTx(ctx, func(q Querier) error {
		if d.Dialect() == Postgres {
			if _, err := q.Exec(ctx, "SELECT pg_advisory_xact_lock(?)", schemaLockKey); err != nil {
				return fmt.Errorf("lock schema: %w", err)
			}
		}
		if _, err := q.Exec(ctx, "CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)"); err != nil {
			return fmt.Errorf("create schema_version: %w", err)
		}

		var version int
		err := q.QueryRow(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version)
		switch {
		case errors.Is(err, ErrNoRows):
			if _, err := q.Exec(ctx, schemaSQL); err != nil {
				return fmt.Errorf("create schema: %w", err)
			}
			if _, err := q.Exec(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
				return fmt.Errorf("record schema version: %w", err)
			}
			return nil
		case err != nil:
			return fmt.Errorf("read schema version: %w", err)
		case version != schemaVersion:
			return fmt.Errorf("%w: database has version %d, expected %d (delete the database or migrate it)",
				ErrSchemaMismatch, version, schemaVersion)
		default:
			return nil
		}
	})
}
