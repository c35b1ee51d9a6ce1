package db

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestOpenSQLiteCreatesSchemaAndReopens(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "mediafactory.db")

	first, err := OpenSQLite(ctx, path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	if first.Dialect() != SQLite {
		t.Fatalf("unexpected dialect %v", first.Dialect())
	}
	if _, err := first.Exec(ctx, "INSERT INTO work_items (id, job_id, stage, attempt, enqueued_at, visible_at) VALUES (?, ?, ?, ?, ?, ?)",
		"w1", "j1", "script", 1, 1, 1); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	second, err := OpenSQLite(ctx, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer second.Close()

	var count int
	if err := second.QueryRow(ctx, "SELECT COUNT(1) FROM work_items").Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected row to survive reopen, got %d", count)
	}
}

func TestOpenSQLiteDetectsSchemaMismatch(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "mediafactory.db")

	store, err := OpenSQLite(ctx, path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	if _, err := store.Exec(ctx, "UPDATE schema_version SET version = 99"); err != nil {
		t.Fatalf("bump version: %v", err)
	}
	_ = store.Close()

	if _, err := OpenSQLite(ctx, path); !errors.Is(err, ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}

func TestQueryRowNoRowsIsNormalized(t *testing.T) {
	ctx := context.Background()
	store, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "mediafactory.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer store.Close()

	var id string
	err = store.QueryRow(ctx, "SELECT id FROM jobs WHERE id = ?", "missing").Scan(&id)
	if !errors.Is(err, ErrNoRows) {
		t.Fatalf("expected ErrNoRows, got %v", err)
	}
}

func TestInTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	store, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "mediafactory.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer store.Close()

	boom := errors.New("boom")
	err = store.InTx(ctx, func(q Querier) error {
		if _, err := q.Exec(ctx, "INSERT INTO work_items (id, job_id, stage, attempt, enqueued_at, visible_at) VALUES (?, ?, ?, ?, ?, ?)",
			"w1", "j1", "script", 1, 1, 1); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	var count int
	if err := store.QueryRow(ctx, "SELECT COUNT(1) FROM work_items").Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected rollback, found %d rows", count)
	}
}

func TestRebind(t *testing.T) {
	got := rebind("UPDATE t SET a = ?, b = '?' WHERE id = ? AND c IN (?, ?)")
	want := "UPDATE t SET a = $1, b = '?' WHERE id = $2 AND c IN ($3, $4)"
	if got != want {
		t.Fatalf("rebind mismatch:\n got %q\nwant %q", got, want)
	}
	if Placeholders(3) != "?, ?, ?" {
		t.Fatalf("unexpected placeholders %q", Placeholders(3))
	}
	if Placeholders(0) != "" {
		t.Fatal("expected empty placeholders for zero")
	}
}

func TestTimeRoundTrip(t *testing.T) {
	now := time.Date(2026, 3, 4, 5, 6, 7, 8_000_000, time.UTC)
	if got := Time(Now(now)); !got.Equal(now) {
		t.Fatalf("expected %s, got %s", now, got)
	}
	if !Time(0).IsZero() {
		t.Fatal("expected zero time for 0")
	}
}

func TestOpenPostgres(t *testing.T) {
	dsn := os.Getenv("MEDIAFACTORY_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("MEDIAFACTORY_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	store, err := OpenPostgres(ctx, dsn, 4)
	if err != nil {
		t.Fatalf("OpenPostgres: %v", err)
	}
	defer store.Close()
	if store.Dialect() != Postgres {
		t.Fatalf("unexpected dialect %v", store.Dialect())
	}
	var version int
	if err := store.QueryRow(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		t.Fatalf("read version: %v", err)
	}
	if version != schemaVersion {
		t.Fatalf("unexpected version %d", version)
	}
}
