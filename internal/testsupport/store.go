package testsupport

import (
	"context"
	"testing"

	"mediafactory/internal/config"
	"mediafactory/internal/db"
	"mediafactory/internal/jobs"
	"mediafactory/internal/queue"
)

// MustOpenDB opens the SQLite database named by cfg and registers cleanup.
func MustOpenDB(t testing.TB, cfg *config.Config) db.DB {
	t.Helper()
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	handle, err := db.OpenSQLite(context.Background(), cfg.SQLitePath())
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		_ = handle.Close()
	})
	return handle
}

// MustOpenStores opens the job and queue stores over one shared database.
func MustOpenStores(t testing.TB, cfg *config.Config, opts ...queue.Option) (*jobs.Store, *queue.Store) {
	t.Helper()
	handle := MustOpenDB(t, cfg)
	return jobs.NewStore(handle), queue.NewStore(handle, opts...)
}
