package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"mediafactory/internal/config"
)

// Dialect identifies the SQL flavour behind a DB.
type Dialect int

const (
	SQLite Dialect = iota
	Postgres
)

func (d Dialect) String() string {
	if d == Postgres {
		return "postgres"
	}
	return "sqlite"
}

// ErrNoRows is returned by Row.Scan when the query matched nothing, regardless of backend.
var ErrNoRows = errors.New("no rows in result set")

// Row is a single-row query result.
type Row interface {
	Scan(dest ...any) error
}

// Rows is a multi-row query result. Callers must Close it.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close()
}

// Querier runs statements written with "?" placeholders against either backend.
type Querier interface {
	Exec(ctx context.Context, query string, args ...any) (int64, error)
	QueryRow(ctx context.Context, query string, args ...any) Row
	Query(ctx context.Context, query string, args ...any) (Rows, error)
}

// DB is the relational handle shared by the job store and the queue.
type DB interface {
	Querier
	// InTx runs fn inside a single transaction. fn must only use the Querier it is given.
	InTx(ctx context.Context, fn func(Querier) error) error
	Dialect() Dialect
	Close() error
}

// Open connects to the backend selected in cfg and ensures the schema exists.
func Open(ctx context.Context, cfg *config.Config) (DB, error) {
	if cfg == nil {
		return nil, errors.New("db: config is required")
	}
	switch cfg.Database.Driver {
	case "postgres":
		return OpenPostgres(ctx, cfg.Database.DSN, cfg.Database.MaxConns)
	case "sqlite", "":
		if err := cfg.EnsureDirectories(); err != nil {
			return nil, fmt.Errorf("ensure directories: %w", err)
		}
		return OpenSQLite(ctx, cfg.SQLitePath())
	default:
		return nil, fmt.Errorf("db: unsupported driver %q", cfg.Database.Driver)
	}
}

// Now returns the storage representation of t (unix milliseconds).
func Now(t time.Time) int64 {
	return t.UnixMilli()
}

// Time converts a stored unix millisecond value back to UTC. Zero stays zero.
func Time(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

// Placeholders returns n comma separated "?" markers.
func Placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// rebind rewrites "?" placeholders into "$1", "$2", ... for Postgres.
func rebind(query string) string {
	if !strings.Contains(query, "?") {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	inQuote := false
	for _, r := range query {
		switch {
		case r == '\'':
			inQuote = !inQuote
			b.WriteRune(r)
		case r == '?' && !inQuote:
			n++
			fmt.Fprintf(&b, "$%d", n)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
