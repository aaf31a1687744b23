// Package db opens and migrates the embedded SQLite database that backs the
// provider cache, the managed-records store, and hostname overrides. There
// is no ORM here: the schema is a handful of flat tables and every query is
// hand-written SQL against database/sql.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite"
)

// schema creates every table used by the reconciliation engine if it does
// not already exist. Migrations, if ever needed, are additive ALTER
// statements appended here; there is no separate migration runner.
const schema = `
CREATE TABLE IF NOT EXISTS provider_cache (
	provider_id   TEXT NOT NULL,
	external_id   TEXT NOT NULL,
	hostname      TEXT NOT NULL,
	type          TEXT NOT NULL,
	target        TEXT NOT NULL,
	ttl           INTEGER NOT NULL,
	proxied       INTEGER,
	fingerprint   TEXT NOT NULL,
	raw_comment   TEXT NOT NULL DEFAULT '',
	refreshed_at  INTEGER NOT NULL,
	PRIMARY KEY (provider_id, external_id)
);

CREATE INDEX IF NOT EXISTS idx_provider_cache_lookup
	ON provider_cache (provider_id, type, hostname);

CREATE TABLE IF NOT EXISTS managed_records (
	provider_id   TEXT NOT NULL,
	hostname      TEXT NOT NULL,
	type          TEXT NOT NULL,
	external_id   TEXT NOT NULL DEFAULT '',
	fingerprint   TEXT NOT NULL,
	source        TEXT NOT NULL DEFAULT '',
	orphaned_at   INTEGER,
	created_at    INTEGER NOT NULL,
	updated_at    INTEGER NOT NULL,
	PRIMARY KEY (provider_id, hostname, type)
);

CREATE INDEX IF NOT EXISTS idx_managed_records_orphaned
	ON managed_records (orphaned_at);

CREATE TABLE IF NOT EXISTS hostname_overrides (
	hostname      TEXT NOT NULL,
	provider_id   TEXT NOT NULL DEFAULT '',
	record_type   TEXT NOT NULL DEFAULT '',
	target        TEXT NOT NULL DEFAULT '',
	ttl           INTEGER,
	proxied       INTEGER,
	enabled       INTEGER NOT NULL DEFAULT 1,
	reason        TEXT NOT NULL DEFAULT '',
	created_at    INTEGER NOT NULL,
	updated_at    INTEGER NOT NULL,
	PRIMARY KEY (hostname)
);
`

// DB wraps a *sql.DB opened against the SQLite driver with the schema
// guaranteed to be present.
type DB struct {
	conn   *sql.DB
	logger *slog.Logger
}

// Open opens (creating if necessary) the SQLite database at path and
// ensures its schema is current. path may be ":memory:" for tests.
func Open(ctx context.Context, path string, logger *slog.Logger) (*DB, error) {
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database %s: %w", path, err)
	}
	// The pure-Go driver serializes writes internally; a single connection
	// avoids SQLITE_BUSY churn under the reconciler's single-writer model.
	conn.SetMaxOpenConns(1)

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("connecting to sqlite database %s: %w", path, err)
	}

	if _, err := conn.ExecContext(ctx, schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("applying schema to %s: %w", path, err)
	}

	logger.Info("opened database", slog.String("path", path))

	return &DB{conn: conn, logger: logger}, nil
}

// Conn returns the underlying *sql.DB for packages that run their own
// queries against it (internal/cache, internal/store).
func (d *DB) Conn() *sql.DB {
	return d.conn
}

// Close closes the underlying connection.
func (d *DB) Close() error {
	return d.conn.Close()
}
