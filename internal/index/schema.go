// Package index implements the database manager (C7), full-text index
// (C8), and link graph (C9): a SQLite-backed store with schema bootstrap,
// pragmas, transactions, integrity checks, and vacuum/optimize.
package index

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/starford/mnemo/internal/apperr"
)

const schemaVersion = 1

const coreSchemaSQL = `
CREATE TABLE IF NOT EXISTS notes (
	uid          TEXT PRIMARY KEY,
	title        TEXT NOT NULL DEFAULT '',
	category     TEXT NOT NULL DEFAULT '',
	file_path    TEXT NOT NULL UNIQUE,
	project      TEXT,
	tags_json    TEXT NOT NULL DEFAULT '[]',
	content_hash TEXT NOT NULL DEFAULT '',
	created_at   DATETIME NOT NULL,
	updated_at   DATETIME NOT NULL,
	indexed_at   DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS links (
	source_uid   TEXT NOT NULL,
	target_uid   TEXT NOT NULL,
	kind         TEXT NOT NULL DEFAULT 'internal',
	strength     INTEGER NOT NULL DEFAULT 1,
	created_at   DATETIME NOT NULL,
	last_seen_at DATETIME NOT NULL,
	PRIMARY KEY (source_uid, target_uid, kind)
);

CREATE INDEX IF NOT EXISTS idx_links_source ON links(source_uid);
CREATE INDEX IF NOT EXISTS idx_links_target ON links(target_uid);

CREATE TABLE IF NOT EXISTS index_metadata (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// DB wraps a *sql.DB with mnemo's schema, pragmas, and index operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database at dsn, applies pragmas and
// the schema, and records schema_version.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on&_cache_size=-20000")
	if err != nil {
		return nil, apperr.Wrap(apperr.DatabaseError, "open db", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, apperr.Wrap(apperr.DatabaseError, "ping db", err)
	}
	if _, err := conn.Exec(coreSchemaSQL); err != nil {
		conn.Close()
		return nil, apperr.Wrap(apperr.DatabaseError, "apply core schema", err)
	}
	if err := initFTS(conn); err != nil {
		conn.Close()
		return nil, apperr.Wrap(apperr.DatabaseError, "apply fts schema", err)
	}
	db := &DB{conn: conn}
	if err := db.ensureSchemaVersion(); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

func (db *DB) ensureSchemaVersion() error {
	_, err := db.conn.Exec(`
		INSERT INTO index_metadata (key, value) VALUES ('schema_version', ?)
		ON CONFLICT(key) DO NOTHING
	`, fmt.Sprintf("%d", schemaVersion))
	if err != nil {
		return apperr.Wrap(apperr.DatabaseError, "record schema version", err)
	}
	return nil
}

// Conn exposes the underlying connection for read-only cross-package
// queries (the FTS search helpers in this package take a *sql.DB rather
// than a *DB so they stay usable from both build-tag variants).
func (db *DB) Conn() *sql.DB { return db.conn }

// Close closes the underlying connection.
func (db *DB) Close() error {
	if err := db.conn.Close(); err != nil {
		return apperr.Wrap(apperr.DatabaseError, "close db", err)
	}
	return nil
}

// Transaction runs fn inside a SQL transaction, rolling back on any error
// fn returns or panics with, and committing otherwise. The transaction is
// bound to ctx, so a cancelled or timed-out caller aborts the in-flight
// statements instead of letting them run to completion unobserved.
func (db *DB) Transaction(ctx context.Context, fn func(*sql.Tx) error) (err error) {
	tx, txErr := db.conn.BeginTx(ctx, nil)
	if txErr != nil {
		return apperr.Wrap(apperr.DatabaseError, "begin tx", txErr)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err = fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err = tx.Commit(); err != nil {
		return apperr.Wrap(apperr.DatabaseError, "commit tx", err)
	}
	return nil
}

// Optimize runs VACUUM and ANALYZE and records last_vacuum.
func (db *DB) Optimize(ctx context.Context) error {
	if _, err := db.conn.ExecContext(ctx, `VACUUM`); err != nil {
		return apperr.Wrap(apperr.DatabaseError, "vacuum", err)
	}
	if _, err := db.conn.ExecContext(ctx, `ANALYZE`); err != nil {
		return apperr.Wrap(apperr.DatabaseError, "analyze", err)
	}
	optimizeFTS(ctx, db.conn)
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO index_metadata (key, value) VALUES ('last_vacuum', ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return apperr.Wrap(apperr.DatabaseError, "record last_vacuum", err)
	}
	return nil
}

// CheckIntegrity runs SQLite's integrity check.
func (db *DB) CheckIntegrity(ctx context.Context) (bool, error) {
	var result string
	err := db.conn.QueryRowContext(ctx, `PRAGMA integrity_check`).Scan(&result)
	if err != nil {
		return false, apperr.Wrap(apperr.IntegrityError, "integrity check", err)
	}
	return result == "ok", nil
}

// Stats reports note count, link count, and last-vacuum timestamp.
type Stats struct {
	NoteCount  int
	LinkCount  int
	LastVacuum string
}

func (db *DB) Stats() (Stats, error) {
	var s Stats
	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM notes`).Scan(&s.NoteCount); err != nil {
		return s, apperr.Wrap(apperr.DatabaseError, "count notes", err)
	}
	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM links`).Scan(&s.LinkCount); err != nil {
		return s, apperr.Wrap(apperr.DatabaseError, "count links", err)
	}
	_ = db.conn.QueryRow(`SELECT value FROM index_metadata WHERE key = 'last_vacuum'`).Scan(&s.LastVacuum)
	return s, nil
}
