package index

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "mnemo.db")
	db, err := Open(dsn)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpenCreatesSchema(t *testing.T) {
	db := openTestDB(t)
	var name string
	err := db.conn.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name='notes'`).Scan(&name)
	if err != nil {
		t.Fatalf("notes table missing: %v", err)
	}
}

func TestEnsureSchemaVersionRecorded(t *testing.T) {
	db := openTestDB(t)
	var value string
	err := db.conn.QueryRow(`SELECT value FROM index_metadata WHERE key = 'schema_version'`).Scan(&value)
	if err != nil {
		t.Fatalf("schema_version missing: %v", err)
	}
	if value != "1" {
		t.Fatalf("schema_version = %q, want 1", value)
	}
}

func TestTransactionRollsBackOnError(t *testing.T) {
	db := openTestDB(t)
	now := time.Now()
	boom := errors.New("boom")

	err := db.Transaction(context.Background(), func(tx *sql.Tx) error {
		if err := UpsertNoteTx(tx, NoteRow{UID: "u1", Title: "T", FilePath: "a.md", CreatedAt: now, UpdatedAt: now, IndexedAt: now}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Transaction err = %v, want boom", err)
	}

	uids, err := db.AllUIDs()
	if err != nil {
		t.Fatalf("AllUIDs: %v", err)
	}
	if len(uids) != 0 {
		t.Fatalf("expected rollback, got uids = %v", uids)
	}
}

func TestCheckIntegrityReturnsTrue(t *testing.T) {
	db := openTestDB(t)
	ok, err := db.CheckIntegrity(context.Background())
	if err != nil {
		t.Fatalf("CheckIntegrity: %v", err)
	}
	if !ok {
		t.Fatalf("expected integrity check to pass on fresh db")
	}
}

func TestStatsOnEmptyDB(t *testing.T) {
	db := openTestDB(t)
	s, err := db.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if s.NoteCount != 0 || s.LinkCount != 0 {
		t.Fatalf("Stats = %+v, want zero counts", s)
	}
}
