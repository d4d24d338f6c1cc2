package index

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/starford/mnemo/internal/apperr"
)

func TestUpsertNoteTxInsertsAndUpdates(t *testing.T) {
	db := openTestDB(t)
	now := time.Now().UTC().Truncate(time.Second)
	row := NoteRow{
		UID: "u1", Title: "First", Category: "Resources", FilePath: "a.md",
		Tags: []string{"go", "index"}, ContentHash: "h1",
		CreatedAt: now, UpdatedAt: now, IndexedAt: now,
	}
	if err := db.Transaction(context.Background(), func(tx *sql.Tx) error { return UpsertNoteTx(tx, row) }); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := db.GetNote("u1")
	if err != nil {
		t.Fatalf("GetNote: %v", err)
	}
	if got.Title != "First" || len(got.Tags) != 2 {
		t.Fatalf("GetNote = %+v", got)
	}

	row.Title = "Renamed"
	row.ContentHash = "h2"
	if err := db.Transaction(context.Background(), func(tx *sql.Tx) error { return UpsertNoteTx(tx, row) }); err != nil {
		t.Fatalf("re-upsert: %v", err)
	}
	got, err = db.GetNote("u1")
	if err != nil {
		t.Fatalf("GetNote after update: %v", err)
	}
	if got.Title != "Renamed" || got.ContentHash != "h2" {
		t.Fatalf("GetNote after update = %+v", got)
	}
}

func TestGetNoteNotFound(t *testing.T) {
	db := openTestDB(t)
	_, err := db.GetNote("missing")
	if err == nil {
		t.Fatalf("expected error for missing note")
	}
	var ae *apperr.Error
	if e, ok := err.(*apperr.Error); ok {
		ae = e
	}
	if ae == nil || ae.Kind != apperr.NotFound {
		t.Fatalf("err = %v, want NotFound", err)
	}
}

func TestDeleteNoteTx(t *testing.T) {
	db := openTestDB(t)
	now := time.Now().UTC()
	row := NoteRow{UID: "u1", Title: "T", FilePath: "a.md", CreatedAt: now, UpdatedAt: now, IndexedAt: now}
	db.Transaction(context.Background(), func(tx *sql.Tx) error { return UpsertNoteTx(tx, row) })

	if err := db.Transaction(context.Background(), func(tx *sql.Tx) error { return DeleteNoteTx(tx, "u1") }); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := db.GetNote("u1"); err == nil {
		t.Fatalf("expected note gone after delete")
	}
}

func TestAllUIDsAndContentHashes(t *testing.T) {
	db := openTestDB(t)
	now := time.Now().UTC()
	for _, uid := range []string{"u1", "u2"} {
		row := NoteRow{UID: uid, Title: uid, FilePath: uid + ".md", ContentHash: "h-" + uid, CreatedAt: now, UpdatedAt: now, IndexedAt: now}
		if err := db.Transaction(context.Background(), func(tx *sql.Tx) error { return UpsertNoteTx(tx, row) }); err != nil {
			t.Fatalf("upsert %s: %v", uid, err)
		}
	}

	uids, err := db.AllUIDs()
	if err != nil {
		t.Fatalf("AllUIDs: %v", err)
	}
	if len(uids) != 2 {
		t.Fatalf("AllUIDs = %v, want 2 entries", uids)
	}

	hashes, err := db.AllContentHashes()
	if err != nil {
		t.Fatalf("AllContentHashes: %v", err)
	}
	if hashes["u1"] != "h-u1" || hashes["u2"] != "h-u2" {
		t.Fatalf("AllContentHashes = %v", hashes)
	}
}
