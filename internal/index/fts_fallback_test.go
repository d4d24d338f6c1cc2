//go:build !sqlite_fts5

package index

import (
	"context"
	"database/sql"
	"strings"
	"testing"
)

func TestFTSUpsertAndSearch(t *testing.T) {
	db := openTestDB(t)
	err := db.Transaction(context.Background(), func(tx *sql.Tx) error {
		return FTSUpsertTx(tx, "u1", "Index optimization", "fts5 tuning tips for search", "index,fts5", "Resources", "")
	})
	if err != nil {
		t.Fatalf("FTSUpsertTx: %v", err)
	}

	cands, err := FTSSearch(context.Background(), db.conn, "fts5", 20, 0, 150, "mark")
	if err != nil {
		t.Fatalf("ftsSearch: %v", err)
	}
	if len(cands) != 1 || cands[0].UID != "u1" {
		t.Fatalf("ftsSearch = %+v", cands)
	}
	if !strings.Contains(cands[0].Snippet, "<mark>fts5</mark>") {
		t.Fatalf("snippet = %q, want highlighted match", cands[0].Snippet)
	}
}

func TestFTSUpsertIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	upsert := func(content string) error {
		return db.Transaction(context.Background(), func(tx *sql.Tx) error {
			return FTSUpsertTx(tx, "u1", "Title", content, "", "", "")
		})
	}
	if err := upsert("first version"); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if err := upsert("second version"); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	var count int
	db.conn.QueryRow(`SELECT COUNT(*) FROM fts_fallback WHERE uid = 'u1'`).Scan(&count)
	if count != 1 {
		t.Fatalf("row count = %d, want 1 (re-insert replaces)", count)
	}
}

func TestFTSSearchEmptyQueryReturnsNoRows(t *testing.T) {
	db := openTestDB(t)
	db.Transaction(context.Background(), func(tx *sql.Tx) error {
		return FTSUpsertTx(tx, "u1", "Title", "some content", "", "", "")
	})
	cands, err := FTSSearch(context.Background(), db.conn, "", 20, 0, 150, "mark")
	if err != nil {
		t.Fatalf("ftsSearch: %v", err)
	}
	if len(cands) != 0 {
		t.Fatalf("cands = %+v, want empty for blank query", cands)
	}
}

func TestFTSDeleteTxRemovesRow(t *testing.T) {
	db := openTestDB(t)
	db.Transaction(context.Background(), func(tx *sql.Tx) error {
		return FTSUpsertTx(tx, "u1", "Title", "content", "", "", "")
	})
	if err := db.Transaction(context.Background(), func(tx *sql.Tx) error { return FTSDeleteTx(tx, "u1") }); err != nil {
		t.Fatalf("ftsDeleteTx: %v", err)
	}
	cands, _ := FTSSearch(context.Background(), db.conn, "content", 20, 0, 150, "mark")
	if len(cands) != 0 {
		t.Fatalf("cands after delete = %+v", cands)
	}
}
