package index

import (
	"context"
	"database/sql"
	"math"
	"testing"
	"time"
)

func seedNote(t *testing.T, db *DB, uid string) {
	t.Helper()
	now := time.Now().UTC()
	row := NoteRow{UID: uid, Title: uid, FilePath: uid + ".md", CreatedAt: now, UpdatedAt: now, IndexedAt: now}
	if err := db.Transaction(context.Background(), func(tx *sql.Tx) error { return UpsertNoteTx(tx, row) }); err != nil {
		t.Fatalf("seed note %s: %v", uid, err)
	}
}

func TestUpdateLinksTxReplacesOutbound(t *testing.T) {
	db := openTestDB(t)
	seedNote(t, db, "a")
	seedNote(t, db, "b")
	seedNote(t, db, "c")

	now := time.Now()
	err := db.Transaction(context.Background(), func(tx *sql.Tx) error {
		return UpdateLinksTx(tx, "a", map[string]int{"b": 3, "a": 5}, now)
	})
	if err != nil {
		t.Fatalf("UpdateLinksTx: %v", err)
	}

	out, err := db.Outbound(context.Background(), "a", 0)
	if err != nil {
		t.Fatalf("Outbound: %v", err)
	}
	if len(out) != 1 || out[0].TargetUID != "b" {
		t.Fatalf("Outbound = %+v, want [b] (self-link must be excluded)", out)
	}

	err = db.Transaction(context.Background(), func(tx *sql.Tx) error {
		return UpdateLinksTx(tx, "a", map[string]int{"c": 1}, now)
	})
	if err != nil {
		t.Fatalf("UpdateLinksTx replace: %v", err)
	}
	out, _ = db.Outbound(context.Background(), "a", 0)
	if len(out) != 1 || out[0].TargetUID != "c" {
		t.Fatalf("Outbound after replace = %+v, want [c]", out)
	}
}

func TestBacklinksOrderedByStrength(t *testing.T) {
	db := openTestDB(t)
	seedNote(t, db, "target")
	seedNote(t, db, "weak")
	seedNote(t, db, "strong")

	now := time.Now()
	db.Transaction(context.Background(), func(tx *sql.Tx) error { return UpdateLinksTx(tx, "weak", map[string]int{"target": 1}, now) })
	db.Transaction(context.Background(), func(tx *sql.Tx) error { return UpdateLinksTx(tx, "strong", map[string]int{"target": 9}, now) })

	rows, err := db.Backlinks(context.Background(), "target", 0)
	if err != nil {
		t.Fatalf("Backlinks: %v", err)
	}
	if len(rows) != 2 || rows[0].SourceUID != "strong" {
		t.Fatalf("Backlinks = %+v, want strong first", rows)
	}
}

func TestConnectedDepthZeroReturnsOnlyStart(t *testing.T) {
	db := openTestDB(t)
	nodes, err := db.Connected(context.Background(), "solo", 0, 10, Both)
	if err != nil {
		t.Fatalf("Connected: %v", err)
	}
	if len(nodes) != 1 || nodes[0].UID != "solo" || nodes[0].Score != 1.0 {
		t.Fatalf("Connected(depth=0) = %+v", nodes)
	}
}

func TestConnectedScoresDecayWithDepth(t *testing.T) {
	db := openTestDB(t)
	for _, uid := range []string{"a", "b", "c"} {
		seedNote(t, db, uid)
	}
	now := time.Now()
	db.Transaction(context.Background(), func(tx *sql.Tx) error { return UpdateLinksTx(tx, "a", map[string]int{"b": 1}, now) })
	db.Transaction(context.Background(), func(tx *sql.Tx) error { return UpdateLinksTx(tx, "b", map[string]int{"c": 1}, now) })

	nodes, err := db.Connected(context.Background(), "a", 2, 10, Outgoing)
	if err != nil {
		t.Fatalf("Connected: %v", err)
	}
	byUID := map[string]ConnectedNode{}
	for _, n := range nodes {
		byUID[n.UID] = n
	}
	if byUID["a"].Score != 1.0 {
		t.Fatalf("a score = %v, want 1.0", byUID["a"].Score)
	}
	if byUID["b"].Score != 0.7 {
		t.Fatalf("b score = %v, want 0.7", byUID["b"].Score)
	}
	if want := 0.7 * 0.7 * 0.7; math.Abs(byUID["c"].Score-want) > 1e-9 {
		t.Fatalf("c score = %v, want %v", byUID["c"].Score, want)
	}
}

func TestOrphansExcludesLinkedNotes(t *testing.T) {
	db := openTestDB(t)
	seedNote(t, db, "linked")
	seedNote(t, db, "lonely")
	now := time.Now()
	db.Transaction(context.Background(), func(tx *sql.Tx) error { return UpdateLinksTx(tx, "lonely", map[string]int{"linked": 1}, now) })

	orphans, err := db.Orphans(0)
	if err != nil {
		t.Fatalf("Orphans: %v", err)
	}
	if len(orphans) != 1 || orphans[0].UID != "lonely" {
		t.Fatalf("Orphans = %+v, want [lonely]", orphans)
	}
}

func TestRemoveLinksTxDeletesBothDirections(t *testing.T) {
	db := openTestDB(t)
	seedNote(t, db, "a")
	seedNote(t, db, "b")
	now := time.Now()
	db.Transaction(context.Background(), func(tx *sql.Tx) error { return UpdateLinksTx(tx, "a", map[string]int{"b": 1}, now) })

	err := db.Transaction(context.Background(), func(tx *sql.Tx) error { return RemoveLinksTx(tx, "b") })
	if err != nil {
		t.Fatalf("RemoveLinksTx: %v", err)
	}
	out, _ := db.Outbound(context.Background(), "a", 0)
	if len(out) != 0 {
		t.Fatalf("Outbound after RemoveLinksTx = %+v, want empty", out)
	}
}
