package search

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/starford/mnemo/internal/header"
	"github.com/starford/mnemo/internal/index"
	"github.com/starford/mnemo/internal/vault"
)

func newTestEngine(t *testing.T) (*Engine, *vault.Vault) {
	t.Helper()
	v, err := vault.New(t.TempDir(), vault.Options{})
	if err != nil {
		t.Fatalf("vault.New: %v", err)
	}
	db, err := index.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("index.Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return New(db, v), v
}

func TestIndexNoteThenSearchFindsIt(t *testing.T) {
	e, v := newTestEngine(t)
	n, err := v.Create(context.Background(), "note.md", "Index optimization", "FTS5 tuning tips for full text search", vault.CreateOptions{Category: header.Resources, Tags: []string{"index", "fts5"}})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := e.IndexNote(context.Background(), n); err != nil {
		t.Fatalf("IndexNote: %v", err)
	}

	results, metrics, total, err := e.Search(context.Background(), "FTS5", Options{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].UID != n.Header.ID {
		t.Fatalf("Search results = %+v", results)
	}
	if total != 1 || metrics.ReturnedResults != 1 {
		t.Fatalf("metrics/total mismatch: total=%d metrics=%+v", total, metrics)
	}
}

func TestSearchEmptyQueryReturnsNoResults(t *testing.T) {
	e, v := newTestEngine(t)
	n, _ := v.Create(context.Background(), "note.md", "Title", "content", vault.CreateOptions{Category: header.Resources})
	e.IndexNote(context.Background(), n)

	results, _, total, err := e.Search(context.Background(), "", Options{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 0 || total != 0 {
		t.Fatalf("expected no results for empty query, got %+v (total=%d)", results, total)
	}
}

func TestSearchFiltersByCategory(t *testing.T) {
	e, v := newTestEngine(t)
	inScope, _ := v.Create(context.Background(), "a.md", "Widget plan", "widget details", vault.CreateOptions{Category: header.Projects})
	outOfScope, _ := v.Create(context.Background(), "b.md", "Widget notes", "widget details", vault.CreateOptions{Category: header.Resources})
	e.IndexNote(context.Background(), inScope)
	e.IndexNote(context.Background(), outOfScope)

	results, _, _, err := e.Search(context.Background(), "widget", Options{Category: string(header.Projects)})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].UID != inScope.Header.ID {
		t.Fatalf("Search with category filter = %+v", results)
	}
}

func TestRemoveNoteDropsFromSearch(t *testing.T) {
	e, v := newTestEngine(t)
	n, _ := v.Create(context.Background(), "a.md", "Ephemeral", "temporary content", vault.CreateOptions{Category: header.Resources})
	e.IndexNote(context.Background(), n)

	if err := e.RemoveNote(context.Background(), n.Header.ID); err != nil {
		t.Fatalf("RemoveNote: %v", err)
	}
	results, _, _, err := e.Search(context.Background(), "temporary", Options{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected no results after RemoveNote, got %+v", results)
	}
}

func TestBatchIndexRecordsPerNoteFailuresWithoutAborting(t *testing.T) {
	e, v := newTestEngine(t)
	good, _ := v.Create(context.Background(), "good.md", "Good", "content", vault.CreateOptions{Category: header.Resources})
	bad := &vault.Note{Path: good.Path, Header: &header.Header{ID: "conflicting-uid", Title: "Bad"}, Body: "x"}

	result := e.BatchIndex(context.Background(), []*vault.Note{good, bad})
	if result.Successful != 1 {
		t.Fatalf("Successful = %d, want 1", result.Successful)
	}
	if result.Failed != 1 || len(result.Failures) != 1 {
		t.Fatalf("Failed/Failures = %d/%v, want 1 failure", result.Failed, result.Failures)
	}
}

func TestConnectedAndOrphansPassThrough(t *testing.T) {
	e, v := newTestEngine(t)
	a, _ := v.Create(context.Background(), "a.md", "Alpha", "see [[Bravo]]", vault.CreateOptions{Category: header.Resources})
	b, _ := v.Create(context.Background(), "b.md", "Bravo", "no links here", vault.CreateOptions{Category: header.Resources})
	a.Header.Links = []string{b.Header.ID}
	e.IndexNote(context.Background(), a)
	e.IndexNote(context.Background(), b)

	nodes, err := e.Connected(context.Background(), a.Header.ID, 1, 10, index.Outgoing)
	if err != nil {
		t.Fatalf("Connected: %v", err)
	}
	if len(nodes) != 2 {
		t.Fatalf("Connected = %+v, want 2 nodes", nodes)
	}

	orphans, err := e.Orphans(0)
	if err != nil {
		t.Fatalf("Orphans: %v", err)
	}
	if len(orphans) != 1 || orphans[0].UID != a.Header.ID {
		t.Fatalf("Orphans = %+v, want [a]", orphans)
	}
}

func TestOptimizeAndCheckIntegrity(t *testing.T) {
	e, _ := newTestEngine(t)
	if err := e.Optimize(context.Background()); err != nil {
		t.Fatalf("Optimize: %v", err)
	}
	ok, err := e.CheckIntegrity(context.Background())
	if err != nil {
		t.Fatalf("CheckIntegrity: %v", err)
	}
	if !ok {
		t.Fatalf("expected integrity check to pass")
	}
}
