package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/starford/mnemo/internal/vault"
)

func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func newTestEnv(t *testing.T) (string, *vault.Vault) {
	t.Helper()
	root := t.TempDir()
	v, err := vault.New(root, vault.Options{})
	if err != nil {
		t.Fatalf("vault.New: %v", err)
	}
	return root, v
}

func TestWatcherEmitsAddedForNewFile(t *testing.T) {
	root, v := newTestEnv(t)
	w := New(root, v, Options{DebounceInterval: 30 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var events []Event
	go w.Run(ctx, func(ev Event) {
		mu.Lock()
		events = append(events, ev)
		mu.Unlock()
	})

	time.Sleep(100 * time.Millisecond)
	_ = os.WriteFile(filepath.Join(root, "new.md"), []byte("---\ntitle: New\ncategory: Resources\n---\n\nbody"), 0o644)

	eventually(t, 3*time.Second, 50*time.Millisecond, func() bool {
		mu.Lock()
		defer mu.Unlock()
		for _, ev := range events {
			if ev.Kind == Added && ev.Note != nil {
				return true
			}
		}
		return false
	}, "expected an Added event for new.md")
}

func TestWatcherDebounceCollapsesRepeatedWrites(t *testing.T) {
	root, v := newTestEnv(t)
	w := New(root, v, Options{DebounceInterval: 150 * time.Millisecond})

	path := filepath.Join(root, "note.md")
	_ = os.WriteFile(path, []byte("---\ntitle: N\ncategory: Resources\n---\n\nv1"), 0o644)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	count := 0
	go w.Run(ctx, func(ev Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	time.Sleep(100 * time.Millisecond)
	for i := 0; i < 5; i++ {
		_ = os.WriteFile(path, []byte("---\ntitle: N\ncategory: Resources\n---\n\nv"+string(rune('0'+i))), 0o644)
		time.Sleep(20 * time.Millisecond)
	}

	time.Sleep(400 * time.Millisecond)
	mu.Lock()
	got := count
	mu.Unlock()
	if got != 1 {
		t.Fatalf("event count = %d, want 1 (rapid writes should collapse)", got)
	}
}

func TestWatcherIgnoresNonMarkdown(t *testing.T) {
	root, v := newTestEnv(t)
	w := New(root, v, Options{DebounceInterval: 30 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	seen := false
	go w.Run(ctx, func(ev Event) {
		mu.Lock()
		seen = true
		mu.Unlock()
	})

	time.Sleep(100 * time.Millisecond)
	_ = os.WriteFile(filepath.Join(root, "notes.txt"), []byte("hello"), 0o644)
	time.Sleep(300 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if seen {
		t.Fatal("expected no events for a non-markdown file")
	}
}

func TestShouldTrackFilters(t *testing.T) {
	cases := map[string]bool{
		"/vault/a.md":                 true,
		"/vault/.hidden.md":           false,
		"/vault/tmp.md.tmp":           false,
		"/vault/.git/a.md":            false,
		"/vault/node_modules/a.md":    false,
		"/vault/notes.txt":            false,
	}
	for path, want := range cases {
		if got := shouldTrack(path); got != want {
			t.Errorf("shouldTrack(%q) = %v, want %v", path, got, want)
		}
	}
}
