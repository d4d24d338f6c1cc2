// Package backlink implements the backlink synchronizer (C6): it keeps
// each note's header links field consistent with the links analyzed from
// its body, in per-note, bulk, and deletion-cleanup modes.
package backlink

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/starford/mnemo/internal/apperr"
	"github.com/starford/mnemo/internal/vault"
	"github.com/starford/mnemo/internal/watcher"
)

// EventType classifies a Sync event.
type EventType string

const (
	Updated EventType = "update"
	Removed EventType = "remove"
)

// Event is emitted after a synchronization write.
type Event struct {
	Type     EventType
	Target   string
	Affected []string
}

// EventCallback receives synchronizer events.
type EventCallback func(Event)

// Options configures a Synchronizer.
type Options struct {
	BatchSize      int
	MaxConcurrency int64
	DebounceInterval time.Duration
	Logger         *slog.Logger
}

// Synchronizer reconciles note header links against body-analyzed links.
type Synchronizer struct {
	v    *vault.Vault
	opts Options

	mu      sync.Mutex
	pending map[string]struct{}
	timer   *time.Timer
}

func New(v *vault.Vault, opts Options) *Synchronizer {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 10
	}
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = 5
	}
	if opts.DebounceInterval <= 0 {
		opts.DebounceInterval = 300 * time.Millisecond
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Synchronizer{v: v, opts: opts, pending: make(map[string]struct{})}
}

// Sync loads note uid, analyzes its body links, and writes back its header
// links only when the resolved set differs.
func (s *Synchronizer) Sync(ctx context.Context, uid string) error {
	n, err := s.v.FindByUID(ctx, uid)
	if err != nil {
		return err
	}
	if n == nil {
		return apperr.Newf(apperr.NotFound, "note not found: %s", uid)
	}
	return s.syncNote(ctx, n)
}

func (s *Synchronizer) syncNote(ctx context.Context, n *vault.Note) error {
	analysis, err := s.v.AnalyzeLinks(ctx, n)
	if err != nil {
		return err
	}
	if sameSet(n.Header.Links, analysis.Outbound) {
		return nil
	}
	n.Header.Links = analysis.Outbound
	return s.v.Save(ctx, n, vault.SaveOptions{Atomic: true})
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	sa := append([]string{}, a...)
	sb := append([]string{}, b...)
	sort.Strings(sa)
	sort.Strings(sb)
	for i := range sa {
		if sa[i] != sb[i] {
			return false
		}
	}
	return true
}

// RebuildAll walks every note in the vault in batches with bounded
// concurrency, syncing each. Per-file failures are logged and skipped.
func (s *Synchronizer) RebuildAll(ctx context.Context) error {
	notes, err := s.v.All(ctx)
	if err != nil {
		return err
	}

	sem := semaphore.NewWeighted(s.opts.MaxConcurrency)
	for start := 0; start < len(notes); start += s.opts.BatchSize {
		end := start + s.opts.BatchSize
		if end > len(notes) {
			end = len(notes)
		}
		batch := notes[start:end]

		var wg sync.WaitGroup
		for _, n := range batch {
			n := n
			if err := sem.Acquire(ctx, 1); err != nil {
				wg.Wait()
				return nil
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer sem.Release(1)
				if err := s.syncNote(ctx, n); err != nil {
					s.opts.Logger.Warn("backlink: sync failed", slog.String("uid", n.Header.ID), slog.String("error", err.Error()))
				}
			}()
		}
		wg.Wait()
	}
	return nil
}

// Cleanup removes deletedUID from every note's links field, emitting a
// single Removed event listing every affected note.
func (s *Synchronizer) Cleanup(ctx context.Context, deletedUID string, cb EventCallback) error {
	notes, err := s.v.All(ctx)
	if err != nil {
		return err
	}

	var affected []string
	for _, n := range notes {
		if !contains(n.Header.Links, deletedUID) {
			continue
		}
		n.Header.Links = remove(n.Header.Links, deletedUID)
		if err := s.v.Save(ctx, n, vault.SaveOptions{Atomic: true}); err != nil {
			s.opts.Logger.Warn("backlink: cleanup save failed", slog.String("uid", n.Header.ID), slog.String("error", err.Error()))
			continue
		}
		affected = append(affected, n.Header.ID)
	}

	if cb != nil {
		cb(Event{Type: Removed, Target: deletedUID, Affected: affected})
	}
	return nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func remove(list []string, v string) []string {
	out := make([]string, 0, len(list))
	for _, s := range list {
		if s != v {
			out = append(out, s)
		}
	}
	return out
}

// HandleWatcherEvent subscribes to watcher events: add/change events
// enqueue the note's UID in a pending set and trigger a debounced flush.
func (s *Synchronizer) HandleWatcherEvent(ev watcher.Event) {
	if ev.Kind == watcher.Removed || ev.Note == nil {
		return
	}
	s.mu.Lock()
	s.pending[ev.Note.Header.ID] = struct{}{}
	if s.timer != nil {
		s.timer.Reset(s.opts.DebounceInterval)
	} else {
		s.timer = time.AfterFunc(s.opts.DebounceInterval, s.flushPending)
	}
	s.mu.Unlock()
}

func (s *Synchronizer) flushPending() {
	s.mu.Lock()
	uids := make([]string, 0, len(s.pending))
	for uid := range s.pending {
		uids = append(uids, uid)
	}
	s.pending = make(map[string]struct{})
	s.timer = nil
	s.mu.Unlock()

	// Fired from a debounce timer, not a request, so there is no ambient
	// context to inherit.
	ctx := context.Background()
	for _, uid := range uids {
		if err := s.Sync(ctx, uid); err != nil {
			s.opts.Logger.Warn("backlink: pending sync failed", slog.String("uid", uid), slog.String("error", err.Error()))
		}
	}
}
