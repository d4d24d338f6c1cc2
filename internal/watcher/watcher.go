// Package watcher implements the vault watcher (C4): recursive filesystem
// events, path filtering, per-path debouncing, and an optional VCS
// snapshot hook. It is deliberately decoupled from the database — events
// are handed to a caller-supplied callback, which the backlink
// synchronizer and hybrid search engine each subscribe independently, per
// the write-side/background data flow.
package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/mnemo/internal/vault"
)

// Kind classifies a watcher event.
type Kind string

const (
	Added   Kind = "add"
	Changed Kind = "change"
	Removed Kind = "unlink"
)

// Event describes a single, debounced filesystem change. Note is nil for
// Removed events.
type Event struct {
	Kind Kind
	Path string
	Note *vault.Note
}

// Callback receives debounced watcher events.
type Callback func(Event)

// VCSOptions configures the optional post-batch snapshot commit.
type VCSOptions struct {
	Enabled         bool
	MessageTemplate string // may contain "%d" for the changed-file count
	MaxRetries      int
	RetryBaseDelay  time.Duration
}

// Options configures a Watcher.
type Options struct {
	DebounceInterval time.Duration
	VCS              *VCSOptions
	Logger           *slog.Logger
}

// Watcher watches a vault root and emits debounced, filtered change events.
type Watcher struct {
	root   string
	v      *vault.Vault
	logger *slog.Logger
	debounceInterval time.Duration
	vcs    *VCSOptions

	mu      sync.Mutex
	pending map[string]Kind
	timers  map[string]*time.Timer

	batchMu    sync.Mutex
	batchPaths map[string]struct{}
	batchTimer *time.Timer
}

var ignoredDirs = map[string]bool{".git": true, "node_modules": true}

func New(root string, v *vault.Vault, opts Options) *Watcher {
	interval := opts.DebounceInterval
	if interval <= 0 {
		interval = 300 * time.Millisecond
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		root:             root,
		v:                v,
		logger:           logger,
		debounceInterval: interval,
		vcs:              opts.VCS,
		pending:          make(map[string]Kind),
		timers:           make(map[string]*time.Timer),
		batchPaths:       make(map[string]struct{}),
	}
}

// Run watches the vault until ctx is cancelled, invoking cb for each
// debounced event. It blocks and returns nil on clean shutdown.
func (w *Watcher) Run(ctx context.Context, cb Callback) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watcher: create: %w", err)
	}
	defer fw.Close()

	if err := addDirsRecursive(fw, w.root); err != nil {
		return fmt.Errorf("watcher: initial add: %w", err)
	}
	w.logger.Info("watcher: started", slog.String("root", w.root))

	for {
		select {
		case <-ctx.Done():
			w.stopAllTimers()
			w.logger.Info("watcher: stopped")
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			w.handleFSEvent(fw, ev, cb)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher: error", slog.String("error", err.Error()))
		}
	}
}

func (w *Watcher) handleFSEvent(fw *fsnotify.Watcher, ev fsnotify.Event, cb Callback) {
	path := ev.Name

	if ev.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			if err := addDirsRecursive(fw, path); err != nil {
				w.logger.Warn("watcher: add new dir failed", slog.String("path", path), slog.String("error", err.Error()))
			}
			return
		}
	}

	if !shouldTrack(path) {
		return
	}

	switch {
	case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
		kind := Changed
		if ev.Op&fsnotify.Create != 0 {
			kind = Added
		}
		w.debounce(path, kind, cb)
	case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		w.debounce(path, Removed, cb)
	}
}

func shouldTrack(path string) bool {
	name := filepath.Base(path)
	if !strings.HasSuffix(name, ".md") {
		return false
	}
	if strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".tmp") {
		return false
	}
	for _, part := range strings.Split(filepath.Dir(path), string(os.PathSeparator)) {
		if ignoredDirs[part] || strings.HasPrefix(part, ".") {
			return false
		}
	}
	return true
}

// debounce coalesces repeated events for the same path into a single
// flush after the debounce interval, keeping only the most recent kind.
func (w *Watcher) debounce(path string, kind Kind, cb Callback) {
	w.mu.Lock()
	w.pending[path] = kind
	if t, ok := w.timers[path]; ok {
		t.Reset(w.debounceInterval)
	} else {
		w.timers[path] = time.AfterFunc(w.debounceInterval, func() {
			w.flush(path, cb)
		})
	}
	w.mu.Unlock()
}

func (w *Watcher) flush(path string, cb Callback) {
	w.mu.Lock()
	kind, ok := w.pending[path]
	delete(w.pending, path)
	delete(w.timers, path)
	w.mu.Unlock()
	if !ok {
		return
	}

	ev := Event{Kind: kind, Path: path}
	if kind != Removed {
		// Fired from a debounce timer, not a request, so there is no ambient
		// context to inherit from Run's caller.
		note, err := w.v.Load(context.Background(), path)
		if err != nil {
			w.logger.Warn("watcher: load failed", slog.String("path", path), slog.String("error", err.Error()))
			return
		}
		ev.Note = note
	}

	if cb != nil {
		cb(ev)
	}
	w.recordForSnapshot(path)
}

func (w *Watcher) stopAllTimers() {
	w.mu.Lock()
	for _, t := range w.timers {
		t.Stop()
	}
	w.mu.Unlock()
}

// recordForSnapshot accumulates changed paths and schedules a VCS commit
// once no further changes have arrived for one debounce interval.
func (w *Watcher) recordForSnapshot(path string) {
	if w.vcs == nil || !w.vcs.Enabled {
		return
	}
	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	w.batchPaths[path] = struct{}{}
	if w.batchTimer != nil {
		w.batchTimer.Stop()
	}
	w.batchTimer = time.AfterFunc(w.debounceInterval, w.commitBatch)
}

func (w *Watcher) commitBatch() {
	w.batchMu.Lock()
	paths := make([]string, 0, len(w.batchPaths))
	for p := range w.batchPaths {
		paths = append(paths, p)
	}
	w.batchPaths = make(map[string]struct{})
	w.batchMu.Unlock()
	if len(paths) == 0 {
		return
	}

	msg := w.vcs.MessageTemplate
	if msg == "" {
		msg = "mnemo: sync %d file(s)"
	}
	if strings.Contains(msg, "%d") {
		msg = fmt.Sprintf(msg, len(paths))
	}

	var lastErr error
	for attempt := 0; attempt <= w.vcs.MaxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(time.Duration(attempt) * w.vcs.RetryBaseDelay)
		}
		if err := w.snapshot(paths, msg); err != nil {
			lastErr = err
			continue
		}
		lastErr = nil
		break
	}
	if lastErr != nil {
		w.logger.Warn("watcher: vcs snapshot failed", slog.String("error", lastErr.Error()))
	}
}

func (w *Watcher) snapshot(paths []string, message string) error {
	args := append([]string{"-C", w.root, "add", "--"}, paths...)
	if out, err := exec.Command("git", args...).CombinedOutput(); err != nil {
		return fmt.Errorf("git add: %w: %s", err, out)
	}
	cmd := exec.Command("git", "-C", w.root, "commit", "-m", message, "--quiet")
	if out, err := cmd.CombinedOutput(); err != nil {
		if strings.Contains(string(out), "nothing to commit") {
			return nil
		}
		return fmt.Errorf("git commit: %w: %s", err, out)
	}
	return nil
}

func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if path != root && (ignoredDirs[name] || strings.HasPrefix(name, ".")) {
				return filepath.SkipDir
			}
			return w.Add(path)
		}
		return nil
	})
}
