package internal

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/starford/mnemo/internal/backlink"
	"github.com/starford/mnemo/internal/index"
	"github.com/starford/mnemo/internal/search"
	"github.com/starford/mnemo/internal/vault"
)

// Reindex rebuilds the search index and reconciles backlinks for every note
// currently on disk, without starting the watcher or either server. It is
// the `mnemo reindex` subcommand's implementation.
func Reindex(ctx context.Context, cfg *Config) error {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))

	if err := os.MkdirAll(cfg.VaultPath, 0o755); err != nil {
		return fmt.Errorf("create vault dir: %w", err)
	}
	v, err := vault.New(cfg.VaultPath, vault.Options{Strict: cfg.Strict()})
	if err != nil {
		return fmt.Errorf("init vault: %w", err)
	}
	db, err := index.Open(cfg.IndexPath)
	if err != nil {
		return fmt.Errorf("init index: %w", err)
	}
	defer db.Close()

	engine := search.New(db, v)
	notes, err := v.All(ctx)
	if err != nil {
		return fmt.Errorf("scan vault: %w", err)
	}

	result := engine.BatchIndex(ctx, notes)
	logger.Info("reindex complete",
		slog.Int("indexed", result.Successful), slog.Int("failed", result.Failed),
		slog.Int64("duration_ms", result.TotalMS))
	for _, f := range result.Failures {
		logger.Warn("reindex failure", slog.String("uid", f.UID), slog.String("error", f.Error))
	}

	sync := backlink.New(v, backlink.Options{Logger: logger})
	if err := sync.RebuildAll(ctx); err != nil {
		return fmt.Errorf("rebuild backlinks: %w", err)
	}
	logger.Info("backlink rebuild complete")

	return nil
}

// Check runs the database's integrity check and reports vault/index size
// drift, without mutating anything. It is the `mnemo check` subcommand's
// implementation.
func Check(ctx context.Context, cfg *Config) error {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))

	v, err := vault.New(cfg.VaultPath, vault.Options{Strict: cfg.Strict()})
	if err != nil {
		return fmt.Errorf("init vault: %w", err)
	}
	db, err := index.Open(cfg.IndexPath)
	if err != nil {
		return fmt.Errorf("init index: %w", err)
	}
	defer db.Close()

	ok, err := db.CheckIntegrity(ctx)
	if err != nil {
		return fmt.Errorf("integrity check: %w", err)
	}
	if !ok {
		return fmt.Errorf("database integrity check failed")
	}
	logger.Info("database integrity ok")

	notes, err := v.All(ctx)
	if err != nil {
		return fmt.Errorf("scan vault: %w", err)
	}
	uids, err := db.AllUIDs()
	if err != nil {
		return fmt.Errorf("read indexed uids: %w", err)
	}

	var missing int
	for _, n := range notes {
		if _, ok := uids[n.Header.ID]; !ok {
			missing++
			logger.Warn("note not indexed", slog.String("uid", n.Header.ID), slog.String("path", n.Path))
		}
	}
	if missing > 0 {
		logger.Warn("vault/index drift detected", slog.Int("unindexed_notes", missing))
	} else {
		logger.Info("vault and index are in sync", slog.Int("notes", len(notes)))
	}

	return nil
}
