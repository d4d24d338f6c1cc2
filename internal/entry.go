// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/starford/mnemo/internal/backlink"
	"github.com/starford/mnemo/internal/httpapi"
	"github.com/starford/mnemo/internal/index"
	"github.com/starford/mnemo/internal/mcpserver"
	"github.com/starford/mnemo/internal/para"
	"github.com/starford/mnemo/internal/search"
	"github.com/starford/mnemo/internal/session"
	"github.com/starford/mnemo/internal/sse"
	"github.com/starford/mnemo/internal/toolkit"
	"github.com/starford/mnemo/internal/vault"
	"github.com/starford/mnemo/internal/watcher"
)

// Run starts the application with the given options: it wires the vault,
// index, hybrid search engine, PARA organizer, backlink synchronizer, and
// session store into a tool registry, serves that registry over the MCP
// stdio transport, and (unless HTTP.Addr is blank) exposes the read-only
// introspection surface (A4) alongside it. A watcher goroutine keeps the
// index and PARA placement current with on-disk edits. All goroutines run
// under one errgroup so any fatal error tears the whole process down.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}
	cfg := app.config

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("configuration loaded",
		slog.String("vault_path", cfg.VaultPath),
		slog.String("index_path", cfg.IndexPath),
		slog.String("mode", cfg.Mode),
		slog.String("log_level", cfg.LogLevel.String()))

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
		logger.Warn("initial vault scan failed", slog.String("error", err.Error()))
	} else if result := engine.BatchIndex(ctx, notes); result.Failed > 0 {
		logger.Warn("initial index build had failures",
			slog.Int("indexed", result.Successful), slog.Int("failed", result.Failed))
	} else {
		logger.Info("initial index build complete", slog.Int("indexed", result.Successful))
	}

	organizer := para.New(v, para.Options{})
	sync := backlink.New(v, backlink.Options{Logger: logger})
	sessions := session.New(engine)

	registry := toolkit.NewRegistry(logger)
	registry.SetPolicy(toolkit.Policy{TimeoutMS: cfg.Policy.TimeoutMS, MaxRetries: cfg.Policy.MaxRetries})
	deps := toolkit.Deps{Vault: v, Organizer: organizer, Engine: engine, Sync: sync, Sessions: sessions}
	for _, tool := range toolkit.DefaultTools(deps) {
		if err := registry.Register(tool); err != nil {
			return fmt.Errorf("register tool %s: %w", tool.Name, err)
		}
	}

	mcpSrv := mcpserver.New(registry)

	broker := sse.NewBroker()
	defer broker.Close()
	httpHandler := httpapi.NewHandler(engine, broker)

	var httpServer *http.Server
	if cfg.HTTP.Addr != "" {
		httpServer = &http.Server{
			Addr:    cfg.HTTP.Addr,
			Handler: httpapi.NewRouter(engine, broker),
		}
	}

	w := watcher.New(cfg.VaultPath, v, watcher.Options{Logger: logger})

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return w.Run(gCtx, func(ev watcher.Event) {
			handleWatcherEvent(gCtx, logger, db, engine, organizer, sync, httpHandler, ev)
		})
	})

	if httpServer != nil {
		g.Go(func() error {
			logger.Info("introspection server starting", slog.String("address", cfg.HTTP.Addr))
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("introspection server error: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		logger.Info("mnemo serving tools over stdio")
		if err := mcpSrv.ServeStdio(); err != nil {
			return fmt.Errorf("mcp server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			logger.Info("received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("context cancelled, initiating shutdown")
		}

		if httpServer != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.Error("introspection server shutdown error", slog.String("error", err.Error()))
			}
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("mnemo stopped successfully")
	return nil
}

// handleWatcherEvent fans a single debounced filesystem event out to the
// hybrid search index, the backlink synchronizer, and the PARA organizer,
// publishing an SSE event for whichever side effects occurred.
func handleWatcherEvent(ctx context.Context, logger *slog.Logger, db *index.DB, engine *search.Engine, organizer *para.Organizer, sync *backlink.Synchronizer, httpHandler *httpapi.Handler, ev watcher.Event) {
	if ev.Kind == watcher.Removed {
		uid, err := db.UIDForPath(ev.Path)
		if err != nil || uid == "" {
			return
		}
		if err := engine.RemoveNote(ctx, uid); err != nil {
			logger.Warn("watcher: remove from index failed", slog.String("uid", uid), slog.String("error", err.Error()))
			return
		}
		if err := sync.Cleanup(ctx, uid, func(bev backlink.Event) {
			httpHandler.PublishBacklinkSync(bev.Target, 0, len(bev.Affected))
		}); err != nil {
			logger.Warn("watcher: backlink cleanup failed", slog.String("uid", uid), slog.String("error", err.Error()))
		}
		return
	}

	if ev.Note == nil {
		return
	}

	if err := engine.IndexNote(ctx, ev.Note); err != nil {
		logger.Warn("watcher: index note failed", slog.String("path", ev.Path), slog.String("error", err.Error()))
		return
	}

	sync.HandleWatcherEvent(ev)

	moved, err := organizer.Reconcile(ctx, ev.Note, para.CategoryChange, time.Now().UTC())
	if err != nil {
		logger.Warn("watcher: reconcile failed", slog.String("path", ev.Path), slog.String("error", err.Error()))
		return
	}
	if moved != nil {
		if err := engine.IndexNote(ctx, moved.Note); err != nil {
			logger.Warn("watcher: reindex after move failed", slog.String("path", moved.To), slog.String("error", err.Error()))
		}
		httpHandler.PublishNoteMoved(moved.Note.Header.ID, moved.From, moved.To)
	}
}
