package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/mnemo/internal"
	pkgconfig "github.com/starford/mnemo/pkg/config"
)

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	defaults := map[string]any{
		"vault_path":         cfg.VaultPath,
		"index_path":         cfg.IndexPath,
		"mode":               cfg.Mode,
		"log_level":          cfg.LogLevel.String(),
		"policy.timeout_ms":  cfg.Policy.TimeoutMS,
		"policy.max_retries": cfg.Policy.MaxRetries,
		"http.addr":          cfg.HTTP.Addr,
	}
	if err := pkgconfig.Load(cmd.String("config"), "mnemo", defaults, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	opts := []internal.Option{internal.WithConfig(cfg)}
	if err := internal.Run(ctx, opts...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func reindex(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.Reindex(ctx, cfg)
}

func check(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.Check(ctx, cfg)
}

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:        "config",
		Aliases:     []string{"c"},
		Usage:       "Path to config file",
		DefaultText: "config/config.yaml",
		Value:       "config/config.yaml",
		Sources:     cli.EnvVars("MNEMO_CONFIG_FILE"),
	}
}

func main() {
	cmd := &cli.Command{
		Name:  "mnemo",
		Usage: "Local-first persistent memory for AI agents: Markdown notes, hybrid search, and PARA organization",
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the MCP tool server and watcher",
				Action: serve,
				Flags:  []cli.Flag{configFlag()},
			},
			{
				Name:   "reindex",
				Usage:  "Rebuild the search index and backlinks from the vault on disk",
				Action: reindex,
				Flags:  []cli.Flag{configFlag()},
			},
			{
				Name:   "check",
				Usage:  "Verify database integrity and report vault/index drift",
				Action: check,
				Flags:  []cli.Flag{configFlag()},
			},
		},
		DefaultCommand: "serve",
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
