package cli

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/JonMunkholm/csvquality/internal/config"
	"github.com/JonMunkholm/csvquality/internal/core"
	"github.com/JonMunkholm/csvquality/internal/database"
	"github.com/spf13/cobra"
)

// app bundles what a command needs to talk to storage and print results.
type app struct {
	cfg   *config.Config
	store database.Store
	svc   *core.Service
	out   *renderer
}

// openApp connects to the configured store and builds the Service. SQLite
// databases are migrated on open; PostgreSQL requires `dqcheck migrate`.
func openApp(cmd *cobra.Command) (*app, func(), error) {
	cfg := getConfig(cmd.Context())
	if cfg == nil {
		return nil, nil, errors.New("configuration not loaded")
	}

	out, err := newCommandRenderer(cmd)
	if err != nil {
		return nil, nil, err
	}

	ctx := cmd.Context()
	store, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := store.Close(); err != nil {
			slog.Warn("failed to close store", "error", err)
		}
	}

	if cfg.Database.Driver == config.DriverSQLite {
		if err := store.Migrate(ctx); err != nil {
			cleanup()
			return nil, nil, err
		}
	}

	svc, err := core.NewService(store, serviceConfig(cfg.Analysis))
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	return &app{cfg: cfg, store: store, svc: svc, out: out}, cleanup, nil
}

func serviceConfig(a config.AnalysisConfig) core.ServiceConfig {
	return core.ServiceConfig{
		DataDir:       a.DataDir,
		MaxFileSize:   a.MaxFileSize,
		MaxConcurrent: a.MaxConcurrent,
		MaxWait:       a.MaxWaitTime,
	}
}

func newCommandRenderer(cmd *cobra.Command) (*renderer, error) {
	format, err := cmd.Flags().GetString("output")
	if err != nil {
		return nil, fmt.Errorf("read output flag: %w", err)
	}
	return newRenderer(cmd.OutOrStdout(), format)
}
