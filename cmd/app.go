package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/codebysope/crypto-checker/internal/config"
	"github.com/codebysope/crypto-checker/internal/dashboard"
	"github.com/codebysope/crypto-checker/internal/logging"
	"github.com/codebysope/crypto-checker/internal/store"
	"github.com/codebysope/crypto-checker/internal/upstream"
)

// app bundles what every command needs for one run.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	backend *store.SQLiteBackend
	session *dashboard.Session
}

func openApp(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	level := cfg.LogLevel
	if flagLogLevel != "" {
		level = flagLogLevel
	}
	logger := logging.NewWithWriter(cmd.ErrOrStderr(), level)

	backend, err := store.OpenSQLite(cfg.StoragePath())
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}

	session := dashboard.New(cfg, upstream.FromConfig(cfg, logger), backend,
		dashboard.WithLogger(logger),
	)
	return &app{cfg: cfg, logger: logger, backend: backend, session: session}, nil
}

func (a *app) Close() {
	a.session.Close()
	if err := a.backend.Close(); err != nil {
		a.logger.Warn("closing storage", "error", err)
	}
}
