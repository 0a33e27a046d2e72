package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"

	"github.com/marcin-skalski/git-overlay/internal/config"
	"github.com/marcin-skalski/git-overlay/internal/dashboard"
	"github.com/marcin-skalski/git-overlay/internal/git"
	"github.com/marcin-skalski/git-overlay/internal/launcher"
	"github.com/marcin-skalski/git-overlay/internal/logging"
	"github.com/marcin-skalski/git-overlay/internal/refresh"
	"github.com/marcin-skalski/git-overlay/internal/watch"
)

type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	dashboard *dashboard.Dashboard
	watcher   *watch.Watcher
}

// tuiEnabled auto-detects whether the dashboard can take over the terminal.
func tuiEnabled(noTUI bool) bool {
	return !noTUI && os.Getenv("GIT_OVERLAY_TUI") != "0" &&
		isatty.IsTerminal(os.Stdin.Fd()) && isatty.IsTerminal(os.Stdout.Fd())
}

// newApp loads the config and wires the core. Config errors surface here,
// before any UI is shown.
func newApp(configPath string, isTUI bool) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	logger, err := logging.SetupLogger(cfg.LogFile, cfg.Log.Level, isTUI)
	if err != nil {
		return nil, fmt.Errorf("setup logger: %w", err)
	}

	format, err := git.ParseFormat(cfg.Probe.Format)
	if err != nil {
		return nil, err
	}
	client := git.NewClient(logger.With("component", "git"),
		git.WithFormat(format),
		git.WithTimeout(cfg.Probe.Timeout),
	)
	r := refresh.New(client, cfg.Probe.Concurrency, logger.With("component", "refresh"))
	l := launcher.New(cfg.Tool, logger.With("component", "launcher"))

	a := &app{
		cfg:       cfg,
		logger:    logger,
		dashboard: dashboard.New(cfg, r, l, logger.With("component", "dashboard")),
	}

	if isTUI && cfg.TUI.Watch {
		dirs := make([]string, 0, len(cfg.Repos))
		for _, name := range cfg.Repos {
			dirs = append(dirs, cfg.RepoDir(name))
		}
		w, err := watch.New(dirs, watch.DefaultDebounce, logger.With("component", "watch"))
		if err != nil {
			logger.Warn("file watching disabled", "err", err)
		} else {
			a.watcher = w
			a.dashboard.WithNotifier(w)
		}
	}

	return a, nil
}

func (a *app) Close() {
	if a.watcher != nil {
		_ = a.watcher.Close()
	}
	_ = logging.CloseFile()
}
