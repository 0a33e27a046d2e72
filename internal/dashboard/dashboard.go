// Package dashboard owns the last refresh result and drives refreshes and
// tool launches on behalf of the UI.
package dashboard

import (
	"context"
	"errors"
	"log/slog"
	"os/exec"
	"sync"
	"time"

	"github.com/marcin-skalski/git-overlay/internal/config"
	"github.com/marcin-skalski/git-overlay/internal/git"
	"github.com/marcin-skalski/git-overlay/internal/launcher"
	"github.com/marcin-skalski/git-overlay/internal/refresh"
	"github.com/marcin-skalski/git-overlay/internal/tui"
)

type Refresher interface {
	Refresh(ctx context.Context, root string, names []string) []refresh.Status
}

type Launcher interface {
	Launch(root, repo string) error
	Prepare(root, repo string) (*exec.Cmd, error)
	Detached() bool
}

// Notifier reports that a refresh should happen, e.g. a filesystem watcher.
type Notifier interface {
	Run(ctx context.Context, onChange func())
}

// refreshGuard is implemented by notifiers that would otherwise report the
// writes git itself makes while a refresh runs.
type refreshGuard interface {
	Hold()
	Release()
}

type Dashboard struct {
	cfg       *config.Config
	refresher Refresher
	launcher  Launcher
	notifier  Notifier
	logger    *slog.Logger

	refreshMu sync.Mutex // serializes refreshes

	mu         sync.Mutex
	statuses   []refresh.Status
	updated    time.Time
	refreshing bool
}

func New(cfg *config.Config, r Refresher, l Launcher, logger *slog.Logger) *Dashboard {
	return &Dashboard{
		cfg:       cfg,
		refresher: r,
		launcher:  l,
		logger:    logger,
	}
}

// WithNotifier makes Run refresh whenever n reports a change.
func (d *Dashboard) WithNotifier(n Notifier) *Dashboard {
	d.notifier = n
	return d
}

// Run refreshes once, then on every tui.refresh_interval tick and notifier
// event until ctx is done.
func (d *Dashboard) Run(ctx context.Context) error {
	d.logger.Info("dashboard started", "root", d.cfg.RootPath, "repos", len(d.cfg.Repos),
		"refresh_interval", d.cfg.TUI.RefreshInterval)

	d.Refresh(ctx)

	var tick <-chan time.Time
	if d.cfg.TUI.RefreshInterval > 0 {
		ticker := time.NewTicker(d.cfg.TUI.RefreshInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	changed := make(chan struct{}, 1)
	if d.notifier != nil {
		go d.notifier.Run(ctx, func() {
			select {
			case changed <- struct{}{}:
			default:
			}
		})
	}

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("dashboard stopped")
			return nil
		case <-tick:
			d.Refresh(ctx)
		case <-changed:
			d.logger.Debug("change detected, refreshing")
			d.Refresh(ctx)
		}
	}
}

// Refresh re-probes every configured repo and installs the new result as a
// whole. Calls are serialized.
func (d *Dashboard) Refresh(ctx context.Context) {
	d.refreshMu.Lock()
	defer d.refreshMu.Unlock()

	if g, ok := d.notifier.(refreshGuard); ok {
		g.Hold()
		defer g.Release()
	}

	d.setRefreshing(true)
	start := time.Now()
	statuses := d.refresher.Refresh(ctx, d.cfg.RootPath, d.cfg.Repos)

	failed := 0
	for _, s := range statuses {
		if s.Failed() {
			failed++
		}
	}

	d.mu.Lock()
	d.statuses = statuses
	d.updated = time.Now()
	d.refreshing = false
	d.mu.Unlock()

	d.logger.Info("refreshed repos", "repos", len(statuses), "failed", failed,
		"took", time.Since(start).Round(time.Millisecond))
}

// Statuses returns a copy of the last refresh result.
func (d *Dashboard) Statuses() []refresh.Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]refresh.Status(nil), d.statuses...)
}

// Launch starts the configured tool in the named repo. With a foreground
// launcher it runs on our stdio and returns when the tool exits.
func (d *Dashboard) Launch(name string) error {
	if err := d.launcher.Launch(d.cfg.RootPath, name); err != nil {
		d.logger.Error("launch failed", "repo", name, "err", err)
		return err
	}
	return nil
}

// Open is Launch for a caller that owns the terminal. A detached tool is
// started right away and the returned command is nil. Otherwise the tool
// is only prepared, and the caller must run the command in the foreground.
func (d *Dashboard) Open(name string) (*exec.Cmd, error) {
	if d.launcher.Detached() {
		return nil, d.Launch(name)
	}
	cmd, err := d.launcher.Prepare(d.cfg.RootPath, name)
	if err != nil {
		d.logger.Error("launch failed", "repo", name, "err", err)
		return nil, err
	}
	return cmd, nil
}

func (d *Dashboard) GetSnapshot() tui.Snapshot {
	d.mu.Lock()
	statuses := append([]refresh.Status(nil), d.statuses...)
	updated := d.updated
	refreshing := d.refreshing
	d.mu.Unlock()

	// Before the first refresh completes, list the configured names.
	if updated.IsZero() && len(statuses) == 0 {
		for _, name := range d.cfg.Repos {
			statuses = append(statuses, refresh.Status{Name: name})
		}
	}

	repos := make([]tui.RepoState, 0, len(statuses))
	for _, s := range statuses {
		repos = append(repos, tui.RepoState{
			Name:    s.Name,
			Path:    d.cfg.RepoDir(s.Name),
			Branch:  s.Branch,
			Changes: s.Changes,
			Err:     ErrorLabel(s.Err),
		})
	}

	return tui.Snapshot{
		Timestamp:  updated,
		Root:       d.cfg.RootPath,
		Tool:       d.cfg.Tool.Command,
		Repos:      repos,
		Refreshing: refreshing,
	}
}

func (d *Dashboard) setRefreshing(v bool) {
	d.mu.Lock()
	d.refreshing = v
	d.mu.Unlock()
}

// ErrorLabel turns a probe or launch error into a short row label.
func ErrorLabel(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, git.ErrBranchNotFound):
		return "branch not found"
	case errors.Is(err, git.ErrTimeout):
		return "status timed out"
	case errors.Is(err, git.ErrProcessLaunch):
		return "git could not start"
	case errors.Is(err, launcher.ErrLaunch):
		return "tool could not start"
	default:
		return err.Error()
	}
}
