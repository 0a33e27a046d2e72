// Package watch reports filesystem activity in tracked repositories so the
// dashboard can trigger a full refresh.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const DefaultDebounce = 500 * time.Millisecond

// indexGrace covers index events that are delivered after Release.
const indexGrace = 250 * time.Millisecond

type Watcher struct {
	watcher  *fsnotify.Watcher
	debounce time.Duration
	logger   *slog.Logger

	mu         sync.Mutex
	held       int
	quietUntil time.Time
}

// New watches every repo directory and its .git directory. fsnotify is not
// recursive, so only top-level worktree changes plus HEAD/index updates are
// seen. Directories that do not exist are skipped.
func New(dirs []string, debounce time.Duration, logger *slog.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	seen := make(map[string]bool)
	for _, dir := range dirs {
		for _, d := range []string{dir, filepath.Join(dir, ".git")} {
			if seen[d] {
				continue
			}
			seen[d] = true
			if info, err := os.Stat(d); err != nil || !info.IsDir() {
				if d == dir {
					logger.Warn("not watching missing repo dir", "dir", d)
				}
				continue
			}
			if err := fw.Add(d); err != nil {
				logger.Warn("failed to watch dir", "dir", d, "err", err)
				continue
			}
			logger.Debug("watching", "dir", d)
		}
	}

	return &Watcher{watcher: fw, debounce: debounce, logger: logger}, nil
}

// Run calls onChange once per burst of events, after the debounce period
// has passed without new events. It returns when ctx is done or the
// watcher is closed.
func (w *Watcher) Run(ctx context.Context, onChange func()) {
	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if ignored(ev) || w.ownIndexWrite(ev) {
				continue
			}
			w.logger.Debug("fs event", "name", ev.Name, "op", ev.Op.String())
			timer.Reset(w.debounce)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", "err", err)
		case <-timer.C:
			onChange()
		}
	}
}

func (w *Watcher) Close() error {
	return w.watcher.Close()
}

// Hold drops .git/index events until the matching Release plus a short
// grace period. git status rewrites the index, so without it every refresh
// would report a change and trigger the next one.
func (w *Watcher) Hold() {
	w.mu.Lock()
	w.held++
	w.mu.Unlock()
}

func (w *Watcher) Release() {
	w.mu.Lock()
	if w.held > 0 {
		w.held--
	}
	w.quietUntil = time.Now().Add(indexGrace)
	w.mu.Unlock()
}

func (w *Watcher) ownIndexWrite(ev fsnotify.Event) bool {
	if filepath.Base(ev.Name) != "index" || filepath.Base(filepath.Dir(ev.Name)) != ".git" {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.held > 0 || time.Now().Before(w.quietUntil)
}

// ignored drops lock-file churn and attribute-only changes, which git
// produces on every status call.
func ignored(ev fsnotify.Event) bool {
	if ev.Op == fsnotify.Chmod {
		return true
	}
	return strings.HasSuffix(ev.Name, ".lock")
}
