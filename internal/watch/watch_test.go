package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcin-skalski/git-overlay/internal/logging"
)

func startWatcher(t *testing.T, dirs []string) (*Watcher, *atomic.Int32) {
	t.Helper()
	w, err := New(dirs, 100*time.Millisecond, logging.Discard())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	var calls atomic.Int32
	go func() {
		defer close(done)
		w.Run(ctx, func() { calls.Add(1) })
	}()
	t.Cleanup(func() {
		cancel()
		<-done
		_ = w.Close()
	})
	return w, &calls
}

func TestWatcher_DebouncesBurst(t *testing.T) {
	repo := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(repo, ".git"), 0o755))
	_, calls := startWatcher(t, []string{repo})

	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(repo, "file.txt"), []byte{byte(i)}, 0o644))
	}

	require.Eventually(t, func() bool { return calls.Load() >= 1 }, 3*time.Second, 10*time.Millisecond)
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
}

func TestWatcher_SeesGitDir(t *testing.T) {
	repo := t.TempDir()
	gitDir := filepath.Join(repo, ".git")
	require.NoError(t, os.Mkdir(gitDir, 0o755))
	_, calls := startWatcher(t, []string{repo})

	require.NoError(t, os.WriteFile(filepath.Join(gitDir, "HEAD"), []byte("ref: refs/heads/dev\n"), 0o644))

	require.Eventually(t, func() bool { return calls.Load() >= 1 }, 3*time.Second, 10*time.Millisecond)
}

func TestWatcher_SkipsMissingDirs(t *testing.T) {
	_, calls := startWatcher(t, []string{filepath.Join(t.TempDir(), "gone")})
	time.Sleep(200 * time.Millisecond)
	assert.Zero(t, calls.Load())
}

func TestIgnored(t *testing.T) {
	assert.True(t, ignored(fsnotify.Event{Name: "/r/.git/index.lock", Op: fsnotify.Create}))
	assert.True(t, ignored(fsnotify.Event{Name: "/r/.git/index", Op: fsnotify.Chmod}))
	assert.False(t, ignored(fsnotify.Event{Name: "/r/.git/index", Op: fsnotify.Write}))
	assert.False(t, ignored(fsnotify.Event{Name: "/r/main.go", Op: fsnotify.Create | fsnotify.Chmod}))
}

func TestWatcher_HoldDropsIndexRewrite(t *testing.T) {
	repo := t.TempDir()
	gitDir := filepath.Join(repo, ".git")
	require.NoError(t, os.Mkdir(gitDir, 0o755))
	w, calls := startWatcher(t, []string{repo})

	// git writes index.lock and renames it over index.
	w.Hold()
	lock := filepath.Join(gitDir, "index.lock")
	require.NoError(t, os.WriteFile(lock, []byte("DIRC"), 0o644))
	require.NoError(t, os.Rename(lock, filepath.Join(gitDir, "index")))
	time.Sleep(50 * time.Millisecond)
	w.Release()

	time.Sleep(400 * time.Millisecond)
	assert.Zero(t, calls.Load())

	// Worktree changes still count while held.
	w.Hold()
	require.NoError(t, os.WriteFile(filepath.Join(repo, "main.go"), []byte("package main\n"), 0o644))
	w.Release()
	require.Eventually(t, func() bool { return calls.Load() == 1 }, 3*time.Second, 10*time.Millisecond)
}

func TestWatcher_IndexChangeOutsideRefresh(t *testing.T) {
	repo := t.TempDir()
	gitDir := filepath.Join(repo, ".git")
	require.NoError(t, os.Mkdir(gitDir, 0o755))
	_, calls := startWatcher(t, []string{repo})

	require.NoError(t, os.WriteFile(filepath.Join(gitDir, "index"), []byte("DIRC"), 0o644))
	require.Eventually(t, func() bool { return calls.Load() >= 1 }, 3*time.Second, 10*time.Millisecond)
}

func TestOwnIndexWrite(t *testing.T) {
	w := &Watcher{}
	index := fsnotify.Event{Name: "/r/.git/index", Op: fsnotify.Create}
	assert.False(t, w.ownIndexWrite(index))

	w.Hold()
	assert.True(t, w.ownIndexWrite(index))
	assert.False(t, w.ownIndexWrite(fsnotify.Event{Name: "/r/index", Op: fsnotify.Write}))
	assert.False(t, w.ownIndexWrite(fsnotify.Event{Name: "/r/.git/HEAD", Op: fsnotify.Write}))

	w.Release()
	assert.True(t, w.ownIndexWrite(index), "grace period after release")

	w.mu.Lock()
	w.quietUntil = time.Now().Add(-time.Millisecond)
	w.mu.Unlock()
	assert.False(t, w.ownIndexWrite(index))
}
