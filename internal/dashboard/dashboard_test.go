package dashboard

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcin-skalski/git-overlay/internal/config"
	"github.com/marcin-skalski/git-overlay/internal/git"
	"github.com/marcin-skalski/git-overlay/internal/launcher"
	"github.com/marcin-skalski/git-overlay/internal/logging"
	"github.com/marcin-skalski/git-overlay/internal/refresh"
)

type fakeRefresher struct {
	calls    atomic.Int32
	inFlight atomic.Int32
	overlap  atomic.Bool
	delay    time.Duration
	result   func(call int32, names []string) []refresh.Status
}

func (f *fakeRefresher) Refresh(_ context.Context, _ string, names []string) []refresh.Status {
	if f.inFlight.Add(1) > 1 {
		f.overlap.Store(true)
	}
	defer f.inFlight.Add(-1)
	n := f.calls.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.result != nil {
		return f.result(n, names)
	}
	out := make([]refresh.Status, len(names))
	for i, name := range names {
		out[i] = refresh.Status{Name: name, Branch: "main", Changes: int(n)}
	}
	return out
}

type fakeLauncher struct {
	mu         sync.Mutex
	calls      []string
	prepared   []string
	err        error
	foreground bool
}

func (f *fakeLauncher) Launch(root, repo string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, root+"|"+repo)
	return f.err
}

func (f *fakeLauncher) Prepare(root, repo string) (*exec.Cmd, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prepared = append(f.prepared, root+"|"+repo)
	if f.err != nil {
		return nil, f.err
	}
	cmd := exec.Command("lazygit")
	cmd.Dir = root + "/" + repo
	return cmd, nil
}

func (f *fakeLauncher) Detached() bool { return !f.foreground }

type chanNotifier chan struct{}

func (c chanNotifier) Run(ctx context.Context, onChange func()) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c:
			onChange()
		}
	}
}

func testConfig(repos ...string) *config.Config {
	return &config.Config{RootPath: "/src", Repos: repos, Tool: config.ToolConfig{Command: "lazygit"}}
}

func TestDashboard_SnapshotBeforeRefresh(t *testing.T) {
	d := New(testConfig("api", "web"), &fakeRefresher{}, &fakeLauncher{}, logging.Discard())

	snap := d.GetSnapshot()
	assert.True(t, snap.Timestamp.IsZero())
	require.Len(t, snap.Repos, 2)
	assert.Equal(t, "api", snap.Repos[0].Name)
	assert.Empty(t, snap.Repos[0].Branch)
	assert.Equal(t, "lazygit", snap.Tool)
}

func TestDashboard_RefreshReplacesWholeResult(t *testing.T) {
	r := &fakeRefresher{result: func(call int32, names []string) []refresh.Status {
		if call == 1 {
			return []refresh.Status{
				{Name: "api", Branch: "main", Changes: 1},
				{Name: "web", Err: fmt.Errorf("web: %w", git.ErrBranchNotFound)},
			}
		}
		return []refresh.Status{
			{Name: "api", Branch: "feature", Changes: 0},
			{Name: "web", Branch: "dev", Changes: 4},
		}
	}}
	d := New(testConfig("api", "web"), r, &fakeLauncher{}, logging.Discard())

	d.Refresh(context.Background())
	first := d.GetSnapshot()
	assert.Equal(t, "branch not found", first.Repos[1].Err)
	assert.Equal(t, "/src/web", first.Repos[1].Path)

	d.Refresh(context.Background())
	second := d.GetSnapshot()
	assert.Equal(t, "feature", second.Repos[0].Branch)
	assert.Empty(t, second.Repos[1].Err)
	assert.Equal(t, 4, second.Repos[1].Changes)

	// The earlier snapshot is unaffected by the later refresh.
	assert.Equal(t, "main", first.Repos[0].Branch)
}

func TestDashboard_RefreshesAreSerialized(t *testing.T) {
	r := &fakeRefresher{delay: 20 * time.Millisecond}
	d := New(testConfig("api"), r, &fakeLauncher{}, logging.Discard())

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.Refresh(context.Background())
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(4), r.calls.Load())
	assert.False(t, r.overlap.Load())
	assert.False(t, d.GetSnapshot().Refreshing)
}

func TestDashboard_Launch(t *testing.T) {
	l := &fakeLauncher{}
	d := New(testConfig("api"), &fakeRefresher{}, l, logging.Discard())

	require.NoError(t, d.Launch("api"))
	assert.Equal(t, []string{"/src|api"}, l.calls)

	l.err = fmt.Errorf("%w: lazygit", launcher.ErrLaunch)
	err := d.Launch("api")
	assert.ErrorIs(t, err, launcher.ErrLaunch)
}

func TestDashboard_OpenDetached(t *testing.T) {
	l := &fakeLauncher{}
	d := New(testConfig("api"), &fakeRefresher{}, l, logging.Discard())

	cmd, err := d.Open("api")
	require.NoError(t, err)
	assert.Nil(t, cmd)
	assert.Equal(t, []string{"/src|api"}, l.calls)
	assert.Empty(t, l.prepared)
}

func TestDashboard_OpenForegroundReturnsCommand(t *testing.T) {
	l := &fakeLauncher{foreground: true}
	d := New(testConfig("api"), &fakeRefresher{}, l, logging.Discard())

	cmd, err := d.Open("api")
	require.NoError(t, err)
	require.NotNil(t, cmd)
	assert.Equal(t, "/src/api", cmd.Dir)
	assert.Empty(t, l.calls, "the caller runs a foreground tool")

	l.err = fmt.Errorf("%w: lazygit: %w", launcher.ErrLaunch, exec.ErrNotFound)
	cmd, err = d.Open("api")
	assert.ErrorIs(t, err, launcher.ErrLaunch)
	assert.Nil(t, cmd)
}

// guardNotifier records whether a refresh ran between Hold and Release.
type guardNotifier struct {
	chanNotifier
	held     atomic.Int32
	releases atomic.Int32
	sawHeld  atomic.Bool
}

func (g *guardNotifier) Hold()    { g.held.Add(1) }
func (g *guardNotifier) Release() { g.held.Add(-1); g.releases.Add(1) }

func TestDashboard_RefreshHoldsNotifier(t *testing.T) {
	g := &guardNotifier{chanNotifier: make(chanNotifier)}
	r := &fakeRefresher{result: func(_ int32, names []string) []refresh.Status {
		g.sawHeld.Store(g.held.Load() > 0)
		return nil
	}}
	d := New(testConfig("api"), r, &fakeLauncher{}, logging.Discard()).WithNotifier(g)

	d.Refresh(context.Background())
	assert.True(t, g.sawHeld.Load())
	assert.Zero(t, g.held.Load())
	assert.Equal(t, int32(1), g.releases.Load())
}

func TestDashboard_RunRefreshesOnNotify(t *testing.T) {
	r := &fakeRefresher{}
	notify := make(chanNotifier)
	d := New(testConfig("api"), r, &fakeLauncher{}, logging.Discard()).WithNotifier(notify)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	require.Eventually(t, func() bool { return r.calls.Load() == 1 }, 2*time.Second, 5*time.Millisecond)
	notify <- struct{}{}
	require.Eventually(t, func() bool { return r.calls.Load() == 2 }, 2*time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestDashboard_RunRefreshesOnInterval(t *testing.T) {
	r := &fakeRefresher{}
	cfg := testConfig("api")
	cfg.TUI.RefreshInterval = 20 * time.Millisecond
	d := New(cfg, r, &fakeLauncher{}, logging.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = d.Run(ctx) }()

	require.Eventually(t, func() bool { return r.calls.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
}

func TestErrorLabel(t *testing.T) {
	assert.Empty(t, ErrorLabel(nil))
	assert.Equal(t, "status timed out", ErrorLabel(fmt.Errorf("%w after 1s", git.ErrTimeout)))
	assert.Equal(t, "git could not start", ErrorLabel(fmt.Errorf("%w: x", git.ErrProcessLaunch)))
	assert.Equal(t, "tool could not start", ErrorLabel(fmt.Errorf("%w: x", launcher.ErrLaunch)))
	assert.Equal(t, "boom", ErrorLabel(errors.New("boom")))
}
