// Package launcher starts the interactive git client for a repository,
// either in the caller's terminal or as a detached process.
package launcher

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/marcin-skalski/git-overlay/internal/config"
)

var ErrLaunch = errors.New("could not start tool")

// Strategy builds the platform-specific command that runs tool. A detached
// strategy gives the tool its own process (and terminal window, where the
// platform needs one); otherwise the tool expects the caller's terminal.
type Strategy interface {
	Name() string
	Detached() bool
	Command(dir, tool string, args []string) *exec.Cmd
}

type Launcher struct {
	tool     string
	args     []string
	strategy Strategy
	logger   *slog.Logger
}

// New picks the start strategy once. Inside tmux the tool gets a new
// window, with tool.terminal it gets a new terminal emulator window, and
// otherwise the platform default applies.
func New(cfg config.ToolConfig, logger *slog.Logger) *Launcher {
	return NewWithStrategy(cfg.Command, cfg.Args, selectStrategy(os.Getenv, cfg), logger)
}

func selectStrategy(getenv func(string) string, cfg config.ToolConfig) Strategy {
	if strings.TrimSpace(getenv("TMUX")) == "" && len(cfg.Terminal) > 0 {
		return terminalStrategy{argv: cfg.Terminal}
	}
	return platformStrategy(getenv, cfg.Detached)
}

func NewWithStrategy(tool string, args []string, strategy Strategy, logger *slog.Logger) *Launcher {
	return &Launcher{
		tool:     tool,
		args:     args,
		strategy: strategy,
		logger:   logger.With("tool", tool, "strategy", strategy.Name()),
	}
}

// Detached reports whether Launch returns as soon as the tool has started.
// When false the tool needs the terminal until it exits.
func (l *Launcher) Detached() bool {
	return l.strategy.Detached()
}

// Prepare resolves the tool and the repo directory and builds the command
// without starting it. Stdio is left unset for the caller to attach.
func (l *Launcher) Prepare(root, repo string) (*exec.Cmd, error) {
	dir := filepath.Join(root, repo)

	// tmux and cmd start report success even when the tool is missing.
	if _, err := exec.LookPath(l.tool); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrLaunch, l.tool, err)
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %s in %s: %w", ErrLaunch, l.tool, dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrLaunch, dir)
	}

	cmd := l.strategy.Command(dir, l.tool, l.args)
	cmd.Dir = dir
	l.logger.Debug("exec", "cmd", strings.Join(cmd.Args, " "), "dir", dir)
	return cmd, nil
}

// Launch starts the tool with root/repo as working directory. Detached
// strategies return once the process has started and reap it in the
// background; otherwise the tool runs on our stdio and Launch waits for it.
func (l *Launcher) Launch(root, repo string) error {
	cmd, err := l.Prepare(root, repo)
	if err != nil {
		return err
	}

	if !l.strategy.Detached() {
		cmd.Stdin = os.Stdin
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: %s in %s: %w", ErrLaunch, l.tool, cmd.Dir, err)
	}
	l.logger.Info("tool started", "repo", repo, "pid", cmd.Process.Pid)

	if !l.strategy.Detached() {
		if err := cmd.Wait(); err != nil {
			return fmt.Errorf("%s exited: %w", l.tool, err)
		}
		l.logger.Debug("tool exited", "repo", repo)
		return nil
	}

	go func() {
		if err := cmd.Wait(); err != nil {
			l.logger.Warn("tool exited", "repo", repo, "err", err)
			return
		}
		l.logger.Debug("tool exited", "repo", repo)
	}()
	return nil
}

// foregroundStrategy runs the tool as a plain child that shares our
// terminal and process group.
type foregroundStrategy struct{}

func (foregroundStrategy) Name() string   { return "foreground" }
func (foregroundStrategy) Detached() bool { return false }

func (foregroundStrategy) Command(_ string, tool string, args []string) *exec.Cmd {
	return exec.Command(tool, args...)
}

// terminalStrategy prefixes the tool with a terminal emulator command such
// as ["kitty", "--"], which opens its own window.
type terminalStrategy struct {
	argv []string
}

func (terminalStrategy) Name() string   { return "terminal" }
func (terminalStrategy) Detached() bool { return true }

func (s terminalStrategy) Command(_ string, tool string, args []string) *exec.Cmd {
	argv := append(append(append([]string{}, s.argv[1:]...), tool), args...)
	return exec.Command(s.argv[0], argv...)
}

// tmuxStrategy opens the tool in a new tmux window rooted at dir.
type tmuxStrategy struct{}

func (tmuxStrategy) Name() string   { return "tmux" }
func (tmuxStrategy) Detached() bool { return true }

func (tmuxStrategy) Command(dir, tool string, args []string) *exec.Cmd {
	argv := append([]string{"new-window", "-c", dir, tool}, args...)
	return exec.Command("tmux", argv...)
}
