package git

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

var (
	ErrProcessLaunch  = errors.New("status command could not be started")
	ErrBranchNotFound = errors.New("branch not found in status output")
	ErrTimeout        = errors.New("status command timed out")
)

const defaultTimeout = 10 * time.Second

type Client struct {
	bin     string
	format  Format
	timeout time.Duration
	logger  *slog.Logger
}

type Option func(*Client)

// WithBinary overrides the git executable.
func WithBinary(bin string) Option {
	return func(c *Client) { c.bin = bin }
}

func WithFormat(f Format) Option {
	return func(c *Client) { c.format = f }
}

// WithTimeout bounds every probe. Non-positive values keep the default.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func NewClient(logger *slog.Logger, opts ...Option) *Client {
	c := &Client{
		bin:     "git",
		format:  TextFormat{},
		timeout: defaultTimeout,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Probe runs the status command in root/repo and returns the current branch
// and the number of pending changes. It blocks until the command exits or
// the probe timeout expires.
func (c *Client) Probe(ctx context.Context, root, repo string) (string, int, error) {
	dir := filepath.Join(root, repo)

	out, err := c.status(ctx, dir)
	if err != nil {
		return "", 0, err
	}

	branch, changes, err := c.format.Parse(out)
	if err != nil {
		return "", 0, fmt.Errorf("%s: %w", dir, err)
	}
	return branch, changes, nil
}

func (c *Client) status(ctx context.Context, dir string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	args := c.format.Args()
	c.logger.Debug("exec", "cmd", c.bin+" "+strings.Join(args, " "), "dir", dir)

	cmd := exec.CommandContext(ctx, c.bin, args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "LC_ALL=C")
	cmd.WaitDelay = time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("%w: %s %s: %w", ErrProcessLaunch, c.bin, strings.Join(args, " "), err)
	}

	err := cmd.Wait()
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return "", fmt.Errorf("%w after %s: %s", ErrTimeout, c.timeout, dir)
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", fmt.Errorf("%s: %w", dir, ctxErr)
	}
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return "", fmt.Errorf("%s %s: %w", c.bin, strings.Join(args, " "), err)
		}
		// The exit status is not a failure on its own; the output decides.
		c.logger.Debug("status command exited non-zero",
			"dir", dir, "code", exitErr.ExitCode(), "stderr", strings.TrimSpace(stderr.String()))
	}

	return stdout.String(), nil
}
