package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"slices"
	"strconv"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/marcin-skalski/git-overlay/internal/dashboard"
	"github.com/marcin-skalski/git-overlay/internal/git"
	"github.com/marcin-skalski/git-overlay/internal/refresh"
	"github.com/marcin-skalski/git-overlay/internal/tui"
)

// snapshotPoll is how often the TUI re-reads dashboard state.
const snapshotPoll = 500 * time.Millisecond

var errRowsFailed = errors.New("some repositories could not be read")

func newRootCmd() *cobra.Command {
	var (
		configPath string
		noTUI      bool
	)

	root := &cobra.Command{
		Use:           "git-overlay",
		Short:         "Dashboard of branch and pending changes across local repositories",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			isTUI := tuiEnabled(noTUI)
			a, err := newApp(configPath, isTUI)
			if err != nil {
				return err
			}
			defer a.Close()

			if !isTUI {
				return printStatus(cmd.Context(), cmd.OutOrStdout(), a)
			}
			return runTUI(cmd.Context(), a)
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "config.toml", "path to config file (.toml or .yaml)")
	root.Flags().BoolVar(&noTUI, "no-tui", false, "print the status table once instead of starting the dashboard")

	root.AddCommand(
		newStatusCmd(&configPath),
		newOpenCmd(&configPath),
		newCheckCmd(&configPath),
	)
	return root
}

func newStatusCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print branch and pending changes of every configured repository",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(*configPath, false)
			if err != nil {
				return err
			}
			defer a.Close()
			return printStatus(cmd.Context(), cmd.OutOrStdout(), a)
		},
	}
}

func newOpenCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "open REPO",
		Short: "Start the configured git tool in a repository",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath, false)
			if err != nil {
				return err
			}
			defer a.Close()

			if !slices.Contains(a.cfg.Repos, args[0]) {
				return fmt.Errorf("repo %q is not configured", args[0])
			}
			return a.dashboard.Launch(args[0])
		},
	}
}

func newCheckCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify that every configured entry is a git repository",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(*configPath, false)
			if err != nil {
				return err
			}
			defer a.Close()

			t := newTable("REPO", "HEAD", "RESULT")
			failed := false
			for _, name := range a.cfg.Repos {
				info, err := git.Inspect(a.cfg.RepoDir(name))
				switch {
				case err != nil:
					failed = true
					t.Row(name, "", err.Error())
				case info.Detached:
					t.Row(name, info.Branch, "detached HEAD")
				default:
					t.Row(name, info.Branch, "ok")
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), t.String())
			if failed {
				return errRowsFailed
			}
			return nil
		},
	}
}

func runTUI(ctx context.Context, a *app) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := a.dashboard.Run(ctx); err != nil && ctx.Err() == nil {
			a.logger.Error("dashboard error", "err", err)
		}
	}()

	p := tea.NewProgram(tui.NewModel(a.dashboard, snapshotPoll), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

func printStatus(ctx context.Context, w io.Writer, a *app) error {
	a.dashboard.Refresh(ctx)
	statuses := a.dashboard.Statuses()

	fmt.Fprintln(w, renderStatusTable(statuses))
	for _, s := range statuses {
		if s.Failed() {
			return errRowsFailed
		}
	}
	return nil
}

func renderStatusTable(statuses []refresh.Status) string {
	t := newTable("REPO", "BRANCH", "CHANGES", "ERROR")
	for _, s := range statuses {
		if s.Failed() {
			t.Row(s.Name, "", "-", dashboard.ErrorLabel(s.Err))
			continue
		}
		t.Row(s.Name, s.Branch, strconv.Itoa(s.Changes), "")
	}
	return t.String()
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderRow(false).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			return lipgloss.NewStyle().Padding(0, 1)
		})
}
