package tui

import (
	"context"
	"fmt"
	"os/exec"
	"sort"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/sahilm/fuzzy"
)

const statusTTL = 4 * time.Second

// Provider is the dashboard core as seen by the UI.
type Provider interface {
	GetSnapshot() Snapshot
	Refresh(ctx context.Context)
	// Open starts the tool for a repo. A non-nil command needs the terminal
	// and is run by the UI in the foreground.
	Open(name string) (*exec.Cmd, error)
}

type Model struct {
	provider        Provider
	snapshot        Snapshot
	refreshInterval time.Duration
	keys            keyMap
	help            help.Model
	filter          textinput.Model
	filtering       bool
	visible         []int // indices into snapshot.Repos after filtering
	selected        int   // index into visible
	refreshing      bool
	status          string
	statusErr       bool
	statusID        int

	// copyPath is swapped in tests; the system clipboard is not available in CI.
	copyPath func(string) error
}

type (
	tickMsg      time.Time
	refreshedMsg struct{}
	launchedMsg  struct {
		name string
		cmd  *exec.Cmd
		err  error
	}
	toolExitedMsg struct {
		name string
		err  error
	}
	copiedMsg struct {
		path string
		err  error
	}
	clearStatusMsg struct{ id int }
)

// NewModel builds the dashboard model. refreshInterval controls how often
// the snapshot is re-read from the provider, which picks up refreshes the
// dashboard ran on its own; zero disables polling.
func NewModel(provider Provider, refreshInterval time.Duration) Model {
	ti := textinput.New()
	ti.Prompt = "/"
	ti.Placeholder = "filter repos"

	m := Model{
		provider:        provider,
		snapshot:        provider.GetSnapshot(),
		refreshInterval: refreshInterval,
		keys:            defaultKeyMap(),
		help:            help.New(),
		filter:          ti,
		copyPath:        clipboard.WriteAll,
	}
	m.applyFilter()
	return m
}

func (m Model) Init() tea.Cmd {
	if m.refreshInterval <= 0 {
		return nil
	}
	return tickCmd(m.refreshInterval)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		if m.filtering {
			return m.updateFilter(msg)
		}
		return m.updateList(msg)

	case tickMsg:
		m.setSnapshot(m.provider.GetSnapshot())
		return m, tickCmd(m.refreshInterval)

	case refreshedMsg:
		m.refreshing = false
		m.setSnapshot(m.provider.GetSnapshot())
		return m, nil

	case launchedMsg:
		if msg.err != nil {
			return m, m.setStatus(msg.err.Error(), true)
		}
		if msg.cmd != nil {
			name := msg.name
			return m, tea.ExecProcess(msg.cmd, func(err error) tea.Msg {
				return toolExitedMsg{name: name, err: err}
			})
		}
		return m, m.setStatus(fmt.Sprintf("started %s in %s", m.snapshot.Tool, msg.name), false)

	case toolExitedMsg:
		var status tea.Cmd
		if msg.err != nil {
			status = m.setStatus(fmt.Sprintf("%s in %s: %v", m.snapshot.Tool, msg.name, msg.err), true)
		} else {
			status = m.setStatus(fmt.Sprintf("%s closed in %s", m.snapshot.Tool, msg.name), false)
		}
		// The tool most likely changed the repo.
		if m.refreshing {
			return m, status
		}
		m.refreshing = true
		return m, tea.Batch(status, m.refreshCmd())

	case copiedMsg:
		if msg.err != nil {
			return m, m.setStatus("copy failed: "+msg.err.Error(), true)
		}
		return m, m.setStatus("copied "+msg.path, false)

	case clearStatusMsg:
		if msg.id == m.statusID {
			m.status = ""
			m.statusErr = false
		}
		return m, nil
	}

	return m, nil
}

func (m Model) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Up):
		if m.selected > 0 {
			m.selected--
		}
	case key.Matches(msg, m.keys.Down):
		if m.selected < len(m.visible)-1 {
			m.selected++
		}
	case key.Matches(msg, m.keys.Refresh):
		if m.refreshing {
			return m, nil
		}
		m.refreshing = true
		return m, m.refreshCmd()
	case key.Matches(msg, m.keys.Launch):
		repo, ok := m.current()
		if !ok {
			return m, nil
		}
		p := m.provider
		return m, func() tea.Msg {
			cmd, err := p.Open(repo.Name)
			return launchedMsg{name: repo.Name, cmd: cmd, err: err}
		}
	case key.Matches(msg, m.keys.Copy):
		repo, ok := m.current()
		if !ok {
			return m, nil
		}
		copyPath := m.copyPath
		return m, func() tea.Msg {
			return copiedMsg{path: repo.Path, err: copyPath(repo.Path)}
		}
	case key.Matches(msg, m.keys.Filter):
		m.filtering = true
		return m, m.filter.Focus()
	case key.Matches(msg, m.keys.Clear):
		m.filter.SetValue("")
		m.applyFilter()
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	}
	return m, nil
}

func (m Model) updateFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.filtering = false
		m.filter.Blur()
		m.filter.SetValue("")
		m.applyFilter()
		return m, nil
	case tea.KeyEnter:
		m.filtering = false
		m.filter.Blur()
		return m, nil
	case tea.KeyCtrlC:
		return m, tea.Quit
	}

	var cmd tea.Cmd
	m.filter, cmd = m.filter.Update(msg)
	m.applyFilter()
	return m, cmd
}

func (m *Model) setSnapshot(s Snapshot) {
	var current string
	if repo, ok := m.current(); ok {
		current = repo.Name
	}
	m.snapshot = s
	m.applyFilter()
	// Keep the cursor on the same repo when it is still visible.
	for i, idx := range m.visible {
		if s.Repos[idx].Name == current {
			m.selected = i
			return
		}
	}
}

func (m *Model) applyFilter() {
	m.visible = make([]int, 0, len(m.snapshot.Repos))
	query := m.filter.Value()
	if query == "" {
		for i := range m.snapshot.Repos {
			m.visible = append(m.visible, i)
		}
	} else {
		for _, match := range fuzzy.FindFrom(query, repoSource(m.snapshot.Repos)) {
			m.visible = append(m.visible, match.Index)
		}
		sort.Ints(m.visible)
	}
	if m.selected >= len(m.visible) {
		m.selected = max(0, len(m.visible)-1)
	}
}

func (m Model) current() (RepoState, bool) {
	if m.selected < 0 || m.selected >= len(m.visible) {
		return RepoState{}, false
	}
	return m.snapshot.Repos[m.visible[m.selected]], true
}

func (m Model) refreshCmd() tea.Cmd {
	p := m.provider
	return func() tea.Msg {
		p.Refresh(context.Background())
		return refreshedMsg{}
	}
}

func (m *Model) setStatus(text string, isErr bool) tea.Cmd {
	m.statusID++
	m.status = text
	m.statusErr = isErr
	id := m.statusID
	return tea.Tick(statusTTL, func(time.Time) tea.Msg {
		return clearStatusMsg{id: id}
	})
}

func (m Model) View() string {
	return renderView(m)
}

func tickCmd(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// repoSource implements fuzzy.Source over repo names.
type repoSource []RepoState

func (s repoSource) String(i int) string { return s[i].Name }
func (s repoSource) Len() int            { return len(s) }
