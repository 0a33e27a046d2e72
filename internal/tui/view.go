package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

const (
	maxNameWidth   = 32
	maxBranchWidth = 40
)

func renderView(m Model) string {
	var b strings.Builder
	snap := m.snapshot

	dirty, failed := snap.counts()
	header := fmt.Sprintf("git-overlay │ %d repos │ %d dirty │ %d errors",
		len(snap.Repos), dirty, failed)
	b.WriteString(headerStyle.Render(header))
	b.WriteString("\n")
	if snap.Root != "" {
		b.WriteString(emptyStyle.Render("  " + snap.Root))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	b.WriteString(renderTable(snap.Repos, m.visible, m.selected))

	if m.filtering || m.filter.Value() != "" {
		b.WriteString("\n")
		b.WriteString(m.filter.View())
		b.WriteString("\n")
	}

	if m.status != "" {
		style := statusStyle
		if m.statusErr {
			style = statusErrStyle
		}
		b.WriteString(style.Render(m.status))
		b.WriteString("\n")
	}

	footer := "Last updated: " + snap.Timestamp.Format("15:04:05")
	if snap.Timestamp.IsZero() {
		footer = "Last updated: never"
	}
	if snap.Refreshing || m.refreshing {
		footer += " │ refreshing…"
	}
	b.WriteString(footerStyle.Render(footer))
	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))

	return b.String()
}

func renderTable(repos []RepoState, visible []int, selected int) string {
	if len(repos) == 0 {
		return emptyStyle.Render("  (no repos configured)") + "\n"
	}
	if len(visible) == 0 {
		return emptyStyle.Render("  (no repos match the filter)") + "\n"
	}

	nameW, branchW := len("REPO"), len("BRANCH")
	for _, idx := range visible {
		nameW = max(nameW, runewidth.StringWidth(truncate(repos[idx].Name, maxNameWidth)))
		branchW = max(branchW, runewidth.StringWidth(truncate(branchCell(repos[idx]), maxBranchWidth)))
	}

	var b strings.Builder
	b.WriteString("  ")
	b.WriteString(columnStyle.Render(pad("REPO", nameW) + "  " + pad("BRANCH", branchW) + "  CHANGES"))
	b.WriteString("\n")

	for i, idx := range visible {
		r := repos[idx]
		name := pad(truncate(r.Name, maxNameWidth), nameW)
		branch := pad(truncate(branchCell(r), maxBranchWidth), branchW)
		changes := fmt.Sprintf("%d", r.Changes)
		if r.Err != "" {
			changes = "-"
		}

		if i == selected {
			line := "› " + name + "  " + branch + "  " + changes
			b.WriteString(selectedStyle.Render(line))
			b.WriteString("\n")
			continue
		}

		bStyle := branchStyle
		if r.Err != "" {
			bStyle = errorStyle
		}
		b.WriteString("  ")
		b.WriteString(nameStyle.Render(name))
		b.WriteString("  ")
		b.WriteString(bStyle.Render(branch))
		b.WriteString("  ")
		b.WriteString(lipgloss.NewStyle().Foreground(changesColor(r)).Render(changes))
		b.WriteString("\n")
	}

	return b.String()
}

func branchCell(r RepoState) string {
	if r.Err != "" {
		return "error: " + r.Err
	}
	if r.Branch == "" {
		return "…"
	}
	return r.Branch
}

func truncate(s string, width int) string {
	if runewidth.StringWidth(s) > width {
		return runewidth.Truncate(s, width, "…")
	}
	return s
}

func pad(s string, width int) string {
	return runewidth.FillRight(s, width)
}
