package tui

import "github.com/charmbracelet/lipgloss"

var (
	colorBranch = lipgloss.Color("39")  // blue
	colorDirty  = lipgloss.Color("214") // orange
	colorClean  = lipgloss.Color("46")  // green
	colorError  = lipgloss.Color("196") // red
	colorMuted  = lipgloss.Color("240") // gray

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")).
			PaddingLeft(1).
			PaddingRight(1)

	columnStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212"))

	nameStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	selectedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")).
			Background(lipgloss.Color("237"))

	branchStyle = lipgloss.NewStyle().Foreground(colorBranch)
	errorStyle  = lipgloss.NewStyle().Foreground(colorError)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")).
			MarginTop(1)

	statusErrStyle = lipgloss.NewStyle().
			Foreground(colorError).
			MarginTop(1)

	footerStyle = lipgloss.NewStyle().
			Foreground(colorMuted).
			MarginTop(1)

	emptyStyle = lipgloss.NewStyle().
			Foreground(colorMuted).
			Italic(true)
)

func changesColor(r RepoState) lipgloss.Color {
	switch {
	case r.Err != "":
		return colorMuted
	case r.Changes > 0:
		return colorDirty
	default:
		return colorClean
	}
}
