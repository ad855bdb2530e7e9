package app

import "github.com/charmbracelet/lipgloss"

var (
	userStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	assistantStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("213"))
	metaStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	toolStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("179"))
	reasoningStyle = lipgloss.NewStyle().Faint(true).Italic(true)

	statusBarStyle = lipgloss.NewStyle().
			Padding(0, statusLinePadding).
			Foreground(lipgloss.Color("252")).
			Background(lipgloss.Color("236"))

	paneStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240"))
	focusedPaneStyle = paneStyle.BorderForeground(lipgloss.Color("63"))
)

func pane(focused bool) lipgloss.Style {
	if focused {
		return focusedPaneStyle
	}
	return paneStyle
}
