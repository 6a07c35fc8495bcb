package board

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/rileyhilliard/debdeploy/internal/ui"
)

var (
	activeStyle = lipgloss.NewStyle().
			Foreground(ui.ColorInfo)

	pendingStyle = lipgloss.NewStyle().
			Foreground(ui.ColorMuted)

	doneStyle = lipgloss.NewStyle().
			Foreground(ui.ColorSuccess)

	warnStyle = lipgloss.NewStyle().
			Foreground(ui.ColorWarning)

	failedStyle = lipgloss.NewStyle().
			Foreground(ui.ColorError)

	mutedStyle = lipgloss.NewStyle().
			Foreground(ui.ColorMuted)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ui.ColorPrimary)
)
