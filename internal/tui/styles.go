package tui

import "github.com/charmbracelet/lipgloss"

var (
	headerBarStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(colorPrimary).
		MarginBottom(1)

	footerStyle = lipgloss.NewStyle().
		Foreground(colorDim).
		MarginTop(1)

	dimStyle = lipgloss.NewStyle().
		Foreground(colorDim)

	detectionStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(colorDanger)

	quarantinedStyle = lipgloss.NewStyle().
		Foreground(colorSuccess)

	failedStyle = lipgloss.NewStyle().
		Foreground(colorWarning)

	summaryStyle = lipgloss.NewStyle().
		Foreground(colorText).
		Background(colorSubtle).
		Padding(0, 1)

	countStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(colorSecondary)
)
