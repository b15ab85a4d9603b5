package tui

import "github.com/charmbracelet/lipgloss"

// ---------------------------------------------------------------------------
// Color palette -- single source of truth for all TUI colors.
// Values are ANSI-256 color codes passed to lipgloss.Color().
// ---------------------------------------------------------------------------

var (
	colorPrimary   = lipgloss.Color("170")
	colorSecondary = lipgloss.Color("212")
	colorSuccess   = lipgloss.Color("82")
	colorWarning   = lipgloss.Color("214")
	colorDanger    = lipgloss.Color("196")
	colorDim       = lipgloss.Color("241")
	colorSubtle    = lipgloss.Color("236")
	colorText      = lipgloss.Color("252")
)

// phaseColor picks the status line color for a scan phase.
func phaseColor(p phase) lipgloss.Color {
	switch p {
	case phaseScanning:
		return colorPrimary
	case phaseStopping:
		return colorWarning
	case phaseStopped:
		return colorWarning
	case phaseDone:
		return colorSuccess
	default:
		return colorText
	}
}
