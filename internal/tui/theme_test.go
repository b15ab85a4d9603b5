package tui

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
)

func TestPhaseColor(t *testing.T) {
	tests := []struct {
		phase phase
		want  lipgloss.Color
	}{
		{phaseScanning, colorPrimary},
		{phaseStopping, colorWarning},
		{phaseStopped, colorWarning},
		{phaseDone, colorSuccess},
		{phase(99), colorText},
	}
	for _, tt := range tests {
		if got := phaseColor(tt.phase); got != tt.want {
			t.Errorf("phaseColor(%d) = %v, want %v", tt.phase, got, tt.want)
		}
	}
}

func TestRenderFooter(t *testing.T) {
	got := renderFooter("s stop", "q quit")
	if !strings.Contains(got, "s stop • q quit") {
		t.Errorf("renderFooter() = %q", got)
	}
}
