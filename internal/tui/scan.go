// Package tui renders a live view of a running scan.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/zhengda-lu/antiv/internal/detection"
	"github.com/zhengda-lu/antiv/internal/scanner"
)

const maxDetectionsShown = 8

type phase int

const (
	phaseScanning phase = iota
	phaseStopping
	phaseStopped
	phaseDone
)

// EventMsg carries one session event into the program.
type EventMsg struct {
	Event     scanner.Event
	Detection *detection.Result
}

// streamClosedMsg is sent once the event channel is closed.
type streamClosedMsg struct{}

type detectionRow struct {
	path      string
	signature string
	entry     string
	err       error
	raw       string
}

// Model is the bubbletea model for a single scan.
type Model struct {
	target string
	events <-chan EventMsg
	stop   func()

	delimiter   string
	foundMarker string

	phase      phase
	scanned    int
	total      int
	percent    int
	current    string
	detections []detectionRow
	message    string
	summary    string

	spinner  spinner.Model
	progress progress.Model
	width    int
}

// New returns a model that renders events read from events and calls stop
// when the user asks to stop. The producer closes events after the
// terminal event.
func New(target string, events <-chan EventMsg, stop func()) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(colorPrimary)

	return Model{
		target:   target,
		events:   events,
		stop:     stop,
		spinner:  sp,
		progress: progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
	}
}

// WithLineFormat sets how detection lines are parsed when an event arrives
// without a handler result.
func (m Model) WithLineFormat(delimiter, foundMarker string) Model {
	m.delimiter, m.foundMarker = delimiter, foundMarker
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, listenEvents(m.events))
}

func listenEvents(ch <-chan EventMsg) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-ch
		if !ok {
			return streamClosedMsg{}
		}
		return msg
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.progress.Width = max(10, min(60, msg.Width-20))
		return m, nil

	case spinner.TickMsg:
		if m.active() {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil

	case EventMsg:
		m.apply(msg)
		return m, listenEvents(m.events)

	case streamClosedMsg:
		if m.active() {
			m.phase = phaseDone
		}
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.requestStop()
			return m, tea.Quit
		case "s":
			m.requestStop()
			return m, nil
		case "q", "esc":
			if m.active() {
				m.requestStop()
			}
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m *Model) requestStop() {
	if m.phase != phaseScanning {
		return
	}
	m.phase = phaseStopping
	if m.stop != nil {
		m.stop()
	}
}

func (m Model) active() bool {
	return m.phase == phaseScanning || m.phase == phaseStopping
}

func (m *Model) apply(msg EventMsg) {
	ev := msg.Event
	switch ev.Kind {
	case scanner.EventProgress:
		m.scanned, m.total, m.percent = ev.Scanned, ev.Total, ev.Percent
		m.current = ev.Detail
	case scanner.EventDetection:
		row := detectionRow{raw: ev.RawLine}
		if d := msg.Detection; d != nil {
			row.path, row.signature, row.err = d.Path, d.Signature, d.Err
			row.entry = d.Entry.Name
		} else {
			row.path, row.signature, _ = detection.ParsePath(ev.RawLine, m.delimiter, m.foundMarker)
		}
		m.detections = append(m.detections, row)
	case scanner.EventCompleted:
		m.phase = phaseDone
		m.scanned, m.total = ev.Scanned, ev.Total
		m.message, m.summary = ev.Message, ev.Summary
	case scanner.EventStopped:
		m.phase = phaseStopped
		m.scanned, m.total = ev.Scanned, ev.Total
		m.message = ev.Message
	}
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(renderHeader("scan", m.target))

	status := lipgloss.NewStyle().Foreground(phaseColor(m.phase))
	switch m.phase {
	case phaseScanning:
		b.WriteString(m.spinner.View() + status.Render(" Scanning...") + "\n\n")
	case phaseStopping:
		b.WriteString(m.spinner.View() + status.Render(" Stopping...") + "\n\n")
	default:
		b.WriteString(status.Render(m.message) + "\n\n")
	}

	b.WriteString(m.progress.ViewAs(float64(m.percent)/100) + "\n")
	b.WriteString(fmt.Sprintf("%s of %s files scanned\n",
		countStyle.Render(fmt.Sprint(m.scanned)), countStyle.Render(fmt.Sprint(m.total))))
	if m.active() && m.current != "" {
		b.WriteString(dimStyle.Render(truncateLeft(m.current, m.lineWidth())) + "\n")
	}

	if n := len(m.detections); n > 0 {
		b.WriteString("\n" + detectionStyle.Render(fmt.Sprintf("%d detection(s)", n)) + "\n")
		start := max(0, n-maxDetectionsShown)
		for _, d := range m.detections[start:] {
			b.WriteString("  " + m.renderDetection(d) + "\n")
		}
		if start > 0 {
			b.WriteString(dimStyle.Render(fmt.Sprintf("  ... %d more", start)) + "\n")
		}
	}

	if m.summary != "" {
		b.WriteString("\n" + summaryStyle.Render(m.summary) + "\n")
	}

	if m.active() {
		b.WriteString(renderFooter("s stop", "q quit"))
	} else {
		b.WriteString(renderFooter("q quit"))
	}
	return b.String()
}

func (m Model) renderDetection(d detectionRow) string {
	switch {
	case d.path == "":
		return failedStyle.Render("unparsed: " + truncateLeft(d.raw, m.lineWidth()))
	case d.err != nil:
		return detectionStyle.Render(truncateLeft(d.path, m.lineWidth())) + " " +
			failedStyle.Render(fmt.Sprintf("%s (not quarantined: %v)", d.signature, d.err))
	case d.entry != "":
		return detectionStyle.Render(truncateLeft(d.path, m.lineWidth())) + " " +
			quarantinedStyle.Render(fmt.Sprintf("%s -> quarantined as %s", d.signature, d.entry))
	default:
		return detectionStyle.Render(truncateLeft(d.path, m.lineWidth())) + " " + d.signature
	}
}

func (m Model) lineWidth() int {
	if m.width <= 0 {
		return 80
	}
	return max(20, m.width-4)
}
