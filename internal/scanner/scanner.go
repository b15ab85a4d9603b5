package scanner

import "fmt"

// EventKind identifies which variant of Event is populated.
type EventKind int

const (
	EventProgress EventKind = iota
	EventDetection
	EventCompleted
	EventStopped
)

func (k EventKind) String() string {
	switch k {
	case EventProgress:
		return "progress"
	case EventDetection:
		return "detection"
	case EventCompleted:
		return "completed"
	case EventStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Event is a single item of a session's event sequence. Only the fields
// relevant to Kind are set:
//
//	EventProgress:  Percent, Detail, Scanned, Total
//	EventDetection: RawLine
//	EventCompleted: Summary, Message, Scanned, Total
//	EventStopped:   Message
type Event struct {
	Kind      EventKind `json:"kind"`
	SessionID string    `json:"session_id"`
	Percent   int       `json:"percent,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	RawLine   string    `json:"raw_line,omitempty"`
	Summary   string    `json:"summary,omitempty"`
	Message   string    `json:"message,omitempty"`
	Scanned   int       `json:"scanned"`
	Total     int       `json:"total"`
}

// Terminal reports whether the event ends its session.
func (e Event) Terminal() bool {
	return e.Kind == EventCompleted || e.Kind == EventStopped
}

func progressEvent(id string, scanned, total int, line string) Event {
	return Event{
		Kind:      EventProgress,
		SessionID: id,
		Percent:   percent(scanned, total),
		Detail:    line,
		Scanned:   scanned,
		Total:     total,
	}
}

func completedEvent(id, summary string, scanned, total int) Event {
	msg := fmt.Sprintf("Scan complete: %d of %d files scanned.", scanned, total)
	if total == 0 {
		msg = "No files found to scan."
	}
	return Event{
		Kind:      EventCompleted,
		SessionID: id,
		Summary:   summary,
		Message:   msg,
		Scanned:   scanned,
		Total:     total,
	}
}

func stoppedEvent(id string, scanned, total int) Event {
	return Event{
		Kind:      EventStopped,
		SessionID: id,
		Message:   "Scan stopped.",
		Scanned:   scanned,
		Total:     total,
	}
}

// percent truncates toward zero. It is not clamped: files added to the
// target after the manifest was taken can push it past 100.
func percent(scanned, total int) int {
	if total <= 0 {
		return 0
	}
	return scanned * 100 / total
}
