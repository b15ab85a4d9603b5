// Package history keeps a record of finished scan sessions.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/zhengda-lu/antiv/internal/utils"
)

// Trigger says what started a scan.
type Trigger string

const (
	TriggerManual    Trigger = "manual"
	TriggerScheduled Trigger = "scheduled"
)

// Outcome is how a scan session ended.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeStopped   Outcome = "stopped"
	OutcomeFailed    Outcome = "failed"
)

// recentLimit caps Stats.Recent.
const recentLimit = 5

// Entry represents a single scan session recorded in the history.
type Entry struct {
	Timestamp   time.Time `json:"timestamp"`
	SessionID   string    `json:"session_id"`
	Path        string    `json:"path"`
	Trigger     Trigger   `json:"trigger"`
	Outcome     Outcome   `json:"outcome"`
	Scanned     int       `json:"scanned"`
	Total       int       `json:"total"`
	Detections  int       `json:"detections"`
	Quarantined int       `json:"quarantined"`
	Error       string    `json:"error,omitempty"`
}

// Stats holds aggregate scan statistics.
type Stats struct {
	TotalScans       int             `json:"total_scans"`
	FilesScanned     int             `json:"files_scanned"`
	TotalDetections  int             `json:"total_detections"`
	TotalQuarantined int             `json:"total_quarantined"`
	ByOutcome        map[Outcome]int `json:"by_outcome"`
	Recent           []Entry         `json:"recent"`
}

// ErrCorrupt marks a history file that exists but does not parse.
var ErrCorrupt = errors.New("history file is corrupt")

// History manages the scan history file.
type History struct {
	path     string
	readFile func(string) ([]byte, error)
	mu       sync.Mutex
}

func New(path string) *History {
	return &History{path: path, readFile: os.ReadFile}
}

// DefaultPath returns ~/.local/share/antiv/history.json.
func DefaultPath() string {
	return filepath.Join(utils.DataDir(), "history.json")
}

func (h *History) Path() string { return h.path }

// Record appends an entry to the history file. A corrupt file is replaced
// rather than blocking the write; a file that cannot be read is left alone
// and the error returned.
func (h *History) Record(e Entry) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	entries, err := h.Load()
	switch {
	case errors.Is(err, ErrCorrupt):
		entries = nil
	case err != nil:
		return err
	}
	entries = append(entries, e)

	if err := utils.WriteJSONAtomic(h.path, entries); err != nil {
		return fmt.Errorf("failed to write history file: %w", err)
	}
	return nil
}

// Load reads all entries from the history file. A missing file yields an
// empty history.
func (h *History) Load() ([]Entry, error) {
	data, err := h.readFile(h.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read history file: %w", err)
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse history file: %w: %v", ErrCorrupt, err)
	}
	return entries, nil
}

// Stats computes aggregate statistics from the history.
func (h *History) Stats() Stats {
	s := Stats{ByOutcome: make(map[Outcome]int)}

	entries, err := h.Load()
	if err != nil || len(entries) == 0 {
		return s
	}

	s.TotalScans = len(entries)
	for _, e := range entries {
		s.FilesScanned += e.Scanned
		s.TotalDetections += e.Detections
		s.TotalQuarantined += e.Quarantined
		s.ByOutcome[e.Outcome]++
	}

	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.After(sorted[j].Timestamp)
	})
	s.Recent = sorted[:min(recentLimit, len(sorted))]

	return s
}
