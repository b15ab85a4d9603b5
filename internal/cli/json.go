package cli

import (
	"time"

	"github.com/zhengda-lu/antiv/internal/detection"
	"github.com/zhengda-lu/antiv/internal/engine"
	"github.com/zhengda-lu/antiv/internal/history"
	"github.com/zhengda-lu/antiv/internal/quarantine"
	"github.com/zhengda-lu/antiv/internal/schedule"
)

// ---------------------------------------------------------------------------
// Scan JSON types
// ---------------------------------------------------------------------------

type scanJSON struct {
	Version    string          `json:"version"`
	Timestamp  time.Time       `json:"timestamp"`
	Summary    engine.Summary  `json:"summary"`
	Detections []detectionJSON `json:"detections"`
}

type detectionJSON struct {
	RawLine     string `json:"raw_line"`
	Path        string `json:"path,omitempty"`
	Signature   string `json:"signature,omitempty"`
	Quarantined bool   `json:"quarantined"`
	Entry       string `json:"entry,omitempty"`
	Error       string `json:"error,omitempty"`
}

func newDetectionJSON(raw string, res *detection.Result) detectionJSON {
	d := detectionJSON{RawLine: raw}
	if res == nil {
		return d
	}
	d.Path, d.Signature = res.Path, res.Signature
	if res.Isolated() {
		d.Quarantined = true
		d.Entry = res.Entry.Name
	} else {
		d.Error = res.Err.Error()
	}
	return d
}

func buildScanJSON(sum engine.Summary, dets []detectionJSON) scanJSON {
	if dets == nil {
		dets = []detectionJSON{}
	}
	return scanJSON{
		Version:    version,
		Timestamp:  time.Now(),
		Summary:    sum,
		Detections: dets,
	}
}

// ---------------------------------------------------------------------------
// Quarantine JSON types
// ---------------------------------------------------------------------------

type quarantineJSON struct {
	Version   string             `json:"version"`
	Timestamp time.Time          `json:"timestamp"`
	Dir       string             `json:"dir"`
	Entries   []quarantine.Entry `json:"entries"`
	TotalSize int64              `json:"total_size"`
}

func buildQuarantineJSON(dir string, entries []quarantine.Entry) quarantineJSON {
	if entries == nil {
		entries = []quarantine.Entry{}
	}
	var total int64
	for _, e := range entries {
		total += e.Size
	}
	return quarantineJSON{
		Version:   version,
		Timestamp: time.Now(),
		Dir:       dir,
		Entries:   entries,
		TotalSize: total,
	}
}

// ---------------------------------------------------------------------------
// Schedule JSON types
// ---------------------------------------------------------------------------

type scheduleJSON struct {
	Version   string             `json:"version"`
	Timestamp time.Time          `json:"timestamp"`
	File      string             `json:"file"`
	Schedules []scheduleItemJSON `json:"schedules"`
}

type scheduleItemJSON struct {
	Index       int        `json:"index"`
	Description string     `json:"description"`
	Time        string     `json:"time"`
	Frequency   string     `json:"frequency"`
	Path        string     `json:"path"`
	LastRun     *time.Time `json:"last_run"`
}

func buildScheduleJSON(file string, recs []schedule.Record) scheduleJSON {
	items := make([]scheduleItemJSON, 0, len(recs))
	for i, r := range recs {
		items = append(items, scheduleItemJSON{
			Index:       i + 1,
			Description: r.String(),
			Time:        r.Time,
			Frequency:   string(r.Frequency),
			Path:        r.Path,
			LastRun:     r.LastRun,
		})
	}
	return scheduleJSON{
		Version:   version,
		Timestamp: time.Now(),
		File:      file,
		Schedules: items,
	}
}

// ---------------------------------------------------------------------------
// History JSON types
// ---------------------------------------------------------------------------

type historyJSON struct {
	Version   string          `json:"version"`
	Timestamp time.Time       `json:"timestamp"`
	Stats     history.Stats   `json:"stats"`
	Entries   []history.Entry `json:"entries"`
}

func buildHistoryJSON(entries []history.Entry, stats history.Stats) historyJSON {
	if entries == nil {
		entries = []history.Entry{}
	}
	return historyJSON{
		Version:   version,
		Timestamp: time.Now(),
		Stats:     stats,
		Entries:   entries,
	}
}

// ---------------------------------------------------------------------------
// Update JSON types
// ---------------------------------------------------------------------------

type updateJSON struct {
	Version         string `json:"version"`
	UpdateAvailable bool   `json:"update_available"`
}
