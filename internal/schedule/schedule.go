// Package schedule persists recurring scan definitions and decides when
// each one is due.
package schedule

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Frequency is how often a schedule repeats.
type Frequency string

const (
	Daily  Frequency = "Daily"
	Weekly Frequency = "Weekly"
)

// ParseFrequency accepts "daily" or "weekly" in any case.
func ParseFrequency(s string) (Frequency, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "daily":
		return Daily, nil
	case "weekly":
		return Weekly, nil
	default:
		return "", fmt.Errorf("invalid frequency %q, expected daily or weekly", s)
	}
}

// Record is one recurring scan. LastRun is nil until the first trigger.
type Record struct {
	Time      string     `json:"time" validate:"required,clock"`
	Frequency Frequency  `json:"frequency" validate:"required,oneof=Daily Weekly"`
	Path      string     `json:"path" validate:"required"`
	LastRun   *time.Time `json:"last_run"`
}

func (r Record) String() string {
	return fmt.Sprintf("Scan %s %s at %s", r.Path, r.Frequency, r.Time)
}

// naiveLayouts are timestamps without a zone offset, as written by older
// schedule files. They are read in the local zone.
var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
}

func (r *Record) UnmarshalJSON(data []byte) error {
	type plain Record
	var raw struct {
		plain
		LastRun *string `json:"last_run"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*r = Record(raw.plain)
	r.LastRun = nil
	if raw.LastRun == nil || *raw.LastRun == "" {
		return nil
	}
	t, err := parseTimestamp(*raw.LastRun)
	if err != nil {
		return err
	}
	r.LastRun = &t
	return nil
}

func parseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid last_run timestamp %q", s)
}

// parseTime splits a "HH:MM" string into hour and minute integers.
func parseTime(timeStr string) (int, int, error) {
	parts := strings.SplitN(timeStr, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time format %q, expected HH:MM", timeStr)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q: must be 0-23", timeStr)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q: must be 0-59", timeStr)
	}
	return hour, minute, nil
}

// NormalizeTime returns timeStr as zero-padded HH:MM.
func NormalizeTime(timeStr string) (string, error) {
	h, m, err := parseTime(timeStr)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%02d:%02d", h, m), nil
}

// Matches reports whether now falls in the record's hour and minute.
func Matches(r Record, now time.Time) bool {
	h, m, err := parseTime(r.Time)
	if err != nil {
		return false
	}
	return now.Hour() == h && now.Minute() == m
}

// ShouldRun applies the frequency rule against the last run, comparing
// calendar dates in now's zone: daily needs a new date, weekly needs a date
// at least seven days on. A last run in the future never allows a run.
func ShouldRun(r Record, now time.Time) bool {
	if r.LastRun == nil {
		return true
	}
	last := *r.LastRun
	if now.Before(last) {
		return false
	}
	days := daysBetween(last.In(now.Location()), now)
	switch r.Frequency {
	case Daily:
		return days >= 1
	case Weekly:
		return days >= 7
	default:
		return false
	}
}

// daysBetween counts calendar dates from a to b, ignoring clock time and
// DST shifts.
func daysBetween(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	from := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	to := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(to.Sub(from).Hours() / 24)
}

// IsDue is true only during the scheduled minute.
func IsDue(r Record, now time.Time) bool {
	return Matches(r, now) && ShouldRun(r, now)
}

// IsDueCatchUp also fires a record whose scheduled minute was missed
// earlier today, provided it has run before. A record that never ran
// waits for its exact minute.
func IsDueCatchUp(r Record, now time.Time) bool {
	if IsDue(r, now) {
		return true
	}
	if r.LastRun == nil || !ShouldRun(r, now) {
		return false
	}
	h, m, err := parseTime(r.Time)
	if err != nil {
		return false
	}
	y, mo, d := now.Date()
	return now.After(time.Date(y, mo, d, h, m, 0, 0, now.Location()))
}

// Advance sets LastRun to now. It never moves LastRun backward and reports
// whether it changed.
func (r *Record) Advance(now time.Time) bool {
	if r.LastRun != nil && !now.After(*r.LastRun) {
		return false
	}
	t := now
	r.LastRun = &t
	return true
}
