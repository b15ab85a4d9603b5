package schedule

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParseTime(t *testing.T) {
	tests := []struct {
		input   string
		hour    int
		minute  int
		wantErr bool
	}{
		{"10:00", 10, 0, false},
		{"0:00", 0, 0, false},
		{"23:59", 23, 59, false},
		{"09:30", 9, 30, false},
		{"24:00", 0, 0, true},
		{"10:60", 0, 0, true},
		{"-1:00", 0, 0, true},
		{"abc", 0, 0, true},
		{"10", 0, 0, true},
		{"", 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			hour, minute, err := parseTime(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("parseTime(%q) expected error, got nil", tt.input)
				}
				return
			}
			if err != nil {
				t.Errorf("parseTime(%q) unexpected error: %v", tt.input, err)
				return
			}
			if hour != tt.hour {
				t.Errorf("parseTime(%q) hour = %d, want %d", tt.input, hour, tt.hour)
			}
			if minute != tt.minute {
				t.Errorf("parseTime(%q) minute = %d, want %d", tt.input, minute, tt.minute)
			}
		})
	}
}

func TestParseFrequency(t *testing.T) {
	tests := []struct {
		input   string
		want    Frequency
		wantErr bool
	}{
		{"daily", Daily, false},
		{"Daily", Daily, false},
		{"WEEKLY", Weekly, false},
		{"monthly", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseFrequency(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseFrequency(%q) err = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseFrequency(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func at(t time.Time) *time.Time { return &t }

func TestShouldRun(t *testing.T) {
	now := time.Date(2026, 5, 14, 10, 0, 0, 0, time.Local)
	tests := []struct {
		name string
		rec  Record
		want bool
	}{
		{"never ran", Record{Frequency: Daily}, true},
		{"daily yesterday", Record{Frequency: Daily, LastRun: at(now.AddDate(0, 0, -1))}, true},
		{"daily earlier today", Record{Frequency: Daily, LastRun: at(now.Add(-2 * time.Hour))}, false},
		{"daily just before midnight", Record{Frequency: Daily, LastRun: at(time.Date(2026, 5, 13, 23, 59, 0, 0, time.Local))}, true},
		{"weekly six days", Record{Frequency: Weekly, LastRun: at(now.AddDate(0, 0, -6))}, false},
		{"weekly seven days", Record{Frequency: Weekly, LastRun: at(now.Add(-7 * 24 * time.Hour))}, true},
		{"weekly seven dates on, later clock time", Record{Frequency: Weekly, LastRun: at(now.Add(-7*24*time.Hour + time.Second))}, true},
		{"weekly six dates on, earlier clock time", Record{Frequency: Weekly, LastRun: at(now.Add(-7*24*time.Hour + 23*time.Hour))}, false},
		{"daily last run in the future", Record{Frequency: Daily, LastRun: at(now.AddDate(0, 0, 2))}, false},
		{"weekly last run in the future", Record{Frequency: Weekly, LastRun: at(now.Add(time.Minute))}, false},
		{"unknown frequency", Record{Frequency: "Hourly", LastRun: at(now.AddDate(0, 0, -30))}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ShouldRun(tt.rec, now); got != tt.want {
				t.Errorf("ShouldRun = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestShouldRun_WeeklyAcrossSpringForward(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("zone data unavailable: %v", err)
	}
	last := time.Date(2026, 3, 1, 9, 0, 0, 0, ny)
	now := time.Date(2026, 3, 8, 9, 0, 30, 0, ny)
	if now.Sub(last) >= 7*24*time.Hour {
		t.Fatalf("expected a short week across the DST change, got %s", now.Sub(last))
	}

	rec := Record{Time: "09:00", Frequency: Weekly, LastRun: &last}
	if !IsDue(rec, now) {
		t.Error("weekly record should be due seven dates later despite the 167h week")
	}
}

func TestIsDue_WeeklyTickBeforeLastRunSecond(t *testing.T) {
	last := time.Date(2026, 5, 7, 9, 0, 50, 0, time.UTC)
	rec := Record{Time: "09:00", Frequency: Weekly, LastRun: &last}

	for _, sec := range []int{15, 45} {
		now := time.Date(2026, 5, 14, 9, 0, sec, 0, time.UTC)
		if !IsDue(rec, now) {
			t.Errorf("tick at 09:00:%02d should find the weekly record due", sec)
		}
	}
}

func TestMatchesAndIsDue(t *testing.T) {
	now := time.Date(2026, 5, 14, 9, 30, 45, 0, time.Local)
	rec := Record{Time: "09:30", Frequency: Daily}

	if !Matches(rec, now) {
		t.Error("expected 09:30 to match 09:30:45")
	}
	if Matches(rec, now.Add(time.Minute)) {
		t.Error("09:30 should not match 09:31")
	}
	if Matches(Record{Time: "bad"}, now) {
		t.Error("invalid time should never match")
	}
	if !IsDue(rec, now) {
		t.Error("never-run record in its minute should be due")
	}

	rec.LastRun = at(now.Add(-10 * time.Second))
	if IsDue(rec, now) {
		t.Error("record already run this minute should not be due")
	}
}

func TestIsDueCatchUp(t *testing.T) {
	now := time.Date(2026, 5, 14, 12, 0, 0, 0, time.Local)

	missed := Record{Time: "09:00", Frequency: Daily, LastRun: at(now.AddDate(0, 0, -1))}
	if IsDue(missed, now) {
		t.Error("exact-minute policy should not fire a missed slot")
	}
	if !IsDueCatchUp(missed, now) {
		t.Error("catch-up should fire a slot missed earlier today")
	}

	later := Record{Time: "15:00", Frequency: Daily, LastRun: at(now.AddDate(0, 0, -1))}
	if IsDueCatchUp(later, now) {
		t.Error("catch-up should not fire before today's slot")
	}

	fresh := Record{Time: "09:00", Frequency: Daily}
	if IsDueCatchUp(fresh, now) {
		t.Error("a record that never ran should wait for its exact minute")
	}
}

func TestAdvanceNeverMovesBackward(t *testing.T) {
	now := time.Date(2026, 5, 14, 9, 0, 0, 0, time.UTC)
	var rec Record

	if !rec.Advance(now) {
		t.Fatal("first Advance should set LastRun")
	}
	if rec.Advance(now.Add(-time.Hour)) {
		t.Error("Advance to an earlier time should be refused")
	}
	if !rec.LastRun.Equal(now) {
		t.Errorf("LastRun = %v, want %v", rec.LastRun, now)
	}
	if !rec.Advance(now.Add(time.Minute)) {
		t.Error("Advance to a later time should succeed")
	}
}

func TestRecordString(t *testing.T) {
	rec := Record{Time: "08:15", Frequency: Weekly, Path: "/home/u"}
	if got, want := rec.String(), "Scan /home/u Weekly at 08:15"; got != want {
		t.Errorf("String = %q, want %q", got, want)
	}
}

func TestUnmarshalNaiveTimestamp(t *testing.T) {
	data := []byte(`{"time": "10:00", "frequency": "Daily", "path": "/x", "last_run": "2024-05-01T10:00:00.123456"}`)
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	want := time.Date(2024, 5, 1, 10, 0, 0, 123456000, time.Local)
	if rec.LastRun == nil || !rec.LastRun.Equal(want) {
		t.Errorf("LastRun = %v, want %v", rec.LastRun, want)
	}
	if rec.Path != "/x" || rec.Frequency != Daily {
		t.Errorf("record = %+v", rec)
	}

	if err := json.Unmarshal([]byte(`{"last_run": "yesterday"}`), &rec); err == nil {
		t.Error("expected error for unparseable last_run")
	}
}

func TestStoreRoundTrip(t *testing.T) {
	ran := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	cases := map[string][]Record{
		"none": {},
		"one":  {{Time: "10:00", Frequency: Daily, Path: "/a"}},
		"many": {
			{Time: "10:00", Frequency: Daily, Path: "/a"},
			{Time: "23:45", Frequency: Weekly, Path: "/b", LastRun: &ran},
			{Time: "00:00", Frequency: Daily, Path: "/c with space"},
		},
	}

	for name, records := range cases {
		t.Run(name, func(t *testing.T) {
			s := NewStore(filepath.Join(t.TempDir(), "schedule.json"), nil)
			if err := s.Save(records); err != nil {
				t.Fatalf("Save failed: %v", err)
			}
			got, err := s.Load()
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			if len(got) != len(records) {
				t.Fatalf("got %d records, want %d", len(got), len(records))
			}
			for i := range records {
				want := records[i]
				if got[i].Time != want.Time || got[i].Frequency != want.Frequency || got[i].Path != want.Path {
					t.Errorf("record %d = %+v, want %+v", i, got[i], want)
				}
				if (got[i].LastRun == nil) != (want.LastRun == nil) {
					t.Fatalf("record %d LastRun = %v, want %v", i, got[i].LastRun, want.LastRun)
				}
				if want.LastRun != nil && !got[i].LastRun.Equal(*want.LastRun) {
					t.Errorf("record %d LastRun = %v, want %v", i, got[i].LastRun, want.LastRun)
				}
			}
		})
	}
}

func TestStoreEmptyWritesArray(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schedule.json")
	if err := NewStore(path, nil).Save(nil); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	data, _ := os.ReadFile(path)
	if strings.TrimSpace(string(data)) != "[]" {
		t.Errorf("file = %q, want []", data)
	}
}

func TestStoreLoadMissingAndCorrupt(t *testing.T) {
	dir := t.TempDir()
	records, err := NewStore(filepath.Join(dir, "none.json"), nil).Load()
	if err != nil || records != nil {
		t.Errorf("missing file: records=%v err=%v", records, err)
	}

	path := filepath.Join(dir, "bad.json")
	os.WriteFile(path, []byte(`[{"time": `), 0o644)
	_, err = NewStore(path, nil).Load()
	if !errors.Is(err, ErrCorrupt) {
		t.Errorf("corrupt file err = %v, want ErrCorrupt", err)
	}
}

func TestStoreAdd(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "schedule.json"), nil)

	if err := s.Add(Record{Time: "9:05", Frequency: Daily, Path: "/home"}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := s.Add(Record{Time: "21:00", Frequency: Weekly, Path: "/srv"}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	records, err := s.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[0].Time != "09:05" {
		t.Errorf("time not normalized: %q", records[0].Time)
	}
	if records[1].Path != "/srv" {
		t.Errorf("order not preserved: %+v", records)
	}
}

func TestStoreAddRejectsInvalid(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "schedule.json"), nil)
	invalid := []Record{
		{Time: "25:00", Frequency: Daily, Path: "/a"},
		{Time: "10:00", Frequency: "Monthly", Path: "/a"},
		{Time: "10:00", Frequency: Daily},
	}
	for _, rec := range invalid {
		if err := s.Add(rec); err == nil {
			t.Errorf("Add(%+v) should fail", rec)
		}
	}
	if records, _ := s.Load(); len(records) != 0 {
		t.Errorf("invalid records were stored: %+v", records)
	}
}

func TestStoreAddReplacesCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schedule.json")
	os.WriteFile(path, []byte("not json"), 0o644)

	s := NewStore(path, nil)
	if err := s.Add(Record{Time: "10:00", Frequency: Daily, Path: "/a"}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	records, err := s.Load()
	if err != nil || len(records) != 1 {
		t.Errorf("Load = %v, %v", records, err)
	}
}

func TestStoreRemove(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "schedule.json"), nil)
	for _, p := range []string{"/a", "/b", "/c"} {
		if err := s.Add(Record{Time: "10:00", Frequency: Daily, Path: p}); err != nil {
			t.Fatal(err)
		}
	}

	removed, err := s.Remove(1)
	if err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if removed.Path != "/b" {
		t.Errorf("removed %q, want /b", removed.Path)
	}

	records, _ := s.Load()
	if len(records) != 2 || records[0].Path != "/a" || records[1].Path != "/c" {
		t.Errorf("remaining = %+v", records)
	}

	if _, err := s.Remove(5); !errors.Is(err, ErrIndex) {
		t.Errorf("Remove(5) err = %v, want ErrIndex", err)
	}
}

func TestDefaultPath(t *testing.T) {
	if !strings.HasSuffix(DefaultPath(), "antiv_schedule.json") {
		t.Errorf("DefaultPath = %q", DefaultPath())
	}
}
