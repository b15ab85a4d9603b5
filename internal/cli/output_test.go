package cli

import (
	"errors"
	"io"
	"os"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/zhengda-lu/antiv/internal/detection"
	"github.com/zhengda-lu/antiv/internal/engine"
	"github.com/zhengda-lu/antiv/internal/history"
	"github.com/zhengda-lu/antiv/internal/quarantine"
	"github.com/zhengda-lu/antiv/internal/schedule"
)

// captureOutput redirects stdout via os.Pipe and returns whatever was written.
func captureOutput(fn func()) string {
	origStdout := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	done := make(chan string)
	go func() {
		data, _ := io.ReadAll(r)
		done <- string(data)
	}()

	fn()

	w.Close()
	os.Stdout = origStdout
	return <-done
}

var ansiRe = regexp.MustCompile(`\x1b\[[0-9;]*m`)

func stripAnsi(s string) string {
	return ansiRe.ReplaceAllString(s, "")
}

// ---------------------------------------------------------------------------
// truncatePath
// ---------------------------------------------------------------------------

func TestTruncatePath(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		maxLen int
		want   string
	}{
		{
			name:   "short path unchanged",
			path:   "/tmp/foo",
			maxLen: 20,
			want:   "/tmp/foo",
		},
		{
			name:   "exact length unchanged",
			path:   "abcdefghij",
			maxLen: 10,
			want:   "abcdefghij",
		},
		{
			name:   "long path truncated",
			path:   "/home/user/very/long/path/to/file.txt",
			maxLen: 20,
			want:   ".../path/to/file.txt",
		},
		{
			name:   "empty path",
			path:   "",
			maxLen: 10,
			want:   "",
		},
		{
			name:   "maxLen equals 4",
			path:   "abcdef",
			maxLen: 4,
			want:   "...f",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncatePath(tt.path, tt.maxLen)
			if got != tt.want {
				t.Errorf("truncatePath(%q, %d) = %q, want %q", tt.path, tt.maxLen, got, tt.want)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// printDetection
// ---------------------------------------------------------------------------

func TestPrintDetection(t *testing.T) {
	tests := []struct {
		name string
		res  *detection.Result
		want []string
	}{
		{
			name: "report only",
			res:  nil,
			want: []string{"FOUND", "/srv/x: Eicar FOUND"},
		},
		{
			name: "quarantined",
			res:  &detection.Result{Path: "/srv/x", Entry: quarantine.Entry{Name: "x"}},
			want: []string{"/srv/x", "quarantined as x"},
		},
		{
			name: "failed",
			res:  &detection.Result{Path: "/srv/x", Err: errors.New("permission denied")},
			want: []string{"not quarantined", "permission denied"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := stripAnsi(captureOutput(func() {
				printDetection(tt.res, "/srv/x: Eicar FOUND")
			}))
			for _, w := range tt.want {
				if !strings.Contains(out, w) {
					t.Errorf("expected %q in output, got %q", w, out)
				}
			}
		})
	}
}

// ---------------------------------------------------------------------------
// printSummary
// ---------------------------------------------------------------------------

func TestPrintSummary(t *testing.T) {
	sum := engine.Summary{
		Outcome:     history.OutcomeCompleted,
		Scanned:     3,
		Total:       4,
		Detections:  2,
		Quarantined: 1,
		Message:     "Scan complete: 3 of 4 files scanned.",
		Report:      "----------- SCAN SUMMARY -----------\nInfected files: 2",
	}
	out := stripAnsi(captureOutput(func() { printSummary(sum) }))

	for _, w := range []string{"Scan complete: 3 of 4 files scanned.", "Infected files: 2", "2 detection(s), 1 quarantined", "could not be quarantined"} {
		if !strings.Contains(out, w) {
			t.Errorf("expected %q in output, got:\n%s", w, out)
		}
	}
}

func TestPrintSummary_Clean(t *testing.T) {
	out := stripAnsi(captureOutput(func() {
		printSummary(engine.Summary{Message: "No files found to scan."})
	}))
	if !strings.Contains(out, "0 detection(s), 0 quarantined") {
		t.Errorf("unexpected output:\n%s", out)
	}
	if strings.Contains(out, "could not be quarantined") {
		t.Errorf("clean scan should not warn, got:\n%s", out)
	}
}

// ---------------------------------------------------------------------------
// printQuarantine / printSchedules / printHistory
// ---------------------------------------------------------------------------

func TestPrintQuarantine(t *testing.T) {
	out := captureOutput(func() { printQuarantine("/q", nil) })
	if !strings.Contains(out, "Quarantine is empty") {
		t.Errorf("expected empty message, got %q", out)
	}

	entries := []quarantine.Entry{
		{Name: "a.exe", Size: 1024, ModTime: time.Now()},
		{Name: "b.doc", Size: 2048, ModTime: time.Now()},
	}
	out = captureOutput(func() { printQuarantine("/q", entries) })
	for _, w := range []string{"a.exe", "b.doc", "2 file(s)"} {
		if !strings.Contains(out, w) {
			t.Errorf("expected %q in output, got:\n%s", w, out)
		}
	}
}

func TestPrintSchedules(t *testing.T) {
	out := captureOutput(func() { printSchedules(nil) })
	if !strings.Contains(out, "No scheduled scans") {
		t.Errorf("expected empty message, got %q", out)
	}

	last := time.Date(2026, 3, 1, 2, 30, 0, 0, time.Local)
	recs := []schedule.Record{
		{Time: "02:30", Frequency: schedule.Daily, Path: "/home/u"},
		{Time: "23:00", Frequency: schedule.Weekly, Path: "/srv", LastRun: &last},
	}
	out = stripAnsi(captureOutput(func() { printSchedules(recs) }))
	for _, w := range []string{"1. Scan /home/u Daily at 02:30", "last run: never", "2. Scan /srv Weekly at 23:00", "2026-03-01 02:30"} {
		if !strings.Contains(out, w) {
			t.Errorf("expected %q in output, got:\n%s", w, out)
		}
	}
}

func TestPrintHistory_Empty(t *testing.T) {
	out := captureOutput(func() { printHistory(nil, history.Stats{}) })
	if !strings.Contains(out, "No scans recorded yet") {
		t.Errorf("expected empty message, got %q", out)
	}
}
