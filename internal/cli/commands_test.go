package cli

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/zhengda-lu/antiv/internal/config"
	"github.com/zhengda-lu/antiv/internal/history"
	"github.com/zhengda-lu/antiv/internal/schedule"
)

// testEnv holds a config whose every persisted path lives in a temp dir.
type testEnv struct {
	dir        string
	configPath string
	cfg        *config.Config
}

func newTestEnv(t *testing.T, mutate func(*config.Config)) testEnv {
	t.Helper()
	dir := t.TempDir()

	cfg := config.Default()
	cfg.Quarantine.Dir = filepath.Join(dir, "quarantine")
	cfg.Schedule.File = filepath.Join(dir, "schedule.json")
	cfg.History.File = filepath.Join(dir, "history.json")
	cfg.Report.IDFile = filepath.Join(dir, "installation_id")
	cfg.Log.File = filepath.Join(dir, "antiv.log")
	cfg.Log.Level = "error"
	if mutate != nil {
		mutate(cfg)
	}

	path := filepath.Join(dir, "config.yaml")
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	return testEnv{dir: dir, configPath: path, cfg: cfg}
}

// run executes the root command with fresh flag state and returns stdout.
func (e testEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	jsonFlag, logLevelFlag = false, ""
	scanTUI, scanNoQuarantine = false, false
	quarantineYes, reportDryRun, reportMessage = false, false, ""

	var err error
	out := captureOutput(func() {
		rootCmd.SetArgs(append([]string{"--config", e.configPath}, args...))
		err = rootCmd.Execute()
	})
	return out, err
}

// ---------------------------------------------------------------------------
// schedule
// ---------------------------------------------------------------------------

func TestScheduleCommands(t *testing.T) {
	env := newTestEnv(t, nil)
	target := t.TempDir()

	out, err := env.run(t, "schedule", "add", "--time", "2:05", "--frequency", "weekly", "--path", target)
	if err != nil {
		t.Fatalf("schedule add error: %v", err)
	}
	if !strings.Contains(out, "Scan "+target+" Weekly at 02:05") {
		t.Errorf("unexpected add output: %q", out)
	}

	if _, err := env.run(t, "schedule", "add", "--time", "23:59", "--frequency", "daily", "--path", target); err != nil {
		t.Fatalf("second schedule add error: %v", err)
	}

	out, err = env.run(t, "--json", "schedule", "list")
	if err != nil {
		t.Fatalf("schedule list error: %v", err)
	}
	var listed scheduleJSON
	if err := json.Unmarshal([]byte(out), &listed); err != nil {
		t.Fatalf("invalid JSON %q: %v", out, err)
	}
	if len(listed.Schedules) != 2 {
		t.Fatalf("len(Schedules) = %d, want 2", len(listed.Schedules))
	}
	if listed.Schedules[0].Time != "02:05" || listed.Schedules[0].Frequency != "Weekly" {
		t.Errorf("first schedule = %+v", listed.Schedules[0])
	}

	out, err = env.run(t, "schedule", "remove", "1")
	if err != nil {
		t.Fatalf("schedule remove error: %v", err)
	}
	if !strings.Contains(out, "Removed: Scan "+target+" Weekly at 02:05") {
		t.Errorf("unexpected remove output: %q", out)
	}

	recs, err := schedule.NewStore(env.cfg.Schedule.File, nil).Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(recs) != 1 || recs[0].Time != "23:59" {
		t.Errorf("remaining schedules = %+v", recs)
	}
}

func TestScheduleAdd_Invalid(t *testing.T) {
	env := newTestEnv(t, nil)
	target := t.TempDir()

	tests := []struct {
		name string
		args []string
	}{
		{"bad time", []string{"--time", "25:00", "--frequency", "daily", "--path", target}},
		{"bad frequency", []string{"--time", "10:00", "--frequency", "hourly", "--path", target}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := env.run(t, append([]string{"schedule", "add"}, tt.args...)...); err == nil {
				t.Error("expected an error")
			}
		})
	}

	if _, err := os.Stat(env.cfg.Schedule.File); !os.IsNotExist(err) {
		t.Errorf("invalid schedules should not create the file, stat err = %v", err)
	}
}

func TestScheduleRemove_OutOfRange(t *testing.T) {
	env := newTestEnv(t, nil)
	if _, err := env.run(t, "schedule", "remove", "3"); err == nil {
		t.Error("expected an error for a missing index")
	}
}

// ---------------------------------------------------------------------------
// scan + quarantine
// ---------------------------------------------------------------------------

const fakeEngine = `#!/bin/sh
for target; do :; done
find "$target" -type f | while read -r f; do
  case "$f" in
    *eicar*) echo "$f: Eicar-Test-Signature FOUND" ;;
    *) echo "$f: OK" ;;
  esac
done
echo
echo "----------- SCAN SUMMARY -----------"
echo "Infected files: 1"
`

func writeFakeEngine(t *testing.T) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake engine is a POSIX shell script")
	}
	path := filepath.Join(t.TempDir(), "fakescan")
	if err := os.WriteFile(path, []byte(fakeEngine), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestScanCommand_QuarantinesAndRestores(t *testing.T) {
	engineBin := writeFakeEngine(t)
	env := newTestEnv(t, func(c *config.Config) { c.Engine.Binary = engineBin })

	target := t.TempDir()
	infected := filepath.Join(target, "eicar.com")
	if err := os.WriteFile(infected, []byte("X5O!P%"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(target, "clean.txt"), []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := env.run(t, "--json", "scan", target)
	if err != nil {
		t.Fatalf("scan error: %v", err)
	}
	var result scanJSON
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("invalid JSON %q: %v", out, err)
	}
	if result.Summary.Outcome != history.OutcomeCompleted {
		t.Errorf("Outcome = %q, want completed", result.Summary.Outcome)
	}
	if result.Summary.Scanned != 1 || result.Summary.Total != 2 {
		t.Errorf("Scanned/Total = %d/%d, want 1/2", result.Summary.Scanned, result.Summary.Total)
	}
	if result.Summary.Detections != 1 || result.Summary.Quarantined != 1 {
		t.Errorf("Detections/Quarantined = %d/%d, want 1/1", result.Summary.Detections, result.Summary.Quarantined)
	}
	if len(result.Detections) != 1 || result.Detections[0].Entry != "eicar.com" {
		t.Fatalf("Detections = %+v", result.Detections)
	}
	if _, err := os.Stat(infected); !os.IsNotExist(err) {
		t.Errorf("infected file should have been moved, stat err = %v", err)
	}

	out, err = env.run(t, "--json", "quarantine", "list")
	if err != nil {
		t.Fatalf("quarantine list error: %v", err)
	}
	var listed quarantineJSON
	if err := json.Unmarshal([]byte(out), &listed); err != nil {
		t.Fatalf("invalid JSON %q: %v", out, err)
	}
	if len(listed.Entries) != 1 || listed.Entries[0].Name != "eicar.com" {
		t.Fatalf("Entries = %+v", listed.Entries)
	}

	restoreDir := t.TempDir()
	if _, err := env.run(t, "quarantine", "restore", "eicar.com", restoreDir); err != nil {
		t.Fatalf("quarantine restore error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(restoreDir, "eicar.com")); err != nil {
		t.Errorf("restored file missing: %v", err)
	}

	out, err = env.run(t, "--json", "history")
	if err != nil {
		t.Fatalf("history error: %v", err)
	}
	var hist historyJSON
	if err := json.Unmarshal([]byte(out), &hist); err != nil {
		t.Fatalf("invalid JSON %q: %v", out, err)
	}
	if hist.Stats.TotalScans != 1 || hist.Stats.TotalQuarantined != 1 {
		t.Errorf("Stats = %+v", hist.Stats)
	}
}

func TestScanCommand_NoQuarantine(t *testing.T) {
	engineBin := writeFakeEngine(t)
	env := newTestEnv(t, func(c *config.Config) { c.Engine.Binary = engineBin })

	target := t.TempDir()
	infected := filepath.Join(target, "eicar.com")
	if err := os.WriteFile(infected, []byte("X5O!P%"), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := env.run(t, "scan", "--no-quarantine", target)
	if err != nil {
		t.Fatalf("scan error: %v", err)
	}
	out = stripAnsi(out)
	if !strings.Contains(out, "1 detection(s), 0 quarantined") {
		t.Errorf("unexpected output:\n%s", out)
	}
	if _, err := os.Stat(infected); err != nil {
		t.Errorf("file should stay in place: %v", err)
	}
}

func TestScanCommand_MissingTarget(t *testing.T) {
	env := newTestEnv(t, nil)
	if _, err := env.run(t, "scan", filepath.Join(env.dir, "nope")); err == nil {
		t.Error("expected an error for a missing target")
	}
}

func TestScanCommand_EngineMissing(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config) { c.Engine.Binary = "antiv-no-such-engine" })
	target := t.TempDir()
	if err := os.WriteFile(filepath.Join(target, "a.txt"), []byte("a"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := env.run(t, "scan", target); err == nil {
		t.Fatal("expected an error when the engine cannot be started")
	}

	entries, err := history.New(env.cfg.History.File).Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(entries) != 1 || entries[0].Outcome != history.OutcomeFailed {
		t.Errorf("history = %+v, want one failed entry", entries)
	}
}

func TestQuarantineDelete(t *testing.T) {
	env := newTestEnv(t, nil)
	if err := os.MkdirAll(env.cfg.Quarantine.Dir, 0o700); err != nil {
		t.Fatal(err)
	}
	held := filepath.Join(env.cfg.Quarantine.Dir, "bad.bin")
	if err := os.WriteFile(held, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := env.run(t, "quarantine", "delete", "--yes", "bad.bin"); err != nil {
		t.Fatalf("quarantine delete error: %v", err)
	}
	if _, err := os.Stat(held); !os.IsNotExist(err) {
		t.Errorf("entry should be gone, stat err = %v", err)
	}

	if _, err := env.run(t, "quarantine", "delete", "--yes", "../config.yaml"); err == nil {
		t.Error("expected an error for a name outside the store")
	}
}

// ---------------------------------------------------------------------------
// report / update
// ---------------------------------------------------------------------------

func TestReportCommand(t *testing.T) {
	var got struct {
		UniqueID string `json:"unique_id"`
		Report   string `json:"report"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	env := newTestEnv(t, func(c *config.Config) { c.Report.Endpoint = srv.URL })

	out, err := env.run(t, "report", "-m", "false positive on setup.exe")
	if err != nil {
		t.Fatalf("report error: %v", err)
	}
	if !strings.Contains(out, "Report sent") {
		t.Errorf("unexpected output: %q", out)
	}
	if !strings.HasPrefix(got.Report, "false positive on setup.exe") {
		t.Errorf("report body = %q", got.Report)
	}
	if got.UniqueID == "" {
		t.Error("report should carry the installation id")
	}
}

func TestReportCommand_DryRun(t *testing.T) {
	env := newTestEnv(t, nil)
	out, err := env.run(t, "report", "--dry-run", "-m", "hello")
	if err != nil {
		t.Fatalf("report error: %v", err)
	}
	if !strings.Contains(out, "hello") || !strings.Contains(out, "Scans: 0") {
		t.Errorf("unexpected output: %q", out)
	}
}

func TestReportCommand_NotConfigured(t *testing.T) {
	env := newTestEnv(t, nil)
	if _, err := env.run(t, "report"); err == nil {
		t.Error("expected an error without an endpoint")
	}
}

func TestUpdateCommand(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"update_available": true}`))
	}))
	defer srv.Close()

	env := newTestEnv(t, func(c *config.Config) { c.Report.UpdateURL = srv.URL })
	out, err := env.run(t, "--json", "update")
	if err != nil {
		t.Fatalf("update error: %v", err)
	}
	var result updateJSON
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("invalid JSON %q: %v", out, err)
	}
	if !result.UpdateAvailable {
		t.Error("UpdateAvailable = false, want true")
	}
}

// ---------------------------------------------------------------------------
// config
// ---------------------------------------------------------------------------

func TestConfigValidateCommand(t *testing.T) {
	env := newTestEnv(t, nil)
	out, err := env.run(t, "config", "validate")
	if err != nil {
		t.Fatalf("config validate error: %v", err)
	}
	if !strings.Contains(out, "Config OK") {
		t.Errorf("unexpected output: %q", out)
	}

	bad := "schedule:\n  tick: 5m\n"
	if err := os.WriteFile(env.configPath, []byte(bad), 0o644); err != nil {
		t.Fatal(err)
	}
	out, err = env.run(t, "config", "validate")
	if err != nil {
		t.Fatalf("config validate error: %v", err)
	}
	if !strings.Contains(out, "schedule.tick") {
		t.Errorf("expected a schedule.tick warning, got %q", out)
	}
}
