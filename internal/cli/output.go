package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/zhengda-lu/antiv/internal/detection"
	"github.com/zhengda-lu/antiv/internal/engine"
	"github.com/zhengda-lu/antiv/internal/history"
	"github.com/zhengda-lu/antiv/internal/quarantine"
	"github.com/zhengda-lu/antiv/internal/schedule"
	"github.com/zhengda-lu/antiv/internal/utils"
)

var (
	okText   = lipgloss.NewStyle().Foreground(lipgloss.Color("#22C55E"))
	warnText = lipgloss.NewStyle().Foreground(lipgloss.Color("#EAB308"))
	badText  = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444")).Bold(true)
	dimText  = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
)

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printDetection(res *detection.Result, raw string) {
	if res == nil {
		fmt.Printf("  %s %s\n", warnText.Render("FOUND"), raw)
		return
	}
	if res.Isolated() {
		fmt.Printf("  %s %s -> %s\n", badText.Render("FOUND"), res.Path, okText.Render("quarantined as "+res.Entry.Name))
		return
	}
	fmt.Printf("  %s %s %s\n", badText.Render("FOUND"), raw, warnText.Render("(not quarantined: "+res.Err.Error()+")"))
}

func printSummary(sum engine.Summary) {
	fmt.Println()
	if sum.Report != "" {
		fmt.Println(dimText.Render(sum.Report))
	}
	fmt.Println(sum.Message)

	detections := fmt.Sprintf("%d detection(s)", sum.Detections)
	if sum.Detections > 0 {
		detections = badText.Render(detections)
	} else {
		detections = okText.Render(detections)
	}
	fmt.Printf("%s, %d quarantined\n", detections, sum.Quarantined)
	if sum.Detections > sum.Quarantined && sum.Quarantined > 0 {
		fmt.Println(warnText.Render("Some detected files could not be quarantined; see the log for details."))
	}
}

func printQuarantine(dir string, entries []quarantine.Entry) {
	if len(entries) == 0 {
		fmt.Printf("Quarantine is empty (%s).\n", dir)
		return
	}

	var total int64
	fmt.Printf("Quarantine: %s\n", dir)
	fmt.Println(strings.Repeat("-", 72))
	for _, e := range entries {
		total += e.Size
		fmt.Printf("  %-40s %10s  %s\n", truncatePath(e.Name, 40), utils.FormatSize(e.Size), e.ModTime.Format("2006-01-02 15:04"))
	}
	fmt.Printf("\n%d file(s), %s\n", len(entries), utils.FormatSize(total))
}

func printSchedules(recs []schedule.Record) {
	if len(recs) == 0 {
		fmt.Println("No scheduled scans.")
		return
	}
	for i, r := range recs {
		last := "never"
		if r.LastRun != nil {
			last = r.LastRun.Local().Format("2006-01-02 15:04")
		}
		fmt.Printf("  %d. %s %s\n", i+1, r.String(), dimText.Render("(last run: "+last+")"))
	}
}

func printHistory(entries []history.Entry, stats history.Stats) {
	if len(entries) == 0 {
		fmt.Println("No scans recorded yet.")
		return
	}

	fmt.Printf("Scans: %d   Files scanned: %d   Detections: %d   Quarantined: %d\n",
		stats.TotalScans, stats.FilesScanned, stats.TotalDetections, stats.TotalQuarantined)
	fmt.Println(strings.Repeat("-", 72))
	for _, e := range stats.Recent {
		outcome := string(e.Outcome)
		switch e.Outcome {
		case history.OutcomeCompleted:
			outcome = okText.Render(outcome)
		case history.OutcomeFailed:
			outcome = badText.Render(outcome)
		default:
			outcome = warnText.Render(outcome)
		}
		fmt.Printf("  %s  %-9s %-30s %s %d/%d, %d found\n",
			e.Timestamp.Local().Format("2006-01-02 15:04"), e.Trigger, truncatePath(e.Path, 30), outcome,
			e.Scanned, e.Total, e.Detections)
	}
}

func truncatePath(path string, maxLen int) string {
	if len(path) <= maxLen {
		return path
	}
	return "..." + path[len(path)-maxLen+3:]
}

func confirmAction(prompt string) bool {
	fmt.Printf("%s [y/N]: ", prompt)
	var response string
	fmt.Scanln(&response)
	return strings.ToLower(strings.TrimSpace(response)) == "y"
}
