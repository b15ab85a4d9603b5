package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/zhengda-lu/antiv/internal/history"
)

// Compose builds the default report body: an optional user message
// followed by a plain-text digest of the scan history.
func Compose(message string, stats history.Stats) string {
	var b strings.Builder
	if msg := strings.TrimSpace(message); msg != "" {
		b.WriteString(msg)
		b.WriteString("\n\n")
	}

	fmt.Fprintf(&b, "Scans: %d (completed %d, stopped %d, failed %d)\n",
		stats.TotalScans,
		stats.ByOutcome[history.OutcomeCompleted],
		stats.ByOutcome[history.OutcomeStopped],
		stats.ByOutcome[history.OutcomeFailed],
	)
	fmt.Fprintf(&b, "Files scanned: %d\n", stats.FilesScanned)
	fmt.Fprintf(&b, "Detections: %d, quarantined: %d\n", stats.TotalDetections, stats.TotalQuarantined)

	if len(stats.Recent) > 0 {
		b.WriteString("\nRecent:\n")
		for _, e := range stats.Recent {
			fmt.Fprintf(&b, "  %s  %-9s %-9s %s (%d/%d files, %d detections)\n",
				e.Timestamp.Format(time.DateTime), e.Trigger, e.Outcome, e.Path,
				e.Scanned, e.Total, e.Detections)
		}
	}
	return b.String()
}
