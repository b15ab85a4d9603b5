package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/zhengda-lu/antiv/internal/detection"
	"github.com/zhengda-lu/antiv/internal/engine"
	"github.com/zhengda-lu/antiv/internal/history"
	"github.com/zhengda-lu/antiv/internal/scanner"
	"github.com/zhengda-lu/antiv/internal/tui"
	"github.com/zhengda-lu/antiv/internal/utils"
)

const progressEvery = 250 * time.Millisecond

var (
	scanTUI          bool
	scanNoQuarantine bool
)

var scanCmd = &cobra.Command{
	Use:   "scan PATH",
	Short: "Scan a file or directory and quarantine detections",
	Long: `Scan runs the configured engine (clamscan by default) over PATH. Every
detected file is moved into the quarantine directory unless --no-quarantine
is given. Press Ctrl+C to stop a running scan.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		target, err := resolveTarget(args[0])
		if err != nil {
			return err
		}

		e, err := buildEngine(!scanNoQuarantine)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if scanTUI && !jsonFlag {
			return runScanTUI(ctx, e, target)
		}
		return runScan(ctx, e, target)
	},
}

func init() {
	scanCmd.Flags().BoolVar(&scanTUI, "tui", false, "Show an interactive progress view")
	scanCmd.Flags().BoolVar(&scanNoQuarantine, "no-quarantine", false, "Report detections without moving files")
}

func resolveTarget(arg string) (string, error) {
	target, err := filepath.Abs(utils.ExpandHome(arg))
	if err != nil {
		return "", fmt.Errorf("failed to resolve %q: %w", arg, err)
	}
	if !utils.DirExists(target) && !utils.FileExists(target) {
		return "", fmt.Errorf("%s: no such file or directory", target)
	}
	return target, nil
}

func runScan(ctx context.Context, e *engine.Engine, target string) error {
	limiter := rate.NewLimiter(rate.Every(progressEvery), 1)
	var dets []detectionJSON

	obs := func(ev scanner.Event, det *detection.Result) {
		switch ev.Kind {
		case scanner.EventDetection:
			dets = append(dets, newDetectionJSON(ev.RawLine, det))
			if !jsonFlag {
				printDetection(det, ev.RawLine)
			}
		case scanner.EventProgress:
			if !jsonFlag && limiter.Allow() {
				fmt.Println(dimText.Render(fmt.Sprintf("  [%3d%%] %d/%d %s", ev.Percent, ev.Scanned, ev.Total, truncatePath(ev.Detail, 50))))
			}
		}
	}

	if !jsonFlag {
		fmt.Printf("Scanning %s...\n", target)
	}
	sum, err := e.Run(ctx, target, history.TriggerManual, obs)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	if jsonFlag {
		return printJSON(buildScanJSON(sum, dets))
	}
	printSummary(sum)
	return nil
}

func runScanTUI(ctx context.Context, e *engine.Engine, target string) error {
	ch := make(chan tui.EventMsg, 256)
	done := make(chan struct{})

	obs := func(ev scanner.Event, det *detection.Result) {
		select {
		case ch <- tui.EventMsg{Event: ev, Detection: det}:
		case <-done:
		}
		if ev.Terminal() {
			close(ch)
		}
	}

	id, err := e.Start(ctx, target, history.TriggerManual, obs)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	model := tui.New(target, ch, func() { _ = e.Stop(id) }).
		WithLineFormat(appConfig.Engine.Delimiter, appConfig.Engine.FoundMarker)
	p := tea.NewProgram(model, tea.WithAltScreen())
	_, runErr := p.Run()
	close(done)

	e.StopAll()
	e.Wait()
	if runErr != nil {
		return fmt.Errorf("TUI error: %w", runErr)
	}
	return nil
}
