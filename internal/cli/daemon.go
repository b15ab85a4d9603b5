package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/zhengda-lu/antiv/internal/logging"
	"github.com/zhengda-lu/antiv/internal/scheduler"
)

var daemonQuiet bool

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run scheduled scans in the foreground",
	Long: `Daemon checks the schedule file every tick and starts a scan for each
entry that comes due. Logs go to the configured log file and, unless
--quiet is given, to stderr. Stop it with Ctrl+C or SIGTERM; running scans
are stopped before it exits.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := logging.OpenFile(appConfig.LogFile())
		if err != nil {
			return err
		}
		defer f.Close()

		var out io.Writer = f
		if !daemonQuiet {
			out = io.MultiWriter(os.Stderr, f)
		}
		if appLogger, err = newLogger(out); err != nil {
			return err
		}

		e, err := buildEngine(true)
		if err != nil {
			return err
		}
		sched, err := scheduler.New(scheduleStore(), e, scheduler.Options{
			Interval: appConfig.TickInterval(),
			CatchUp:  appConfig.Schedule.CatchUp,
			Logger:   appLogger,
		})
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		appLogger.Info("daemon started",
			"version", version,
			"schedule_file", appConfig.ScheduleFile(),
			"quarantine_dir", appConfig.QuarantineDir(),
		)
		if appConfig.Report.UpdateURL != "" {
			go checkForUpdate(ctx)
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return sched.Run(gctx)
		})
		g.Go(func() error {
			<-gctx.Done()
			e.StopAll()
			e.Wait()
			return nil
		})
		if err := g.Wait(); err != nil {
			return fmt.Errorf("daemon: %w", err)
		}
		appLogger.Info("daemon stopped")
		return nil
	},
}

func init() {
	daemonCmd.Flags().BoolVarP(&daemonQuiet, "quiet", "q", false, "Log only to the log file")
}

func checkForUpdate(ctx context.Context) {
	available, err := reportClient().CheckUpdate(ctx)
	if err != nil {
		appLogger.Warn("update check failed", "error", err)
		return
	}
	if available {
		appLogger.Info("a newer antiv release is available")
	}
}
