package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/zhengda-lu/antiv/internal/schedule"
	"github.com/zhengda-lu/antiv/internal/utils"
)

var (
	scheduleTime      string
	scheduleFrequency string
	schedulePath      string
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Manage recurring scans",
	Long:  "Add, list, or remove recurring scans. Scheduled scans run while `antiv daemon` is running.",
}

var scheduleAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a recurring scan",
	Example: `  antiv schedule add --time 02:30 --frequency daily --path ~/Downloads
  antiv schedule add --time 23:00 --frequency weekly --path /srv/share`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		freq, err := schedule.ParseFrequency(scheduleFrequency)
		if err != nil {
			return err
		}
		path, err := filepath.Abs(utils.ExpandHome(schedulePath))
		if err != nil {
			return fmt.Errorf("failed to resolve %q: %w", schedulePath, err)
		}
		if !utils.DirExists(path) && !utils.FileExists(path) {
			fmt.Fprintf(os.Stderr, "Warning: %s does not exist yet\n", path)
		}

		rec := schedule.Record{Time: scheduleTime, Frequency: freq, Path: path}
		if err := scheduleStore().Add(rec); err != nil {
			return err
		}

		// Add stores the normalized time; reflect that in the message.
		if t, err := schedule.NormalizeTime(rec.Time); err == nil {
			rec.Time = t
		}
		fmt.Printf("Added: %s\n", rec.String())
		return nil
	},
}

var scheduleListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recurring scans",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store := scheduleStore()
		recs, err := store.Load()
		if err != nil {
			return err
		}
		if jsonFlag {
			return printJSON(buildScheduleJSON(store.Path(), recs))
		}
		printSchedules(recs)
		return nil
	},
}

var scheduleRemoveCmd = &cobra.Command{
	Use:   "remove INDEX",
	Short: "Remove a recurring scan by its number in `schedule list`",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid index %q: %w", args[0], err)
		}
		removed, err := scheduleStore().Remove(n - 1)
		if err != nil {
			return err
		}
		fmt.Printf("Removed: %s\n", removed.String())
		return nil
	},
}

var scheduleDueCmd = &cobra.Command{
	Use:   "due",
	Short: "Show which recurring scans would run now",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		recs, err := scheduleStore().Load()
		if err != nil {
			return err
		}

		now := time.Now()
		var due []schedule.Record
		for _, r := range recs {
			if isDue(r, now) {
				due = append(due, r)
			}
		}
		if jsonFlag {
			return printJSON(buildScheduleJSON(appConfig.ScheduleFile(), due))
		}
		if len(due) == 0 {
			fmt.Println("Nothing is due.")
			return nil
		}
		printSchedules(due)
		return nil
	},
}

func isDue(r schedule.Record, now time.Time) bool {
	if appConfig.Schedule.CatchUp {
		return schedule.IsDueCatchUp(r, now)
	}
	return schedule.IsDue(r, now)
}

func init() {
	scheduleAddCmd.Flags().StringVar(&scheduleTime, "time", "", "Time of day, HH:MM (24h)")
	scheduleAddCmd.Flags().StringVar(&scheduleFrequency, "frequency", "Daily", "Daily or Weekly")
	scheduleAddCmd.Flags().StringVar(&schedulePath, "path", "", "File or directory to scan")
	_ = scheduleAddCmd.MarkFlagRequired("time")
	_ = scheduleAddCmd.MarkFlagRequired("path")

	scheduleCmd.AddCommand(scheduleAddCmd)
	scheduleCmd.AddCommand(scheduleListCmd)
	scheduleCmd.AddCommand(scheduleRemoveCmd)
	scheduleCmd.AddCommand(scheduleDueCmd)
}
