package cli

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/zhengda-lu/antiv/internal/utils"
)

var quarantineYes bool

var quarantineCmd = &cobra.Command{
	Use:     "quarantine",
	Aliases: []string{"q"},
	Short:   "Inspect, restore, or delete quarantined files",
}

var quarantineListCmd = &cobra.Command{
	Use:   "list",
	Short: "List quarantined files",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openQuarantine()
		if err != nil {
			return err
		}
		entries, err := store.List()
		if err != nil {
			return err
		}
		sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })

		if jsonFlag {
			return printJSON(buildQuarantineJSON(store.Dir(), entries))
		}
		printQuarantine(store.Dir(), entries)
		return nil
	},
}

var quarantineRestoreCmd = &cobra.Command{
	Use:   "restore NAME DIR",
	Short: "Move a quarantined file back into DIR",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openQuarantine()
		if err != nil {
			return err
		}
		dest, err := filepath.Abs(utils.ExpandHome(args[1]))
		if err != nil {
			return fmt.Errorf("failed to resolve %q: %w", args[1], err)
		}

		restored, err := store.Restore(args[0], dest)
		if err != nil {
			return err
		}
		fmt.Printf("Restored %s to %s\n", args[0], restored)
		return nil
	},
}

var quarantineDeleteCmd = &cobra.Command{
	Use:   "delete NAME",
	Short: "Permanently delete a quarantined file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openQuarantine()
		if err != nil {
			return err
		}
		if !quarantineYes && !confirmAction(fmt.Sprintf("Permanently delete %s?", args[0])) {
			fmt.Println("Cancelled.")
			return nil
		}
		if err := store.Delete(args[0]); err != nil {
			return err
		}
		fmt.Printf("Deleted %s\n", args[0])
		return nil
	},
}

func init() {
	quarantineDeleteCmd.Flags().BoolVarP(&quarantineYes, "yes", "y", false, "Skip the confirmation prompt")
	quarantineCmd.AddCommand(quarantineListCmd)
	quarantineCmd.AddCommand(quarantineRestoreCmd)
	quarantineCmd.AddCommand(quarantineDeleteCmd)
}
