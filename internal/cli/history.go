package cli

import (
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show past scans and totals",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		h := historyStore()
		entries, err := h.Load()
		if err != nil {
			return err
		}
		stats := h.Stats()

		if jsonFlag {
			return printJSON(buildHistoryJSON(entries, stats))
		}
		printHistory(entries, stats)
		return nil
	},
}
