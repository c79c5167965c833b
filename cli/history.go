package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"ssbretune/history"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the most recent reconciliation runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := history.Open(viper.GetString("history.db"))
		if err != nil {
			return fmt.Errorf("open run history: %w", err)
		}
		defer store.Close()

		runs, err := store.Recent(viper.GetInt("history.limit"))
		if err != nil {
			return fmt.Errorf("read run history: %w", err)
		}
		if len(runs) == 0 {
			cmd.Println("No runs recorded yet.")
			return nil
		}

		for _, run := range runs {
			cmd.Printf("%s  %s  %s  %s -> %s\n",
				run.StartedAt.Format("2006-01-02 15:04:05"),
				run.ID, run.InputDir, run.FreqBefore, run.FreqAfter)
			for _, t := range run.Tables {
				if t.SkipCode != "" {
					cmd.Printf("    %-22s skipped (%s)\n", t.Table, t.SkipCode)
					continue
				}
				cmd.Printf("    %-22s common=%d new=%d missing=%d disc=%d\n",
					t.Table, t.Common, t.NewInPost, t.MissingInPost, t.Discrepancies)
			}
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().Int("limit", 10, "number of runs to show")
	viper.BindPFlag("history.limit", historyCmd.Flags().Lookup("limit"))

	RootCmd.AddCommand(historyCmd)
}
