package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"ssbretune/commands"
	"ssbretune/history"
	"ssbretune/reconcile"
	"ssbretune/report"
	"ssbretune/snapshot"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Reconcile a snapshot folder and write reports and command scripts",
	RunE: func(cmd *cobra.Command, args []string) error {
		inputDir := viper.GetString("input.dir")
		if inputDir == "" {
			return fmt.Errorf("input.dir is required (via --input flag or config)")
		}
		freqBefore := viper.GetString("freq.before")
		freqAfter := viper.GetString("freq.after")
		if freqBefore == "" || freqAfter == "" {
			return fmt.Errorf("freq.before and freq.after are required")
		}
		outputDir := viper.GetString("output.dir")
		if outputDir == "" {
			outputDir = inputDir
		}

		loader := &snapshot.Loader{Logger: logger}
		loaded, err := loader.Load(inputDir)
		if err != nil {
			return fmt.Errorf("load snapshots: %w", err)
		}

		results, skips := reconcile.ReconcileAll(loaded.Tables, freqBefore, freqAfter, logger)

		writer := &report.Writer{Logger: logger}
		written, err := writer.Write(outputDir, results, skips)
		if err != nil {
			return fmt.Errorf("write reports: %w", err)
		}
		for _, path := range written {
			cmd.Println("Report:", path)
		}

		builder := &commands.Builder{SSBPre: freqBefore, SSBPost: freqAfter}
		exporter := &commands.Exporter{Logger: logger}
		files, err := exporter.Export(outputDir, builder.Build(results))
		if err != nil {
			return fmt.Errorf("write correction commands: %w", err)
		}
		cmd.Printf("Correction command files: %d\n", files)

		store, err := history.Open(viper.GetString("history.db"))
		if err != nil {
			return fmt.Errorf("open run history: %w", err)
		}
		defer store.Close()
		runID, err := store.Record(inputDir, freqBefore, freqAfter, results, skips)
		if err != nil {
			return fmt.Errorf("record run history: %w", err)
		}
		logger.Info("run recorded", "id", runID)

		for _, w := range loaded.Warnings {
			cmd.Println("Warning:", w)
		}
		for _, skip := range skips {
			cmd.Println("Skipped:", skip.Summary())
		}
		return nil
	},
}

func init() {
	runCmd.Flags().StringP("input", "i", "", "snapshot root directory holding the Pre/Post folders")
	runCmd.Flags().String("freq-before", "", "base SSB frequency before the retune")
	runCmd.Flags().String("freq-after", "", "base SSB frequency after the retune")
	runCmd.Flags().StringP("output", "o", "", "output directory (defaults to the input directory)")

	viper.BindPFlag("input.dir", runCmd.Flags().Lookup("input"))
	viper.BindPFlag("freq.before", runCmd.Flags().Lookup("freq-before"))
	viper.BindPFlag("freq.after", runCmd.Flags().Lookup("freq-after"))
	viper.BindPFlag("output.dir", runCmd.Flags().Lookup("output"))

	RootCmd.AddCommand(runCmd)
}
