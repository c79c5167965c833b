// Package cli wires the reconciliation pipeline behind a cobra command
// tree. Configuration comes from flags, environment variables and an
// optional ssbretune.yaml file, in that precedence order.
package cli

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	logger  *slog.Logger
)

var RootCmd = &cobra.Command{
	Use:   "ssbretune",
	Short: "Pre/Post cell-relation reconciliation for SSB retune activities",
	Long: `ssbretune compares vendor CM dumps captured before and after an SSB
retune, classifies every GUtranCellRelation and NRCellRelation as
unchanged, migrated, discrepant, new or missing, and emits Excel reports
plus ready-to-run correction command scripts.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if viper.GetBool("verbose") {
			level = slog.LevelDebug
		}
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
		slog.SetDefault(logger)
	},
}

func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./ssbretune.yaml)")
	RootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")
	RootCmd.PersistentFlags().String("history-db", "ssbretune_history.db", "path of the run-history database")
	viper.BindPFlag("verbose", RootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag("history.db", RootCmd.PersistentFlags().Lookup("history-db"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		if ex, err := os.Executable(); err == nil {
			viper.AddConfigPath(filepath.Dir(ex))
		}
		viper.AddConfigPath(".")
		viper.SetConfigName("ssbretune")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("SSBRETUNE")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}
