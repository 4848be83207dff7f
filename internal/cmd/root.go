// Package cmd wires the command-line interface.
package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ncode25/Copilot-orchestrator/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "copilot-orchestrator",
	Short: "Conflict-aware phased executor for work-item plans",
	Long: `Copilot-orchestrator takes a plan of work items with resource footprints
and dependencies, partitions it into phases so items touching the same
resources never run together, executes each phase concurrently, and
drives failed items through a bounded correction loop.`,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/copilot-orchestrator/config.yaml)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
}

func initConfig() {
	// Defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("COPILOT_ORCH")
	// COPILOT_ORCH_SCHEDULER_MAX_PARALLEL overrides scheduler.max_parallel
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	_ = viper.ReadInConfig()
}
