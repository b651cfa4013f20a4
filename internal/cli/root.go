// Package cli wires the storewatch commands: the combined daemon, the
// inbox watcher, one-shot adjudication, and store queries.
package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/storewatch/storewatch/internal/config"
	"github.com/storewatch/storewatch/internal/logging"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "storewatch",
	Short: "Shoplifting detection and adjudication daemon",
	Long:  "Tracks people across camera frames, scores suspicion signals, and adjudicates incidents through a two-agent audio/vision consensus protocol.",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file")
}

// loadConfig reads the config file and initializes logging from it.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logging.Init(cfg.Logging)
	return cfg, nil
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
