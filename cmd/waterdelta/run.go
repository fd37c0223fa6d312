package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jgoulah/waterdelta/internal/metrics"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Fetch, estimate and publish in one go",
	Long: `Runs fetch followed by estimate. When MQTT or Home Assistant publishing is
enabled in config, unpublished estimates are published afterwards.`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	db, err := openDB()
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	return runOnce(cmd.Context(), cmd.OutOrStdout(), cfg, db, metrics.New())
}
