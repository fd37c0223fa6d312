package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var publishAll bool

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Publish estimates to Home Assistant",
	Long: `Reads stored estimates from the database and publishes them to Home Assistant
over MQTT (retained) and/or the REST API, whichever is enabled in config.`,
	Args: cobra.NoArgs,
	RunE: runPublish,
}

func init() {
	publishCmd.Flags().BoolVar(&publishAll, "all", false, "Force republish all estimates (ignore published flag)")
	rootCmd.AddCommand(publishCmd)
}

func runPublish(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "=== Publish started at %s ===\n", time.Now().Format("2006-01-02 15:04:05 MST"))

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if !publishingEnabled(cfg) {
		return fmt.Errorf("neither mqtt nor home_assistant is enabled in config")
	}

	db, err := openDB()
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	_, err = publishEstimates(cmd.Context(), out, cfg, db, publishAll)
	return err
}
