package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jgoulah/waterdelta/internal/metrics"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download the billing history from WaterSmart",
	Long: `Logs in to the WaterSmart portal, follows the redirect chain to the
billing history export and saves it to output_file. Parsed bills are stored in
the local SQLite database.`,
	Args: cobra.NoArgs,
	RunE: runFetch,
}

func init() {
	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "=== Fetch started at %s ===\n", time.Now().Format("2006-01-02 15:04:05 MST"))

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	db, err := openDB()
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	rec := metrics.New()
	records, err := fetchBills(cmd.Context(), out, cfg, db, rec)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintln(out, "No bills found")
	}

	return writeMetrics(cfg, rec)
}
