package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jgoulah/waterdelta/internal/apperr"
	"github.com/jgoulah/waterdelta/internal/logging"
	"github.com/jgoulah/waterdelta/internal/metrics"
	"github.com/jgoulah/waterdelta/internal/usage"
	"github.com/jgoulah/waterdelta/pkg/models"
)

var (
	estimateFile     string
	estimateStrategy string
)

var estimateCmd = &cobra.Command{
	Use:   "estimate",
	Short: "Estimate the latest bill's cost above prior years",
	Long: `Compares the latest bill against the prior years' bills for the same period
and prices the usage difference at the latest bill's rate.

Bills come from the database (see fetch) or from a CSV export given with --file.`,
	Args: cobra.NoArgs,
	RunE: runEstimate,
}

func init() {
	estimateCmd.Flags().StringVar(&estimateFile, "file", "", "read bills from this CSV export instead of the database")
	estimateCmd.Flags().StringVar(&estimateStrategy, "strategy", "", "baseline strategy: nearest or month (overrides config)")
	rootCmd.AddCommand(estimateCmd)
}

func runEstimate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	strategy := cfg.GetStrategy()
	if estimateStrategy != "" {
		strategy = estimateStrategy
	}

	db, err := openDB()
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	var records []models.UsageRecord
	if estimateFile != "" {
		records, err = readCSVFile(estimateFile)
	} else {
		records, err = db.ListBills()
		if err == nil && len(records) == 0 {
			err = &apperr.DataError{Message: "no stored bills (run fetch first or pass --file)"}
		}
	}
	if err != nil {
		return err
	}

	_, err = estimateBills(cmd.OutOrStdout(), cfg, db, metrics.New(), records, strategy)
	return err
}

func readCSVFile(path string) ([]models.UsageRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &apperr.IOError{Op: "open", Path: path, Err: err}
	}
	defer f.Close()

	return usage.ParseCSV(f, logging.Component(logger, "csv"))
}
