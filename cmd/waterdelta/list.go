package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var listEstimates bool

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored bills",
	Long:  `Displays all stored bills from the database, newest first.`,
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func init() {
	listCmd.Flags().BoolVar(&listEstimates, "estimates", false, "list stored estimates instead of bills")
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	db, err := openDB()
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	if listEstimates {
		estimates, err := db.ListEstimates()
		if err != nil {
			return fmt.Errorf("listing estimates: %w", err)
		}
		if len(estimates) == 0 {
			fmt.Fprintln(out, "No estimates found")
			return nil
		}

		fmt.Fprintln(out, "----------------------------------------------------------")
		fmt.Fprintf(out, "%-12s  %10s  %10s  %10s  %-8s\n", "Bill Date", "CCF", "Baseline", "Delta $", "Strategy")
		fmt.Fprintln(out, "----------------------------------------------------------")
		for _, e := range estimates {
			fmt.Fprintf(out, "%-12s  %10.2f  %10.2f  %10.2f  %-8s\n",
				e.BillDate.Format("2006-01-02"), e.CurrentUsage, e.AverageBaseline, e.AdditionalCost, e.Strategy)
		}
		return nil
	}

	bills, err := db.ListBills()
	if err != nil {
		return fmt.Errorf("listing bills: %w", err)
	}
	if len(bills) == 0 {
		fmt.Fprintln(out, "No bills found")
		return nil
	}

	fmt.Fprintln(out, "----------------------------------------")
	fmt.Fprintf(out, "%-12s  %10s  %12s\n", "Bill Date", "CCF", "Amount")
	fmt.Fprintln(out, "----------------------------------------")

	var total float64
	for _, b := range bills {
		amount := "-"
		if b.HasAmount() {
			amount = fmt.Sprintf("$%.2f", *b.BillAmount)
		}
		fmt.Fprintf(out, "%-12s  %10.2f  %12s\n", b.BillDate.Format("2006-01-02"), b.TotalUsage, amount)
		total += b.TotalUsage
	}

	fmt.Fprintln(out, "----------------------------------------")
	fmt.Fprintf(out, "Total: %.2f CCF (%d bills)\n", total, len(bills))
	return nil
}
