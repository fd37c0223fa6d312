package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/jgoulah/waterdelta/internal/logging"
	"github.com/jgoulah/waterdelta/internal/metrics"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run fetch and estimate on a schedule",
	Long: `Runs the same cycle as "run" on the cron schedule from config
(default "0 7 * * *") until interrupted. A run that is still going when the
next one is due causes that next run to be skipped.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	schedule := cfg.GetSchedule()
	if _, err := cron.ParseStandard(schedule); err != nil {
		return fmt.Errorf("parsing schedule %q: %w", schedule, err)
	}

	db, err := openDB()
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	rec := metrics.New()
	log := logging.Component(logger, "watch")

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	if _, err := c.AddFunc(schedule, func() {
		if err := runOnce(ctx, out, cfg, db, rec); err != nil {
			log.Error().Err(err).Msg("scheduled run failed")
		}
	}); err != nil {
		return fmt.Errorf("scheduling run: %w", err)
	}

	c.Start()
	log.Info().Str("schedule", schedule).Msg("watching")

	<-ctx.Done()

	// Let a run in progress finish before closing the database
	<-c.Stop().Done()
	log.Info().Msg("stopped")
	return nil
}
