package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/jgoulah/waterdelta/internal/apperr"
	"github.com/jgoulah/waterdelta/internal/config"
	"github.com/jgoulah/waterdelta/internal/database"
	"github.com/jgoulah/waterdelta/internal/logging"
	"github.com/jgoulah/waterdelta/internal/metrics"
	"github.com/jgoulah/waterdelta/internal/publisher"
	"github.com/jgoulah/waterdelta/internal/scraper"
	"github.com/jgoulah/waterdelta/internal/usage"
	"github.com/jgoulah/waterdelta/pkg/models"
)

// fetchBills logs in, downloads the billing history to the output file and
// stores every parsed bill. Records are returned newest first.
func fetchBills(ctx context.Context, out io.Writer, cfg *config.Config, db *database.DB, rec *metrics.Recorder) ([]models.UsageRecord, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client, err := scraper.NewWaterSmartClient(scraper.Options{
		LoginURL:      cfg.GetLoginURL(),
		SessionCookie: cfg.GetSessionCookie(),
		Timeout:       cfg.GetTimeout(),
		MaxRedirects:  cfg.GetMaxRedirects(),
		Logger:        logging.Component(logger, "scraper"),
	})
	if err != nil {
		return nil, err
	}

	fmt.Fprintln(out, "Logging in to WaterSmart...")
	cookie, err := client.Login(ctx, scraper.Credentials{
		Email:     cfg.Portal.Email,
		Password:  cfg.Portal.Password,
		AuthToken: cfg.Portal.AuthToken,
	})
	if err != nil {
		return nil, fmt.Errorf("logging in: %w", err)
	}
	fmt.Fprintln(out, "✓ Session established")

	outputFile := cfg.GetOutputFile()
	text, result, err := client.Download(ctx, cfg.Portal.DownloadURL, cookie, outputFile)
	if err != nil {
		return nil, fmt.Errorf("downloading billing history: %w", err)
	}
	fmt.Fprintf(out, "✓ Downloaded %s to %s (%d redirects)\n", humanize.Bytes(uint64(result.Bytes)), outputFile, result.Hops)
	if rec != nil {
		rec.RecordFetch(result.Bytes, result.Hops)
	}

	records, err := usage.ParseCSV(strings.NewReader(text), logging.Component(logger, "csv"))
	if err != nil {
		return nil, err
	}

	stored, err := db.UpsertBills(records)
	if err != nil {
		return nil, fmt.Errorf("storing bills: %w", err)
	}
	fmt.Fprintf(out, "✓ Stored %d bills\n", stored)

	return records, nil
}

// estimateBills computes, prints and stores the estimate for records
func estimateBills(out io.Writer, cfg *config.Config, db *database.DB, rec *metrics.Recorder, records []models.UsageRecord, strategy string) (models.Estimate, error) {
	est, err := usage.Compute(records, strategy)
	if err != nil {
		return models.Estimate{}, err
	}

	printEstimate(out, est)

	if err := db.InsertEstimate(&est); err != nil {
		return est, fmt.Errorf("storing estimate: %w", err)
	}

	if rec != nil {
		rec.RecordEstimate(est, est.CreatedAt)
		if err := writeMetrics(cfg, rec); err != nil {
			return est, err
		}
	}

	return est, nil
}

// printEstimate writes the comparison the way it is read on the bill
func printEstimate(out io.Writer, e models.Estimate) {
	month := e.BillDate.Format("January")

	fmt.Fprintf(out, "\nBill date: %s (%s strategy, %d prior years)\n", e.BillDate.Format("01-02-2006"), e.Strategy, e.Baselines)
	fmt.Fprintf(out, "Average CCF for previous years' %s: %.2f\n", month, e.AverageBaseline)
	fmt.Fprintf(out, "Total CCF for the current %s: %.2f\n", month, e.CurrentUsage)
	fmt.Fprintf(out, "Difference in CCF: %.2f\n", e.Difference)
	fmt.Fprintf(out, "Price per CCF for the current month: $%.2f\n", e.PricePerUnit)
	fmt.Fprintf(out, "Amount cost based on the difference: $%.2f\n", e.AdditionalCost)
}

func writeMetrics(cfg *config.Config, rec *metrics.Recorder) error {
	if cfg.MetricsFile == "" || rec == nil {
		return nil
	}
	if err := rec.WriteTextfile(cfg.MetricsFile); err != nil {
		return &apperr.IOError{Op: "write", Path: cfg.MetricsFile, Err: err}
	}
	return nil
}

// publishEstimates sends stored estimates to Home Assistant. By default only
// unpublished ones are sent, oldest first.
func publishEstimates(ctx context.Context, out io.Writer, cfg *config.Config, db *database.DB, all bool) (int, error) {
	pub, err := publisher.New(cfg.MQTT, cfg.HomeAssistant, cfg.GetTopicPrefix())
	if err != nil {
		return 0, fmt.Errorf("creating publisher: %w", err)
	}
	defer pub.Close()

	var estimates []models.Estimate
	if all {
		estimates, err = db.ListEstimates()
	} else {
		estimates, err = db.ListUnpublishedEstimates()
	}
	if err != nil {
		return 0, fmt.Errorf("listing estimates: %w", err)
	}

	if len(estimates) == 0 {
		fmt.Fprintln(out, "No unpublished estimates found")
		return 0, nil
	}

	fmt.Fprintf(out, "Publishing %d estimates...\n", len(estimates))
	published := 0
	for i, e := range estimates {
		fmt.Fprintf(out, "[%d/%d] Publishing %s ($%.2f)... ", i+1, len(estimates), e.BillDate.Format("2006-01-02"), e.AdditionalCost)
		if err := pub.Publish(ctx, e); err != nil {
			fmt.Fprintf(out, "FAILED: %v\n", err)
			logger.Warn().Err(err).Str("estimate", e.ID).Msg("publish failed")
			continue
		}

		if err := db.MarkPublished(e.ID); err != nil {
			fmt.Fprintf(out, "✓ (warning: failed to mark as published: %v)\n", err)
		} else {
			fmt.Fprintln(out, "✓")
		}
		published++
	}

	fmt.Fprintf(out, "Successfully published %d/%d estimates\n", published, len(estimates))
	return published, nil
}

// publishingEnabled reports whether run should publish after estimating
func publishingEnabled(cfg *config.Config) bool {
	return cfg.MQTT.Enabled || cfg.HomeAssistant.Enabled
}

// runOnce is one full cycle: fetch, estimate and publish when configured
func runOnce(ctx context.Context, out io.Writer, cfg *config.Config, db *database.DB, rec *metrics.Recorder) error {
	started := time.Now()
	fmt.Fprintf(out, "=== Run started at %s ===\n", started.Format("2006-01-02 15:04:05 MST"))

	err := func() error {
		records, err := fetchBills(ctx, out, cfg, db, rec)
		if err != nil {
			return err
		}
		if _, err := estimateBills(out, cfg, db, rec, records, cfg.GetStrategy()); err != nil {
			return err
		}
		if publishingEnabled(cfg) {
			if _, err := publishEstimates(ctx, out, cfg, db, false); err != nil {
				return err
			}
		}
		return nil
	}()
	if err != nil {
		if rec != nil {
			rec.RecordFailure()
			if werr := writeMetrics(cfg, rec); werr != nil {
				logger.Warn().Err(werr).Msg("writing metrics after failure")
			}
		}
		return err
	}

	logger.Info().Dur("took", time.Since(started)).Msg("run complete")
	return nil
}
