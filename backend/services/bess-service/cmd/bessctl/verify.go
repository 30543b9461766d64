package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"bessanalytics/backend/services/bess-service/internal/analytics"
	"bessanalytics/backend/services/bess-service/internal/models"
	"bessanalytics/backend/services/bess-service/internal/repository"
)

func newVerifyCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "verify [assetId...]",
		Short: "Print telemetry summaries",
		Long:  "Print sample count, latest sample and mean state of charge for stored assets, optionally only the given ids.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			defer logger.Sync()

			store, err := openStoreFunc(cmd.Context(), cfg, logger)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer store.Close()

			assets, err := store.Repo.ListAssets(cmd.Context(), repository.Filter{AssetIDs: args})
			if err != nil {
				return fmt.Errorf("telemetry verification failed: %w", err)
			}
			printSummaries(cmd.OutOrStdout(), analytics.Summarize(assets, args), args)
			return nil
		},
	}
}

func printSummaries(out io.Writer, summaries []models.AssetSummary, requested []string) {
	if len(summaries) == 0 {
		if len(requested) > 0 {
			fmt.Fprintf(out, "No telemetry found for asset IDs: %s\n", strings.Join(requested, ", "))
		} else {
			fmt.Fprintln(out, "No BESS telemetry records found.")
		}
		return
	}

	for _, s := range summaries {
		fmt.Fprintf(out, "Asset %s (%s, %s)\n", s.AssetID, s.Site, s.Region)
		fmt.Fprintf(out, "  Telemetry samples: %d\n", s.MetricsCount)
		fmt.Fprintf(out, "  Latest sample: %s\n", formatTimestamp(s.LatestTimestamp))
		fmt.Fprintf(out, "  Avg state-of-charge: %s\n", formatSoC(s.AverageStateOfCharge))
		fmt.Fprintln(out)
	}
}

func formatTimestamp(ts *time.Time) string {
	if ts == nil {
		return "n/a"
	}
	return ts.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}

func formatSoC(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.3f", *v)
}
