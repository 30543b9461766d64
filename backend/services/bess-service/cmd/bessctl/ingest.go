package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"bessanalytics/backend/services/bess-service/internal/ingestion"
)

func newIngestCmd(opts *rootOptions) *cobra.Command {
	var scalarMerge string

	cmd := &cobra.Command{
		Use:   "ingest [file]",
		Short: "Ingest a telemetry JSON file",
		Long: `Merge a JSON array of BESS asset records into the store.
New assets are created; known assets get their fields updated and unseen
telemetry samples appended. The file is rejected as a whole if any record is invalid.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			defer logger.Sync()

			if cmd.Flags().Changed("scalar-merge") {
				cfg.Ingestion.ScalarMerge = scalarMerge
			}
			strategy, err := ingestion.StrategyByName(cfg.Ingestion.ScalarMerge)
			if err != nil {
				return err
			}

			path := defaultDataset
			if len(args) == 1 {
				path = args[0]
			}
			if abs, err := filepath.Abs(path); err == nil {
				path = abs
			}

			store, err := openStoreFunc(cmd.Context(), cfg, logger)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer store.Close()

			pipeline := ingestion.NewPipeline(store.Repo, logger, ingestion.WithMerger(ingestion.NewMerger(strategy)))
			result, err := pipeline.IngestFile(cmd.Context(), path)
			if err != nil {
				return fmt.Errorf("telemetry ingestion failed: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Processed %d BESS assets from %s\n", result.AssetsProcessed, path)
			fmt.Fprintf(out, "New assets inserted: %d\n", result.NewAssets)
			fmt.Fprintf(out, "Telemetry points ingested: %d\n", result.MetricsInserted)
			return nil
		},
	}

	cmd.Flags().StringVar(&scalarMerge, "scalar-merge", "", "Scalar merge strategy (overwrite|newest-sample)")
	return cmd
}
