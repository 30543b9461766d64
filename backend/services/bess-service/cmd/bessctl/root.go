package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"bessanalytics/backend/libs/logging"
	"bessanalytics/backend/services/bess-service/internal/app"
	"bessanalytics/backend/services/bess-service/internal/config"
)

const defaultDataset = "data/nasa-bess-telemetry-sample.json"

type rootOptions struct {
	configPath string
	verbose    bool
}

// openStoreFunc is replaced in tests.
var openStoreFunc = app.OpenStore

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "bessctl",
		Short: "BESS fleet telemetry tool",
		Long: `Command line tool for the BESS analytics store.
Ingests telemetry files and prints per-asset telemetry summaries.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "YAML config file (defaults to CONFIG_FILE)")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")

	cmd.AddCommand(newIngestCmd(opts))
	cmd.AddCommand(newVerifyCmd(opts))
	return cmd
}

func (o *rootOptions) load() (*config.Config, *zap.Logger, error) {
	var (
		cfg *config.Config
		err error
	)
	if o.configPath != "" {
		cfg, err = config.LoadFile(o.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, nil, err
	}

	logger, err := logging.NewCLILogger(o.verbose)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}
