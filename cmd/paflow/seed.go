package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gyeh/paflow/internal/db"
	"github.com/gyeh/paflow/internal/exitcode"
	"github.com/gyeh/paflow/internal/logging"
	"github.com/gyeh/paflow/internal/refload"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Bulk-load provider reference data from a Parquet file",
	RunE:  runSeed,
}

func init() {
	f := seedCmd.Flags()
	f.StringVar(&cfg.ProviderFile, "providers", "", "Path to provider Parquet file (required)")
	f.BoolVar(&cfg.Replace, "replace", false, "Delete existing provider rows before loading")
	_ = seedCmd.MarkFlagRequired("providers")
	rootCmd.AddCommand(seedCmd)
}

func runSeed(cmd *cobra.Command, args []string) error {
	log := logging.Setup(cfg.LogFormat)
	ctx := context.Background()

	if err := cfg.ValidateSeed(); err != nil {
		log.Error().Err(err).Msg("config validation failed")
		os.Exit(exitcode.UsageError)
	}

	pool, err := db.NewPool(ctx, cfg.DSN)
	if err != nil {
		log.Error().Err(err).Msg("database connection failed")
		os.Exit(exitcode.DBConnError)
	}
	defer pool.Close()

	result, err := refload.LoadProviders(ctx, pool, log, cfg.ProviderFile, cfg.Replace)
	if err != nil {
		log.Error().Err(err).Msg("provider load failed")
		os.Exit(exitcode.ValidationError)
	}

	fmt.Printf("Seed complete: %d provider rows loaded (%.1fs)\n",
		result.RowsLoaded, result.Duration.Seconds())
	return nil
}
