package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/georgegoldman/mothrbox-walrus-layer/internal/api"
	"github.com/georgegoldman/mothrbox-walrus-layer/internal/config"
)

func newCostCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var (
		epochs  int
		offline bool
	)

	cmd := &cobra.Command{
		Use:   "cost <size>",
		Short: "Estimate storage cost for a payload size (e.g. 1048576, 10MiB, 2GB)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			size, err := parseSize(args[0])
			if err != nil {
				return err
			}

			quoteCfg := *cfg
			quoteCfg.Pricing.OracleDisabled = cfg.Pricing.OracleDisabled || offline
			quote, err := newEstimator(&quoteCfg, storePricing(cfg), slog.Default()).Estimate(cmd.Context(), size, epochs)
			if err != nil {
				return err
			}

			resp := api.StorageCostFromQuote(quote)
			if *jsonOutput {
				return writeJSON(resp)
			}
			return writePlain("%s for %d epochs: %d MIST (%.9f SUI, ~$%.4f)\n",
				formatSize(resp.FileSizeBytes), resp.Epochs, resp.TotalCost, resp.TotalCostInSui, resp.TotalCostInUsd)
		},
	}

	cmd.Flags().IntVar(&epochs, "epochs", 0, "storage epochs (default 3)")
	cmd.Flags().BoolVar(&offline, "offline", false, "skip the price oracle and use the fallback rate")
	return cmd
}

// parseSize accepts plain byte counts or humanized sizes.
func parseSize(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	n, err := humanize.ParseBytes(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", raw, err)
	}
	if n == 0 || n > 1<<62 {
		return 0, fmt.Errorf("size must be between 1 byte and 4 EiB, got %q", raw)
	}
	return int64(n), nil
}
