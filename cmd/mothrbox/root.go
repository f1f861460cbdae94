package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/georgegoldman/mothrbox-walrus-layer/internal/config"
	"github.com/georgegoldman/mothrbox-walrus-layer/internal/format"
)

func newRootCmd(cfg *config.Config) *cobra.Command {
	var (
		jsonOutput   bool
		outputFormat string
		logLevel     string
	)

	cmd := &cobra.Command{
		Use:           "mothrbox",
		Short:         "Mothrbox stores encrypted payloads on Walrus and mints ownership receipts on Sui",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			warning, err := configureLoggerForCLI(logLevel, cfg.LogLevel)
			if err != nil {
				return err
			}
			if warning != "" {
				fmt.Fprintln(os.Stderr, warning)
			}

			name := outputFormat
			if name == "" && jsonOutput {
				name = "json"
			}
			if name == "" {
				return nil
			}
			f, err := format.ByName(name)
			if err != nil {
				return err
			}
			outputFormatter = f
			jsonOutput = true
			return nil
		},
	}

	cmd.Version = version
	cmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output JSON")
	cmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "", "structured output format: json, pretty or yaml")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn or error")

	cmd.AddCommand(
		newSrvCmd(cfg),
		newUploadCmd(cfg, &jsonOutput),
		newDownloadCmd(cfg, &jsonOutput),
		newCostCmd(cfg, &jsonOutput),
		newStoreCmd(cfg, &jsonOutput),
		newFilesCmd(cfg, &jsonOutput),
		newConfigCmd(cfg),
	)

	return cmd
}
