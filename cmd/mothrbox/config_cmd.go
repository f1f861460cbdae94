package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/georgegoldman/mothrbox-walrus-layer/internal/config"
)

func newConfigCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or change configuration",
	}

	cmd.AddCommand(newConfigGetCmd(cfg), newConfigListCmd(cfg), newConfigSetCmd())
	return cmd
}

func newConfigGetCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Print the effective value of a config key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			if !config.IsAllowedKey(key) {
				return fmt.Errorf("unknown key: %s (allowed: %v)", key, config.AllowedKeys())
			}
			value, err := cfg.Get(key)
			if err != nil {
				return err
			}
			return writePlain("%s\n", value)
		},
	}
}

func newConfigListCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Print every settable key with its effective value",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			values := configValues(cfg)
			if jsonFlag(cmd) {
				return writeJSON(values)
			}
			for _, key := range config.AllowedKeys() {
				if err := writePlain("%s = %s\n", key, values[key]); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func configValues(cfg *config.Config) map[string]string {
	out := make(map[string]string, len(config.AllowedKeys()))
	for _, key := range config.AllowedKeys() {
		value, err := cfg.Get(key)
		if err != nil {
			continue
		}
		out[key] = value
	}
	return out
}

func newConfigSetCmd() *cobra.Command {
	var global bool

	cmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Write a config value to the project or global file",
		Long:  "Write a config value. Secrets such as SUI_SECRET_KEY and MOTHRBOX_API_TOKEN are environment-only and cannot be set here.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, value := args[0], args[1]

			path, err := config.ProjectPath()
			if global {
				path, err = config.GlobalPath()
			}
			if err != nil {
				return err
			}

			if err := config.SetKey(path, key, value); err != nil {
				return err
			}
			if jsonFlag(cmd) {
				return writeJSON(map[string]string{"path": path, "key": key, "value": value})
			}
			return writePlain("%s = %s (%s)\n", key, value, path)
		},
	}

	cmd.Flags().BoolVar(&global, "global", false, "write to global config (~/.mothrbox.toml)")
	return cmd
}

// jsonFlag reads the persistent --json/--output state for commands that do
// not take the shared pointer.
func jsonFlag(cmd *cobra.Command) bool {
	if f := cmd.Flag("json"); f != nil && f.Value.String() == "true" {
		return true
	}
	f := cmd.Flag("output")
	return f != nil && f.Value.String() != ""
}
