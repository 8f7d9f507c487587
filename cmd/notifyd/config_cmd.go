package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mattjoyce/notifyd/internal/config"
	"github.com/mattjoyce/notifyd/internal/doctor"
	"github.com/mattjoyce/notifyd/internal/plugin"
)

var errInvalidConfig = errors.New("configuration is invalid")

func newConfigCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Validate, lock and query the configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(newConfigCheckCommand(opts))
	cmd.AddCommand(newConfigLockCommand(opts))
	cmd.AddCommand(newConfigGetCommand(opts))
	return cmd
}

func newConfigCheckCommand(opts *rootOptions) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate the configuration against the installed plugins",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig(cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			// A broken plugins_dir is reported by the doctor, not here.
			registry, err := plugin.Discover(cfg.PluginsDir, nil)
			if err != nil {
				registry = nil
			}

			result := doctor.New(cfg, registry).Validate()
			out := cmd.OutOrStdout()
			if jsonOut {
				s, err := doctor.FormatJSON(result)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, s)
			} else {
				fmt.Fprint(out, doctor.FormatHuman(result))
			}
			if !result.Valid {
				return errInvalidConfig
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output the report as JSON")
	return cmd
}

func newConfigLockCommand(opts *rootOptions) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "lock",
		Short: "Record the config file's BLAKE3 hash in .checksums",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := opts.resolveConfigPath(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			report, err := config.Lock(path, dryRun)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s  %s\n", report.Hash, report.ConfigPath)
			if report.Written {
				fmt.Fprintf(out, "wrote %s\n", report.ChecksumPath)
			} else {
				fmt.Fprintf(out, "dry run: %s not written\n", report.ChecksumPath)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Compute the hash without writing")
	return cmd
}

func newConfigGetCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <path>",
		Short: "Print a configuration value by dot path, e.g. delivery.nats.url",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			value, err := cfg.GetPath(args[0])
			if err != nil {
				return err
			}

			if s, ok := value.(string); ok {
				fmt.Fprintln(cmd.OutOrStdout(), s)
				return nil
			}
			data, err := yaml.Marshal(value)
			if err != nil {
				return fmt.Errorf("render value: %w", err)
			}
			fmt.Fprint(cmd.OutOrStdout(), string(data))
			return nil
		},
	}
}
