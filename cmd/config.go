// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/go-core-stack/kyc-proxy/pkg/config"
)

func newConfigCommand(opts *rootOptions) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Validate and print the effective configuration",
		Long: `Load the configuration exactly as "serve" would, validate it, and print the
result. The Airtable credential is never printed; its presence is reported on
stderr.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			switch output {
			case config.FormatTOML, config.FormatYAML, config.FormatJSON:
			default:
				return fmt.Errorf("unsupported output format %q (want toml, yaml or json)", output)
			}

			cfg, err := config.Load(opts.configPath, cmd.Flags())
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}

			if err := cfg.ToFile().Encode(cmd.OutOrStdout(), output); err != nil {
				return fmt.Errorf("encode configuration: %w", err)
			}
			fmt.Fprintln(cmd.ErrOrStderr(), "airtable credential: set")
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", config.FormatYAML, "output format: toml, yaml or json")
	return cmd
}
