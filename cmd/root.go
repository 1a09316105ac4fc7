// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

// Package cmd implements the kyc-proxy command line.
package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/go-core-stack/kyc-proxy/pkg/config"
)

type rootOptions struct {
	configPath string
}

// NewRootCommand builds the kyc-proxy command tree.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "kyc-proxy",
		Short: "Authenticated read proxy for KYC records held in Airtable",
		Long: `kyc-proxy serves KYC records from an Airtable table without handing the
Airtable credential to callers.

The token is read once from AIRTABLE_API_TOKEN at startup and injected as
"Authorization: Bearer <token>" on every upstream request. Non-secret settings
come from an optional config file (TOML, YAML or JSON), KYC_* / AIRTABLE_*
environment variables and flags, in increasing order of precedence.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to a .toml, .yaml or .json config file (env KYC_CONFIG)")
	config.RegisterFlags(root.PersistentFlags())
	root.CompletionOptions.DisableDefaultCmd = true

	root.AddCommand(newServeCommand(opts))
	root.AddCommand(newConfigCommand(opts))
	return root
}

// Execute runs the command line with ctx.
func Execute(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}
