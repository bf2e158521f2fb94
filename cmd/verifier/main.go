package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hxinn/amazon-listing-ai-assistant/config"
)

func main() {
	root := &cobra.Command{
		Use:   "verifier",
		Short: "Listing attribute verification service",
		Long: `verifier generates and verifies structured product-attribute data
against marketplace schemas using an AI text-generation backend.

It can run as an HTTP service (serve) or perform one-shot operations
(run, retry, cleanup, sync, stats) against the local result store.`,
		SilenceUsage: true,
	}

	root.AddCommand(
		newServeCmd(),
		newRunCmd(),
		newRetryCmd(),
		newCleanupCmd(),
		newSyncCmd(),
		newStatsCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig is shared by every subcommand.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}
