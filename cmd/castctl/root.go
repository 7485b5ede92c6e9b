package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dcosson/castkeep/internal/config"
	"github.com/dcosson/castkeep/internal/store"
)

// newRootCmd creates the root cobra command with all subcommands.
func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "castctl",
		Short: "Ingest and browse recorded terminal sessions",
		Long:  "castctl ingests asciicast recordings, detects sections, and renders stored viewport snapshots.",
	}

	rootCmd.AddCommand(
		newIngestCmd(),
		newDetectCmd(),
		newSectionsCmd(),
		newSnapshotCmd(),
		newCleanCmd(),
		newWatchCmd(),
		newVersionCmd(),
	)

	return rootCmd
}

// openStore loads config and opens the configured sqlite store.
func openStore() (*config.Config, *store.Store, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	st, err := store.Open(cfg.StoragePath)
	if err != nil {
		return nil, nil, fmt.Errorf("open store at %s: %w", cfg.StoragePath, err)
	}
	return cfg, st, nil
}
