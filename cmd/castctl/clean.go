package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dcosson/castkeep/internal/pipeline"
)

func newCleanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clean <file.cast>",
		Short: "Print the deduplicated scrollback for a recording",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := pipeline.CleanDocument(args[0])
			if err != nil {
				return fmt.Errorf("clean document: %w", err)
			}
			for _, line := range result.CleanLines {
				for _, sp := range line.Spans {
					fmt.Print(sp.Text)
				}
				fmt.Println()
			}
			return nil
		},
	}
}
