package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dcosson/castkeep/internal/pipeline"
)

// newDetectCmd re-runs the section pipeline against an already-ingested
// session, the re-detect path DESIGN.md's marker-merge decision assumes:
// a caller who already saw the file's auto-extracted markers can pass
// additional or corrected ones without re-uploading anything.
func newDetectCmd() *cobra.Command {
	var markersFlag []string

	cmd := &cobra.Command{
		Use:   "detect <session-id>",
		Short: "Re-run section detection for an already-ingested session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sessionID := args[0]

			markers, err := parseMarkerFlags(markersFlag)
			if err != nil {
				return err
			}

			cfg, st, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			sess, err := st.GetSession(cmd.Context(), sessionID)
			if err != nil {
				return fmt.Errorf("session %s: %w", sessionID, err)
			}

			p := &pipeline.Pipeline{Store: st, Options: applyDetectorOverrides(cfg.Detector)}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			p.Process(ctx, sess.Filepath, sessionID, markers)

			final, err := st.GetSession(ctx, sessionID)
			if err != nil {
				return fmt.Errorf("fetch result: %w", err)
			}
			fmt.Printf("session %s: %s\n", sessionID, final.DetectionStatus)
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&markersFlag, "marker", nil, "explicit marker as index:label, may be repeated")
	return cmd
}
