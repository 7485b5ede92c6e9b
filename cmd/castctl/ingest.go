package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/dcosson/castkeep/internal/config"
	"github.com/dcosson/castkeep/internal/pipeline"
	"github.com/dcosson/castkeep/internal/section"
	"github.com/dcosson/castkeep/internal/store"
)

func newIngestCmd() *cobra.Command {
	var markersFlag []string

	cmd := &cobra.Command{
		Use:   "ingest <file.cast>",
		Short: "Register a recording and run the section pipeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			abs, err := filepath.Abs(path)
			if err != nil {
				return fmt.Errorf("resolve path: %w", err)
			}
			info, err := os.Stat(abs)
			if err != nil {
				return fmt.Errorf("stat %s: %w", abs, err)
			}

			markers, err := parseMarkerFlags(markersFlag)
			if err != nil {
				return err
			}

			cfg, st, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			sessionID := uuid.NewString()
			sess := &store.Session{
				ID:              sessionID,
				Filename:        filepath.Base(abs),
				Filepath:        abs,
				SizeBytes:       info.Size(),
				MarkerCount:     len(markers),
				UploadedAt:      time.Now().UTC(),
				DetectionStatus: store.StatusPending,
			}
			if err := st.CreateSession(cmd.Context(), sess); err != nil {
				return fmt.Errorf("create session: %w", err)
			}

			p := &pipeline.Pipeline{Store: st, Options: applyDetectorOverrides(cfg.Detector)}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			p.Process(ctx, abs, sessionID, markers)

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

// parseMarkerFlags decodes "index:label" strings into section.Marker
// values, the CLI surface for process()'s caller-supplied markers.
func parseMarkerFlags(raw []string) ([]section.Marker, error) {
	var out []section.Marker
	for _, r := range raw {
		idx := strings.IndexByte(r, ':')
		if idx < 0 {
			return nil, fmt.Errorf("invalid --marker %q: want index:label", r)
		}
		n, err := strconv.Atoi(r[:idx])
		if err != nil {
			return nil, fmt.Errorf("invalid --marker %q: %w", r, err)
		}
		out = append(out, section.Marker{EventIndex: n, Label: r[idx+1:]})
	}
	return out, nil
}

// applyDetectorOverrides layers a loaded config's detector thresholds
// onto section.DefaultOptions.
func applyDetectorOverrides(d config.DetectorConfig) section.Options {
	opts := section.DefaultOptions()
	if d.MergeWindow != nil {
		opts.MergeWindow = *d.MergeWindow
	}
	if d.MinSectionSize != nil {
		opts.MinSectionSize = *d.MinSectionSize
	}
	if d.MaxSections != nil {
		opts.MaxSections = *d.MaxSections
	}
	return opts
}
