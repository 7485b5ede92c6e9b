package main

import (
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/dcosson/castkeep/internal/vt"
)

func newSnapshotCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "snapshot <session-id> <section-id>",
		Short: "Render a section's stored viewport snapshot",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, st, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			sessionID, sectionID := args[0], args[1]
			sections, err := st.ListSections(cmd.Context(), sessionID)
			if err != nil {
				return fmt.Errorf("list sections: %w", err)
			}
			for _, sec := range sections {
				if sec.ID != sectionID {
					continue
				}
				if sec.Snapshot == nil {
					return fmt.Errorf("section %s has no stored snapshot", sectionID)
				}
				renderSnapshot(*sec.Snapshot)
				return nil
			}
			return fmt.Errorf("section %s not found in session %s", sectionID, sessionID)
		},
	}
}

// renderSnapshot prints a stored viewport to stdout, degrading to
// plain text when stdout isn't a color-capable terminal.
func renderSnapshot(snap vt.Snapshot) {
	profile := termenv.Ascii
	if isatty.IsTerminal(os.Stdout.Fd()) {
		profile = termenv.ColorProfile()
	}
	out := termenv.NewOutput(os.Stdout, termenv.WithProfile(profile))

	for _, line := range snap.Lines {
		for _, sp := range line.Spans {
			s := out.String(sp.Text)
			if fg, ok := termenvColor(out, sp.Fg); ok {
				s = s.Foreground(fg)
			}
			if bg, ok := termenvColor(out, sp.Bg); ok {
				s = s.Background(bg)
			}
			if sp.Bold {
				s = s.Bold()
			}
			if sp.Faint {
				s = s.Faint()
			}
			if sp.Italic {
				s = s.Italic()
			}
			if sp.Underline {
				s = s.Underline()
			}
			if sp.Strikethrough {
				s = s.CrossOut()
			}
			if sp.Blink {
				s = s.Blink()
			}
			if sp.Inverse {
				s = s.Reverse()
			}
			fmt.Fprint(out, s)
		}
		fmt.Fprintln(out)
	}
}

// termenvColor translates our wire Color into a termenv.Color under
// out's resolved profile. The two "default" sentinels and ColorNone
// carry no value worth rendering.
func termenvColor(out *termenv.Output, c vt.Color) (termenv.Color, bool) {
	switch c.Kind {
	case vt.ColorIndexed:
		return out.Color(fmt.Sprintf("%d", c.Index)), true
	case vt.ColorRGB:
		return out.Color(fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)), true
	default:
		return nil, false
	}
}
