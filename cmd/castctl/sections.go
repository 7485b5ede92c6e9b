package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSectionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sections <session-id>",
		Short: "List detected and marker sections for a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, st, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			sessionID := args[0]
			sess, err := st.GetSession(cmd.Context(), sessionID)
			if err != nil {
				return fmt.Errorf("session %s: %w", sessionID, err)
			}

			sections, err := st.ListSections(cmd.Context(), sessionID)
			if err != nil {
				return fmt.Errorf("list sections: %w", err)
			}
			if len(sections) == 0 {
				fmt.Printf("%s: no sections (status: %s)\n", sess.Filename, sess.DetectionStatus)
				return nil
			}

			fmt.Printf("\033[1m%s\033[0m (%s, %d events)\n", sess.Filename, sess.DetectionStatus, derefEventCount(sess.EventCount))
			for _, sec := range sections {
				symbol := "\033[36m●\033[0m"
				if sec.Type == "marker" {
					symbol = "\033[35m◆\033[0m"
				}
				end := "end"
				if sec.EndEvent != nil {
					end = fmt.Sprintf("%d", *sec.EndEvent)
				}
				fmt.Printf("  %s %-20s \033[2mevents %d-%s\033[0m  id=%s\n", symbol, sec.Label, sec.StartEvent, end, sec.ID)
			}
			return nil
		},
	}
}

func derefEventCount(n *int) int {
	if n == nil {
		return 0
	}
	return *n
}
