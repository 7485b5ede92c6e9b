package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dcosson/castkeep/internal/pipeline"
	"github.com/dcosson/castkeep/internal/watch"
)

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch [dir]",
		Short: "Watch a directory for new recordings and process them",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, st, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			dir := cfg.WatchDir
			if len(args) == 1 {
				dir = args[0]
			}
			if dir == "" {
				return fmt.Errorf("no watch directory given: pass one, or set watch_dir in config")
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			sig := make(chan os.Signal, 1)
			signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
			go func() {
				<-sig
				cancel()
			}()

			if err := pipeline.SweepStaleProcessing(ctx, st, 30*time.Minute); err != nil {
				fmt.Fprintf(os.Stderr, "warning: reaper sweep: %v\n", err)
			}

			p := &pipeline.Pipeline{Store: st, Options: applyDetectorOverrides(cfg.Detector)}
			runner := pipeline.NewRunner(ctx, p, cfg.FanOut)
			defer runner.Close()

			w, err := watch.New(dir, st, runner)
			if err != nil {
				return fmt.Errorf("start watcher on %s: %w", dir, err)
			}
			defer w.Close()

			fmt.Printf("watching %s (fan_out=%d)\n", dir, cfg.FanOut)
			return w.Run(ctx)
		},
	}
}
