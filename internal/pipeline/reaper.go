package pipeline

import (
	"context"
	"log"
	"time"

	"github.com/dcosson/castkeep/internal/store"
)

// SweepStaleProcessing finds sessions stuck in "processing" — a
// process that died mid-run never reaches the failure branch in
// Process — and resets any older than maxAge back to "pending" so a
// future run can re-queue them. It runs once; callers schedule it on a
// timer or at startup.
func SweepStaleProcessing(ctx context.Context, st *store.Store, maxAge time.Duration) error {
	sessions, err := st.ListSessions(ctx)
	if err != nil {
		return err
	}

	cutoff := time.Now().UTC().Add(-maxAge)
	for _, sess := range sessions {
		if sess.DetectionStatus != store.StatusProcessing {
			continue
		}
		if sess.ProcessingStartedAt == nil || sess.ProcessingStartedAt.After(cutoff) {
			continue
		}
		log.Printf("warning: pipeline: reaping stale processing session %s (started %s)", sess.ID, *sess.ProcessingStartedAt)
		if err := st.SetStatus(ctx, sess.ID, store.StatusPending); err != nil {
			log.Printf("warning: pipeline: reap %s: %v", sess.ID, err)
		}
	}
	return nil
}
