package pipeline

import (
	"context"
	"sync"

	"github.com/dcosson/castkeep/internal/section"
)

// job is one queued ingestion request.
type job struct {
	filePath  string
	sessionID string
	markers   []section.Marker
}

// Runner fans a stream of ingestion requests out across a bounded pool
// of workers, per spec.md §5's fan-out limit. Submit is non-blocking
// once a worker slot frees up; Close waits for in-flight work to
// finish.
type Runner struct {
	pipeline *Pipeline
	jobs     chan job
	wg       sync.WaitGroup
}

// NewRunner starts fanOut workers pulling from an internal queue and
// calling p.Process for each submission. fanOut below 1 is treated as 1.
func NewRunner(ctx context.Context, p *Pipeline, fanOut int) *Runner {
	if fanOut < 1 {
		fanOut = 1
	}
	r := &Runner{pipeline: p, jobs: make(chan job, fanOut)}
	r.wg.Add(fanOut)
	for i := 0; i < fanOut; i++ {
		go r.worker(ctx)
	}
	return r
}

func (r *Runner) worker(ctx context.Context) {
	defer r.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case j, ok := <-r.jobs:
			if !ok {
				return
			}
			r.pipeline.Process(ctx, j.filePath, j.sessionID, j.markers)
		}
	}
}

// Submit enqueues a session for processing. It blocks only if every
// worker is busy and the queue is full.
func (r *Runner) Submit(filePath, sessionID string, markers []section.Marker) {
	r.jobs <- job{filePath: filePath, sessionID: sessionID, markers: markers}
}

// Close stops accepting new work and waits for in-flight jobs to drain.
func (r *Runner) Close() {
	close(r.jobs)
	r.wg.Wait()
}
