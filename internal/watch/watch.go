// Package watch fills the "a recording became available" slot spec.md
// §6 leaves to an HTTP upload endpoint: an optional directory watcher
// that registers a new session and hands it to the pipeline the
// moment a .cast file finishes arriving on disk.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"github.com/dcosson/castkeep/internal/pipeline"
	"github.com/dcosson/castkeep/internal/store"
)

// settleDelay is how long a file's size must hold steady before it is
// considered fully written. Recorders append to a .cast file as the
// session progresses; watching Create alone would race a
// still-growing file into the pipeline.
const settleDelay = 2 * time.Second

// reapInterval and reapMaxAge drive the periodic sweep for sessions a
// crashed worker left stuck in "processing", per spec.md §5's optional
// sweep step. `castctl watch` also runs one sweep before the watcher
// starts; this ticker
// covers the rest of a long-lived watch run.
const (
	reapInterval = 5 * time.Minute
	reapMaxAge   = 30 * time.Minute
)

// Watcher observes dir for new .cast files, registers each as a
// session, and submits it to runner once its size has settled.
type Watcher struct {
	dir    string
	store  *store.Store
	runner *pipeline.Runner
	fsw    *fsnotify.Watcher

	mu      sync.Mutex
	pending map[string]*time.Timer
}

// New starts watching dir. Call Run to block processing filesystem
// events; call Close to release the underlying OS watch.
func New(dir string, st *store.Store, runner *pipeline.Runner) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: create watcher: %w", err)
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch: add %s: %w", dir, err)
	}
	return &Watcher{
		dir:     dir,
		store:   st,
		runner:  runner,
		fsw:     fsw,
		pending: make(map[string]*time.Timer),
	}, nil
}

// Close releases the underlying OS watch.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

// Run processes filesystem events until ctx is canceled or the
// underlying watch fails. While running it also sweeps stale
// processing sessions on a reapInterval ticker.
func (w *Watcher) Run(ctx context.Context) error {
	defer func() {
		w.mu.Lock()
		for _, t := range w.pending {
			t.Stop()
		}
		w.mu.Unlock()
	}()

	ticker := time.NewTicker(reapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return errors.New("watch: event channel closed")
			}
			w.handleEvent(ctx, ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return errors.New("watch: error channel closed")
			}
			log.Printf("warning: watch: %v", err)
		case <-ticker.C:
			if err := pipeline.SweepStaleProcessing(ctx, w.store, reapMaxAge); err != nil {
				log.Printf("warning: watch: reaper sweep: %v", err)
			}
		}
	}
}

func (w *Watcher) handleEvent(ctx context.Context, ev fsnotify.Event) {
	if !strings.HasSuffix(ev.Name, ".cast") {
		return
	}
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[ev.Name]; ok {
		t.Stop()
	}
	w.pending[ev.Name] = time.AfterFunc(settleDelay, func() {
		w.mu.Lock()
		delete(w.pending, ev.Name)
		w.mu.Unlock()
		w.ingest(ctx, ev.Name)
	})
}

func (w *Watcher) ingest(ctx context.Context, path string) {
	info, err := os.Stat(path)
	if err != nil {
		log.Printf("warning: watch: stat %s: %v", path, err)
		return
	}

	sessionID := uuid.NewString()
	sess := &store.Session{
		ID:              sessionID,
		Filename:        filepath.Base(path),
		Filepath:        path,
		SizeBytes:       info.Size(),
		UploadedAt:      time.Now().UTC(),
		DetectionStatus: store.StatusPending,
	}
	if err := w.store.CreateSession(ctx, sess); err != nil {
		log.Printf("warning: watch: create session for %s: %v", path, err)
		return
	}

	w.runner.Submit(path, sessionID, nil)
}
