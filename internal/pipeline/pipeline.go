// Package pipeline orchestrates a single session's ingestion: stream
// the cast file once, detect sections, snapshot the viewport at each
// boundary, and persist the result. It owns no resources beyond what
// a single Process call needs and exposes the protocol of spec.md
// §4.5 exactly, plus a reaper for processing runs a crash left stuck.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/dcosson/castkeep/internal/cast"
	"github.com/dcosson/castkeep/internal/section"
	"github.com/dcosson/castkeep/internal/store"
	"github.com/dcosson/castkeep/internal/vt"
)

// ErrIO wraps any failure to open or read the cast file, or to write
// the result to the store.
var ErrIO = errors.New("pipeline: io error")

// ErrNoHeader is returned when the file is exhausted before a valid
// header line is found.
var ErrNoHeader = errors.New("pipeline: no header")

// Pipeline processes sessions against one store, using Options as the
// detector's thresholds for every session.
type Pipeline struct {
	Store   *store.Store
	Options section.Options
}

// New builds a Pipeline backed by st, using spec.md §4.3's default
// detector thresholds.
func New(st *store.Store) *Pipeline {
	return &Pipeline{Store: st, Options: section.DefaultOptions()}
}

// Process runs the full session pipeline protocol against filePath,
// persisting progress and the final result under sessionID. It has no
// return value — every outcome, including failure, is recorded in the
// store, matching spec.md §4.5's contract.
//
// markers are caller-supplied section anchors (for example a re-detect
// request confirming marker placement already surfaced to a user).
// They are merged with any m-kind events found in the file itself; a
// caller-supplied marker wins if both name the same event index.
func (p *Pipeline) Process(ctx context.Context, filePath, sessionID string, markers []section.Marker) {
	if err := p.Store.SetStatus(ctx, sessionID, store.StatusProcessing); err != nil {
		log.Printf("warning: pipeline: mark %s processing: %v", sessionID, err)
		return
	}

	if err := p.run(ctx, filePath, sessionID, markers); err != nil {
		log.Printf("warning: pipeline: session %s failed: %v", sessionID, err)
		if sErr := p.Store.SetStatus(ctx, sessionID, store.StatusFailed); sErr != nil {
			log.Printf("warning: pipeline: mark %s failed: %v", sessionID, sErr)
		}
	}
}

func (p *Pipeline) run(ctx context.Context, filePath, sessionID string, callerMarkers []section.Marker) error {
	r, err := cast.Open(filePath)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	defer r.Close()

	header, err := r.Header()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNoHeader, err)
	}

	var events []cast.Event
	for ev := range r.Events() {
		events = append(events, ev)
	}
	if err := r.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}

	markers := mergeMarkers(callerMarkers, extractMarkers(events))
	boundaries := section.DetectWithMarkersOptions(events, markers, p.Options)

	sections := snapshotSections(header, events, boundaries, sessionID)

	if err := p.Store.ReplaceAllSections(ctx, sessionID, sections); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}

	detectedCount := 0
	for _, s := range sections {
		if s.Type == store.SectionDetected {
			detectedCount++
		}
	}
	if err := p.Store.CompleteSession(ctx, sessionID, len(events), detectedCount); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	return nil
}

// snapshotSections replays events through a fresh engine, capturing
// the viewport at each boundary's event index, then builds the
// per-boundary store rows with start/end ranges derived from
// consecutive boundaries.
func snapshotSections(header cast.Header, events []cast.Event, boundaries []section.Boundary, sessionID string) []store.Section {
	engine := vt.Create(header.Cols, header.Rows, 0)
	boundarySet := make(map[int]bool, len(boundaries))
	for _, b := range boundaries {
		boundarySet[b.EventIndex] = true
	}

	snapshots := make(map[int]vt.Snapshot, len(boundaries))
	for _, ev := range events {
		if ev.Kind == cast.KindOutput {
			engine.Feed([]byte(ev.Data))
		}
		if boundarySet[ev.Index] {
			snapshots[ev.Index] = engine.ViewportSnapshot()
		}
	}

	out := make([]store.Section, 0, len(boundaries))
	now := time.Now().UTC()
	for i, b := range boundaries {
		end := len(events)
		if i+1 < len(boundaries) {
			end = boundaries[i+1].EventIndex
		}
		typ := store.SectionDetected
		if hasMarkerSignal(b.Signals) {
			typ = store.SectionMarker
		}
		snap := snapshots[b.EventIndex]
		out = append(out, store.Section{
			ID:         uuid.NewString(),
			SessionID:  sessionID,
			Type:       typ,
			StartEvent: b.EventIndex,
			EndEvent:   &end,
			Label:      b.Label,
			Snapshot:   &snap,
			CreatedAt:  now,
		})
	}
	return out
}

// extractMarkers pulls every m-kind event out of the stream as a
// section.Marker, per spec.md §3's "extracted from m-kind events".
func extractMarkers(events []cast.Event) []section.Marker {
	var out []section.Marker
	for _, ev := range events {
		if ev.Kind == cast.KindMarker {
			out = append(out, section.Marker{EventIndex: ev.Index, Label: ev.Data})
		}
	}
	return out
}

// mergeMarkers combines caller-supplied markers with file-extracted
// ones, caller markers winning any event-index collision.
func mergeMarkers(caller, extracted []section.Marker) []section.Marker {
	seen := make(map[int]bool, len(caller))
	out := append([]section.Marker(nil), caller...)
	for _, m := range caller {
		seen[m.EventIndex] = true
	}
	for _, m := range extracted {
		if !seen[m.EventIndex] {
			out = append(out, m)
			seen[m.EventIndex] = true
		}
	}
	return out
}

func hasMarkerSignal(signals []string) bool {
	for _, s := range signals {
		if s == "marker" {
			return true
		}
	}
	return false
}
