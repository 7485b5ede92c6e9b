package pipeline

import (
	"fmt"
	"strings"

	"github.com/dcosson/castkeep/internal/cast"
	"github.com/dcosson/castkeep/internal/dedup"
	"github.com/dcosson/castkeep/internal/section"
	"github.com/dcosson/castkeep/internal/vt"
)

// CleanDocument replays filePath through a fresh engine and returns
// the deduplicated scrollback, per spec.md §9's decision to recompute
// the clean document on demand rather than persist it. A screen_clear
// control sequence opens a new epoch boundary, the same signal
// internal/section uses to candidate a section boundary.
func CleanDocument(filePath string) (dedup.Result[vt.SnapshotLine], error) {
	r, err := cast.Open(filePath)
	if err != nil {
		return dedup.Result[vt.SnapshotLine]{}, fmt.Errorf("%w: %v", ErrIO, err)
	}
	defer r.Close()

	header, err := r.Header()
	if err != nil {
		return dedup.Result[vt.SnapshotLine]{}, fmt.Errorf("%w: %v", ErrNoHeader, err)
	}

	engine := vt.Create(header.Cols, header.Rows, 0)
	var epochBoundaries []int
	for ev := range r.Events() {
		if ev.Kind != cast.KindOutput {
			continue
		}
		engine.Feed([]byte(ev.Data))
		if section.IsScreenClear(ev.Data) {
			epochBoundaries = append(epochBoundaries, len(engine.AllLines()))
		}
	}
	if err := r.Err(); err != nil {
		return dedup.Result[vt.SnapshotLine]{}, fmt.Errorf("%w: %v", ErrIO, err)
	}

	snap := engine.AllLinesSnapshot()
	return dedup.Dedup(snap.Lines, snapshotLineKey, epochBoundaries), nil
}

func snapshotLineKey(l vt.SnapshotLine) string {
	var b strings.Builder
	for _, sp := range l.Spans {
		b.WriteString(sp.Text)
	}
	return strings.TrimRight(b.String(), " ")
}
