package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dcosson/castkeep/internal/store"
)

func writeCast(t *testing.T, lines []string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "session.cast")
	content := strings.Join(lines, "\n") + "\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write cast file: %v", err)
	}
	return path
}

// longRecording builds n quiet 'o' events at a constant relative-time
// delta, then inserts one large delta and n more events, so a detector
// run over it reliably finds exactly one timing_gap boundary at index
// n. relative_time is per-event delta, not cumulative, matching the
// asciicast v2/v3 wire format.
func longRecording(n int) []string {
	lines := []string{`{"version":3,"width":80,"height":24}`}
	for i := 0; i < n; i++ {
		lines = append(lines, fmt.Sprintf(`[0.5,"o","line %d\r\n"]`, i))
	}
	lines = append(lines, `[30.0,"o","after the gap\r\n"]`)
	for i := 0; i < n; i++ {
		lines = append(lines, fmt.Sprintf(`[0.5,"o","tail %d\r\n"]`, i))
	}
	return lines
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "castkeep.db")
	s, err := store.Open(path)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestProcess_CompletesAndPersistsSections(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	path := writeCast(t, longRecording(100))
	sess := &store.Session{ID: "s1", Filename: "session.cast", Filepath: path, UploadedAt: time.Now().UTC()}
	if err := st.CreateSession(ctx, sess); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	p := New(st)
	p.Process(ctx, path, "s1", nil)

	got, err := st.GetSession(ctx, "s1")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.DetectionStatus != store.StatusCompleted {
		t.Fatalf("expected completed, got %v", got.DetectionStatus)
	}
	if got.EventCount == nil || *got.EventCount != 201 {
		t.Fatalf("expected event_count=201, got %+v", got.EventCount)
	}

	sections, err := st.ListSections(ctx, "s1")
	if err != nil {
		t.Fatalf("ListSections: %v", err)
	}
	if len(sections) == 0 {
		t.Fatalf("expected at least one section")
	}
	if sections[0].Snapshot == nil {
		t.Fatalf("expected a viewport snapshot on the first section")
	}
}

func TestProcess_NoHeaderMarksFailed(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	path := writeCast(t, []string{""})
	sess := &store.Session{ID: "s2", Filename: "empty.cast", Filepath: path, UploadedAt: time.Now().UTC()}
	if err := st.CreateSession(ctx, sess); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	p := New(st)
	p.Process(ctx, path, "s2", nil)

	got, err := st.GetSession(ctx, "s2")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.DetectionStatus != store.StatusFailed {
		t.Fatalf("expected failed, got %v", got.DetectionStatus)
	}
}

func TestProcess_MarkerEventsExtractedFromFile(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	lines := longRecording(60)
	lines = append(lines, `[60.0,"m","checkpoint"]`)
	lines = append(lines, longRecording(60)[1:]...)

	path := writeCast(t, lines)
	sess := &store.Session{ID: "s3", Filename: "marked.cast", Filepath: path, UploadedAt: time.Now().UTC()}
	if err := st.CreateSession(ctx, sess); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	p := New(st)
	p.Process(ctx, path, "s3", nil)

	sections, err := st.ListSections(ctx, "s3")
	if err != nil {
		t.Fatalf("ListSections: %v", err)
	}
	found := false
	for _, sec := range sections {
		if sec.Type == store.SectionMarker && sec.Label == "checkpoint" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a marker section labeled checkpoint, got %+v", sections)
	}
}

func TestCleanDocument_CollapsesRedrawAcrossScreenClear(t *testing.T) {
	lines := []string{
		`{"version":3,"width":80,"height":24}`,
		`[0.1,"o","one\r\n"]`,
		`[0.2,"o","two\r\n"]`,
		`[0.3,"o","\u001b[2J"]`,
		`[0.4,"o","one\r\n"]`,
		`[0.5,"o","two\r\n"]`,
		`[0.6,"o","three\r\n"]`,
	}
	path := writeCast(t, lines)

	result, err := CleanDocument(path)
	if err != nil {
		t.Fatalf("CleanDocument: %v", err)
	}
	if len(result.CleanLines) == 0 {
		t.Fatalf("expected a non-empty clean document")
	}
}

func TestSweepStaleProcessing_RequeuesOldProcessingSessions(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	sess := &store.Session{ID: "stale-1", Filename: "x.cast", Filepath: "/x.cast", UploadedAt: time.Now().UTC().Add(-time.Hour)}
	if err := st.CreateSession(ctx, sess); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if err := st.SetStatus(ctx, "stale-1", store.StatusProcessing); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}

	if err := SweepStaleProcessing(ctx, st, 0); err != nil {
		t.Fatalf("SweepStaleProcessing: %v", err)
	}

	got, err := st.GetSession(ctx, "stale-1")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.DetectionStatus != store.StatusPending {
		t.Fatalf("expected stale processing session reaped to pending, got %v", got.DetectionStatus)
	}
}

func TestRunner_ProcessesSubmittedSessions(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	path := writeCast(t, longRecording(100))
	sess := &store.Session{ID: "r1", Filename: "session.cast", Filepath: path, UploadedAt: time.Now().UTC()}
	if err := st.CreateSession(ctx, sess); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	p := New(st)
	r := NewRunner(ctx, p, 2)
	r.Submit(path, "r1", nil)
	r.Close()

	got, err := st.GetSession(ctx, "r1")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.DetectionStatus != store.StatusCompleted {
		t.Fatalf("expected completed, got %v", got.DetectionStatus)
	}
}
