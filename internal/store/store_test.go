package store

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dcosson/castkeep/internal/vt"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "castkeep.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func mustInt(n int) *int { return &n }

func TestStore_CreateAndGetSession(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sess := &Session{
		ID:              "sess-1",
		Filename:        "demo.cast",
		Filepath:        "/data/demo.cast",
		SizeBytes:       1024,
		UploadedAt:      time.Now().UTC().Truncate(time.Second),
		DetectionStatus: StatusPending,
	}
	if err := s.CreateSession(ctx, sess); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	got, err := s.GetSession(ctx, "sess-1")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.Filename != "demo.cast" || got.DetectionStatus != StatusPending {
		t.Fatalf("got %+v", got)
	}
}

func TestStore_CompleteSessionUpdatesCounts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sess := &Session{ID: "sess-2", Filename: "x.cast", Filepath: "/x.cast", UploadedAt: time.Now().UTC()}
	if err := s.CreateSession(ctx, sess); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if err := s.CompleteSession(ctx, "sess-2", 201, 1); err != nil {
		t.Fatalf("CompleteSession: %v", err)
	}

	got, err := s.GetSession(ctx, "sess-2")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.DetectionStatus != StatusCompleted {
		t.Fatalf("expected completed status, got %v", got.DetectionStatus)
	}
	if got.EventCount == nil || *got.EventCount != 201 {
		t.Fatalf("expected event_count=201, got %+v", got.EventCount)
	}
	if got.DetectedSectionsCount != 1 {
		t.Fatalf("expected detected_sections_count=1, got %d", got.DetectedSectionsCount)
	}
}

func TestStore_ReplaceAllSectionsIsAtomic(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sess := &Session{ID: "sess-3", Filename: "y.cast", Filepath: "/y.cast", UploadedAt: time.Now().UTC()}
	if err := s.CreateSession(ctx, sess); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	first := []Section{
		{ID: "sec-1", SessionID: "sess-3", Type: SectionDetected, StartEvent: 0, EndEvent: mustInt(100), Label: "Section 1", CreatedAt: time.Now().UTC()},
	}
	if err := s.ReplaceAllSections(ctx, "sess-3", first); err != nil {
		t.Fatalf("ReplaceAllSections (first): %v", err)
	}

	second := []Section{
		{ID: "sec-2", SessionID: "sess-3", Type: SectionMarker, StartEvent: 0, Label: "A", CreatedAt: time.Now().UTC()},
		{ID: "sec-3", SessionID: "sess-3", Type: SectionDetected, StartEvent: 50, Label: "Section 1", CreatedAt: time.Now().UTC()},
	}
	if err := s.ReplaceAllSections(ctx, "sess-3", second); err != nil {
		t.Fatalf("ReplaceAllSections (second): %v", err)
	}

	got, err := s.ListSections(ctx, "sess-3")
	if err != nil {
		t.Fatalf("ListSections: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected the replace to leave exactly 2 sections, got %d", len(got))
	}
	if got[0].ID != "sec-2" || got[1].ID != "sec-3" {
		t.Fatalf("expected sections from the second replace only, got %+v", got)
	}
}

func TestStore_SnapshotRoundTripsThroughJSON(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sess := &Session{ID: "sess-4", Filename: "z.cast", Filepath: "/z.cast", UploadedAt: time.Now().UTC()}
	if err := s.CreateSession(ctx, sess); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	snap := &vt.Snapshot{
		Cols: 80,
		Rows: 24,
		Lines: []vt.SnapshotLine{
			{Spans: []vt.Span{{Text: "hello", Bold: true}}},
		},
	}
	sections := []Section{
		{ID: "sec-4", SessionID: "sess-4", Type: SectionDetected, StartEvent: 0, Label: "Section 1", Snapshot: snap, CreatedAt: time.Now().UTC()},
	}
	if err := s.ReplaceAllSections(ctx, "sess-4", sections); err != nil {
		t.Fatalf("ReplaceAllSections: %v", err)
	}

	got, err := s.ListSections(ctx, "sess-4")
	if err != nil {
		t.Fatalf("ListSections: %v", err)
	}
	if len(got) != 1 || got[0].Snapshot == nil {
		t.Fatalf("expected snapshot to round-trip, got %+v", got)
	}
	if got[0].Snapshot.Cols != 80 || got[0].Snapshot.Lines[0].Spans[0].Text != "hello" {
		t.Fatalf("snapshot mismatch: %+v", got[0].Snapshot)
	}

	var raw string
	if err := s.db.QueryRow(`SELECT snapshot FROM sections WHERE id = ?`, "sec-4").Scan(&raw); err != nil {
		t.Fatalf("select raw snapshot: %v", err)
	}
	for _, want := range []string{`"cols":80`, `"rows":24`, `"text":"hello"`, `"bold":true`, `"fg":null`} {
		if !strings.Contains(raw, want) {
			t.Fatalf("expected %s in persisted snapshot JSON, got %s", want, raw)
		}
	}
	if strings.Contains(raw, `"Bold"`) || strings.Contains(raw, `"Cols"`) {
		t.Fatalf("expected lowercase wire keys, got %s", raw)
	}
}

func TestStore_DeleteSessionCascadesSections(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sess := &Session{ID: "sess-5", Filename: "w.cast", Filepath: "/w.cast", UploadedAt: time.Now().UTC()}
	if err := s.CreateSession(ctx, sess); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	sections := []Section{
		{ID: "sec-5", SessionID: "sess-5", Type: SectionDetected, StartEvent: 0, Label: "Section 1", CreatedAt: time.Now().UTC()},
	}
	if err := s.ReplaceAllSections(ctx, "sess-5", sections); err != nil {
		t.Fatalf("ReplaceAllSections: %v", err)
	}

	if err := s.DeleteSession(ctx, "sess-5"); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}

	got, err := s.ListSections(ctx, "sess-5")
	if err != nil {
		t.Fatalf("ListSections: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected cascade delete to remove sections, got %+v", got)
	}
}
