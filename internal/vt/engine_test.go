package vt

import "testing"

func lineText(l Line) string {
	s := ""
	for _, c := range l.Cells {
		if c.Width == 0 {
			continue
		}
		if c.Rune == 0 {
			s += " "
		} else {
			s += string(c.Rune)
		}
	}
	return s
}

func TestEngine_FeedRendersIntoView(t *testing.T) {
	e := Create(10, 3, 0)
	e.Feed([]byte("hello"))
	view := e.View()
	if got := lineText(view[0]); got[:5] != "hello" {
		t.Fatalf("expected row 0 to start with hello, got %q", got)
	}
}

func TestEngine_FeedSplitAcrossCallsMatchesSingleFeed(t *testing.T) {
	a := Create(20, 3, 0)
	a.Feed([]byte("hello"))
	a.Feed([]byte(" world"))

	b := Create(20, 3, 0)
	b.Feed([]byte("hello world"))

	va, vb := a.View(), b.View()
	for row := range va {
		if lineText(va[row]) != lineText(vb[row]) {
			t.Fatalf("row %d diverged: %q vs %q", row, lineText(va[row]), lineText(vb[row]))
		}
	}
}

func TestEngine_FeedReturnsChangedRows(t *testing.T) {
	e := Create(10, 3, 0)
	changed := e.Feed([]byte("hi"))
	if !changed[0] {
		t.Fatalf("expected row 0 marked changed, got %+v", changed)
	}
	if changed[1] || changed[2] {
		t.Fatalf("expected rows 1,2 untouched, got %+v", changed)
	}
}

func TestEngine_ResizeReturnsChangedRows(t *testing.T) {
	e := Create(10, 3, 0)
	e.Feed([]byte("hello\r\nworld"))
	changed := e.Resize(10, 5)
	if changed == nil {
		t.Fatalf("expected a non-nil change set after resize")
	}
	cols, rows := e.Size()
	if cols != 10 || rows != 5 {
		t.Fatalf("expected size (10,5), got (%d,%d)", cols, rows)
	}
}

func TestEngine_AllLinesTrimsTrailingBlankViewportLines(t *testing.T) {
	e := Create(10, 5, 0)
	e.Feed([]byte("hi"))
	lines := e.AllLines()
	if len(lines) != 1 {
		t.Fatalf("expected trailing blank rows trimmed, got %d lines", len(lines))
	}
}

func TestEngine_AllLinesGrowsPastViewportOnScroll(t *testing.T) {
	e := Create(10, 2, 0)
	for i := 0; i < 5; i++ {
		e.Feed([]byte("line\r\n"))
	}
	lines := e.AllLines()
	if len(lines) < 5 {
		t.Fatalf("expected shadow scrollback to retain scrolled-off rows, got %d lines", len(lines))
	}
}

func TestEngine_CursorHiddenByDECTCEM(t *testing.T) {
	e := Create(10, 3, 0)
	if _, _, ok := e.Cursor(); !ok {
		t.Fatalf("expected cursor visible by default")
	}
	e.Feed([]byte("\x1b[?25l"))
	if _, _, ok := e.Cursor(); ok {
		t.Fatalf("expected cursor hidden after DECTCEM reset")
	}
	e.Feed([]byte("\x1b[?25h"))
	if _, _, ok := e.Cursor(); !ok {
		t.Fatalf("expected cursor visible again after DECTCEM set")
	}
}

func TestEngine_InAltScreenTracksPrivateModes(t *testing.T) {
	e := Create(10, 3, 0)
	if e.InAltScreen() {
		t.Fatalf("expected not in alt screen initially")
	}
	e.Feed([]byte("\x1b[?1049h"))
	if !e.InAltScreen() {
		t.Fatalf("expected alt screen entered")
	}
	e.Feed([]byte("\x1b[?1049l"))
	if e.InAltScreen() {
		t.Fatalf("expected alt screen exited")
	}
}

func TestEngine_ViewportSnapshotMatchesView(t *testing.T) {
	e := Create(10, 3, 0)
	e.Feed([]byte("abc"))
	snap := e.ViewportSnapshot()
	if snap.Cols != 10 || snap.Rows != 3 {
		t.Fatalf("expected snapshot dims (10,3), got (%d,%d)", snap.Cols, snap.Rows)
	}
	if len(snap.Lines) != 3 {
		t.Fatalf("viewport snapshot must not trim blank rows, got %d lines", len(snap.Lines))
	}
}

func TestEngine_AllLinesSnapshotTrims(t *testing.T) {
	e := Create(10, 5, 0)
	e.Feed([]byte("abc"))
	snap := e.AllLinesSnapshot()
	if len(snap.Lines) != 1 {
		t.Fatalf("expected trailing blanks trimmed, got %d lines", len(snap.Lines))
	}
}
