package vt

import "strings"

// Span is the maximal run of adjacent cells sharing one pen, in the
// wire format described by spec.md §6. Boolean fields carry
// `omitempty` because the wire format defines an absent key as false.
type Span struct {
	Text          string `json:"text"`
	Fg            Color  `json:"fg"`
	Bg            Color  `json:"bg"`
	Bold          bool   `json:"bold,omitempty"`
	Faint         bool   `json:"faint,omitempty"`
	Italic        bool   `json:"italic,omitempty"`
	Underline     bool   `json:"underline,omitempty"`
	Strikethrough bool   `json:"strikethrough,omitempty"`
	Blink         bool   `json:"blink,omitempty"`
	Inverse       bool   `json:"inverse,omitempty"`
}

// SnapshotLine is one rendered line of a Snapshot.
type SnapshotLine struct {
	Wrapped bool   `json:"wrapped"`
	Spans   []Span `json:"spans"`
}

// Snapshot is a serializable description of a terminal grid at a
// moment in time — either a viewport (fixed rows×cols) or an
// all-lines (scrollback + viewport) capture.
type Snapshot struct {
	Cols  int            `json:"cols"`
	Rows  int            `json:"rows"`
	Lines []SnapshotLine `json:"lines"`
}

func penToSpanStyle(s *Span, p Pen) {
	s.Fg, s.Bg = p.Fg, p.Bg
	s.Bold = p.Intensity == IntensityBold
	s.Faint = p.Intensity == IntensityFaint
	s.Italic = p.Attrs.has(AttrItalic)
	s.Underline = p.Attrs.has(AttrUnderline)
	s.Strikethrough = p.Attrs.has(AttrStrikethrough)
	s.Blink = p.Attrs.has(AttrBlink)
	s.Inverse = p.Attrs.has(AttrInverse)
}

func samePen(a, b Pen) bool { return a == b }

// mergeSpans collapses consecutive cells sharing a pen into one span.
// Zero-width cells (the trailing half of a wide-char pair) never start
// a new span — they extend whichever span is open, contributing no
// text of their own.
func mergeSpans(line Line) []Span {
	var spans []Span
	var textBuf strings.Builder
	var cur Pen
	open := false

	flush := func() {
		if !open {
			return
		}
		sp := Span{Text: textBuf.String()}
		penToSpanStyle(&sp, cur)
		spans = append(spans, sp)
		textBuf.Reset()
	}

	for _, c := range line.Cells {
		if c.Width == 0 {
			// Zero-width continuation: extends the current span, emits no text.
			continue
		}
		if !open || !samePen(cur, c.Pen) {
			flush()
			cur = c.Pen
			open = true
		}
		if c.Rune != 0 {
			textBuf.WriteRune(c.Rune)
		} else {
			textBuf.WriteByte(' ')
		}
	}
	flush()
	return spans
}

// buildSnapshot renders lines into the wire Snapshot shape, trimming
// trailing blank viewport lines per spec.md §3's "all-lines" contract.
// Viewport snapshots pass trim=false; all-lines snapshots pass trim=true.
func buildSnapshot(cols, rows int, lines []Line, trim bool) Snapshot {
	if trim {
		end := len(lines)
		for end > 0 && lineIsBlank(lines[end-1]) {
			end--
		}
		lines = lines[:end]
	}
	snap := Snapshot{Cols: cols, Rows: rows, Lines: make([]SnapshotLine, 0, len(lines))}
	for _, l := range lines {
		snap.Lines = append(snap.Lines, SnapshotLine{
			Wrapped: l.Wrapped,
			Spans:   mergeSpans(l),
		})
	}
	return snap
}

func lineIsBlank(l Line) bool {
	for _, c := range l.Cells {
		if c.Rune != 0 && c.Rune != ' ' {
			return false
		}
	}
	return true
}
