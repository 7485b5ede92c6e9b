// Package vt bridges a proven DEC-ANSI terminal emulator
// (github.com/vito/midterm) into the structured Cell/Line/Snapshot
// model spec.md §3 and §4.1 describe. The parser itself is never
// reimplemented here — only the bridge surface that walks midterm's
// content/format arrays and translates them into our own wire types.
package vt

import (
	"bytes"
	"sync"

	"github.com/vito/midterm"
)

// Engine owns one live terminal plus an append-only shadow terminal
// that never evicts scrollback, mirroring the dual-terminal shape
// internal/session/virtualterminal/vt.go uses for its live/Scrollback
// pair. The shadow is the source of truth for AllLines(); the live
// terminal is the source of truth for View()/Cursor()/Size().
type Engine struct {
	mu     sync.Mutex
	cols   int
	rows   int
	live   *midterm.Terminal
	shadow *midterm.Terminal

	cursorHidden bool
	inAltScreen  bool
}

// Create builds a new Engine at the given dimensions. scrollbackLimit
// is accepted for contract compatibility with spec.md §4.1 but the
// shadow terminal is unbounded (AppendOnly) — the dedup stage is what
// makes unbounded scrollback tractable, not a ring buffer here.
func Create(cols, rows int, scrollbackLimit int) *Engine {
	live := midterm.NewTerminal(rows, cols)
	shadow := midterm.NewTerminal(rows, cols)
	shadow.AutoResizeY = true
	shadow.AppendOnly = true
	return &Engine{
		cols:   cols,
		rows:   rows,
		live:   live,
		shadow: shadow,
	}
}

// Feed drives the parser state machine with output bytes and returns
// the set of live-viewport row indices that changed. It never panics:
// a fault inside the underlying parser is absorbed and reported as a
// nil change set, per spec.md §4.1's failure model.
func (e *Engine) Feed(data []byte) (changed map[int]bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	before := snapshotRowText(e.live)
	defer func() {
		if r := recover(); r != nil {
			changed = nil
		}
	}()

	e.trackModes(data)
	e.live.Write(data)
	e.shadow.Write(data)

	after := snapshotRowText(e.live)
	return diffRows(before, after)
}

// trackModes scans fed bytes for the cursor-visibility and alt-screen
// DEC private modes. midterm applies these internally; the bridge
// tracks them independently off the raw bytes (the same
// bytes.Contains-over-raw-data idiom internal/virtualterminal/vt.go
// uses for OSC color queries) because the public Terminal API doesn't
// surface either as a plain bool.
func (e *Engine) trackModes(data []byte) {
	switch {
	case bytes.Contains(data, []byte("\x1b[?25l")):
		e.cursorHidden = true
	case bytes.Contains(data, []byte("\x1b[?25h")):
		e.cursorHidden = false
	}
	for _, code := range []string{"1049", "1047"} {
		if bytes.Contains(data, []byte("\x1b[?"+code+"h")) {
			e.inAltScreen = true
		}
		if bytes.Contains(data, []byte("\x1b[?"+code+"l")) {
			e.inAltScreen = false
		}
	}
}

// InAltScreen reports whether the most recently fed data left the
// engine inside the alternate screen buffer.
func (e *Engine) InAltScreen() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.inAltScreen
}

// View returns the live rows×cols viewport.
func (e *Engine) View() []Line {
	e.mu.Lock()
	defer e.mu.Unlock()
	lines := make([]Line, e.rows)
	for row := 0; row < e.rows; row++ {
		lines[row] = buildLine(e.live, row, e.cols)
	}
	return lines
}

// AllLines returns scrollback + viewport with trailing blank viewport
// lines trimmed, sourced from the append-only shadow terminal.
func (e *Engine) AllLines() []Line {
	e.mu.Lock()
	defer e.mu.Unlock()
	total := len(e.shadow.Content)
	lines := make([]Line, total)
	for row := 0; row < total; row++ {
		lines[row] = buildLine(e.shadow, row, e.cols)
	}
	for len(lines) > 0 && lineIsBlank(lines[len(lines)-1]) {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// Cursor returns the live cursor's (col, row), or ok=false if hidden.
func (e *Engine) Cursor() (col, row int, ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cursorHidden {
		return 0, 0, false
	}
	return e.live.Cursor.X, e.live.Cursor.Y, true
}

// Size returns the current (cols, rows).
func (e *Engine) Size() (cols, rows int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cols, e.rows
}

// Resize changes the live viewport dimensions and reflows content,
// returning the set of rows that changed as a result.
func (e *Engine) Resize(cols, rows int) (changed map[int]bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	before := snapshotRowText(e.live)
	defer func() {
		if r := recover(); r != nil {
			changed = nil
		}
	}()

	e.cols, e.rows = cols, rows
	e.live.Resize(rows, cols)
	e.shadow.Resize(rows, cols)

	after := snapshotRowText(e.live)
	return diffRows(before, after)
}

// ViewportSnapshot renders View() into the wire Snapshot shape.
func (e *Engine) ViewportSnapshot() Snapshot {
	cols, rows := e.Size()
	return buildSnapshot(cols, rows, e.View(), false)
}

// AllLinesSnapshot renders AllLines() into the wire Snapshot shape.
func (e *Engine) AllLinesSnapshot() Snapshot {
	cols, rows := e.Size()
	return buildSnapshot(cols, rows, e.AllLines(), true)
}

// buildLine walks midterm's per-row content and format regions and
// translates them into our Cell model, including the zero-width
// continuation cells wide runes need (see cell.go:appendRune).
func buildLine(t *midterm.Terminal, row, cols int) Line {
	if row < 0 || row >= len(t.Content) {
		return Line{}
	}
	content := t.Content[row]
	var cells []Cell
	pos := 0
	for region := range t.Format.Regions(row) {
		pen := parsePen(region.F.Render())
		end := pos + region.Size
		contentEnd := end
		if contentEnd > len(content) {
			contentEnd = len(content)
		}
		for i := pos; i < contentEnd; i++ {
			cells = appendRune(cells, rune(content[i]), pen)
		}
		for i := len(content); i < end; i++ {
			if i < pos {
				continue
			}
			cells = appendRune(cells, ' ', pen)
		}
		pos = end
	}
	return Line{
		Cells:   cells,
		Wrapped: lineFillsWidth(cells, cols),
	}
}

// lineFillsWidth is a best-effort wrap heuristic: midterm doesn't
// expose an explicit soft-wrap marker through the public API, so a
// row whose cells reach the full width and whose last cell is
// non-blank is treated as continuing onto the next row.
func lineFillsWidth(cells []Cell, cols int) bool {
	width := 0
	for _, c := range cells {
		width += c.Width
	}
	if width < cols {
		return false
	}
	last := cells[len(cells)-1]
	return last.Rune != 0 && last.Rune != ' '
}

func snapshotRowText(t *midterm.Terminal) []string {
	out := make([]string, len(t.Content))
	for i, line := range t.Content {
		out[i] = string(line)
	}
	return out
}

func diffRows(before, after []string) map[int]bool {
	changed := make(map[int]bool)
	n := len(after)
	for i := 0; i < n; i++ {
		var b string
		if i < len(before) {
			b = before[i]
		}
		if b != after[i] {
			changed[i] = true
		}
	}
	for i := n; i < len(before); i++ {
		changed[i] = true
	}
	return changed
}
