package vt

import "github.com/mattn/go-runewidth"

// Cell is the atomic unit of a terminal grid: one codepoint, its
// display width, and the pen it was drawn with.
type Cell struct {
	Rune  rune
	Width int
	Pen   Pen
}

// Line is an ordered sequence of cells plus a soft-wrap flag.
type Line struct {
	Cells   []Cell
	Wrapped bool
}

// cellWidth classifies a rune's display width into {0,1,2}, per
// spec.md §3. midterm hands us whole runes without a parallel width
// table, so the bridge computes width itself rather than trusting a
// col-count derived from cursor math.
func cellWidth(r rune) int {
	if r == 0 {
		return 1
	}
	w := runewidth.RuneWidth(r)
	if w < 0 {
		return 0
	}
	return w
}

// appendRune converts one content rune + pen into one or two cells: a
// wide rune (width 2) gets a trailing zero-width continuation cell so
// column accounting stays aligned with the terminal's declared width,
// per spec.md §4.1's span-merging contract ("zero-width cells ... do
// not emit text but extend the previous span").
func appendRune(cells []Cell, r rune, pen Pen) []Cell {
	w := cellWidth(r)
	cells = append(cells, Cell{Rune: r, Width: w, Pen: pen})
	if w == 2 {
		cells = append(cells, Cell{Rune: 0, Width: 0, Pen: pen})
	}
	return cells
}
