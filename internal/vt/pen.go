package vt

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ColorKind tags the variant of a Color value.
type ColorKind int

const (
	ColorNone ColorKind = iota
	ColorDefaultFg
	ColorDefaultBg
	ColorIndexed
	ColorRGB
)

// Color is a tagged value: none, one of the two "default" sentinels,
// an indexed 0..255 palette entry, or a truecolor RGB triple.
type Color struct {
	Kind    ColorKind
	Index   uint8
	R, G, B uint8
}

// MarshalJSON emits spec.md §6's Color union: null for no color set
// (the same "uses the default color" case the spec's null clarifies),
// an integer 0..255 for an indexed color, or a "#rrggbb" string for
// truecolor. ColorDefaultFg and ColorDefaultBg are wire-indistinguishable
// from ColorNone, so all three marshal to null.
func (c Color) MarshalJSON() ([]byte, error) {
	switch c.Kind {
	case ColorIndexed:
		return json.Marshal(int(c.Index))
	case ColorRGB:
		return json.Marshal(fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B))
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON accepts every variant spec.md §6 names: null, the
// literal "default", an indexed integer, or a "#rrggbb" string.
func (c *Color) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*c = Color{Kind: ColorNone}
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		*c = Color{Kind: ColorIndexed, Index: uint8(n)}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("vt: decode color %s: %w", data, err)
	}
	if s == "default" {
		*c = Color{Kind: ColorDefaultFg}
		return nil
	}
	if !strings.HasPrefix(s, "#") || len(s) != 7 {
		return fmt.Errorf("vt: invalid color string %q", s)
	}
	r, err1 := strconv.ParseUint(s[1:3], 16, 8)
	g, err2 := strconv.ParseUint(s[3:5], 16, 8)
	b, err3 := strconv.ParseUint(s[5:7], 16, 8)
	if err1 != nil || err2 != nil || err3 != nil {
		return fmt.Errorf("vt: invalid color string %q", s)
	}
	*c = Color{Kind: ColorRGB, R: uint8(r), G: uint8(g), B: uint8(b)}
	return nil
}

// Intensity is kept separate from the attribute bitfield. Collapsing
// it into Attrs is the bug spec.md §3/§9 calls out by name.
type Intensity int

const (
	IntensityNormal Intensity = iota
	IntensityBold
	IntensityFaint
)

// Attrs is the bitfield for the style flags that are NOT intensity.
// Bit layout matches the wire format (spec.md §9): italic=bit0,
// underline=bit1, strikethrough=bit2, blink=bit3, inverse=bit4.
type Attrs uint8

const (
	AttrItalic Attrs = 1 << iota
	AttrUnderline
	AttrStrikethrough
	AttrBlink
	AttrInverse
)

func (a Attrs) has(bit Attrs) bool { return a&bit != 0 }

// Pen is the full style applied to a cell.
type Pen struct {
	Fg, Bg    Color
	Intensity Intensity
	Attrs     Attrs
}

// parsePen decodes an SGR escape sequence (as produced by midterm's
// Format.Render()) into a Pen. midterm's own Format is opaque to us —
// deliberately: its internal TextAttrs layout may place Bold at bit 0
// (see spec.md §9's "Pen attribute bitfield" note), so the only stable
// translation boundary is the public ANSI string it renders, not its
// internal struct. A bare "\x1b[0m" (or no escape at all) is the
// zero-value Pen.
func parsePen(ansi string) Pen {
	var p Pen
	for _, seq := range splitSGRSequences(ansi) {
		applySGR(&p, seq)
	}
	return p
}

// splitSGRSequences extracts the numeric parameter lists from every
// "\x1b[...m" sequence in s, in order.
func splitSGRSequences(s string) [][]int {
	var out [][]int
	for {
		start := strings.Index(s, "\x1b[")
		if start < 0 {
			return out
		}
		s = s[start+2:]
		end := strings.IndexByte(s, 'm')
		if end < 0 {
			return out
		}
		body := s[:end]
		s = s[end+1:]
		if body == "" {
			out = append(out, []int{0})
			continue
		}
		var params []int
		for _, part := range strings.Split(body, ";") {
			n, err := strconv.Atoi(part)
			if err != nil {
				n = 0
			}
			params = append(params, n)
		}
		out = append(out, params)
	}
}

// applySGR mutates p according to one sequence's parameter list,
// handling the 16/256/truecolor variants and every attribute in
// spec.md §4.1's SGR list.
func applySGR(p *Pen, params []int) {
	for i := 0; i < len(params); i++ {
		code := params[i]
		switch {
		case code == 0:
			*p = Pen{}
		case code == 1:
			p.Intensity = IntensityBold
		case code == 2:
			p.Intensity = IntensityFaint
		case code == 22:
			p.Intensity = IntensityNormal
		case code == 3:
			p.Attrs |= AttrItalic
		case code == 23:
			p.Attrs &^= AttrItalic
		case code == 4:
			p.Attrs |= AttrUnderline
		case code == 24:
			p.Attrs &^= AttrUnderline
		case code == 5 || code == 6:
			p.Attrs |= AttrBlink
		case code == 25:
			p.Attrs &^= AttrBlink
		case code == 7:
			p.Attrs |= AttrInverse
		case code == 27:
			p.Attrs &^= AttrInverse
		case code == 9:
			p.Attrs |= AttrStrikethrough
		case code == 29:
			p.Attrs &^= AttrStrikethrough
		case code == 39:
			p.Fg = Color{Kind: ColorDefaultFg}
		case code == 49:
			p.Bg = Color{Kind: ColorDefaultBg}
		case code >= 30 && code <= 37:
			p.Fg = Color{Kind: ColorIndexed, Index: uint8(code - 30)}
		case code >= 90 && code <= 97:
			p.Fg = Color{Kind: ColorIndexed, Index: uint8(code-90) + 8}
		case code >= 40 && code <= 47:
			p.Bg = Color{Kind: ColorIndexed, Index: uint8(code - 40)}
		case code >= 100 && code <= 107:
			p.Bg = Color{Kind: ColorIndexed, Index: uint8(code-100) + 8}
		case code == 38 || code == 48:
			consumed, col := parseExtendedColor(params[i+1:])
			if consumed == 0 {
				continue
			}
			if code == 38 {
				p.Fg = col
			} else {
				p.Bg = col
			}
			i += consumed
		}
	}
}

// parseExtendedColor parses the tail of a 38;... or 48;... sequence:
// either "5;N" (indexed) or "2;R;G;B" (truecolor). Returns the number
// of extra params consumed and the decoded color.
func parseExtendedColor(rest []int) (int, Color) {
	if len(rest) == 0 {
		return 0, Color{}
	}
	switch rest[0] {
	case 5:
		if len(rest) < 2 {
			return 0, Color{}
		}
		return 2, Color{Kind: ColorIndexed, Index: uint8(rest[1])}
	case 2:
		if len(rest) < 4 {
			return 0, Color{}
		}
		return 4, Color{Kind: ColorRGB, R: uint8(rest[1]), G: uint8(rest[2]), B: uint8(rest[3])}
	default:
		return 0, Color{}
	}
}
