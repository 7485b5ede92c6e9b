// Package cast reads asciicast v3 recordings as a lazy, forward-only
// sequence of records without loading the whole file into memory.
package cast

import (
	"encoding/json"
	"fmt"
)

// Header is the first line of a .cast file, normalized from either the
// v3 {width,height} shape or the legacy {term:{cols,rows}} shape.
type Header struct {
	Version int
	Cols    int
	Rows    int
}

// EventKind is the single-character event type from the wire format.
type EventKind byte

const (
	KindOutput EventKind = 'o'
	KindInput  EventKind = 'i'
	KindMarker EventKind = 'm'
	KindResize EventKind = 'r'
)

// Event is one timestamped record in the event stream. Index is the
// 0-based position in the event stream, header excluded — the
// canonical coordinate used everywhere else in this module.
type Event struct {
	Index        int
	RelativeTime float64
	Kind         EventKind
	Data         string
}

// rawHeaderV3 is the {version, width, height} shape.
type rawHeaderV3 struct {
	Version int `json:"version"`
	Width   int `json:"width"`
	Height  int `json:"height"`
}

// rawHeaderLegacy is the {term: {cols, rows}} shape some older
// recorders emit.
type rawHeaderLegacy struct {
	Term struct {
		Cols int `json:"cols"`
		Rows int `json:"rows"`
	} `json:"term"`
}

func parseHeader(line []byte) (Header, bool) {
	var v3 rawHeaderV3
	if err := json.Unmarshal(line, &v3); err == nil && (v3.Width > 0 || v3.Height > 0) {
		return Header{Version: v3.Version, Cols: v3.Width, Rows: v3.Height}, true
	}
	var legacy rawHeaderLegacy
	if err := json.Unmarshal(line, &legacy); err == nil && (legacy.Term.Cols > 0 || legacy.Term.Rows > 0) {
		return Header{Cols: legacy.Term.Cols, Rows: legacy.Term.Rows}, true
	}
	return Header{}, false
}

// parseEventLine decodes a [time, kind, data] triple. Any other JSON
// shape (not a 3-element array, or wrong element types) is malformed
// and must be skipped by the caller.
func parseEventLine(line []byte) (Event, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(line, &raw); err != nil {
		return Event{}, fmt.Errorf("not a json array: %w", err)
	}
	if len(raw) != 3 {
		return Event{}, fmt.Errorf("expected 3-element array, got %d", len(raw))
	}

	var t float64
	if err := json.Unmarshal(raw[0], &t); err != nil {
		return Event{}, fmt.Errorf("bad relative_time: %w", err)
	}
	var kindStr string
	if err := json.Unmarshal(raw[1], &kindStr); err != nil || len(kindStr) != 1 {
		return Event{}, fmt.Errorf("bad kind")
	}
	var data string
	if err := json.Unmarshal(raw[2], &data); err != nil {
		return Event{}, fmt.Errorf("bad data: %w", err)
	}

	return Event{
		RelativeTime: t,
		Kind:         EventKind(kindStr[0]),
		Data:         data,
	}, nil
}
