// Package section implements the multi-signal section boundary
// detector described in spec.md §4.3: a pure, deterministic function
// from an event vector (plus optional markers) to an ordered,
// non-overlapping list of boundaries.
package section

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/dcosson/castkeep/internal/cast"
)

const (
	mergeWindow    = 50
	minSectionSize = 100
	maxSections    = 50
	minSessionSize = 100

	timingGapFloorSec = 5.0
	volumeWindow      = 10
	volumeMultiplier  = 5.0
	volumeMinGapSec   = 1.0
)

// Marker is an inviolable section anchor extracted from an m-kind event.
type Marker struct {
	EventIndex int
	Label      string
}

// Boundary is one section start, either detected or marker-derived.
type Boundary struct {
	EventIndex int
	Score      float64
	Signals    []string
	Label      string
}

// Options carries the tunable thresholds the config file's detector
// block (~/.castkeep/config.yaml) may override; DefaultOptions reproduces spec.md §4.3 exactly.
type Options struct {
	MergeWindow    int
	MinSectionSize int
	MaxSections    int
}

func DefaultOptions() Options {
	return Options{
		MergeWindow:    mergeWindow,
		MinSectionSize: minSectionSize,
		MaxSections:    maxSections,
	}
}

// Detect runs the detector with no markers and default thresholds. A
// recording with fewer than minSessionSize events yields no sections.
func Detect(events []cast.Event) []Boundary {
	return DetectWithOptions(events, DefaultOptions())
}

// DetectWithOptions is Detect with caller-supplied thresholds.
func DetectWithOptions(events []cast.Event, opts Options) []Boundary {
	if len(events) < minSessionSize {
		return nil
	}
	b := detectRange(events, 0, len(events), true, opts)
	b = capSections(b, opts)
	sort.Slice(b, func(i, j int) bool { return b[i].EventIndex < b[j].EventIndex })
	relabelDetected(b)
	return b
}

// DetectWithMarkers runs detection independently in each gap between
// consecutive markers (minimum-section-size disabled inside a gap,
// since the marker segment is itself the bounding structure), then
// merges the result with the marker boundaries. Markers always win an
// exact event-index collision.
func DetectWithMarkers(events []cast.Event, markers []Marker) []Boundary {
	return DetectWithMarkersOptions(events, markers, DefaultOptions())
}

// DetectWithMarkersOptions is DetectWithMarkers with caller-supplied
// thresholds.
func DetectWithMarkersOptions(events []cast.Event, markers []Marker, opts Options) []Boundary {
	if len(markers) == 0 {
		return DetectWithOptions(events, opts)
	}

	sortedMarkers := append([]Marker(nil), markers...)
	sort.Slice(sortedMarkers, func(i, j int) bool {
		return sortedMarkers[i].EventIndex < sortedMarkers[j].EventIndex
	})

	// Segments are the stretches of events strictly between markers —
	// a marker's own event never participates in its neighbors' signal
	// detection.
	bounds := make([]int, 0, len(sortedMarkers)+2)
	bounds = append(bounds, 0)
	for _, m := range sortedMarkers {
		bounds = append(bounds, m.EventIndex, m.EventIndex+1)
	}
	bounds = append(bounds, len(events))

	var detected []Boundary
	for i := 0; i+1 < len(bounds); i += 2 {
		start, end := bounds[i], bounds[i+1]
		if start >= end {
			continue
		}
		detected = append(detected, detectRange(events, start, end, false, opts)...)
	}

	markerIndex := make(map[int]bool, len(sortedMarkers))
	all := make([]Boundary, 0, len(detected)+len(sortedMarkers))
	for _, m := range sortedMarkers {
		markerIndex[m.EventIndex] = true
		all = append(all, Boundary{
			EventIndex: m.EventIndex,
			Score:      math.Inf(1),
			Signals:    []string{"marker"},
			Label:      m.Label,
		})
	}
	for _, b := range detected {
		if markerIndex[b.EventIndex] {
			continue
		}
		all = append(all, b)
	}

	all = capSections(all, opts)
	sort.Slice(all, func(i, j int) bool { return all[i].EventIndex < all[j].EventIndex })
	relabelDetected(all)
	return all
}

// detectRange runs the signal generation + merge pipeline over
// events[start:end], optionally applying the minimum-section-size
// filter at the segment's own edges. Timing reliability and the gap
// threshold are always computed from the full event vector — they
// describe the recording as a whole, not a marker-bounded slice of it.
func detectRange(events []cast.Event, start, end int, applyMinSize bool, opts Options) []Boundary {
	if start >= end {
		return nil
	}
	segment := events[start:end]

	reliable := isTimingReliable(events)
	threshold := math.Max(timingGapFloorSec, 3*p95Gap(events))

	var candidates []Boundary

	if reliable {
		for _, ev := range segment {
			if ev.RelativeTime > threshold {
				candidates = append(candidates, Boundary{
					EventIndex: ev.Index,
					Score:      ev.RelativeTime / timingGapFloorSec,
					Signals:    []string{"timing_gap"},
				})
			}
		}
	}

	for _, ev := range segment {
		if ev.Kind != cast.KindOutput {
			continue
		}
		if IsScreenClear(ev.Data) {
			candidates = append(candidates, Boundary{EventIndex: ev.Index, Score: 1.0, Signals: []string{"screen_clear"}})
		}
	}

	for _, ev := range segment {
		if ev.Kind != cast.KindOutput {
			continue
		}
		if IsAltScreenExit(ev.Data) {
			candidates = append(candidates, Boundary{EventIndex: ev.Index, Score: 0.8, Signals: []string{"alt_screen_exit"}})
		}
	}

	if reliable {
		candidates = append(candidates, volumeBurstCandidates(events, start, end)...)
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].EventIndex < candidates[j].EventIndex })
	merged := mergeCandidates(candidates, opts)

	if applyMinSize {
		merged = filterMinSize(merged, len(events), opts)
	}
	return merged
}

// isTimingReliable disables the timing-based signals when the
// recording was preprocessed to compress silence (median relative
// time under 100ms).
func isTimingReliable(events []cast.Event) bool {
	return medianRelativeTime(events) >= 0.1
}

func medianRelativeTime(events []cast.Event) float64 {
	if len(events) == 0 {
		return 0
	}
	times := relativeTimes(events)
	sort.Float64s(times)
	mid := len(times) / 2
	if len(times)%2 == 0 {
		return (times[mid-1] + times[mid]) / 2
	}
	return times[mid]
}

func p95Gap(events []cast.Event) float64 {
	if len(events) == 0 {
		return 0
	}
	times := relativeTimes(events)
	sort.Float64s(times)
	idx := int(math.Ceil(0.95*float64(len(times)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(times) {
		idx = len(times) - 1
	}
	return times[idx]
}

func relativeTimes(events []cast.Event) []float64 {
	times := make([]float64, len(events))
	for i, ev := range events {
		times[i] = ev.RelativeTime
	}
	return times
}

// volumeBurstCandidates computes the rolling-window byte-volume signal
// over the full event stream (the window must be able to look back
// across a marker boundary) but only reports candidates whose index
// lands within [start, end).
func volumeBurstCandidates(events []cast.Event, start, end int) []Boundary {
	var out []Boundary
	for i := start; i < end; i++ {
		if i == 0 {
			continue
		}
		windowStart := i - volumeWindow
		if windowStart < 0 {
			windowStart = 0
		}
		var sum int
		count := 0
		for j := windowStart; j < i; j++ {
			sum += len(events[j].Data)
			count++
		}
		if count == 0 {
			continue
		}
		mean := float64(sum) / float64(count)
		if mean <= 0 {
			continue
		}
		ev := events[i]
		if float64(len(ev.Data)) > volumeMultiplier*mean && ev.RelativeTime > volumeMinGapSec {
			out = append(out, Boundary{EventIndex: ev.Index, Score: 0.3, Signals: []string{"volume_burst"}})
		}
	}
	return out
}

// mergeCandidates fuses any chain of candidates within mergeWindow
// events of one another into a single boundary carrying the union of
// signals and the higher score.
func mergeCandidates(candidates []Boundary, opts Options) []Boundary {
	if len(candidates) == 0 {
		return nil
	}
	var merged []Boundary
	cur := candidates[0]
	lastIndex := cur.EventIndex
	for _, c := range candidates[1:] {
		if c.EventIndex-lastIndex <= opts.MergeWindow {
			if c.Score > cur.Score {
				cur.Score = c.Score
			}
			cur.Signals = unionSignals(cur.Signals, c.Signals)
			lastIndex = c.EventIndex
			continue
		}
		merged = append(merged, cur)
		cur = c
		lastIndex = c.EventIndex
	}
	merged = append(merged, cur)
	return merged
}

func unionSignals(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, s := range append(append([]string(nil), a...), b...) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// filterMinSize drops a leading boundary too close to the stream
// start, and a trailing boundary too close to the stream end. Interior
// boundaries are never dropped by this rule.
func filterMinSize(boundaries []Boundary, eventCount int, opts Options) []Boundary {
	for len(boundaries) > 0 && boundaries[0].EventIndex < opts.MinSectionSize {
		boundaries = boundaries[1:]
	}
	for len(boundaries) > 0 && eventCount-boundaries[len(boundaries)-1].EventIndex < opts.MinSectionSize {
		boundaries = boundaries[:len(boundaries)-1]
	}
	return boundaries
}

// capSections keeps the top opts.MaxSections candidates by score, then
// restores event-index order.
func capSections(boundaries []Boundary, opts Options) []Boundary {
	if len(boundaries) <= opts.MaxSections {
		return boundaries
	}
	byScore := append([]Boundary(nil), boundaries...)
	sort.SliceStable(byScore, func(i, j int) bool { return byScore[i].Score > byScore[j].Score })
	top := append([]Boundary(nil), byScore[:opts.MaxSections]...)
	sort.Slice(top, func(i, j int) bool { return top[i].EventIndex < top[j].EventIndex })
	return top
}

// relabelDetected assigns "Section N" labels in order to every
// non-marker boundary, leaving marker labels untouched.
func relabelDetected(boundaries []Boundary) {
	n := 0
	for i := range boundaries {
		if hasSignal(boundaries[i].Signals, "marker") {
			continue
		}
		n++
		boundaries[i].Label = fmt.Sprintf("Section %d", n)
	}
}

// IsScreenClear reports whether an output chunk contains the
// clear-screen control sequence, the raw signal backing the
// screen_clear boundary candidate and the dedup epoch split it shares
// with internal/pipeline's clean-document recomputation.
func IsScreenClear(data string) bool {
	return strings.Contains(data, "\x1b[2J")
}

// IsAltScreenExit reports whether an output chunk contains either form
// of the alternate-screen-buffer exit sequence.
func IsAltScreenExit(data string) bool {
	return strings.Contains(data, "\x1b[?1049l") || strings.Contains(data, "\x1b[?1047l")
}

func hasSignal(signals []string, target string) bool {
	for _, s := range signals {
		if s == target {
			return true
		}
	}
	return false
}
