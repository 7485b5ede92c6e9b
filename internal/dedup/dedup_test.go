package dedup

import (
	"reflect"
	"testing"
)

func keyOf(s string) string { return s }

func TestDedup_ZeroEpochIsIdentity(t *testing.T) {
	raw := []string{"A", "B", "A", "B"}
	result := Dedup(raw, keyOf, nil)
	if !reflect.DeepEqual(result.CleanLines, raw) {
		t.Fatalf("expected identity clean lines, got %+v", result.CleanLines)
	}
	for i, v := range result.RawToClean {
		if v != i {
			t.Fatalf("expected identity mapping, got %+v", result.RawToClean)
		}
	}
}

func TestDedup_ThreeRedrawEpochs(t *testing.T) {
	raw := []string{
		"A", "B", "C", // epoch 0: raw 0-2
		"A", "B", "C", "D", "E", // epoch 1: raw 3-7
		"A", "B", "C", "D", "E", "F", "G", // epoch 2: raw 8-14
	}
	result := Dedup(raw, keyOf, []int{3, 8})

	want := []string{"A", "B", "C", "D", "E", "F", "G"}
	if !reflect.DeepEqual(result.CleanLines, want) {
		t.Fatalf("got clean lines %+v, want %+v", result.CleanLines, want)
	}

	for _, i := range []int{8, 9, 10, 11, 12} {
		want := i - 8
		if result.RawToClean[i] != want {
			t.Fatalf("raw_to_clean(%d) = %d, want %d", i, result.RawToClean[i], want)
		}
	}
	if result.RawToClean[13] != 5 || result.RawToClean[14] != 6 {
		t.Fatalf("expected raw 13,14 to map to new clean positions 5,6, got %d,%d",
			result.RawToClean[13], result.RawToClean[14])
	}
}

func TestDedup_NonContiguousInteriorRerender(t *testing.T) {
	raw := []string{
		"A", "B", "C", "D", "E",
		"F", "G", "B", "C", "D", "H", "I",
	}
	result := Dedup(raw, keyOf, []int{5})

	want := []string{"A", "B", "C", "D", "E", "F", "G", "H", "I"}
	if !reflect.DeepEqual(result.CleanLines, want) {
		t.Fatalf("got clean lines %+v, want %+v", result.CleanLines, want)
	}
}

func TestDedup_StutterCollapsesPartialRenderThenRedraw(t *testing.T) {
	raw := []string{"the quick brown fox", "", "the quick brown fox", "jumps"}
	result := Dedup(raw, keyOf, []int{0})

	if result.RawToClean[0] != result.RawToClean[2] {
		t.Fatalf("expected stuttered line to alias its reappearance, got %d != %d",
			result.RawToClean[0], result.RawToClean[2])
	}
}

func TestDedup_RawLineCountToCleanIsRunningMax(t *testing.T) {
	raw := []string{"A", "B", "C", "A", "B", "C", "D"}
	result := Dedup(raw, keyOf, []int{3})

	for i := 1; i < len(result.RawLineCountToClean); i++ {
		if result.RawLineCountToClean[i] < result.RawLineCountToClean[i-1] {
			t.Fatalf("raw_line_count_to_clean must be non-decreasing, got %+v", result.RawLineCountToClean)
		}
	}
	last := result.RawLineCountToClean[len(result.RawLineCountToClean)-1]
	if last != len(result.CleanLines) {
		t.Fatalf("final prefix value should equal clean length, got %d want %d", last, len(result.CleanLines))
	}
}

func TestDedup_MatchedBlockNeverReappendsToCleanDoc(t *testing.T) {
	raw := []string{"A", "B", "C", "A", "B", "C"}
	result := Dedup(raw, keyOf, []int{3})
	if len(result.CleanLines) != 3 {
		t.Fatalf("expected the repeated block to contribute no new clean lines, got %+v", result.CleanLines)
	}
}
