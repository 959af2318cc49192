package hashset

import (
	"sort"
	"testing"
)

func TestSet(t *testing.T) {
	s := SetFromSlice([]int64{900, 1800, 2700})

	if !s.Has(1800) {
		t.Fatalf("expected 1800 in set")
	}
	if s.Has(3600) {
		t.Fatalf("unexpected 3600 in set")
	}

	s.DeleteFunc(func(v int64) bool { return v < 1800 })
	got := s.AsSlice()
	sort.Slice(got, func(i, j int) bool { return got[i] < got[j] })
	if len(got) != 2 || got[0] != 1800 || got[1] != 2700 {
		t.Fatalf("got %v, want [1800 2700]", got)
	}

	s.Delete(2700)
	if s.Has(2700) {
		t.Fatalf("2700 should be deleted")
	}

	if !s.HasAny(SetFromSlice([]int64{1, 1800})) {
		t.Fatalf("expected overlap")
	}
	if rest := s.Remove(SetFromSlice([]int64{1800})); len(rest) != 0 {
		t.Fatalf("got %v, want empty", rest)
	}
}
