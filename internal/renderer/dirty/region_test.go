package dirty

import (
	"testing"

	"github.com/dshills/asciicanvas/internal/renderer/core"
)

func TestNear(t *testing.T) {
	tests := []struct {
		name     string
		a, b     core.Rect
		distance int
		expected bool
	}{
		{"overlapping", core.NewRect(0, 0, 5, 5), core.NewRect(3, 3, 8, 8), 0, true},
		{"touching edges", core.NewRect(0, 0, 5, 5), core.NewRect(5, 0, 8, 5), 0, false},
		{"touching within distance", core.NewRect(0, 0, 5, 5), core.NewRect(5, 0, 8, 5), 1, true},
		{"gap of one", core.NewRect(0, 0, 5, 5), core.NewRect(6, 0, 9, 5), 2, true},
		{"gap equal to distance", core.NewRect(0, 0, 5, 5), core.NewRect(7, 0, 9, 5), 2, false},
		{"diagonal within distance", core.NewRect(0, 0, 2, 2), core.NewRect(3, 3, 4, 4), 2, true},
		{"empty never near", core.Rect{}, core.NewRect(0, 0, 1, 1), 5, false},
		{"negative distance", core.NewRect(0, 0, 2, 2), core.NewRect(1, 1, 3, 3), -4, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Near(tt.a, tt.b, tt.distance); got != tt.expected {
				t.Errorf("Near(%v, %v, %d) = %v, want %v", tt.a, tt.b, tt.distance, got, tt.expected)
			}
		})
	}
}

func TestMergeRects(t *testing.T) {
	t.Run("chain collapses", func(t *testing.T) {
		rects := []core.Rect{
			core.NewRect(0, 0, 2, 2),
			core.NewRect(20, 0, 22, 2),
			core.NewRect(1, 1, 10, 3),
			core.NewRect(9, 0, 21, 1),
		}
		got := MergeRects(rects, 0)
		if len(got) != 1 {
			t.Fatalf("len = %d, want 1: %v", len(got), got)
		}
		if want := core.NewRect(0, 0, 22, 3); !got[0].Equals(want) {
			t.Errorf("merged = %v, want %v", got[0], want)
		}
	})

	t.Run("distant rects stay separate", func(t *testing.T) {
		rects := []core.Rect{core.NewRect(0, 0, 2, 2), core.NewRect(10, 10, 12, 12)}
		if got := MergeRects(rects, 2); len(got) != 2 {
			t.Errorf("len = %d, want 2", len(got))
		}
	})

	t.Run("single and empty", func(t *testing.T) {
		if got := MergeRects(nil, 2); len(got) != 0 {
			t.Errorf("nil input gave %v", got)
		}
		one := []core.Rect{core.NewRect(0, 0, 1, 1)}
		if got := MergeRects(one, 2); len(got) != 1 {
			t.Errorf("single input gave %v", got)
		}
	})
}

func TestBoundingRect(t *testing.T) {
	if _, ok := BoundingRect(nil); ok {
		t.Error("empty set should report false")
	}

	keys := map[core.Key]struct{}{
		core.PackKey(3, 7):  {},
		core.PackKey(10, 2): {},
		core.PackKey(5, 5):  {},
	}
	r, ok := BoundingRect(keys)
	if !ok {
		t.Fatal("expected a rect")
	}
	if want := core.NewRect(3, 2, 11, 8); !r.Equals(want) {
		t.Errorf("BoundingRect = %v, want %v", r, want)
	}
}

func TestTotalArea(t *testing.T) {
	rects := []core.Rect{core.NewRect(0, 0, 2, 2), core.NewRect(0, 0, 3, 1)}
	if got := TotalArea(rects); got != 7 {
		t.Errorf("TotalArea = %d, want 7", got)
	}
}
