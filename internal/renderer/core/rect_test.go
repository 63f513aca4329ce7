package core

import "testing"

func TestRectBasics(t *testing.T) {
	r := NewRect(5, 4, 1, 2)
	if r != (Rect{Left: 1, Top: 2, Right: 5, Bottom: 4}) {
		t.Fatalf("NewRect did not normalize: %+v", r)
	}
	if r.Width() != 4 || r.Height() != 2 || r.Area() != 8 {
		t.Errorf("size = %dx%d area %d", r.Width(), r.Height(), r.Area())
	}
	if !r.Contains(1, 2) || r.Contains(5, 2) || r.Contains(1, 4) {
		t.Error("Contains should be half-open")
	}
	if (Rect{}).IsEmpty() != true {
		t.Error("zero rect should be empty")
	}
}

func TestRectIntersectUnion(t *testing.T) {
	a := RectFromSize(0, 0, 10, 10)
	b := RectFromSize(5, 5, 10, 10)
	c := RectFromSize(20, 20, 2, 2)

	if !a.Intersects(b) || a.Intersects(c) {
		t.Error("Intersects mismatch")
	}
	if got := a.Intersection(b); got != NewRect(5, 5, 10, 10) {
		t.Errorf("Intersection = %+v", got)
	}
	if got := a.Intersection(c); !got.IsEmpty() {
		t.Errorf("disjoint Intersection = %+v", got)
	}
	if got := a.Union(c); got != NewRect(0, 0, 22, 22) {
		t.Errorf("Union = %+v", got)
	}
	if got := (Rect{}).Union(c); got != c {
		t.Errorf("empty Union = %+v", got)
	}
	if got := c.Expand(1); got != NewRect(19, 19, 23, 23) {
		t.Errorf("Expand = %+v", got)
	}
}

func TestBoundsOverlaps(t *testing.T) {
	box := Bounds{X: 0, Y: 0, W: 10, H: 10}
	tests := []struct {
		name  string
		other Bounds
		want  bool
	}{
		{"inside", Bounds{X: 2, Y: 2, W: 1, H: 1}, true},
		{"touching edge", Bounds{X: 10, Y: 0, W: 5, H: 5}, true},
		{"degenerate point", Bounds{X: 5, Y: 5}, true},
		{"outside", Bounds{X: 11, Y: 11, W: 1, H: 1}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := box.Overlaps(tt.other); got != tt.want {
				t.Errorf("Overlaps = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBoundsRect(t *testing.T) {
	got := Bounds{X: 1.5, Y: 2, W: 2, H: 0}.Rect()
	want := Rect{Left: 1, Top: 2, Right: 4, Bottom: 3}
	if got != want {
		t.Errorf("Rect() = %+v, want %+v", got, want)
	}
}
