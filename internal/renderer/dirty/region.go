// Package dirty provides dirty rectangle tracking for incremental rendering.
// It tracks which parts of the display need to be redrawn and merges
// overlapping or nearby rectangles to bound the work of a frame.
package dirty

import "github.com/dshills/asciicanvas/internal/renderer/core"

// Near reports whether b intersects a once a is grown by distance cells on
// every side, so rectangles separated by fewer than distance cells are near.
// A distance of 0 matches only overlapping rectangles.
func Near(a, b core.Rect, distance int) bool {
	if a.IsEmpty() || b.IsEmpty() {
		return false
	}
	return a.Expand(max(0, distance)).Intersects(b)
}

// MergeRects merges every pair of rectangles within distance of each other
// until no such pair remains. The input slice is reused.
func MergeRects(rects []core.Rect, distance int) []core.Rect {
	if len(rects) <= 1 {
		return rects
	}

	// Simple O(n²) merge, acceptable for capped rectangle counts
	changed := true
	for changed {
		changed = false
		for i := 0; i < len(rects); i++ {
			for j := i + 1; j < len(rects); j++ {
				if Near(rects[i], rects[j], distance) {
					rects[i] = rects[i].Union(rects[j])
					rects = append(rects[:j], rects[j+1:]...)
					changed = true
					break
				}
			}
			if changed {
				break
			}
		}
	}
	return rects
}

// BoundingRect returns the smallest rectangle covering every key, and false
// if keys is empty.
func BoundingRect(keys map[core.Key]struct{}) (core.Rect, bool) {
	if len(keys) == 0 {
		return core.Rect{}, false
	}
	first := true
	var r core.Rect
	for k := range keys {
		x, y := k.XY()
		if first {
			r = core.CellRect(x, y)
			first = false
			continue
		}
		r.Left = min(r.Left, x)
		r.Top = min(r.Top, y)
		r.Right = max(r.Right, x+1)
		r.Bottom = max(r.Bottom, y+1)
	}
	return r, true
}

// TotalArea returns the summed area of rects. Overlaps are counted twice.
func TotalArea(rects []core.Rect) int {
	total := 0
	for _, r := range rects {
		total += r.Area()
	}
	return total
}
