package core

import "math"

// Rect is a half-open grid rectangle: Left/Top inclusive, Right/Bottom exclusive.
type Rect struct {
	Left, Top, Right, Bottom int
}

// NewRect creates a rectangle from its edges, normalizing inverted edges.
func NewRect(left, top, right, bottom int) Rect {
	if right < left {
		left, right = right, left
	}
	if bottom < top {
		top, bottom = bottom, top
	}
	return Rect{Left: left, Top: top, Right: right, Bottom: bottom}
}

// RectFromSize creates a rectangle from a position and size.
func RectFromSize(x, y, width, height int) Rect {
	return NewRect(x, y, x+width, y+height)
}

// CellRect returns the 1x1 rectangle covering a single cell.
func CellRect(x, y int) Rect {
	return Rect{Left: x, Top: y, Right: x + 1, Bottom: y + 1}
}

// Width returns the width of the rectangle.
func (r Rect) Width() int {
	if r.Right <= r.Left {
		return 0
	}
	return r.Right - r.Left
}

// Height returns the height of the rectangle.
func (r Rect) Height() int {
	if r.Bottom <= r.Top {
		return 0
	}
	return r.Bottom - r.Top
}

// Area returns the number of cells covered.
func (r Rect) Area() int {
	return r.Width() * r.Height()
}

// IsEmpty returns true if the rectangle has no area.
func (r Rect) IsEmpty() bool {
	return r.Width() <= 0 || r.Height() <= 0
}

// Contains returns true if the cell at (x, y) is within the rectangle.
func (r Rect) Contains(x, y int) bool {
	return x >= r.Left && x < r.Right && y >= r.Top && y < r.Bottom
}

// ContainsKey returns true if the keyed position is within the rectangle.
func (r Rect) ContainsKey(k Key) bool {
	x, y := k.XY()
	return r.Contains(x, y)
}

// Intersects returns true if two rectangles overlap.
func (r Rect) Intersects(other Rect) bool {
	return r.Left < other.Right && r.Right > other.Left &&
		r.Top < other.Bottom && r.Bottom > other.Top
}

// Intersection returns the overlapping region of two rectangles.
func (r Rect) Intersection(other Rect) Rect {
	if !r.Intersects(other) {
		return Rect{}
	}
	return Rect{
		Left:   max(r.Left, other.Left),
		Top:    max(r.Top, other.Top),
		Right:  min(r.Right, other.Right),
		Bottom: min(r.Bottom, other.Bottom),
	}
}

// Union returns the smallest rectangle containing both rectangles.
func (r Rect) Union(other Rect) Rect {
	if r.IsEmpty() {
		return other
	}
	if other.IsEmpty() {
		return r
	}
	return Rect{
		Left:   min(r.Left, other.Left),
		Top:    min(r.Top, other.Top),
		Right:  max(r.Right, other.Right),
		Bottom: max(r.Bottom, other.Bottom),
	}
}

// Expand grows the rectangle by n cells on every side.
func (r Rect) Expand(n int) Rect {
	return Rect{Left: r.Left - n, Top: r.Top - n, Right: r.Right + n, Bottom: r.Bottom + n}
}

// Equals returns true if two rectangles are identical.
func (r Rect) Equals(other Rect) bool {
	return r == other
}

// Bounds is an object-space bounding box used by the spatial index.
// Zero-size boxes are valid.
type Bounds struct {
	X, Y, W, H float64
}

// Overlaps reports whether two boxes touch or overlap. Edges are inclusive
// so degenerate boxes still match queries that contain them.
func (b Bounds) Overlaps(other Bounds) bool {
	return b.X <= other.X+other.W && b.X+b.W >= other.X &&
		b.Y <= other.Y+other.H && b.Y+b.H >= other.Y
}

// ContainsPoint reports whether the point lies within the box.
func (b Bounds) ContainsPoint(x, y float64) bool {
	return x >= b.X && x <= b.X+b.W && y >= b.Y && y <= b.Y+b.H
}

// Rect converts the box to the grid cells it covers.
func (b Bounds) Rect() Rect {
	left := int(math.Floor(b.X))
	top := int(math.Floor(b.Y))
	right := int(math.Ceil(b.X + b.W))
	bottom := int(math.Ceil(b.Y + b.H))
	if right == left {
		right++
	}
	if bottom == top {
		bottom++
	}
	return Rect{Left: left, Top: top, Right: right, Bottom: bottom}
}

// BoundsOf returns the grid rectangle as an object-space box.
func BoundsOf(r Rect) Bounds {
	return Bounds{X: float64(r.Left), Y: float64(r.Top), W: float64(r.Width()), H: float64(r.Height())}
}
