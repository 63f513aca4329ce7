package backend

import (
	"strings"

	"github.com/dshills/asciicanvas/internal/renderer/core"
)

// BufferCell is one character position of a buffer grid.
type BufferCell struct {
	Char  string
	Color core.Color
}

// EmptyCell returns a space with no color.
func EmptyCell() BufferCell {
	return BufferCell{Char: " "}
}

// Equals returns true if two cells display identically.
func (c BufferCell) Equals(other BufferCell) bool {
	return c.Char == other.Char && c.Color.Equals(other.Color)
}

// Change is one cell that differs between the back and front buffers.
type Change struct {
	X, Y int
	Cell BufferCell
}

// DoubleBuffer holds two same-size grids. The front grid is what is
// currently displayed and only changes through a swap; drawing goes to the
// back grid.
type DoubleBuffer struct {
	width, height int
	front         []BufferCell
	back          []BufferCell
	fill          BufferCell
}

// NewDoubleBuffer creates a buffer with the given dimensions.
// Negative dimensions are treated as zero.
func NewDoubleBuffer(width, height int) *DoubleBuffer {
	db := &DoubleBuffer{
		width:  max(0, width),
		height: max(0, height),
		fill:   EmptyCell(),
	}
	db.allocate()
	return db
}

// allocate creates both grids filled with the fill cell.
func (db *DoubleBuffer) allocate() {
	n := db.width * db.height
	db.front = make([]BufferCell, n)
	db.back = make([]BufferCell, n)
	for i := 0; i < n; i++ {
		db.front[i] = db.fill
		db.back[i] = db.fill
	}
}

// Size returns the buffer dimensions.
func (db *DoubleBuffer) Size() (width, height int) {
	return db.width, db.height
}

// Bounds returns the rectangle covering the whole buffer.
func (db *DoubleBuffer) Bounds() core.Rect {
	return core.Rect{Right: db.width, Bottom: db.height}
}

// SetFill sets the cell used by Clear and ClearRect.
func (db *DoubleBuffer) SetFill(cell BufferCell) {
	if cell.Char == "" {
		cell.Char = " "
	}
	db.fill = cell
}

// Fill returns the cell used by Clear and ClearRect.
func (db *DoubleBuffer) Fill() BufferCell {
	return db.fill
}

// Resize reallocates both grids. Content is not preserved; callers must
// force a full redraw afterward.
func (db *DoubleBuffer) Resize(width, height int) {
	db.width = max(0, width)
	db.height = max(0, height)
	db.allocate()
}

// Clear resets the back buffer to the fill cell.
func (db *DoubleBuffer) Clear() {
	for i := range db.back {
		db.back[i] = db.fill
	}
}

// ClearRect resets the part of the back buffer inside r.
func (db *DoubleBuffer) ClearRect(r core.Rect) {
	r = r.Intersection(db.Bounds())
	for y := r.Top; y < r.Bottom; y++ {
		row := y * db.width
		for x := r.Left; x < r.Right; x++ {
			db.back[row+x] = db.fill
		}
	}
}

// SetCell sets a cell in the back buffer. Out-of-range positions are ignored.
// An empty character is stored as a space.
func (db *DoubleBuffer) SetCell(x, y int, cell BufferCell) {
	if !db.inBounds(x, y) {
		return
	}
	if cell.Char == "" {
		cell.Char = " "
	}
	db.back[y*db.width+x] = cell
}

// GetCell returns a cell from the back buffer.
func (db *DoubleBuffer) GetCell(x, y int) BufferCell {
	if !db.inBounds(x, y) {
		return EmptyCell()
	}
	return db.back[y*db.width+x]
}

// FrontCell returns a cell from the front buffer (currently displayed).
func (db *DoubleBuffer) FrontCell(x, y int) BufferCell {
	if !db.inBounds(x, y) {
		return EmptyCell()
	}
	return db.front[y*db.width+x]
}

// Swap copies every back cell that differs from the front and returns the
// differences. Unchanged cells are not touched.
func (db *DoubleBuffer) Swap() []Change {
	return db.SwapRect(db.Bounds())
}

// SwapRect is Swap limited to the cells inside r.
func (db *DoubleBuffer) SwapRect(r core.Rect) []Change {
	r = r.Intersection(db.Bounds())
	var changes []Change

	for y := r.Top; y < r.Bottom; y++ {
		row := y * db.width
		for x := r.Left; x < r.Right; x++ {
			i := row + x
			if db.back[i].Equals(db.front[i]) {
				continue
			}
			db.front[i] = db.back[i]
			changes = append(changes, Change{X: x, Y: y, Cell: db.back[i]})
		}
	}
	return changes
}

// ForceSwap copies the whole back buffer to the front without comparing and
// returns one change per cell, width×height entries in row-major order.
func (db *DoubleBuffer) ForceSwap() []Change {
	changes := make([]Change, 0, len(db.back))
	for y := 0; y < db.height; y++ {
		row := y * db.width
		for x := 0; x < db.width; x++ {
			db.front[row+x] = db.back[row+x]
			changes = append(changes, Change{X: x, Y: y, Cell: db.back[row+x]})
		}
	}
	return changes
}

// String returns the front buffer as newline separated rows.
func (db *DoubleBuffer) String() string {
	return gridString(db.front, db.width, db.height)
}

// CharArray returns the characters of the front buffer indexed [y][x].
func (db *DoubleBuffer) CharArray() [][]string {
	rows := make([][]string, db.height)
	for y := range rows {
		rows[y] = make([]string, db.width)
		for x := range rows[y] {
			rows[y][x] = db.front[y*db.width+x].Char
		}
	}
	return rows
}

func (db *DoubleBuffer) inBounds(x, y int) bool {
	return x >= 0 && x < db.width && y >= 0 && y < db.height
}

func gridString(cells []BufferCell, width, height int) string {
	var sb strings.Builder
	sb.Grow(len(cells) + height)
	for y := 0; y < height; y++ {
		if y > 0 {
			sb.WriteByte('\n')
		}
		for x := 0; x < width; x++ {
			sb.WriteString(cells[y*width+x].Char)
		}
	}
	return sb.String()
}
