// Package layer provides the sparse per-layer cell store used by the
// compositor. A layer owns its cells exclusively; mutations return the keys
// they touched and also accumulate them in a dirty set that the compositor
// drains on its next pass.
package layer

import (
	"sort"

	"github.com/google/uuid"

	"github.com/dshills/asciicanvas/internal/renderer/blend"
	"github.com/dshills/asciicanvas/internal/renderer/core"
)

// MaxCoord bounds the coordinates a layer accepts on either axis.
// Reads and writes outside [-MaxCoord, MaxCoord] are no-ops.
const MaxCoord = 1 << 30

// Layer is a sparse grid of cells with compositing properties.
type Layer struct {
	id       string
	name     string
	visible  bool
	locked   bool
	opacity  float64
	mode     blend.Mode
	clipMask string

	cells map[core.Key]core.Cell
	dirty map[core.Key]struct{}

	// bounds caches the bounding box of stored cells until the next mutation.
	bounds      core.Rect
	boundsValid bool
}

// New creates an empty, visible, fully opaque layer in Normal mode.
// An empty id is replaced by a random UUID.
func New(id, name string) *Layer {
	if id == "" {
		id = uuid.New().String()
	}
	return &Layer{
		id:      id,
		name:    name,
		visible: true,
		opacity: 1,
		mode:    blend.Normal,
		cells:   make(map[core.Key]core.Cell),
		dirty:   make(map[core.Key]struct{}),
	}
}

// ID returns the layer id.
func (l *Layer) ID() string {
	return l.id
}

// Name returns the display name.
func (l *Layer) Name() string {
	return l.name
}

// SetName changes the display name. Names do not affect output.
func (l *Layer) SetName(name string) {
	l.name = name
}

// Visible reports whether the layer contributes to output.
func (l *Layer) Visible() bool {
	return l.visible
}

// SetVisible shows or hides the layer and returns the keys it affected.
func (l *Layer) SetVisible(visible bool) []core.Key {
	if l.visible == visible {
		return nil
	}
	l.visible = visible
	return l.markAllDirty()
}

// Locked reports whether editing tools should refuse changes.
// The layer itself does not enforce the flag.
func (l *Layer) Locked() bool {
	return l.locked
}

// SetLocked sets the locked flag.
func (l *Layer) SetLocked(locked bool) {
	l.locked = locked
}

// Opacity returns the layer opacity in [0, 1].
func (l *Layer) Opacity() float64 {
	return l.opacity
}

// SetOpacity changes the opacity, clamped to [0, 1], and returns the keys
// it affected.
func (l *Layer) SetOpacity(opacity float64) []core.Key {
	opacity = core.Clamp01(opacity)
	if l.opacity == opacity {
		return nil
	}
	l.opacity = opacity
	return l.markAllDirty()
}

// BlendMode returns the blend mode.
func (l *Layer) BlendMode() blend.Mode {
	return l.mode
}

// SetBlendMode changes the blend mode and returns the keys it affected.
func (l *Layer) SetBlendMode(mode blend.Mode) []core.Key {
	if !mode.Valid() {
		mode = blend.Normal
	}
	if l.mode == mode {
		return nil
	}
	l.mode = mode
	return l.markAllDirty()
}

// ClipMask returns the id of the layer that clips this one, if any.
func (l *Layer) ClipMask() string {
	return l.clipMask
}

// SetClipMask sets the clipping layer id. An empty id removes the clip.
func (l *Layer) SetClipMask(id string) []core.Key {
	if l.clipMask == id {
		return nil
	}
	l.clipMask = id
	return l.markAllDirty()
}

// Contributes reports whether the layer can affect output at all.
func (l *Layer) Contributes() bool {
	return l.visible && l.opacity > 0
}

// SetCell stores a cell, or deletes it when char is blank, and returns
// the touched key. The second result is false for out-of-range positions.
func (l *Layer) SetCell(x, y int, char string, color core.Color, metadata map[string]any) (core.Key, bool) {
	if !inRange(x, y) {
		return 0, false
	}
	key := core.PackKey(x, y)
	char = core.NormalizeChar(char)

	if char == "" {
		if _, ok := l.cells[key]; !ok {
			return key, true
		}
		delete(l.cells, key)
	} else {
		l.cells[key] = core.Cell{X: x, Y: y, Char: char, Color: color, Metadata: metadata}
	}

	l.dirty[key] = struct{}{}
	l.boundsValid = false
	return key, true
}

// GetCell returns the cell stored at (x, y).
func (l *Layer) GetCell(x, y int) (core.Cell, bool) {
	if !inRange(x, y) {
		return core.Cell{}, false
	}
	c, ok := l.cells[core.PackKey(x, y)]
	return c, ok
}

// CellAt returns the cell stored at key.
func (l *Layer) CellAt(key core.Key) (core.Cell, bool) {
	c, ok := l.cells[key]
	return c, ok
}

// HasCell reports whether a cell is stored at key.
func (l *Layer) HasCell(key core.Key) bool {
	_, ok := l.cells[key]
	return ok
}

// ClearCell removes the cell at (x, y). It reports whether a cell existed.
func (l *Layer) ClearCell(x, y int) bool {
	if !inRange(x, y) {
		return false
	}
	key := core.PackKey(x, y)
	if _, ok := l.cells[key]; !ok {
		return false
	}
	delete(l.cells, key)
	l.dirty[key] = struct{}{}
	l.boundsValid = false
	return true
}

// Clear removes every cell and returns the removed keys.
func (l *Layer) Clear() []core.Key {
	keys := l.markAllDirty()
	l.cells = make(map[core.Key]core.Cell)
	l.boundsValid = false
	return keys
}

// Rasterize stores a batch of cells and returns the keys it touched.
// Out-of-range cells are skipped.
func (l *Layer) Rasterize(cells []core.Cell) []core.Key {
	keys := make([]core.Key, 0, len(cells))
	for _, c := range cells {
		if k, ok := l.SetCell(c.X, c.Y, c.Char, c.Color, c.Metadata); ok {
			keys = append(keys, k)
		}
	}
	return keys
}

// ForEachCell calls fn for every stored cell in unspecified order.
// Iteration stops when fn returns false.
func (l *Layer) ForEachCell(fn func(core.Cell) bool) {
	for _, c := range l.cells {
		if !fn(c) {
			return
		}
	}
}

// Cells returns every stored cell ordered by row, then column.
func (l *Layer) Cells() []core.Cell {
	cells := make([]core.Cell, 0, len(l.cells))
	for _, c := range l.cells {
		cells = append(cells, c)
	}
	sort.Slice(cells, func(i, j int) bool {
		if cells[i].Y != cells[j].Y {
			return cells[i].Y < cells[j].Y
		}
		return cells[i].X < cells[j].X
	})
	return cells
}

// Keys returns the keys of every stored cell in unspecified order.
func (l *Layer) Keys() []core.Key {
	keys := make([]core.Key, 0, len(l.cells))
	for k := range l.cells {
		keys = append(keys, k)
	}
	return keys
}

// Len returns the number of stored cells.
func (l *Layer) Len() int {
	return len(l.cells)
}

// Bounds returns the bounding rectangle of stored cells. The second result
// is false for an empty layer.
func (l *Layer) Bounds() (core.Rect, bool) {
	if len(l.cells) == 0 {
		return core.Rect{}, false
	}
	if l.boundsValid {
		return l.bounds, true
	}

	first := true
	var r core.Rect
	for k := range l.cells {
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

	l.bounds = r
	l.boundsValid = true
	return r, true
}

// DirtyCells returns the keys changed since the last ClearDirty.
func (l *Layer) DirtyCells() []core.Key {
	keys := make([]core.Key, 0, len(l.dirty))
	for k := range l.dirty {
		keys = append(keys, k)
	}
	return keys
}

// HasDirty reports whether any key changed since the last ClearDirty.
func (l *Layer) HasDirty() bool {
	return len(l.dirty) > 0
}

// ClearDirty flushes the dirty set.
func (l *Layer) ClearDirty() {
	if len(l.dirty) == 0 {
		return
	}
	l.dirty = make(map[core.Key]struct{})
}

// Clone returns a deep copy with the same id. The copy starts clean.
func (l *Layer) Clone() *Layer {
	c := New(l.id, l.name)
	c.visible = l.visible
	c.locked = l.locked
	c.opacity = l.opacity
	c.mode = l.mode
	c.clipMask = l.clipMask
	for k, cell := range l.cells {
		if cell.Metadata != nil {
			md := make(map[string]any, len(cell.Metadata))
			for mk, mv := range cell.Metadata {
				md[mk] = mv
			}
			cell.Metadata = md
		}
		c.cells[k] = cell
	}
	return c
}

// markAllDirty marks every stored cell dirty and returns their keys.
func (l *Layer) markAllDirty() []core.Key {
	keys := make([]core.Key, 0, len(l.cells))
	for k := range l.cells {
		l.dirty[k] = struct{}{}
		keys = append(keys, k)
	}
	return keys
}

func inRange(x, y int) bool {
	return x >= -MaxCoord && x <= MaxCoord && y >= -MaxCoord && y <= MaxCoord
}
