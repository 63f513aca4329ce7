// Package compositor merges an ordered stack of layers into one sparse map
// of composited cells. Only positions reported dirty by the layers are
// re-evaluated unless a full recompute is requested.
package compositor

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/dshills/asciicanvas/internal/renderer/blend"
	"github.com/dshills/asciicanvas/internal/renderer/core"
	"github.com/dshills/asciicanvas/internal/renderer/layer"
)

// Errors returned by layer stack operations.
var (
	// ErrLayerNotFound indicates no layer has the given id.
	ErrLayerNotFound = errors.New("layer not found")

	// ErrDuplicateLayer indicates a layer with the same id is already stacked.
	ErrDuplicateLayer = errors.New("duplicate layer id")
)

// Compositor holds the layer stack and the composited output.
// Index 0 is the bottom of the stack.
type Compositor struct {
	layers []*layer.Layer

	output map[core.Key]core.CompositedCell

	// dirty holds positions waiting to be re-evaluated.
	dirty map[core.Key]struct{}

	fullRecompute bool
}

// New creates an empty compositor. The first pass is a full recompute.
func New() *Compositor {
	return &Compositor{
		output:        make(map[core.Key]core.CompositedCell),
		dirty:         make(map[core.Key]struct{}),
		fullRecompute: true,
	}
}

// AddLayer pushes a layer on top of the stack.
func (c *Compositor) AddLayer(l *layer.Layer) error {
	return c.InsertLayer(len(c.layers), l)
}

// InsertLayer inserts a layer at index, clamped to the stack size.
func (c *Compositor) InsertLayer(index int, l *layer.Layer) error {
	if c.indexOf(l.ID()) >= 0 {
		return fmt.Errorf("%w: %s", ErrDuplicateLayer, l.ID())
	}
	index = max(0, min(index, len(c.layers)))

	c.layers = append(c.layers, nil)
	copy(c.layers[index+1:], c.layers[index:])
	c.layers[index] = l

	c.markKeys(l.Keys())
	return nil
}

// RemoveLayer removes a layer from the stack and returns it.
// Positions it covered are re-evaluated on the next pass.
func (c *Compositor) RemoveLayer(id string) (*layer.Layer, error) {
	i := c.indexOf(id)
	if i < 0 {
		return nil, fmt.Errorf("%w: %s", ErrLayerNotFound, id)
	}
	l := c.layers[i]
	c.layers = append(c.layers[:i], c.layers[i+1:]...)

	c.markKeys(l.Keys())
	c.markKeys(l.DirtyCells())
	l.ClearDirty()
	return l, nil
}

// MoveLayer moves a layer to index, clamped to the stack bounds.
func (c *Compositor) MoveLayer(id string, index int) error {
	i := c.indexOf(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrLayerNotFound, id)
	}
	index = max(0, min(index, len(c.layers)-1))
	if i == index {
		return nil
	}

	l := c.layers[i]
	c.layers = append(c.layers[:i], c.layers[i+1:]...)
	c.layers = append(c.layers, nil)
	copy(c.layers[index+1:], c.layers[index:])
	c.layers[index] = l

	c.markKeys(l.Keys())
	return nil
}

// Layer returns the layer with the given id.
func (c *Compositor) Layer(id string) (*layer.Layer, bool) {
	i := c.indexOf(id)
	if i < 0 {
		return nil, false
	}
	return c.layers[i], true
}

// Layers returns the stack bottom to top. The slice is a copy; the layers
// are shared.
func (c *Compositor) Layers() []*layer.Layer {
	out := make([]*layer.Layer, len(c.layers))
	copy(out, c.layers)
	return out
}

// Len returns the number of stacked layers.
func (c *Compositor) Len() int {
	return len(c.layers)
}

// MarkFullRecompute forces the next pass to re-evaluate every position.
func (c *Compositor) MarkFullRecompute() {
	c.fullRecompute = true
}

// MarkDirty queues positions for re-evaluation.
func (c *Compositor) MarkDirty(keys ...core.Key) {
	c.markKeys(keys)
}

// Composite re-evaluates dirty positions, or every position touched by a
// visible layer after MarkFullRecompute. When bounds is non-nil only
// positions inside it are evaluated; the rest keep their previous output
// and, if dirty, stay queued. It returns the positions whose output changed.
func (c *Compositor) Composite(bounds *core.Rect) []core.Key {
	c.collectLayerDirty()

	var candidates map[core.Key]struct{}
	full := c.fullRecompute
	if full {
		candidates = c.allPositions(bounds)
	} else {
		candidates = make(map[core.Key]struct{}, len(c.dirty))
		for k := range c.dirty {
			if bounds == nil || bounds.ContainsKey(k) {
				candidates[k] = struct{}{}
			}
		}
	}

	masks := c.clipMasks()
	changed := make([]core.Key, 0, len(candidates))
	for k := range candidates {
		delete(c.dirty, k)

		next := c.compositeAt(k, masks)
		prev, had := c.output[k]

		if next.IsBlank() {
			if had {
				delete(c.output, k)
				changed = append(changed, k)
			}
			continue
		}
		if !had || !prev.Equals(next) {
			changed = append(changed, k)
		}
		c.output[k] = next
	}

	if full {
		c.fullRecompute = false
		if bounds != nil {
			// Positions outside the window still need their full pass.
			c.markOutside(*bounds)
		}
	}

	sort.Slice(changed, func(i, j int) bool { return changed[i] < changed[j] })
	return changed
}

// compositeAt evaluates the stack bottom to top at one position.
func (c *Compositor) compositeAt(k core.Key, masks map[string]*layer.Layer) core.CompositedCell {
	result := blend.Blank
	seeded := false

	for _, l := range c.layers {
		if !l.Contributes() {
			continue
		}
		cell, ok := l.CellAt(k)
		if !ok {
			continue
		}
		if id := l.ClipMask(); id != "" {
			mask, ok := masks[id]
			if !ok || !mask.HasCell(k) {
				continue
			}
		}

		top := blend.Seed(cell, l.Opacity())
		if !seeded {
			// The first contributing cell seeds the result, except an
			// eraser which has nothing to remove. Later layers always
			// combine, even after the result has been blanked.
			seeded = true
			if l.BlendMode() != blend.Erase {
				result = top
			}
			continue
		}
		result = blend.Combine(result, top, l.BlendMode())
	}
	return result
}

// collectLayerDirty drains every layer's dirty set into the compositor.
func (c *Compositor) collectLayerDirty() {
	for _, l := range c.layers {
		if !l.HasDirty() {
			continue
		}
		c.markKeys(l.DirtyCells())
		l.ClearDirty()
	}
}

// allPositions gathers every position with a stored cell in a visible layer,
// plus every position currently in the output so stale cells are removed.
func (c *Compositor) allPositions(bounds *core.Rect) map[core.Key]struct{} {
	set := make(map[core.Key]struct{}, len(c.output))
	add := func(k core.Key) {
		if bounds == nil || bounds.ContainsKey(k) {
			set[k] = struct{}{}
		}
	}
	for k := range c.output {
		add(k)
	}
	for k := range c.dirty {
		add(k)
	}
	for _, l := range c.layers {
		if !l.Contributes() {
			continue
		}
		l.ForEachCell(func(cell core.Cell) bool {
			add(cell.Key())
			return true
		})
	}
	return set
}

// markOutside queues every known position outside r.
func (c *Compositor) markOutside(r core.Rect) {
	for k := range c.allPositions(nil) {
		if !r.ContainsKey(k) {
			c.dirty[k] = struct{}{}
		}
	}
}

func (c *Compositor) clipMasks() map[string]*layer.Layer {
	var masks map[string]*layer.Layer
	for _, l := range c.layers {
		id := l.ClipMask()
		if id == "" {
			continue
		}
		if masks == nil {
			masks = make(map[string]*layer.Layer)
		}
		if m, ok := c.Layer(id); ok {
			masks[id] = m
		}
	}
	return masks
}

func (c *Compositor) markKeys(keys []core.Key) {
	for _, k := range keys {
		c.dirty[k] = struct{}{}
	}
}

func (c *Compositor) indexOf(id string) int {
	for i, l := range c.layers {
		if l.ID() == id {
			return i
		}
	}
	return -1
}

// Output returns the composited cells. The map is owned by the compositor
// and must not be modified.
func (c *Compositor) Output() map[core.Key]core.CompositedCell {
	return c.output
}

// CellAt returns the composited cell at (x, y).
func (c *Compositor) CellAt(x, y int) (core.CompositedCell, bool) {
	cell, ok := c.output[core.PackKey(x, y)]
	return cell, ok
}

// Pending returns the number of positions waiting to be re-evaluated.
func (c *Compositor) Pending() int {
	return len(c.dirty)
}

// Snapshot renders the output within (0,0)-(width,height) as text rows.
// Blank positions are spaces.
func (c *Compositor) Snapshot(width, height int) []string {
	rows := make([]string, height)
	var sb strings.Builder
	for y := 0; y < height; y++ {
		sb.Reset()
		for x := 0; x < width; x++ {
			if cell, ok := c.output[core.PackKey(x, y)]; ok {
				sb.WriteString(cell.Char)
			} else {
				sb.WriteByte(' ')
			}
		}
		rows[y] = sb.String()
	}
	return rows
}
