// Package canvas holds the scene: layers of static cells and drawable
// objects, kept in a spatial index and rasterized through a render cache.
// Render pushes composited changes to a renderer as queued layer tasks.
package canvas

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/dshills/asciicanvas/internal/renderer/backend"
	"github.com/dshills/asciicanvas/internal/renderer/compositor"
	"github.com/dshills/asciicanvas/internal/renderer/core"
	"github.com/dshills/asciicanvas/internal/renderer/layer"
	"github.com/dshills/asciicanvas/internal/renderer/queue"
	"github.com/dshills/asciicanvas/internal/renderer/rendercache"
	"github.com/dshills/asciicanvas/internal/renderer/spatial"
)

// Errors returned by scene operations.
var (
	// ErrObjectExists indicates an object with the same id is on the canvas.
	ErrObjectExists = errors.New("object already exists")

	// ErrObjectNotFound indicates no object has the given id.
	ErrObjectNotFound = errors.New("object not found")

	// ErrNotMovable indicates the object does not implement Mover.
	ErrNotMovable = errors.New("object cannot be moved")
)

// Logger is the logging surface the canvas writes to.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Warn(string, ...any)  {}

// Target is the renderer surface a canvas renders into.
type Target interface {
	Size() (width, height int)
	MarkCells(keys []core.Key)
	MarkFullRedraw()
	QueueRender(task queue.Task) (string, error)
	Flush(ctx context.Context) (queue.Result, []backend.Change, error)
	Damage() (rects []core.Rect, full bool)
}

// Options configures a Canvas.
type Options struct {
	CacheCapacity int
	Spatial       spatial.Options
	Logger        Logger
}

// DefaultOptions returns the default canvas options.
func DefaultOptions() Options {
	return Options{
		CacheCapacity: rendercache.DefaultCapacity,
		Spatial:       spatial.DefaultOptions(),
	}
}

// Stats contains canvas statistics.
type Stats struct {
	Layers       int
	Objects      int
	Rasterized   uint64 // Rasterize calls that missed the cache
	RasterErrors uint64
	Cache        rendercache.CacheStats
	Spatial      spatial.Stats
}

type layerState struct {
	layer   *layer.Layer
	static  map[core.Key]core.Cell
	objects []string // draw order, last on top
	stale   bool
}

type objectEntry struct {
	drawable Drawable
	layerID  string
}

// Canvas is a document of layers and objects. It is safe for concurrent
// use; Render must not run concurrently with itself.
type Canvas struct {
	mu sync.Mutex

	width, height int
	offsetX       int
	offsetY       int
	offsetMoved   bool

	comp    *compositor.Compositor
	layers  map[string]*layerState
	objects map[string]*objectEntry
	index   *spatial.QuadTree
	cache   *rendercache.Cache
	logger  Logger

	rasterized   atomic.Uint64
	rasterErrors atomic.Uint64
}

// New creates an empty canvas of the given document size.
func New(width, height int, opts Options) *Canvas {
	if opts.Logger == nil {
		opts.Logger = nopLogger{}
	}
	width, height = max(0, width), max(0, height)
	return &Canvas{
		width:   width,
		height:  height,
		comp:    compositor.New(),
		layers:  make(map[string]*layerState),
		objects: make(map[string]*objectEntry),
		index:   spatial.New(core.Bounds{W: float64(width), H: float64(height)}, opts.Spatial),
		cache:   rendercache.New(opts.CacheCapacity),
		logger:  opts.Logger,
	}
}

// Size returns the document size.
func (c *Canvas) Size() (width, height int) {
	return c.width, c.height
}

// AddLayer pushes a layer on top. Cells already stored in the layer become
// its static cells.
func (c *Canvas) AddLayer(l *layer.Layer) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.comp.AddLayer(l); err != nil {
		return err
	}
	st := &layerState{layer: l, static: make(map[core.Key]core.Cell, l.Len())}
	for _, cell := range l.Cells() {
		st.static[cell.Key()] = cell
	}
	c.layers[l.ID()] = st
	return nil
}

// RemoveLayer removes a layer and every object on it.
func (c *Canvas) RemoveLayer(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	st, ok := c.layers[id]
	if !ok {
		return fmt.Errorf("%w: %s", compositor.ErrLayerNotFound, id)
	}
	for _, objID := range st.objects {
		c.dropObject(objID)
	}
	if _, err := c.comp.RemoveLayer(id); err != nil {
		return err
	}
	delete(c.layers, id)
	return nil
}

// MoveLayer changes a layer's z position.
func (c *Canvas) MoveLayer(id string, index int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.comp.MoveLayer(id, index)
}

// Layer returns the layer with the given id. Property changes made on it
// (opacity, blend mode, visibility) are picked up by the next Render;
// cell changes must go through SetCell.
func (c *Canvas) Layer(id string) (*layer.Layer, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.comp.Layer(id)
}

// Layers returns the stack bottom to top.
func (c *Canvas) Layers() []*layer.Layer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.comp.Layers()
}

// SetCell sets a static cell on a layer. A blank char removes it.
func (c *Canvas) SetCell(layerID string, x, y int, char string, color core.Color) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	st, ok := c.layers[layerID]
	if !ok {
		return fmt.Errorf("%w: %s", compositor.ErrLayerNotFound, layerID)
	}
	key := core.PackKey(x, y)
	if ch := core.NormalizeChar(char); ch != "" {
		st.static[key] = core.Cell{X: x, Y: y, Char: ch, Color: color}
	} else {
		delete(st.static, key)
	}
	st.stale = true
	return nil
}

// AddObject places a drawable on top of a layer.
func (c *Canvas) AddObject(layerID string, d Drawable) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	st, ok := c.layers[layerID]
	if !ok {
		return fmt.Errorf("%w: %s", compositor.ErrLayerNotFound, layerID)
	}
	if _, exists := c.objects[d.ID()]; exists {
		return fmt.Errorf("%w: %s", ErrObjectExists, d.ID())
	}

	c.objects[d.ID()] = &objectEntry{drawable: d, layerID: layerID}
	st.objects = append(st.objects, d.ID())
	st.stale = true
	c.index.Insert(d.ID(), d.Bounds())
	return nil
}

// RemoveObject removes a drawable from the canvas.
func (c *Canvas) RemoveObject(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.objects[id]; !ok {
		return fmt.Errorf("%w: %s", ErrObjectNotFound, id)
	}
	c.dropObject(id)
	return nil
}

func (c *Canvas) dropObject(id string) {
	entry := c.objects[id]
	delete(c.objects, id)
	c.index.Remove(id)
	c.cache.InvalidatePrefix(cachePrefix(id))

	if st, ok := c.layers[entry.layerID]; ok {
		st.objects = slices.DeleteFunc(st.objects, func(o string) bool { return o == id })
		st.stale = true
	}
}

// MoveObject translates a movable drawable.
func (c *Canvas) MoveObject(id string, dx, dy int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.objects[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrObjectNotFound, id)
	}
	m, ok := entry.drawable.(Mover)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotMovable, id)
	}
	m.MoveBy(dx, dy)
	c.touched(entry)
	return nil
}

// Touch records that an object's state changed outside the canvas, so it
// is reindexed and rerasterized on the next Render.
func (c *Canvas) Touch(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.objects[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrObjectNotFound, id)
	}
	c.touched(entry)
	return nil
}

func (c *Canvas) touched(entry *objectEntry) {
	c.index.Update(entry.drawable.ID(), entry.drawable.Bounds())
	if st, ok := c.layers[entry.layerID]; ok {
		st.stale = true
	}
}

// Object returns the drawable with the given id.
func (c *Canvas) Object(id string) (Drawable, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.objects[id]
	if !ok {
		return nil, false
	}
	return entry.drawable, true
}

// HitTest returns the objects on contributing layers whose bounds contain
// the cell at (x, y), topmost first.
func (c *Canvas) HitTest(x, y int) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	ids := c.index.QueryPoint(float64(x)+0.5, float64(y)+0.5)
	return c.stackOrder(ids, true)
}

// ObjectsIn returns the objects whose bounds overlap b, topmost first.
func (c *Canvas) ObjectsIn(b core.Bounds) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stackOrder(c.index.Query(b), false)
}

// stackOrder sorts ids topmost first: later layers, then later objects.
func (c *Canvas) stackOrder(ids []string, contributingOnly bool) []string {
	type rank struct{ layer, object int }
	layerIndex := make(map[string]int)
	for i, l := range c.comp.Layers() {
		if contributingOnly && !l.Contributes() {
			continue
		}
		layerIndex[l.ID()] = i
	}

	ranks := make(map[string]rank, len(ids))
	out := ids[:0]
	for _, id := range ids {
		entry, ok := c.objects[id]
		if !ok {
			continue
		}
		li, ok := layerIndex[entry.layerID]
		if !ok {
			continue
		}
		ranks[id] = rank{li, slices.Index(c.layers[entry.layerID].objects, id)}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := ranks[out[i]], ranks[out[j]]
		if a.layer != b.layer {
			return a.layer > b.layer
		}
		return a.object > b.object
	})
	return out
}

// SetOffset scrolls the view so screen (0,0) shows document (x,y).
func (c *Canvas) SetOffset(x, y int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if x == c.offsetX && y == c.offsetY {
		return
	}
	c.offsetX, c.offsetY = x, y
	c.offsetMoved = true
}

// Offset returns the view offset.
func (c *Canvas) Offset() (x, y int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.offsetX, c.offsetY
}

// Render rebuilds stale layers, composites, marks the changed screen cells
// on t and flushes one layer task that repaints the frame's damaged area.
func (c *Canvas) Render(ctx context.Context, t Target) ([]backend.Change, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, l := range c.comp.Layers() {
		if st := c.layers[l.ID()]; st.stale {
			c.rebuild(st)
		}
	}

	changed := c.comp.Composite(nil)
	if c.offsetMoved {
		t.MarkFullRedraw()
		c.offsetMoved = false
	} else if len(changed) > 0 {
		keys := make([]core.Key, len(changed))
		for i, k := range changed {
			x, y := k.XY()
			keys[i] = core.PackKey(x-c.offsetX, y-c.offsetY)
		}
		t.MarkCells(keys)
	}

	if _, err := t.QueueRender(queue.Task{
		Type: queue.Layer,
		Render: func(_ context.Context, s queue.Surface) error {
			return c.paint(t, s)
		},
	}); err != nil {
		return nil, err
	}

	_, changes, err := t.Flush(ctx)
	if err != nil {
		return changes, fmt.Errorf("canvas render: %w", err)
	}
	return changes, nil
}

// paint copies composited cells inside the frame's damaged area. Runs
// inside Render with c.mu held.
func (c *Canvas) paint(t Target, s queue.Surface) error {
	rects, full := t.Damage()
	if full {
		w, h := t.Size()
		rects = []core.Rect{core.RectFromSize(0, 0, w, h)}
	}

	out := c.comp.Output()
	for _, r := range rects {
		if r.Area() <= len(out) {
			for y := r.Top; y < r.Bottom; y++ {
				for x := r.Left; x < r.Right; x++ {
					if cell, ok := out[core.PackKey(x+c.offsetX, y+c.offsetY)]; ok {
						s.SetCell(x, y, backend.BufferCell{Char: cell.Char, Color: cell.Color})
					}
				}
			}
			continue
		}
		for k, cell := range out {
			x, y := k.XY()
			x, y = x-c.offsetX, y-c.offsetY
			if r.Contains(x, y) {
				s.SetCell(x, y, backend.BufferCell{Char: cell.Char, Color: cell.Color})
			}
		}
	}
	return nil
}

// rebuild recomputes a layer's cells from its static cells and objects and
// writes only the differences, so the compositor sees a minimal delta.
func (c *Canvas) rebuild(st *layerState) {
	next := make(map[core.Key]core.Cell, len(st.static))
	for k, cell := range st.static {
		next[k] = cell
	}
	for _, id := range st.objects {
		for _, cell := range c.rasterize(c.objects[id].drawable) {
			next[cell.Key()] = cell
		}
	}

	l := st.layer
	for _, k := range l.Keys() {
		if _, keep := next[k]; !keep {
			x, y := k.XY()
			l.ClearCell(x, y)
		}
	}
	for k, cell := range next {
		if prev, ok := l.CellAt(k); ok && prev.Char == cell.Char && prev.Color.Equals(cell.Color) {
			continue
		}
		l.SetCell(cell.X, cell.Y, cell.Char, cell.Color, cell.Metadata)
	}
	st.stale = false
}

// rasterize returns a drawable's cells through the render cache. A failing
// drawable contributes nothing.
func (c *Canvas) rasterize(d Drawable) []core.Cell {
	key := cachePrefix(d.ID()) + d.Fingerprint()
	if cells, ok := c.cache.Get(key); ok {
		return cells
	}

	c.rasterized.Add(1)
	cells, err := d.Rasterize()
	if err != nil {
		c.rasterErrors.Add(1)
		c.logger.Warn("rasterize %s: %v", d.ID(), err)
		return nil
	}
	// Older versions of this object are unreachable now
	c.cache.InvalidatePrefix(cachePrefix(d.ID()))
	c.cache.Set(key, cells)
	return cells
}

// cachePrefix starts every cache key of the object id. The length prefix
// keeps one id from being a prefix of another, such as "a" and "a|b".
func cachePrefix(id string) string {
	return strconv.Itoa(len(id)) + ":" + id + "|"
}

// Snapshot returns the composited document as text rows. Stale layers are
// rebuilt first.
func (c *Canvas) Snapshot() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, st := range c.layers {
		if st.stale {
			c.rebuild(st)
		}
	}
	c.comp.Composite(nil)
	return c.comp.Snapshot(c.width, c.height)
}

// Stats returns canvas statistics.
func (c *Canvas) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Stats{
		Layers:       len(c.layers),
		Objects:      len(c.objects),
		Rasterized:   c.rasterized.Load(),
		RasterErrors: c.rasterErrors.Load(),
		Cache:        c.cache.Stats(),
		Spatial:      c.index.Stats(),
	}
}
