package dirty

import (
	"sync"

	"github.com/dshills/asciicanvas/internal/renderer/core"
)

// Defaults for a new Tracker.
const (
	DefaultMaxRects      = 32
	DefaultMergeDistance = 2
)

// Tracker accumulates changed cells and rectangles between frames.
//
// Dirty cells are collapsed into a single bounding rectangle when rects are
// requested. This over-approximates scattered changes in exchange for a
// constant-size result; the double buffer diff removes the unchanged cells.
type Tracker struct {
	mu sync.RWMutex

	// cells holds individually marked positions.
	cells map[core.Key]struct{}

	// rects holds explicitly marked rectangles, merged as they arrive.
	rects []core.Rect

	// fullRedraw indicates the entire screen needs redrawing.
	fullRedraw bool

	// maxRects is the rectangle count above which a merge pass runs.
	maxRects int

	// mergeDistance is the gap in cells across which rectangles merge.
	mergeDistance int

	screenWidth  int
	screenHeight int

	// coalesceThreshold is the dirty area ratio that triggers a full redraw.
	// Zero disables the check.
	coalesceThreshold float64
}

// NewTracker creates a new dirty rectangle tracker.
// Negative dimensions are treated as zero.
func NewTracker(screenWidth, screenHeight int) *Tracker {
	return &Tracker{
		cells:         make(map[core.Key]struct{}),
		rects:         make([]core.Rect, 0, 16),
		maxRects:      DefaultMaxRects,
		mergeDistance: DefaultMergeDistance,
		screenWidth:   max(0, screenWidth),
		screenHeight:  max(0, screenHeight),
	}
}

// SetScreenSize updates the screen dimensions and flags a full redraw.
// Negative dimensions are treated as zero.
func (t *Tracker) SetScreenSize(width, height int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.screenWidth = max(0, width)
	t.screenHeight = max(0, height)
	t.markFull()
}

// ScreenSize returns the tracked screen dimensions.
func (t *Tracker) ScreenSize() (width, height int) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.screenWidth, t.screenHeight
}

// MarkFullRedraw discards incremental state and flags the whole screen.
// Incremental marks are ignored until Clear.
func (t *Tracker) MarkFullRedraw() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.markFull()
}

func (t *Tracker) markFull() {
	t.fullRedraw = true
	t.rects = t.rects[:0]
	clear(t.cells)
}

// MarkCell marks a single cell as dirty.
func (t *Tracker) MarkCell(x, y int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.fullRedraw {
		return
	}
	t.addCell(x, y)
	t.checkThreshold()
}

// MarkCells marks every keyed position as dirty.
func (t *Tracker) MarkCells(keys []core.Key) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.fullRedraw {
		return
	}
	for _, k := range keys {
		x, y := k.XY()
		t.addCell(x, y)
	}
	t.checkThreshold()
}

// MarkRect marks a rectangle as dirty.
func (t *Tracker) MarkRect(r core.Rect) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.fullRedraw {
		return
	}

	r = r.Intersection(t.screen())
	if r.IsEmpty() {
		return
	}

	// Try to merge with an existing rect
	for i := range t.rects {
		if Near(t.rects[i], r, t.mergeDistance) {
			t.rects[i] = t.rects[i].Union(r)
			t.rects = MergeRects(t.rects, t.mergeDistance)
			t.checkThreshold()
			return
		}
	}

	t.rects = append(t.rects, r)
	if len(t.rects) > t.maxRects {
		t.capRects()
	}
	t.checkThreshold()
}

func (t *Tracker) addCell(x, y int) {
	if x < 0 || y < 0 || x >= t.screenWidth || y >= t.screenHeight {
		return
	}
	t.cells[core.PackKey(x, y)] = struct{}{}
}

func (t *Tracker) screen() core.Rect {
	return core.Rect{Right: t.screenWidth, Bottom: t.screenHeight}
}

// capRects merges until the count is within maxRects, falling back to a
// single bounding rectangle.
func (t *Tracker) capRects() {
	t.rects = MergeRects(t.rects, t.mergeDistance)
	if len(t.rects) <= t.maxRects {
		return
	}
	var all core.Rect
	for _, r := range t.rects {
		all = all.Union(r)
	}
	t.rects = append(t.rects[:0], all)
}

// checkThreshold escalates to a full redraw once the dirty area exceeds the
// configured share of the screen.
func (t *Tracker) checkThreshold() {
	if t.coalesceThreshold <= 0 {
		return
	}
	if t.dirtyAreaRatio() > t.coalesceThreshold {
		t.markFull()
	}
}

// dirtyAreaRatio returns the ratio of dirty area to total screen area.
func (t *Tracker) dirtyAreaRatio() float64 {
	if t.screenWidth == 0 || t.screenHeight == 0 {
		return 0
	}
	if t.fullRedraw {
		return 1
	}

	area := TotalArea(t.rects)
	if r, ok := BoundingRect(t.cells); ok {
		area += r.Area()
	}
	total := float64(t.screenWidth) * float64(t.screenHeight)
	return min(1, float64(area)/total)
}

// DirtyRects returns the rectangles needing redraw. While a full redraw is
// flagged it returns (nil, true) and callers must redraw everything.
func (t *Tracker) DirtyRects() ([]core.Rect, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.fullRedraw {
		return nil, true
	}

	result := make([]core.Rect, len(t.rects), len(t.rects)+1)
	copy(result, t.rects)
	if r, ok := BoundingRect(t.cells); ok {
		result = append(result, r)
	}
	return MergeRects(result, t.mergeDistance), false
}

// IsDirty returns true if anything is marked dirty.
func (t *Tracker) IsDirty() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.fullRedraw || len(t.rects) > 0 || len(t.cells) > 0
}

// NeedsFullRedraw returns true if a full redraw is needed.
func (t *Tracker) NeedsFullRedraw() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.fullRedraw
}

// IsCellDirty returns true if the cell at (x, y) was marked individually or
// lies within a dirty rectangle.
func (t *Tracker) IsCellDirty(x, y int) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.fullRedraw {
		return true
	}
	if _, ok := t.cells[core.PackKey(x, y)]; ok {
		return true
	}
	for _, r := range t.rects {
		if r.Contains(x, y) {
			return true
		}
	}
	return false
}

// IsRectDirty returns true if any part of r needs redrawing.
func (t *Tracker) IsRectDirty(r core.Rect) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.fullRedraw {
		return true
	}
	for _, d := range t.rects {
		if d.Intersects(r) {
			return true
		}
	}
	for k := range t.cells {
		if r.ContainsKey(k) {
			return true
		}
	}
	return false
}

// Clear clears all dirty state, including a flagged full redraw.
func (t *Tracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.rects = t.rects[:0]
	clear(t.cells)
	t.fullRedraw = false
}

// RectCount returns the number of stored rectangles, not counting the
// bounding rectangle of individually marked cells.
func (t *Tracker) RectCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.fullRedraw {
		return 1
	}
	return len(t.rects)
}

// SetMaxRects sets the rectangle count above which rectangles are merged.
// Values less than 1 are clamped to 1.
func (t *Tracker) SetMaxRects(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.maxRects = max(1, n)
	if len(t.rects) > t.maxRects {
		t.capRects()
	}
}

// SetMergeDistance sets the gap in cells across which rectangles merge.
// Negative values are treated as zero.
func (t *Tracker) SetMergeDistance(d int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.mergeDistance = max(0, d)
}

// SetCoalesceThreshold sets the dirty area ratio that triggers a full
// redraw. The value is clamped to [0, 1]; zero disables escalation.
func (t *Tracker) SetCoalesceThreshold(threshold float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.coalesceThreshold = core.Clamp01(threshold)
}

// Stats returns statistics about the tracker state.
func (t *Tracker) Stats() TrackerStats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return TrackerStats{
		RectCount:     len(t.rects),
		CellCount:     len(t.cells),
		FullRedraw:    t.fullRedraw,
		DirtyRatio:    t.dirtyAreaRatio(),
		ScreenWidth:   t.screenWidth,
		ScreenHeight:  t.screenHeight,
		MaxRects:      t.maxRects,
		MergeDistance: t.mergeDistance,
		CoalThreshold: t.coalesceThreshold,
	}
}

// TrackerStats contains statistics about the tracker state.
type TrackerStats struct {
	RectCount     int
	CellCount     int
	FullRedraw    bool
	DirtyRatio    float64
	ScreenWidth   int
	ScreenHeight  int
	MaxRects      int
	MergeDistance int
	CoalThreshold float64
}
