// Package spatial provides a quadtree over object bounding boxes for
// hit-testing and culling.
//
// Known limitation: an object straddling a quadrant boundary is stored in
// every quadrant it overlaps, and nodes keep no back-pointers, so Remove
// visits every node. Large sets of frequently moving objects pay for both.
package spatial

import (
	"sort"

	"github.com/dshills/asciicanvas/internal/renderer/core"
)

// Defaults for Options.
const (
	DefaultMaxObjects = 8
	DefaultMaxDepth   = 6
)

// Options configures node splitting.
type Options struct {
	// MaxObjects is the bucket size above which a node splits.
	MaxObjects int

	// MaxDepth is the deepest level a node may split to. The root is depth 0.
	MaxDepth int
}

// DefaultOptions returns the default split thresholds.
func DefaultOptions() Options {
	return Options{MaxObjects: DefaultMaxObjects, MaxDepth: DefaultMaxDepth}
}

type item struct {
	id     string
	bounds core.Bounds
}

type node struct {
	bounds   core.Bounds
	depth    int
	items    []item
	children *[4]*node
}

// QuadTree indexes (id, bounds) pairs. Bounds are not validated; zero-size
// and out-of-extent boxes are accepted. Boxes not fully inside the root
// extent stay in the root bucket so queries outside the extent find them.
type QuadTree struct {
	root  *node
	opts  Options
	count map[string]int // stored entries per id
}

// New creates a quadtree covering extent.
func New(extent core.Bounds, opts Options) *QuadTree {
	if opts.MaxObjects <= 0 {
		opts.MaxObjects = DefaultMaxObjects
	}
	if opts.MaxDepth < 0 {
		opts.MaxDepth = 0
	}
	return &QuadTree{
		root:  &node{bounds: extent},
		opts:  opts,
		count: make(map[string]int),
	}
}

// Extent returns the area covered by the root node.
func (t *QuadTree) Extent() core.Bounds {
	return t.root.bounds
}

// Insert adds id with the given bounds. Inserting an id twice stores both
// boxes; use Update to replace.
func (t *QuadTree) Insert(id string, b core.Bounds) {
	t.insert(t.root, item{id: id, bounds: b})
}

// Update replaces every stored box of id with b.
func (t *QuadTree) Update(id string, b core.Bounds) {
	t.Remove(id)
	t.Insert(id, b)
}

func (t *QuadTree) insert(n *node, it item) {
	if n.children != nil && t.descends(n, it) {
		if t.insertChildren(n, it) {
			return
		}
		// Overlaps no quadrant; keep it here so it stays queryable
	}

	n.items = append(n.items, it)
	t.count[it.id]++

	if n.children == nil && len(n.items) > t.opts.MaxObjects && n.depth < t.opts.MaxDepth {
		t.split(n)
	}
}

// descends reports whether it may be pushed below n. Quadrants only cover
// the root extent, so the root keeps boxes that reach outside it.
func (t *QuadTree) descends(n *node, it item) bool {
	return n != t.root || within(n.bounds, it.bounds)
}

func within(outer, inner core.Bounds) bool {
	x0, x1 := min(inner.X, inner.X+inner.W), max(inner.X, inner.X+inner.W)
	y0, y1 := min(inner.Y, inner.Y+inner.H), max(inner.Y, inner.Y+inner.H)
	return x0 >= outer.X && x1 <= outer.X+outer.W &&
		y0 >= outer.Y && y1 <= outer.Y+outer.H
}

// insertChildren inserts into every child the item overlaps and reports
// whether any did.
func (t *QuadTree) insertChildren(n *node, it item) bool {
	placed := false
	for _, c := range n.children {
		if c.bounds.Overlaps(it.bounds) {
			t.insert(c, it)
			placed = true
		}
	}
	return placed
}

// split creates four quadrants and redistributes the bucket.
func (t *QuadTree) split(n *node) {
	b := n.bounds
	hw, hh := b.W/2, b.H/2
	d := n.depth + 1
	n.children = &[4]*node{
		{bounds: core.Bounds{X: b.X, Y: b.Y, W: hw, H: hh}, depth: d},
		{bounds: core.Bounds{X: b.X + hw, Y: b.Y, W: b.W - hw, H: hh}, depth: d},
		{bounds: core.Bounds{X: b.X, Y: b.Y + hh, W: hw, H: b.H - hh}, depth: d},
		{bounds: core.Bounds{X: b.X + hw, Y: b.Y + hh, W: b.W - hw, H: b.H - hh}, depth: d},
	}

	items := n.items
	n.items = nil
	for _, it := range items {
		t.count[it.id]--
		if t.descends(n, it) && t.insertChildren(n, it) {
			continue
		}
		n.items = append(n.items, it)
		t.count[it.id]++
	}
}

// Query returns the ids whose bounds overlap q, de-duplicated and sorted.
func (t *QuadTree) Query(q core.Bounds) []string {
	seen := make(map[string]struct{})
	t.query(t.root, q, seen)

	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (t *QuadTree) query(n *node, q core.Bounds, seen map[string]struct{}) {
	for _, it := range n.items {
		if it.bounds.Overlaps(q) {
			seen[it.id] = struct{}{}
		}
	}
	if n.children == nil {
		return
	}
	for _, c := range n.children {
		if c.bounds.Overlaps(q) {
			t.query(c, q, seen)
		}
	}
}

// QueryPoint returns the ids whose bounds contain the point.
func (t *QuadTree) QueryPoint(x, y float64) []string {
	return t.Query(core.Bounds{X: x, Y: y})
}

// Remove deletes every stored box of id. It visits every node.
func (t *QuadTree) Remove(id string) bool {
	if t.count[id] == 0 {
		return false
	}
	removeFrom(t.root, id)
	delete(t.count, id)
	return true
}

func removeFrom(n *node, id string) {
	kept := n.items[:0]
	for _, it := range n.items {
		if it.id != id {
			kept = append(kept, it)
		}
	}
	for i := len(kept); i < len(n.items); i++ {
		n.items[i] = item{}
	}
	n.items = kept

	if n.children != nil {
		for _, c := range n.children {
			removeFrom(c, id)
		}
	}
}

// Clear removes everything and collapses the tree to its root.
func (t *QuadTree) Clear() {
	t.root = &node{bounds: t.root.bounds}
	t.count = make(map[string]int)
}

// Len returns the number of distinct ids stored.
func (t *QuadTree) Len() int {
	return len(t.count)
}

// Stats describes the tree shape.
type Stats struct {
	Nodes    int // Total nodes including the root
	MaxDepth int // Deepest node
	Entries  int // Stored boxes, counting redundant copies
	IDs      int // Distinct ids
}

// Stats walks the tree and returns its shape.
func (t *QuadTree) Stats() Stats {
	s := Stats{IDs: len(t.count)}
	var walk func(n *node)
	walk = func(n *node) {
		s.Nodes++
		s.Entries += len(n.items)
		s.MaxDepth = max(s.MaxDepth, n.depth)
		if n.children != nil {
			for _, c := range n.children {
				walk(c)
			}
		}
	}
	walk(t.root)
	return s
}
