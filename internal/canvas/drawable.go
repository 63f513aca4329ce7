package canvas

import (
	"strings"

	"github.com/rivo/uniseg"

	"github.com/dshills/asciicanvas/internal/renderer/core"
	"github.com/dshills/asciicanvas/internal/renderer/rendercache"
)

// Drawable is a scene object that rasterizes to cells.
type Drawable interface {
	// ID returns the unique object id.
	ID() string

	// Bounds returns the object-space box used for hit testing and culling.
	Bounds() core.Bounds

	// Fingerprint encodes the state that affects Rasterize output.
	// Equal fingerprints must rasterize to equal cells.
	Fingerprint() string

	// Rasterize returns the object's cells in canvas coordinates.
	Rasterize() ([]core.Cell, error)
}

// Mover is implemented by drawables that can be translated in place.
type Mover interface {
	MoveBy(dx, dy int)
}

// cellBounds returns the box covering a width x height block of cells at
// (x, y). A point at a cell center falls inside exactly the covered cells.
func cellBounds(x, y, width, height int) core.Bounds {
	return core.Bounds{X: float64(x), Y: float64(y), W: float64(max(0, width)), H: float64(max(0, height))}
}

// Text is a block of text. Newlines start a new row; wide graphemes
// advance by their display width.
type Text struct {
	ObjID   string
	X, Y    int
	Content string
	Color   core.Color
}

func (t *Text) ID() string { return t.ObjID }

func (t *Text) Bounds() core.Bounds {
	lines := strings.Split(t.Content, "\n")
	width := 0
	for _, line := range lines {
		width = max(width, uniseg.StringWidth(line))
	}
	return cellBounds(t.X, t.Y, width, len(lines))
}

func (t *Text) Fingerprint() string {
	return rendercache.Fingerprint("text", t.X, t.Y, rendercache.Hash(t.Content), t.Color)
}

func (t *Text) Rasterize() ([]core.Cell, error) {
	var cells []core.Cell
	for row, line := range strings.Split(t.Content, "\n") {
		col := 0
		g := uniseg.NewGraphemes(line)
		for g.Next() {
			ch := g.Str()
			if !core.IsBlank(ch) {
				cells = append(cells, core.Cell{X: t.X + col, Y: t.Y + row, Char: ch, Color: t.Color})
			}
			col += max(1, g.Width())
		}
	}
	return cells, nil
}

func (t *Text) MoveBy(dx, dy int) {
	t.X += dx
	t.Y += dy
}

// BoxStyle holds the glyphs of a box border.
type BoxStyle struct {
	Horizontal string
	Vertical   string
	Corner     string
}

// DefaultBoxStyle draws +--+ style borders.
var DefaultBoxStyle = BoxStyle{Horizontal: "-", Vertical: "|", Corner: "+"}

// Box is a rectangle with a border and an optional fill.
type Box struct {
	ObjID         string
	X, Y          int
	Width, Height int
	Style         BoxStyle
	Fill          string
	Color         core.Color
}

func (b *Box) ID() string { return b.ObjID }

func (b *Box) Bounds() core.Bounds {
	return cellBounds(b.X, b.Y, b.Width, b.Height)
}

func (b *Box) Fingerprint() string {
	s := b.style()
	return rendercache.Fingerprint("box", b.X, b.Y, b.Width, b.Height,
		s.Horizontal, s.Vertical, s.Corner, b.Fill, b.Color)
}

func (b *Box) style() BoxStyle {
	s := b.Style
	if s.Horizontal == "" {
		s.Horizontal = DefaultBoxStyle.Horizontal
	}
	if s.Vertical == "" {
		s.Vertical = DefaultBoxStyle.Vertical
	}
	if s.Corner == "" {
		s.Corner = DefaultBoxStyle.Corner
	}
	return s
}

func (b *Box) Rasterize() ([]core.Cell, error) {
	if b.Width <= 0 || b.Height <= 0 {
		return nil, nil
	}
	s := b.style()
	right, bottom := b.Width-1, b.Height-1
	fill := core.NormalizeChar(b.Fill)

	cells := make([]core.Cell, 0, 2*(b.Width+b.Height))
	for dy := 0; dy <= bottom; dy++ {
		for dx := 0; dx <= right; dx++ {
			edgeX := dx == 0 || dx == right
			edgeY := dy == 0 || dy == bottom

			var ch string
			switch {
			case edgeX && edgeY:
				ch = s.Corner
			case edgeY:
				ch = s.Horizontal
			case edgeX:
				ch = s.Vertical
			default:
				ch = fill
			}
			if ch == "" {
				continue
			}
			cells = append(cells, core.Cell{X: b.X + dx, Y: b.Y + dy, Char: ch, Color: b.Color})
		}
	}
	return cells, nil
}

func (b *Box) MoveBy(dx, dy int) {
	b.X += dx
	b.Y += dy
}
