package layer

import (
	"encoding/json"

	"github.com/dshills/asciicanvas/internal/renderer/blend"
	"github.com/dshills/asciicanvas/internal/renderer/core"
)

// Document is the persisted representation of a layer.
type Document struct {
	ID        string         `json:"id" yaml:"id"`
	Name      string         `json:"name" yaml:"name"`
	Visible   *bool          `json:"visible,omitempty" yaml:"visible,omitempty"`
	Locked    bool           `json:"locked" yaml:"locked"`
	Opacity   *float64       `json:"opacity,omitempty" yaml:"opacity,omitempty"`
	BlendMode blend.Mode     `json:"blendMode" yaml:"blendMode"`
	ClipMask  string         `json:"clipMask,omitempty" yaml:"clipMask,omitempty"`
	Cells     []CellDocument `json:"cells" yaml:"cells"`
}

// CellDocument is the persisted representation of one cell.
type CellDocument struct {
	X        int            `json:"x" yaml:"x"`
	Y        int            `json:"y" yaml:"y"`
	Char     string         `json:"char" yaml:"char"`
	Color    string         `json:"color,omitempty" yaml:"color,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// Document returns the persisted form of the layer.
func (l *Layer) Document() Document {
	visible := l.visible
	opacity := l.opacity
	doc := Document{
		ID:        l.id,
		Name:      l.name,
		Visible:   &visible,
		Locked:    l.locked,
		Opacity:   &opacity,
		BlendMode: l.mode,
		ClipMask:  l.clipMask,
		Cells:     make([]CellDocument, 0, len(l.cells)),
	}
	for _, c := range l.Cells() {
		doc.Cells = append(doc.Cells, CellDocument{
			X:        c.X,
			Y:        c.Y,
			Char:     c.Char,
			Color:    c.Color.String(),
			Metadata: c.Metadata,
		})
	}
	return doc
}

// FromDocument builds a layer from its persisted form. Missing visibility
// and opacity default to visible and opaque; unparseable colors load as
// absent.
func FromDocument(doc Document) *Layer {
	l := New(doc.ID, doc.Name)
	l.applyDocument(doc)
	return l
}

func (l *Layer) applyDocument(doc Document) {
	if doc.Visible != nil {
		l.visible = *doc.Visible
	}
	if doc.Opacity != nil {
		l.opacity = core.Clamp01(*doc.Opacity)
	}
	l.locked = doc.Locked
	l.mode = doc.BlendMode
	if !l.mode.Valid() {
		l.mode = blend.Normal
	}
	l.clipMask = doc.ClipMask

	for _, c := range doc.Cells {
		color, _ := core.ParseColor(c.Color)
		l.SetCell(c.X, c.Y, c.Char, color, c.Metadata)
	}
	l.ClearDirty()
}

// MarshalJSON encodes the layer in its persisted form.
func (l *Layer) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.Document())
}

// UnmarshalJSON replaces the layer with the decoded persisted form.
// A layer that already has an id keeps it so a stacked layer stays
// addressable. Every decoded cell and every replaced cell is marked dirty.
func (l *Layer) UnmarshalJSON(data []byte) error {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	if l.id != "" {
		doc.ID = l.id
	}
	prev := l.cells
	pending := l.dirty

	*l = *FromDocument(doc)
	for k := range prev {
		l.dirty[k] = struct{}{}
	}
	for k := range pending {
		l.dirty[k] = struct{}{}
	}
	for k := range l.cells {
		l.dirty[k] = struct{}{}
	}
	return nil
}
