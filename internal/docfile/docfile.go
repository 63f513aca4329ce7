// Package docfile loads canvas documents from YAML or JSON files.
//
// A document lists its layers bottom to top. Each layer carries the
// persisted layer fields plus the objects drawn on it:
//
//	width: 40
//	height: 10
//	layers:
//	  - id: base
//	    name: Base
//	    cells:
//	      - {x: 0, y: 0, char: "#", color: "#ff0000"}
//	    objects:
//	      - {type: box, id: frame, x: 1, y: 1, width: 10, height: 4}
//	      - {type: text, id: title, x: 2, y: 2, content: hello}
//	      - {type: script, id: wave, x: 12, y: 1, width: 20, height: 5, script: wave.lua}
package docfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/dshills/asciicanvas/internal/canvas"
	"github.com/dshills/asciicanvas/internal/renderer/core"
	"github.com/dshills/asciicanvas/internal/renderer/layer"
)

// Errors returned by the loader.
var (
	// ErrUnknownFormat indicates a file extension with no known decoder.
	ErrUnknownFormat = errors.New("unknown document format")

	// ErrInvalidDocument indicates a document that decoded but cannot be built.
	ErrInvalidDocument = errors.New("invalid document")
)

// Format is a document encoding.
type Format string

// Supported formats.
const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// FormatFromPath picks the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, filepath.Ext(path))
	}
}

// Object types.
const (
	TypeText   = "text"
	TypeBox    = "box"
	TypeScript = "script"
)

// Document is a complete canvas document.
type Document struct {
	Width  int             `json:"width" yaml:"width"`
	Height int             `json:"height" yaml:"height"`
	Layers []LayerDocument `json:"layers" yaml:"layers"`

	// files lists the paths Load read, document first.
	files []string
}

// Files returns the paths the document was loaded from: the document
// itself, then any script files. It is empty for parsed documents.
func (d *Document) Files() []string {
	return append([]string(nil), d.files...)
}

// LayerDocument is a persisted layer plus its objects.
type LayerDocument struct {
	layer.Document `yaml:",inline"`

	Objects []ObjectDocument `json:"objects,omitempty" yaml:"objects,omitempty"`
}

// ObjectDocument describes one drawable. Fields apply by type.
type ObjectDocument struct {
	Type   string `json:"type" yaml:"type"`
	ID     string `json:"id,omitempty" yaml:"id,omitempty"`
	X      int    `json:"x" yaml:"x"`
	Y      int    `json:"y" yaml:"y"`
	Width  int    `json:"width,omitempty" yaml:"width,omitempty"`
	Height int    `json:"height,omitempty" yaml:"height,omitempty"`
	Color  string `json:"color,omitempty" yaml:"color,omitempty"`

	// text
	Content string `json:"content,omitempty" yaml:"content,omitempty"`

	// box
	Fill  string         `json:"fill,omitempty" yaml:"fill,omitempty"`
	Style *StyleDocument `json:"style,omitempty" yaml:"style,omitempty"`

	// script: inline source, or a file path relative to the document
	Source  string `json:"source,omitempty" yaml:"source,omitempty"`
	Script  string `json:"script,omitempty" yaml:"script,omitempty"`
	Timeout string `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// StyleDocument holds box border glyphs.
type StyleDocument struct {
	Horizontal string `json:"horizontal,omitempty" yaml:"horizontal,omitempty"`
	Vertical   string `json:"vertical,omitempty" yaml:"vertical,omitempty"`
	Corner     string `json:"corner,omitempty" yaml:"corner,omitempty"`
}

// Load reads a document file. Script paths are resolved against the
// document directory and their source is read in.
func Load(path string) (*Document, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}
	doc, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	doc.files = []string{path}
	dir := filepath.Dir(path)
	for li := range doc.Layers {
		objects := doc.Layers[li].Objects
		for oi := range objects {
			od := &objects[oi]
			if od.Type != TypeScript || od.Script == "" {
				continue
			}
			scriptPath := od.Script
			if !filepath.IsAbs(scriptPath) {
				scriptPath = filepath.Join(dir, scriptPath)
			}
			src, err := os.ReadFile(scriptPath)
			if err != nil {
				return nil, fmt.Errorf("read script %s: %w", od.Script, err)
			}
			od.Source = string(src)
			doc.files = append(doc.files, scriptPath)
		}
	}
	return doc, nil
}

// Parse decodes a document and validates it.
func Parse(data []byte, format Format) (*Document, error) {
	var doc Document
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
	case FormatJSON:
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parse json: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}

	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Encode writes the document in the given format.
func Encode(doc *Document, format Format) ([]byte, error) {
	switch format {
	case FormatYAML:
		return yaml.Marshal(doc)
	case FormatJSON:
		return json.MarshalIndent(doc, "", "  ")
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// Validate checks sizes, object types and id uniqueness. Empty ids are
// accepted and assigned when the document is built.
func (d *Document) Validate() error {
	if d.Width <= 0 || d.Height <= 0 {
		return fmt.Errorf("%w: size %dx%d", ErrInvalidDocument, d.Width, d.Height)
	}

	layerIDs := make(map[string]bool)
	objectIDs := make(map[string]bool)
	for _, ld := range d.Layers {
		if ld.ID != "" {
			if layerIDs[ld.ID] {
				return fmt.Errorf("%w: duplicate layer id %q", ErrInvalidDocument, ld.ID)
			}
			layerIDs[ld.ID] = true
		}
		for _, od := range ld.Objects {
			switch od.Type {
			case TypeText, TypeBox, TypeScript:
			default:
				return fmt.Errorf("%w: object %q has unknown type %q", ErrInvalidDocument, od.ID, od.Type)
			}
			if od.Timeout != "" {
				if _, err := time.ParseDuration(od.Timeout); err != nil {
					return fmt.Errorf("%w: object %q timeout: %v", ErrInvalidDocument, od.ID, err)
				}
			}
			if od.ID == "" {
				continue
			}
			if objectIDs[od.ID] {
				return fmt.Errorf("%w: duplicate object id %q", ErrInvalidDocument, od.ID)
			}
			objectIDs[od.ID] = true
		}
	}
	return nil
}

// Build creates a canvas holding the document.
func Build(doc *Document, opts canvas.Options) (*canvas.Canvas, error) {
	c := canvas.New(doc.Width, doc.Height, opts)
	if err := Apply(doc, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Apply adds the document's layers and objects to c.
func Apply(doc *Document, c *canvas.Canvas) error {
	for _, ld := range doc.Layers {
		l := layer.FromDocument(ld.Document)
		if err := c.AddLayer(l); err != nil {
			return fmt.Errorf("add layer: %w", err)
		}
		for _, od := range ld.Objects {
			d, err := NewDrawable(od)
			if err != nil {
				return err
			}
			if err := c.AddObject(l.ID(), d); err != nil {
				return fmt.Errorf("add object: %w", err)
			}
		}
	}
	return nil
}

// NewDrawable builds the drawable an object document describes.
// Unparseable colors load as absent.
func NewDrawable(od ObjectDocument) (canvas.Drawable, error) {
	id := od.ID
	if id == "" {
		id = uuid.New().String()
	}
	color, _ := core.ParseColor(od.Color)

	switch od.Type {
	case TypeText:
		return &canvas.Text{ObjID: id, X: od.X, Y: od.Y, Content: od.Content, Color: color}, nil
	case TypeBox:
		box := &canvas.Box{ObjID: id, X: od.X, Y: od.Y, Width: od.Width, Height: od.Height, Fill: od.Fill, Color: color}
		if od.Style != nil {
			box.Style = canvas.BoxStyle{
				Horizontal: od.Style.Horizontal,
				Vertical:   od.Style.Vertical,
				Corner:     od.Style.Corner,
			}
		}
		return box, nil
	case TypeScript:
		s := &canvas.Script{ObjID: id, X: od.X, Y: od.Y, Width: od.Width, Height: od.Height, Source: od.Source}
		if od.Timeout != "" {
			timeout, err := time.ParseDuration(od.Timeout)
			if err != nil {
				return nil, fmt.Errorf("%w: object %q timeout: %v", ErrInvalidDocument, id, err)
			}
			s.Timeout = timeout
		}
		return s, nil
	default:
		return nil, fmt.Errorf("%w: object %q has unknown type %q", ErrInvalidDocument, id, od.Type)
	}
}
