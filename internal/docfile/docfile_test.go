package docfile

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/dshills/asciicanvas/internal/canvas"
	"github.com/dshills/asciicanvas/internal/renderer/blend"
)

const sampleYAML = `
width: 12
height: 4
layers:
  - id: base
    name: Base
    cells:
      - {x: 11, y: 3, char: "#", color: "#ff0000"}
    objects:
      - {type: box, id: frame, x: 0, y: 0, width: 5, height: 3}
      - {type: text, id: title, x: 1, y: 1, content: hi}
  - id: ink
    name: Ink
    opacity: 0.5
    blendMode: multiply
    objects:
      - type: script
        id: dots
        x: 6
        y: 0
        width: 3
        height: 1
        source: |
          function draw()
            for i = 0, width - 1 do cell(i, 0, "@") end
          end
`

func TestParseYAML(t *testing.T) {
	doc, err := Parse([]byte(sampleYAML), FormatYAML)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if doc.Width != 12 || doc.Height != 4 || len(doc.Layers) != 2 {
		t.Fatalf("doc = %+v", doc)
	}

	ink := doc.Layers[1]
	if ink.BlendMode != blend.Multiply {
		t.Errorf("blendMode = %v, want multiply", ink.BlendMode)
	}
	if ink.Opacity == nil || *ink.Opacity != 0.5 {
		t.Errorf("opacity = %v, want 0.5", ink.Opacity)
	}
	if len(doc.Layers[0].Cells) != 1 || doc.Layers[0].Cells[0].Color != "#ff0000" {
		t.Errorf("cells = %+v", doc.Layers[0].Cells)
	}
	if got := doc.Layers[0].Objects[1].Content; got != "hi" {
		t.Errorf("text content = %q", got)
	}
}

func TestBuildCanvas(t *testing.T) {
	doc, err := Parse([]byte(sampleYAML), FormatYAML)
	if err != nil {
		t.Fatal(err)
	}
	c, err := Build(doc, canvas.DefaultOptions())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	want := []string{
		"+---+ @@@   ",
		"|hi |       ",
		"+---+       ",
		"           #",
	}
	if got := c.Snapshot(); !slices.Equal(got, want) {
		t.Errorf("Snapshot =\n%q\nwant\n%q", got, want)
	}

	if ids := c.HitTest(2, 1); !slices.Equal(ids, []string{"title", "frame"}) {
		t.Errorf("HitTest = %v", ids)
	}
	if l, ok := c.Layer("ink"); !ok || l.BlendMode() != blend.Multiply {
		t.Errorf("ink layer = %v, %v", l, ok)
	}
}

func TestParseJSON(t *testing.T) {
	data := []byte(`{
		"width": 3, "height": 1,
		"layers": [{
			"id": "l", "name": "L", "blendMode": "screen",
			"cells": [{"x": 0, "y": 0, "char": "a"}],
			"objects": [{"type": "text", "x": 1, "y": 0, "content": "b"}]
		}]
	}`)
	doc, err := Parse(data, FormatJSON)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if doc.Layers[0].BlendMode != blend.Screen {
		t.Errorf("blendMode = %v", doc.Layers[0].BlendMode)
	}

	c, err := Build(doc, canvas.DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if got := c.Snapshot(); !slices.Equal(got, []string{"ab "}) {
		t.Errorf("Snapshot = %q", got)
	}
	if s := c.Stats(); s.Objects != 1 {
		t.Errorf("objects = %d, want 1 (generated id)", s.Objects)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name   string
		data   string
		format Format
		target error
	}{
		{"zero size", "width: 0\nheight: 3\n", FormatYAML, ErrInvalidDocument},
		{"unknown object", "width: 1\nheight: 1\nlayers:\n  - id: a\n    objects:\n      - {type: blob}\n", FormatYAML, ErrInvalidDocument},
		{"duplicate layer", "width: 1\nheight: 1\nlayers:\n  - id: a\n  - id: a\n", FormatYAML, ErrInvalidDocument},
		{"duplicate object", "width: 1\nheight: 1\nlayers:\n  - id: a\n    objects:\n      - {type: text, id: o}\n      - {type: box, id: o}\n", FormatYAML, ErrInvalidDocument},
		{"bad timeout", "width: 1\nheight: 1\nlayers:\n  - id: a\n    objects:\n      - {type: script, id: s, timeout: soon}\n", FormatYAML, ErrInvalidDocument},
		{"bad format", "{}", Format("xml"), ErrUnknownFormat},
		{"bad yaml", "width: [", FormatYAML, nil},
		{"bad json", "{", FormatJSON, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data), tt.format)
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.target != nil && !errors.Is(err, tt.target) {
				t.Errorf("err = %v, want %v", err, tt.target)
			}
		})
	}
}

func TestFormatFromPath(t *testing.T) {
	tests := []struct {
		path string
		want Format
		ok   bool
	}{
		{"a.yaml", FormatYAML, true},
		{"a.YML", FormatYAML, true},
		{"dir/a.json", FormatJSON, true},
		{"a.toml", "", false},
		{"noext", "", false},
	}
	for _, tt := range tests {
		got, err := FormatFromPath(tt.path)
		if (err == nil) != tt.ok || got != tt.want {
			t.Errorf("FormatFromPath(%q) = %q, %v", tt.path, got, err)
		}
	}
}

func TestLoadResolvesScripts(t *testing.T) {
	dir := t.TempDir()
	script := "function draw() cell(0, 0, \"*\") end\n"
	if err := os.WriteFile(filepath.Join(dir, "star.lua"), []byte(script), 0o644); err != nil {
		t.Fatal(err)
	}
	docYAML := "width: 2\nheight: 1\nlayers:\n  - id: a\n    objects:\n      - {type: script, id: s, x: 1, width: 1, height: 1, script: star.lua}\n"
	path := filepath.Join(dir, "doc.yaml")
	if err := os.WriteFile(path, []byte(docYAML), 0o644); err != nil {
		t.Fatal(err)
	}

	doc, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := doc.Layers[0].Objects[0].Source; got != script {
		t.Errorf("Source = %q", got)
	}
	if files := doc.Files(); len(files) != 2 || files[0] != path || filepath.Base(files[1]) != "star.lua" {
		t.Errorf("Files() = %v", files)
	}

	c, err := Build(doc, canvas.DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if got := c.Snapshot(); !slices.Equal(got, []string{" *"}) {
		t.Errorf("Snapshot = %q", got)
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
	if _, err := Load(filepath.Join(dir, "doc.txt")); !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("err = %v, want ErrUnknownFormat", err)
	}

	path := filepath.Join(dir, "doc.yaml")
	body := "width: 1\nheight: 1\nlayers:\n  - id: a\n    objects:\n      - {type: script, id: s, script: nope.lua}\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected error for missing script")
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	doc, err := Parse([]byte(sampleYAML), FormatYAML)
	if err != nil {
		t.Fatal(err)
	}
	for _, format := range []Format{FormatYAML, FormatJSON} {
		t.Run(string(format), func(t *testing.T) {
			data, err := Encode(doc, format)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			back, err := Parse(data, format)
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if len(back.Layers) != 2 || back.Layers[1].BlendMode != blend.Multiply ||
				len(back.Layers[0].Objects) != 2 || back.Layers[1].Objects[0].Source == "" {
				t.Errorf("round trip lost data: %+v", back)
			}
		})
	}
}
