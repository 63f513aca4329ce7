package canvas

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dshills/asciicanvas/internal/renderer/core"
)

func cellMap(cells []core.Cell) map[[2]int]string {
	m := make(map[[2]int]string, len(cells))
	for _, c := range cells {
		m[[2]int{c.X, c.Y}] = c.Char
	}
	return m
}

func TestTextRasterize(t *testing.T) {
	tests := []struct {
		name   string
		text   Text
		want   map[[2]int]string
		bounds core.Bounds
	}{
		{
			name:   "two lines",
			text:   Text{ObjID: "t", X: 1, Y: 2, Content: "ab\nc"},
			want:   map[[2]int]string{{1, 2}: "a", {2, 2}: "b", {1, 3}: "c"},
			bounds: core.Bounds{X: 1, Y: 2, W: 2, H: 2},
		},
		{
			name:   "spaces are skipped",
			text:   Text{ObjID: "t", Content: "a b"},
			want:   map[[2]int]string{{0, 0}: "a", {2, 0}: "b"},
			bounds: core.Bounds{W: 3, H: 1},
		},
		{
			name:   "wide grapheme advances two columns",
			text:   Text{ObjID: "t", Content: "世x"},
			want:   map[[2]int]string{{0, 0}: "世", {2, 0}: "x"},
			bounds: core.Bounds{W: 3, H: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cells, err := tt.text.Rasterize()
			if err != nil {
				t.Fatalf("Rasterize: %v", err)
			}
			got := cellMap(cells)
			if len(got) != len(tt.want) {
				t.Fatalf("cells = %v, want %v", got, tt.want)
			}
			for pos, ch := range tt.want {
				if got[pos] != ch {
					t.Errorf("cell %v = %q, want %q", pos, got[pos], ch)
				}
			}
			if b := tt.text.Bounds(); b != tt.bounds {
				t.Errorf("Bounds() = %+v, want %+v", b, tt.bounds)
			}
		})
	}
}

func TestBoxRasterize(t *testing.T) {
	box := &Box{ObjID: "b", X: 1, Y: 1, Width: 4, Height: 3, Fill: "."}
	cells, err := box.Rasterize()
	if err != nil {
		t.Fatal(err)
	}

	grid := make([]string, 5)
	for y := range grid {
		row := []byte("      ")
		for _, c := range cells {
			if c.Y == y {
				row[c.X] = c.Char[0]
			}
		}
		grid[y] = string(row)
	}
	want := []string{
		"      ",
		" +--+ ",
		" |..| ",
		" +--+ ",
		"      ",
	}
	for y := range want {
		if grid[y] != want[y] {
			t.Errorf("row %d = %q, want %q", y, grid[y], want[y])
		}
	}
}

func TestBoxDegenerate(t *testing.T) {
	tests := []struct {
		name  string
		box   Box
		count int
	}{
		{"empty", Box{Width: 0, Height: 3}, 0},
		{"single cell", Box{Width: 1, Height: 1}, 1},
		{"line", Box{Width: 5, Height: 1}, 5},
		{"hollow", Box{Width: 3, Height: 3}, 8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cells, _ := tt.box.Rasterize()
			if len(cells) != tt.count {
				t.Errorf("cells = %d, want %d", len(cells), tt.count)
			}
		})
	}
}

func TestFingerprintTracksState(t *testing.T) {
	box := &Box{ObjID: "b", Width: 3, Height: 3}
	before := box.Fingerprint()
	box.MoveBy(1, 0)
	if box.Fingerprint() == before {
		t.Error("fingerprint unchanged after move")
	}
	box.MoveBy(-1, 0)
	if box.Fingerprint() != before {
		t.Error("fingerprint differs for equal state")
	}

	text := &Text{ObjID: "t", Content: "a"}
	fp := text.Fingerprint()
	text.Color = core.ColorRed
	if text.Fingerprint() == fp {
		t.Error("fingerprint unchanged after color change")
	}
}

func TestScriptRasterize(t *testing.T) {
	s := &Script{
		ObjID:  "s",
		X:      2,
		Y:      1,
		Width:  3,
		Height: 1,
		Source: `
function draw()
	for i = 0, width - 1 do
		cell(i, 0, "*", "#ff0000")
	end
	cell(10, 10, "x")
	cell(0, 0, " ")
end`,
	}

	cells, err := s.Rasterize()
	if err != nil {
		t.Fatalf("Rasterize: %v", err)
	}
	if len(cells) != 3 {
		t.Fatalf("cells = %d, want 3: %+v", len(cells), cells)
	}
	for i, c := range cells {
		if c.X != 2+i || c.Y != 1 || c.Char != "*" {
			t.Errorf("cell %d = %+v", i, c)
		}
		if !c.Color.Equals(core.ColorRed) {
			t.Errorf("cell %d color = %v, want red", i, c.Color)
		}
	}
}

func TestScriptErrors(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   string
		target error
	}{
		{"syntax", "function draw(", "", nil},
		{"no draw", "x = 1", "", ErrScriptNoDraw},
		{"runtime", `function draw() error("boom") end`, "boom", nil},
		{"no file access", `function draw() dofile("x.lua") end`, "", nil},
		{"no io", `function draw() io.write("x") end`, "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &Script{ObjID: "s", Width: 1, Height: 1, Source: tt.source}
			cells, err := s.Rasterize()
			if err == nil {
				t.Fatal("expected error")
			}
			if cells != nil {
				t.Errorf("cells = %v, want nil", cells)
			}
			if tt.target != nil && !errors.Is(err, tt.target) {
				t.Errorf("err = %v, want %v", err, tt.target)
			}
			if tt.want != "" && !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want it to contain %q", err, tt.want)
			}
		})
	}
}

func TestScriptTimeout(t *testing.T) {
	s := &Script{
		ObjID:   "loop",
		Width:   1,
		Height:  1,
		Source:  `function draw() while true do end end`,
		Timeout: 50 * time.Millisecond,
	}

	start := time.Now()
	if _, err := s.Rasterize(); err == nil {
		t.Fatal("expected timeout error")
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("script ran for %s", elapsed)
	}
}
