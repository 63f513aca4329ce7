package core

import (
	"math"

	"github.com/rivo/uniseg"
)

// Cell is one stored character of a layer.
type Cell struct {
	X, Y int

	// Char is a single grapheme cluster. Blank cells are never stored.
	Char string

	// Color is optional; NoColor means the default color.
	Color Color

	// Metadata carries collaborator data through persistence untouched.
	Metadata map[string]any
}

// Key returns the packed position of the cell.
func (c Cell) Key() Key {
	return PackKey(c.X, c.Y)
}

// IsBlank reports whether the cell has no content.
func (c Cell) IsBlank() bool {
	return IsBlank(c.Char)
}

// CompositedCell is the result of merging every layer at one position.
type CompositedCell struct {
	Char string

	// Color is the composited color. It stays NoColor when no contributing
	// cell carried a color.
	Color Color

	// Alpha is the composited coverage in [0, 1].
	Alpha float64

	// Intensity is the unquantized glyph density the blend produced.
	// Char is the nearest ramp glyph for numeric modes.
	Intensity float64
}

// IsBlank reports whether the composited cell has no content.
func (c CompositedCell) IsBlank() bool {
	return IsBlank(c.Char)
}

// Equals returns true if two composited cells are identical.
func (c CompositedCell) Equals(other CompositedCell) bool {
	return c.Char == other.Char && c.Color.Equals(other.Color) &&
		math.Abs(c.Alpha-other.Alpha) < 1e-9
}

// IsBlank reports whether ch carries no visible content.
func IsBlank(ch string) bool {
	return ch == "" || ch == " "
}

// NormalizeChar reduces s to its first grapheme cluster.
// Blank input normalizes to "".
func NormalizeChar(s string) string {
	if s == "" {
		return ""
	}
	cluster, _, _, _ := uniseg.FirstGraphemeClusterInString(s, -1)
	if IsBlank(cluster) {
		return ""
	}
	return cluster
}

// CharWidth returns the display width of a grapheme cluster.
func CharWidth(ch string) int {
	if ch == "" {
		return 1
	}
	return uniseg.StringWidth(ch)
}
