package blend

import (
	"math"

	"github.com/dshills/asciicanvas/internal/renderer/core"
)

// Blank is the empty composited result.
var Blank = core.CompositedCell{}

// Seed builds the running result from the first contributing cell.
// opacity is the layer opacity; the cell color alpha scales it further.
func Seed(cell core.Cell, opacity float64) core.CompositedCell {
	if cell.IsBlank() {
		return Blank
	}
	alpha := core.Clamp01(cell.Color.Or(core.DefaultColor).A * core.Clamp01(opacity))
	out := core.CompositedCell{
		Char:      cell.Char,
		Alpha:     alpha,
		Intensity: Intensity(cell.Char),
	}
	if cell.Color.Valid {
		out.Color = cell.Color.WithAlpha(alpha)
	}
	return out
}

// Combine merges an upper cell into the running result beneath it.
func Combine(bottom, top core.CompositedCell, mode Mode) core.CompositedCell {
	if top.IsBlank() {
		return bottom
	}

	switch mode {
	case Behind:
		if !bottom.IsBlank() {
			return bottom
		}
		return top
	case Erase:
		return Blank
	case XOR:
		if !bottom.IsBlank() {
			return Blank
		}
		return top
	}

	if bottom.IsBlank() && mode == Normal {
		return top
	}

	out := Over(top, bottom)
	if mode == Normal {
		out.Char = top.Char
		out.Intensity = top.Intensity
		return out
	}

	v := Scalar(mode, bottom.Intensity, top.Intensity)
	ch := CharFor(v)
	if ch == "" {
		return Blank
	}
	out.Char = ch
	out.Intensity = v
	return out
}

// Over composites the color and alpha of top over bottom using
// premultiplied alpha. Character fields of the result are left empty.
func Over(top, bottom core.CompositedCell) core.CompositedCell {
	ta := core.Clamp01(top.Alpha)
	ba := core.Clamp01(bottom.Alpha)
	outAlpha := ta + ba*(1-ta)

	if outAlpha <= 0 {
		return core.CompositedCell{Color: core.RGBA(0, 0, 0, 0)}
	}

	out := core.CompositedCell{Alpha: outAlpha}
	if !top.Color.Valid && !bottom.Color.Valid {
		return out
	}

	tc := top.Color.Or(core.DefaultColor)
	bc := bottom.Color.Or(core.DefaultColor)
	channel := func(t, b uint8) uint8 {
		v := (float64(t)*ta + float64(b)*ba*(1-ta)) / outAlpha
		return uint8(math.Round(math.Max(0, math.Min(255, v))))
	}
	out.Color = core.RGBA(channel(tc.R, bc.R), channel(tc.G, bc.G), channel(tc.B, bc.B), outAlpha)
	return out
}
