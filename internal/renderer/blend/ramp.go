package blend

import "math"

// Ramp is the glyph-density ramp, ordered from empty to densest.
const Ramp = " .:-=+*#%@"

var (
	rampGlyphs = []string{" ", ".", ":", "-", "=", "+", "*", "#", "%", "@"}
	rampIndex  = func() map[string]int {
		m := make(map[string]int, len(rampGlyphs))
		for i, g := range rampGlyphs {
			m[g] = i
		}
		return m
	}()
)

// Intensity maps a glyph to its density in [0, 1]. Blank glyphs are 0;
// glyphs outside the ramp count as fully dense.
func Intensity(ch string) float64 {
	if ch == "" {
		return 0
	}
	if i, ok := rampIndex[ch]; ok {
		return float64(i) / float64(len(rampGlyphs)-1)
	}
	return 1
}

// CharFor maps a density back to the nearest ramp glyph.
// The result is "" for density 0.
func CharFor(v float64) string {
	if math.IsNaN(v) || v <= 0 {
		return ""
	}
	if v > 1 {
		v = 1
	}
	i := int(math.Round(v * float64(len(rampGlyphs)-1)))
	if i == 0 {
		return ""
	}
	return rampGlyphs[i]
}
