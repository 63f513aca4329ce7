package core

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// Color is an optional RGBA color. The zero value is NoColor.
type Color struct {
	R, G, B uint8

	// A is the alpha in [0, 1].
	A float64

	// Valid is false for the absent color.
	Valid bool
}

// NoColor is the absent color. Compositing treats it as opaque default.
var NoColor = Color{}

// DefaultColor is the color used in place of an absent color when
// compositing.
var DefaultColor = Color{R: 255, G: 255, B: 255, A: 1, Valid: true}

// Common colors.
var (
	ColorBlack   = RGB(0, 0, 0)
	ColorWhite   = RGB(255, 255, 255)
	ColorRed     = RGB(255, 0, 0)
	ColorGreen   = RGB(0, 255, 0)
	ColorBlue    = RGB(0, 0, 255)
	ColorYellow  = RGB(255, 255, 0)
	ColorCyan    = RGB(0, 255, 255)
	ColorMagenta = RGB(255, 0, 255)
	ColorGray    = RGB(128, 128, 128)
)

var namedColors = map[string]Color{
	"black":   ColorBlack,
	"white":   ColorWhite,
	"red":     ColorRed,
	"green":   ColorGreen,
	"blue":    ColorBlue,
	"yellow":  ColorYellow,
	"cyan":    ColorCyan,
	"magenta": ColorMagenta,
	"gray":    ColorGray,
	"grey":    ColorGray,
	"orange":  RGB(255, 165, 0),
	"purple":  RGB(128, 0, 128),
}

// RGB creates an opaque color.
func RGB(r, g, b uint8) Color {
	return Color{R: r, G: g, B: b, A: 1, Valid: true}
}

// RGBA creates a color with the given alpha, clamped to [0, 1].
func RGBA(r, g, b uint8, a float64) Color {
	return Color{R: r, G: g, B: b, A: Clamp01(a), Valid: true}
}

// Clamp01 clamps v to [0, 1]. NaN maps to 0.
func Clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// ParseColor parses "#rgb", "#rrggbb", "#rrggbbaa", "rgb(r,g,b)",
// "rgba(r,g,b,a)" and a small set of named colors.
// Malformed input yields (NoColor, false); it never panics.
func ParseColor(s string) (Color, bool) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return NoColor, false
	}

	if c, ok := namedColors[s]; ok {
		return c, true
	}

	if strings.HasPrefix(s, "#") {
		return parseHex(s)
	}

	if strings.HasPrefix(s, "rgba(") || strings.HasPrefix(s, "rgb(") {
		return parseFunctional(s)
	}

	return NoColor, false
}

func parseHex(s string) (Color, bool) {
	alpha := 1.0
	if len(s) == 9 {
		a, err := strconv.ParseUint(s[7:9], 16, 8)
		if err != nil {
			return NoColor, false
		}
		alpha = float64(a) / 255
		s = s[:7]
	}
	if len(s) != 4 && len(s) != 7 {
		return NoColor, false
	}

	c, err := colorful.Hex(s)
	if err != nil {
		return NoColor, false
	}
	r, g, b := c.RGB255()
	return RGBA(r, g, b, alpha), true
}

func parseFunctional(s string) (Color, bool) {
	open := strings.IndexByte(s, '(')
	if open < 0 || !strings.HasSuffix(s, ")") {
		return NoColor, false
	}
	parts := strings.Split(s[open+1:len(s)-1], ",")
	hasAlpha := strings.HasPrefix(s, "rgba(")
	if (hasAlpha && len(parts) != 4) || (!hasAlpha && len(parts) != 3) {
		return NoColor, false
	}

	var channels [3]uint8
	for i := 0; i < 3; i++ {
		v, err := strconv.Atoi(strings.TrimSpace(parts[i]))
		if err != nil || v < 0 || v > 255 {
			return NoColor, false
		}
		channels[i] = uint8(v)
	}

	alpha := 1.0
	if hasAlpha {
		a, err := strconv.ParseFloat(strings.TrimSpace(parts[3]), 64)
		if err != nil {
			return NoColor, false
		}
		alpha = a
	}
	return RGBA(channels[0], channels[1], channels[2], alpha), true
}

// MustParseColor parses a color and returns NoColor on failure.
func MustParseColor(s string) Color {
	c, _ := ParseColor(s)
	return c
}

// Or returns c if it is valid and fallback otherwise.
func (c Color) Or(fallback Color) Color {
	if c.Valid {
		return c
	}
	return fallback
}

// WithAlpha returns the color with a new alpha.
func (c Color) WithAlpha(a float64) Color {
	c.A = Clamp01(a)
	return c
}

// Equals returns true if two colors are identical.
// Absent colors are equal to each other regardless of channel values.
func (c Color) Equals(other Color) bool {
	if c.Valid != other.Valid {
		return false
	}
	if !c.Valid {
		return true
	}
	return c.R == other.R && c.G == other.G && c.B == other.B &&
		math.Abs(c.A-other.A) < 1e-9
}

// String returns the persisted form: "#RRGGBB" for opaque colors,
// "rgba(r,g,b,a)" otherwise, and "" for the absent color.
func (c Color) String() string {
	if !c.Valid {
		return ""
	}
	if c.A >= 1 {
		return fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B)
	}
	return fmt.Sprintf("rgba(%d,%d,%d,%s)", c.R, c.G, c.B,
		strconv.FormatFloat(c.A, 'f', -1, 64))
}
