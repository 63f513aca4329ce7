// Package blend implements the per-cell blend math used by the compositor:
// a glyph-density ramp that maps characters to scalar intensities, a table
// of scalar blend functions, premultiplied alpha compositing for colors,
// and the structural modes that bypass the numeric formulas.
package blend

import (
	"encoding/json"
	"strings"

	"gopkg.in/yaml.v3"
)

// Mode identifies how an upper layer combines with the result beneath it.
type Mode uint8

const (
	// Normal places the upper glyph over the lower one.
	Normal Mode = iota
	Multiply
	Screen
	Overlay
	Darken
	Lighten
	Difference
	Add

	// Behind keeps the lower result wherever it is non-blank.
	Behind

	// Erase blanks the lower result wherever the upper layer has content.
	Erase

	// XOR blanks positions where both sides have content.
	XOR

	modeCount
)

var modeNames = [modeCount]string{
	Normal:     "normal",
	Multiply:   "multiply",
	Screen:     "screen",
	Overlay:    "overlay",
	Darken:     "darken",
	Lighten:    "lighten",
	Difference: "difference",
	Add:        "add",
	Behind:     "behind",
	Erase:      "erase",
	XOR:        "xor",
}

// String returns the persisted name of the mode.
func (m Mode) String() string {
	if m >= modeCount {
		return "unknown"
	}
	return modeNames[m]
}

// IsStructural reports whether the mode bypasses the numeric formulas.
func (m Mode) IsStructural() bool {
	return m == Behind || m == Erase || m == XOR
}

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m < modeCount
}

// ParseMode parses a mode name. The second result is false for unknown
// names, in which case Normal is returned.
func ParseMode(s string) (Mode, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range modeNames {
		if name == s {
			return Mode(i), true
		}
	}
	return Normal, false
}

// Modes returns every known mode in declaration order.
func Modes() []Mode {
	modes := make([]Mode, 0, modeCount)
	for m := Mode(0); m < modeCount; m++ {
		modes = append(modes, m)
	}
	return modes
}

// MarshalJSON encodes the mode by name.
func (m Mode) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON decodes a mode name. Unknown names decode as Normal.
func (m *Mode) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*m, _ = ParseMode(s)
	return nil
}

// MarshalYAML encodes the mode by name.
func (m Mode) MarshalYAML() (any, error) {
	return m.String(), nil
}

// UnmarshalYAML decodes a mode name. Unknown names decode as Normal.
func (m *Mode) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	*m, _ = ParseMode(s)
	return nil
}
