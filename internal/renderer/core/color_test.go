package core

import "testing"

func TestParseColor(t *testing.T) {
	tests := []struct {
		in   string
		want Color
		ok   bool
	}{
		{"#ff0000", RGB(255, 0, 0), true},
		{"#FF8000", RGB(255, 128, 0), true},
		{"#0f0", RGB(0, 255, 0), true},
		{"#00000080", RGBA(0, 0, 0, 128.0/255), true},
		{"rgb(1, 2, 3)", RGB(1, 2, 3), true},
		{"rgba(10,20,30,0.5)", RGBA(10, 20, 30, 0.5), true},
		{"rgba(10,20,30,7)", RGBA(10, 20, 30, 1), true},
		{"blue", ColorBlue, true},
		{"  White ", ColorWhite, true},
		{"", NoColor, false},
		{"#12", NoColor, false},
		{"#zzzzzz", NoColor, false},
		{"rgb(300,0,0)", NoColor, false},
		{"rgb(1,2)", NoColor, false},
		{"rgba(1,2,3)", NoColor, false},
		{"hsl(1,2,3)", NoColor, false},
		{"not a color", NoColor, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseColor(tt.in)
			if ok != tt.ok {
				t.Fatalf("ParseColor(%q) ok = %v, want %v", tt.in, ok, tt.ok)
			}
			if !got.Equals(tt.want) {
				t.Errorf("ParseColor(%q) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}

func TestColorStringRoundTrip(t *testing.T) {
	colors := []Color{
		RGB(0, 0, 0),
		RGB(12, 200, 255),
		RGBA(1, 2, 3, 0.25),
	}
	for _, c := range colors {
		s := c.String()
		got, ok := ParseColor(s)
		if !ok || !got.Equals(c) {
			t.Errorf("round trip of %+v via %q = %+v (ok=%v)", c, s, got, ok)
		}
	}

	if NoColor.String() != "" {
		t.Errorf("NoColor.String() = %q, want empty", NoColor.String())
	}
}

func TestClamp01(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{-1, 0},
		{0, 0},
		{0.3, 0.3},
		{1, 1},
		{2.5, 1},
	}
	for _, tt := range tests {
		if got := Clamp01(tt.in); got != tt.want {
			t.Errorf("Clamp01(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestColorOr(t *testing.T) {
	if got := NoColor.Or(ColorRed); !got.Equals(ColorRed) {
		t.Errorf("NoColor.Or(red) = %+v", got)
	}
	if got := ColorBlue.Or(ColorRed); !got.Equals(ColorBlue) {
		t.Errorf("blue.Or(red) = %+v", got)
	}
}
