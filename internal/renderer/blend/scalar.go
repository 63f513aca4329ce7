package blend

import "math"

// scalarFunc combines a lower value a with an upper value b, both in [0, 1].
type scalarFunc func(a, b float64) float64

var scalarFuncs = [modeCount]scalarFunc{
	Normal:     func(_, b float64) float64 { return b },
	Multiply:   func(a, b float64) float64 { return a * b },
	Screen:     func(a, b float64) float64 { return 1 - (1-a)*(1-b) },
	Overlay:    overlay,
	Darken:     math.Min,
	Lighten:    math.Max,
	Difference: func(a, b float64) float64 { return math.Abs(a - b) },
	Add:        func(a, b float64) float64 { return math.Min(1, a+b) },
}

func overlay(a, b float64) float64 {
	if a < 0.5 {
		return 2 * a * b
	}
	return 1 - 2*(1-a)*(1-b)
}

// Scalar applies the numeric blend function of m. Structural modes have no
// numeric formula and return b.
func Scalar(m Mode, a, b float64) float64 {
	if m >= modeCount || scalarFuncs[m] == nil {
		return b
	}
	return scalarFuncs[m](a, b)
}
