// Package style derives visual attributes for map entities: marker color and
// radius, block choropleth shading, and the hover/selection highlight overlay.
package style

import (
	"math"
	"sort"

	"github.com/Bubblbu/sica-mapping/internal/color"
)

// plasmaStops is the sequential palette used for colorized building markers,
// as interpolation stops over [0, 1].
var plasmaStops = []struct {
	pos float64
	hex string
}{
	{0.00, "#0d0887"},
	{0.15, "#5c01a6"},
	{0.30, "#9c179e"},
	{0.45, "#cc4778"},
	{0.60, "#ed7953"},
	{0.75, "#fb9f3a"},
	{0.90, "#fdca26"},
	{1.00, "#f0f921"},
}

// greens is the 6-step sequential palette for the block choropleth, lightest
// to darkest.
var greens = [6]string{
	"#f7fcf5",
	"#e5f5e0",
	"#c7e9c0",
	"#74c476",
	"#31a354",
	"#006d2c",
}

// NeutralGray is the flat color of non-colorized markers.
const NeutralGray = "#9e9e9e"

// PlasmaColor interpolates the plasma palette for a value against the scale
// maximum. Values at or below zero map to the darkest stop.
func PlasmaColor(x, vmax float64) string {
	s := 0.0
	if x > 0 && vmax > 0 {
		s = math.Min(x/vmax, 1.0)
	}
	for i := 0; i < len(plasmaStops)-1; i++ {
		lo, hi := plasmaStops[i], plasmaStops[i+1]
		if s <= hi.pos {
			t := 0.0
			if hi.pos > lo.pos {
				t = (s - lo.pos) / (hi.pos - lo.pos)
			}
			return interpHex(lo.hex, hi.hex, t)
		}
	}
	return plasmaStops[len(plasmaStops)-1].hex
}

// GreensColor picks a choropleth bucket for a ratio in [0, 1] using half-open
// breakpoints at 0.10, 0.25, 0.50, 0.75 and 1.00. Inputs outside [0, 1] are
// clamped.
func GreensColor(ratio float64) string {
	s := math.Max(0, math.Min(ratio, 1))
	switch {
	case s <= 0.10:
		return greens[0]
	case s <= 0.25:
		return greens[1]
	case s <= 0.50:
		return greens[2]
	case s <= 0.75:
		return greens[3]
	case s < 1.00:
		return greens[4]
	default:
		return greens[5]
	}
}

// markerRadius caps: units are clamped to [1, 600] before the log ramp.
const (
	radiusFloor   = 3.2
	radiusBase    = 2.5
	radiusRange   = 7.0
	radiusUnitCap = 600.0
)

// MarkerRadius derives a marker radius from a building's unit count with a
// log1p ramp, so large buildings do not dwarf the map.
func MarkerRadius(units float64) float64 {
	if units <= 0 || math.IsNaN(units) {
		return radiusFloor
	}
	capped := math.Min(math.Max(units, 1), radiusUnitCap)
	ratio := math.Log1p(capped) / math.Log1p(radiusUnitCap)
	return radiusBase + radiusRange*ratio
}

// VTUOpacity maps a 0..1 scaled member count to marker fill opacity.
func VTUOpacity(scaled float64) float64 {
	return 0.30 + 0.40*scaled
}

// ComputeVMax returns the color-scale maximum for a set of member counts.
// With ten or more positive values the max is capped at a high percentile
// (98th, or 95th under fifty samples) but never below 80% of the true max,
// so a single outlier does not wash out the scale. Always at least 1.
func ComputeVMax(counts []float64) float64 {
	pos := make([]float64, 0, len(counts))
	for _, c := range counts {
		if c > 0 && !math.IsNaN(c) && !math.IsInf(c, 0) {
			pos = append(pos, c)
		}
	}
	if len(pos) == 0 {
		return 1
	}
	sort.Float64s(pos)
	maxVal := pos[len(pos)-1]
	vmax := maxVal
	if len(pos) >= 10 {
		p := 98.0
		if len(pos) < 50 {
			p = 95.0
		}
		capped := percentile(pos, p)
		vmax = math.Min(maxVal, math.Max(capped, maxVal*0.8))
	}
	return math.Max(vmax, 1)
}

// percentile computes a linear-interpolated percentile over sorted data.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

// interpHex linearly interpolates two #rrggbb colors. Palette stops are
// compile-time constants, so parse failures reduce to black rather than
// erroring.
func interpHex(a, b string, t float64) string {
	ac, _ := color.ParseHexColor(a)
	bc, _ := color.ParseHexColor(b)
	return color.Lerp(ac, bc, t).Hex()
}
