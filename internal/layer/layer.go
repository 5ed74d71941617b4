// Package layer defines the capability boundary between the map engine and the
// rendering library that owns geographic layers. The engine only ever talks to
// these interfaces; the in-memory implementations in this package are the
// server-side source of truth for layer style state and double as test fixtures.
package layer

import "github.com/Bubblbu/sica-mapping/internal/geo"

// Style is a fully resolved visual style for a marker or polygon.
type Style struct {
	Color       string  `json:"color"`
	FillColor   string  `json:"fill_color"`
	Opacity     float64 `json:"opacity"`
	FillOpacity float64 `json:"fill_opacity"`
	Weight      float64 `json:"weight"`
}

// PartialStyle is a style patch. Nil fields are left untouched, matching the
// setStyle contract of the rendering library.
type PartialStyle struct {
	Color       *string
	FillColor   *string
	Opacity     *float64
	FillOpacity *float64
	Weight      *float64
}

// Apply merges the patch into a style and returns the result.
func (p PartialStyle) Apply(s Style) Style {
	if p.Color != nil {
		s.Color = *p.Color
	}
	if p.FillColor != nil {
		s.FillColor = *p.FillColor
	}
	if p.Opacity != nil {
		s.Opacity = *p.Opacity
	}
	if p.FillOpacity != nil {
		s.FillOpacity = *p.FillOpacity
	}
	if p.Weight != nil {
		s.Weight = *p.Weight
	}
	return s
}

// Patch builds a PartialStyle that sets every field of s. Convenience for
// callers restoring a cached baseline exactly.
func Patch(s Style) PartialStyle {
	return PartialStyle{
		Color:       &s.Color,
		FillColor:   &s.FillColor,
		Opacity:     &s.Opacity,
		FillOpacity: &s.FillOpacity,
		Weight:      &s.Weight,
	}
}

// Marker is a point layer handle. Every marker supports styling and position;
// radius and draw-order control are optional capabilities.
type Marker interface {
	SetStyle(PartialStyle)
	LatLng() geo.LatLng
}

// RadiusSetter is the optional radius capability of a marker. Absence is
// detected with a type assertion, never a runtime method probe.
type RadiusSetter interface {
	SetRadius(float64)
}

// FrontRaiser is the optional draw-order capability of a layer handle.
type FrontRaiser interface {
	BringToFront()
}

// PropertyBag is the feature property map carried by polygon layers.
type PropertyBag map[string]any

// String returns the named property as a string, or "" when absent.
func (b PropertyBag) String(key string) string {
	if v, ok := b[key].(string); ok {
		return v
	}
	return ""
}

// Float returns the named property as a float64. JSON numbers decode as
// float64; integer-typed values are widened. Returns 0, false when absent or
// non-numeric.
func (b PropertyBag) Float(key string) (float64, bool) {
	switch v := b[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

// Polygon is an area layer handle carrying a feature property bag.
type Polygon interface {
	SetStyle(PartialStyle)
	Properties() PropertyBag
}

// MapView is the subset of the map instance the engine depends on.
type MapView interface {
	Zoom() float64
	Bounds() geo.Bounds
	// Ready reports whether the layers are attached to a live map. The
	// engine retries initialization until this holds or its retry budget
	// is exhausted.
	Ready() bool
}
