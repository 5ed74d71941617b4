package style

import (
	"math"

	"github.com/Bubblbu/sica-mapping/internal/layer"
	"github.com/Bubblbu/sica-mapping/internal/registry"
	"github.com/Bubblbu/sica-mapping/internal/selection"
)

// Zoom scale bounds and reference level.
const (
	MinZoomScale  = 0.35
	MaxZoomScale  = 2.4
	zoomReference = 15.0
	zoomBase      = 1.2
)

// HighlightStroke is the fixed accent stroke color of the hover/selection
// overlay.
const HighlightStroke = "#ffc107"

// Highlight overlay stroke weight and opacity.
const (
	highlightWeight      = 3.0
	highlightOpacity     = 1.0
	highlightFillOpacity = 0.9
)

// ZoomScale maps a zoom level to a radius multiplier, clamped to
// [MinZoomScale, MaxZoomScale].
func ZoomScale(zoom float64) float64 {
	s := math.Pow(zoomBase, zoom-zoomReference)
	if s < MinZoomScale {
		return MinZoomScale
	}
	if s > MaxZoomScale {
		return MaxZoomScale
	}
	return s
}

// Engine recomputes derived visual attributes whenever filter verdicts,
// zoom, or the display toggles change. It also implements
// selection.Highlighter so counter transitions drive the overlay.
type Engine struct {
	reg        *registry.Registry
	zoomScale  float64
	colorize   bool
	choropleth bool
}

// New creates a style engine over the registry at the neutral zoom scale.
func New(reg *registry.Registry) *Engine {
	return &Engine{reg: reg, zoomScale: 1}
}

// Colorize reports the current color-mode toggle.
func (e *Engine) Colorize() bool { return e.colorize }

// Choropleth reports the current choropleth toggle.
func (e *Engine) Choropleth() bool { return e.choropleth }

// ApplyZoom rescales every non-filtered building's radius baseline for the
// given zoom level.
func (e *Engine) ApplyZoom(zoom float64) {
	e.zoomScale = ZoomScale(zoom)
	for _, b := range e.reg.Buildings {
		if b.Filtered() {
			continue
		}
		if rs, ok := b.Marker.(layer.RadiusSetter); ok {
			rs.SetRadius(b.BaseRadius * e.zoomScale)
		}
	}
}

// SetColorize flips the colorize toggle and recomputes every building's
// color.
func (e *Engine) SetColorize(on bool) {
	e.colorize = on
	for _, b := range e.reg.Buildings {
		e.RefreshBuilding(b)
	}
}

// RefreshBuilding recomputes and caches a building's baseline style from the
// color-mode rule, then applies it, re-applying the highlight overlay on top
// when the building is currently highlighted.
func (e *Engine) RefreshBuilding(b *registry.Building) {
	fill := b.NeutralColor
	if e.colorize && b.IsVTU && b.PassesMembership {
		fill = b.ColorizedColor
	}
	b.BaselineStyle = layer.Style{
		Color:       fill,
		FillColor:   fill,
		Opacity:     b.BaseOpacity,
		FillOpacity: b.BaseOpacity,
		Weight:      0,
	}
	if b.Filtered() {
		return
	}
	b.Marker.SetStyle(layer.Patch(b.BaselineStyle))
	if b.RefCount() > 0 {
		e.overlay(b.Marker)
	}
}

// SetChoropleth flips the choropleth toggle and restyles every block.
// Enabling shades each block by its units ratio against the registry-wide
// maximum; disabling reverts non-filtered blocks to the flat neutral style.
// Baselines are updated for filtered blocks too, so leaving the filtered
// state restores the correct style.
func (e *Engine) SetChoropleth(on bool) {
	e.choropleth = on
	for _, blk := range e.reg.Blocks {
		e.RefreshBlock(blk)
	}
}

// RefreshBlock recomputes and caches a block's baseline style under the
// current choropleth toggle, then applies it unless the block is filtered.
func (e *Engine) RefreshBlock(blk *registry.Block) {
	base := registry.NeutralBlockStyle
	if e.choropleth && e.reg.MaxBlockUnits > 0 && blk.TotalUnits > 0 {
		ratio := blk.TotalUnits / e.reg.MaxBlockUnits
		base.FillColor = GreensColor(ratio)
	}
	blk.BaseStyle = base
	if blk.Filtered() {
		return
	}
	blk.Polygon.SetStyle(layer.Patch(base))
	if blk.RefCount() > 0 {
		e.overlay(blk.Polygon)
	}
}

// styledLayer is the common surface of markers and polygons.
type styledLayer interface {
	SetStyle(layer.PartialStyle)
}

// overlay applies the highlight patch: heavier stroke, full opacity, accent
// stroke color, current fill preserved, raised above siblings.
func (e *Engine) overlay(l styledLayer) {
	stroke := HighlightStroke
	weight := highlightWeight
	opacity := highlightOpacity
	fillOpacity := highlightFillOpacity
	l.SetStyle(layer.PartialStyle{
		Color:       &stroke,
		Weight:      &weight,
		Opacity:     &opacity,
		FillOpacity: &fillOpacity,
	})
	if fr, ok := l.(layer.FrontRaiser); ok {
		fr.BringToFront()
	}
}

// hiddenStyle is the style of an entity hidden by the current filter.
var hiddenStyle = layer.Style{Opacity: 0, FillOpacity: 0, Weight: 0}

// Highlight implements selection.Highlighter. The baseline is cached by the
// Refresh methods before any overlay is applied, never derived from the
// overlaid state.
func (e *Engine) Highlight(ent selection.Entity) {
	switch v := ent.(type) {
	case *registry.Building:
		e.overlay(v.Marker)
	case *registry.Block:
		e.overlay(v.Polygon)
	}
}

// Unhighlight restores the cached baseline exactly.
func (e *Engine) Unhighlight(ent selection.Entity) {
	switch v := ent.(type) {
	case *registry.Building:
		v.Marker.SetStyle(layer.Patch(v.BaselineStyle))
	case *registry.Block:
		v.Polygon.SetStyle(layer.Patch(v.BaseStyle))
	}
}

// ApplyFiltered hides the entity.
func (e *Engine) ApplyFiltered(ent selection.Entity) {
	switch v := ent.(type) {
	case *registry.Building:
		v.Marker.SetStyle(layer.Patch(hiddenStyle))
	case *registry.Block:
		v.Polygon.SetStyle(layer.Patch(hiddenStyle))
	}
}

// RestoreBaseline returns a previously filtered entity to its baseline,
// recomputing it first so stale pre-filter styles never resurface.
func (e *Engine) RestoreBaseline(ent selection.Entity) {
	switch v := ent.(type) {
	case *registry.Building:
		e.RefreshBuilding(v)
		if rs, ok := v.Marker.(layer.RadiusSetter); ok {
			rs.SetRadius(v.BaseRadius * e.zoomScale)
		}
	case *registry.Block:
		e.RefreshBlock(v)
	}
}
