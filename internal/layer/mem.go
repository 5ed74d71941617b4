package layer

import "github.com/Bubblbu/sica-mapping/internal/geo"

// MemMarker is the in-memory Marker implementation used by the server.
// It records the current style, radius, and draw-order rank so the stream
// layer can serialize the authoritative state to clients.
type MemMarker struct {
	pos   geo.LatLng
	style Style
	// radius is tracked separately from Style because the rendering
	// boundary treats setRadius as an optional capability.
	radius    float64
	frontRank int
}

// NewMemMarker creates a marker at the given position.
func NewMemMarker(pos geo.LatLng) *MemMarker {
	return &MemMarker{pos: pos}
}

// SetStyle merges the patch into the marker's current style.
func (m *MemMarker) SetStyle(p PartialStyle) {
	m.style = p.Apply(m.style)
}

// LatLng returns the marker position.
func (m *MemMarker) LatLng() geo.LatLng {
	return m.pos
}

// SetRadius implements the optional RadiusSetter capability.
func (m *MemMarker) SetRadius(r float64) {
	m.radius = r
}

// BringToFront implements the optional FrontRaiser capability.
func (m *MemMarker) BringToFront() {
	m.frontRank++
}

// Style returns the current resolved style.
func (m *MemMarker) Style() Style {
	return m.style
}

// Radius returns the current radius.
func (m *MemMarker) Radius() float64 {
	return m.radius
}

// FrontRank returns how many times the marker has been raised. Clients use
// relative rank to reproduce draw order.
func (m *MemMarker) FrontRank() int {
	return m.frontRank
}

// MemPolygon is the in-memory Polygon implementation.
type MemPolygon struct {
	props     PropertyBag
	style     Style
	frontRank int
}

// NewMemPolygon creates a polygon with the given feature properties.
func NewMemPolygon(props PropertyBag) *MemPolygon {
	return &MemPolygon{props: props}
}

// SetStyle merges the patch into the polygon's current style.
func (p *MemPolygon) SetStyle(patch PartialStyle) {
	p.style = patch.Apply(p.style)
}

// Properties returns the feature property bag.
func (p *MemPolygon) Properties() PropertyBag {
	return p.props
}

// BringToFront implements the optional FrontRaiser capability.
func (p *MemPolygon) BringToFront() {
	p.frontRank++
}

// Style returns the current resolved style.
func (p *MemPolygon) Style() Style {
	return p.style
}

// FrontRank returns how many times the polygon has been raised.
func (p *MemPolygon) FrontRank() int {
	return p.frontRank
}

// MemMap is the in-memory MapView implementation. The server updates it from
// client viewport events; tests drive it directly.
type MemMap struct {
	zoom   float64
	bounds geo.Bounds
	ready  bool
}

// NewMemMap creates a map view at the given zoom and bounds, not yet ready.
func NewMemMap(zoom float64, bounds geo.Bounds) *MemMap {
	return &MemMap{zoom: zoom, bounds: bounds}
}

// Zoom returns the current zoom level.
func (m *MemMap) Zoom() float64 { return m.zoom }

// Bounds returns the current viewport bounds.
func (m *MemMap) Bounds() geo.Bounds { return m.bounds }

// Ready reports whether the map has been marked live.
func (m *MemMap) Ready() bool { return m.ready }

// SetReady marks the map live. Called once layers are attached.
func (m *MemMap) SetReady(ready bool) { m.ready = ready }

// SetViewport updates zoom and bounds from a client viewport event.
func (m *MemMap) SetViewport(bounds geo.Bounds, zoom float64) {
	m.bounds = bounds
	m.zoom = zoom
}
