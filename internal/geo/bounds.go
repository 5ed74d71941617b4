package geo

// Bounds is an axis-aligned bounding box in geographic coordinates.
// It mirrors the south-west/north-east corner representation used by
// the map client's viewport.
type Bounds struct {
	SouthWest LatLng `json:"south_west"`
	NorthEast LatLng `json:"north_east"`
}

// NewBounds builds a normalized Bounds from two arbitrary corners.
func NewBounds(a, b LatLng) Bounds {
	sw := LatLng{Lat: min(a.Lat, b.Lat), Lng: min(a.Lng, b.Lng)}
	ne := LatLng{Lat: max(a.Lat, b.Lat), Lng: max(a.Lng, b.Lng)}
	return Bounds{SouthWest: sw, NorthEast: ne}
}

// Contains reports whether the point lies inside the bounds, inclusive of edges.
func (b Bounds) Contains(p LatLng) bool {
	return p.Lat >= b.SouthWest.Lat && p.Lat <= b.NorthEast.Lat &&
		p.Lng >= b.SouthWest.Lng && p.Lng <= b.NorthEast.Lng
}

// Extend grows the bounds to include the point. Extending a zero Bounds
// yields a degenerate box around the point.
func (b Bounds) Extend(p LatLng) Bounds {
	if b.IsZero() {
		return Bounds{SouthWest: p, NorthEast: p}
	}
	return Bounds{
		SouthWest: LatLng{Lat: min(b.SouthWest.Lat, p.Lat), Lng: min(b.SouthWest.Lng, p.Lng)},
		NorthEast: LatLng{Lat: max(b.NorthEast.Lat, p.Lat), Lng: max(b.NorthEast.Lng, p.Lng)},
	}
}

// Center returns the midpoint of the bounds.
func (b Bounds) Center() LatLng {
	return LatLng{
		Lat: (b.SouthWest.Lat + b.NorthEast.Lat) / 2,
		Lng: (b.SouthWest.Lng + b.NorthEast.Lng) / 2,
	}
}

// IsZero reports whether the bounds is the zero value.
func (b Bounds) IsZero() bool {
	return b.SouthWest == (LatLng{}) && b.NorthEast == (LatLng{})
}
