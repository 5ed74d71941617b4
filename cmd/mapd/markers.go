package main

import (
	"math"

	"github.com/Bubblbu/sica-mapping/internal/geo"
	"github.com/Bubblbu/sica-mapping/internal/layer"
	"github.com/Bubblbu/sica-mapping/internal/registry"
	"github.com/Bubblbu/sica-mapping/internal/style"
)

// nonVTUOpacity is the flat fill opacity of markers without member data.
const nonVTUOpacity = 0.5

// materializeMarkers builds one in-memory marker per metadata record and
// fills in the style attributes the data pipeline may omit. VTU buildings get
// a plasma fill and member-scaled opacity against the percentile-capped
// scale maximum; everything else is neutral gray. An omitted radius comes
// from the log-ramp over the unit count. Positions come from the lat/lng
// fields or from a "lat, lng" coords string; records with no usable position
// get no marker, so the registry skips them. Returns the markers keyed by
// marker_var and the bounds enclosing them.
func materializeMarkers(metas []registry.BuildingMeta) (map[string]*layer.MemMarker, geo.Bounds) {
	counts := make([]float64, 0, len(metas))
	for _, meta := range metas {
		if meta.IsVTU {
			counts = append(counts, float64(meta.MemberCount))
		}
	}
	vmax := style.ComputeVMax(counts)

	markers := make(map[string]*layer.MemMarker, len(metas))
	var bounds geo.Bounds
	for i := range metas {
		meta := &metas[i]

		pos := geo.LatLng{Lat: meta.Lat, Lng: meta.Lng}
		if pos == (geo.LatLng{}) && meta.Coords != "" {
			parsed, err := geo.ParseLatLng(meta.Coords)
			if err != nil {
				continue
			}
			pos = parsed
		}
		if pos == (geo.LatLng{}) || !pos.Valid() {
			continue
		}

		if meta.BaseRadius == 0 {
			meta.BaseRadius = style.MarkerRadius(float64(meta.Units))
		}
		if meta.NeutralColor == "" {
			meta.NeutralColor = style.NeutralGray
		}
		if meta.BaseColor == "" {
			if meta.IsVTU {
				meta.BaseColor = style.PlasmaColor(float64(meta.MemberCount), vmax)
			} else {
				meta.BaseColor = style.NeutralGray
			}
		}
		if meta.BaseOpacity == 0 {
			if meta.IsVTU {
				meta.BaseOpacity = style.VTUOpacity(math.Min(float64(meta.MemberCount)/vmax, 1))
			} else {
				meta.BaseOpacity = nonVTUOpacity
			}
		}

		markers[meta.MarkerVar] = layer.NewMemMarker(pos)
		bounds = bounds.Extend(pos)
	}
	return markers, bounds
}
