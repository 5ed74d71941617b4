// Package summary computes aggregate totals over the entity registry:
// dataset-wide static totals, viewport-scoped dynamic totals, and table
// selection summaries. All recomputations are pure functions of current
// entity state; nothing is cached beyond the current render.
package summary

import (
	"github.com/Bubblbu/sica-mapping/internal/geo"
	"github.com/Bubblbu/sica-mapping/internal/registry"
)

// DatasetTotals are the static, display-only totals supplied once by
// configuration. They are never recomputed.
type DatasetTotals struct {
	Buildings    int `json:"buildings"`
	Members      int `json:"members"`
	Units        int `json:"units"`
	VTUBuildings int `json:"vtu_buildings"`
}

// Aggregate is a dynamic total over some scope of buildings.
type Aggregate struct {
	Buildings int `json:"buildings"`
	Units     int `json:"units"`
	Members   int `json:"members"`
	VTU       int `json:"vtu"`
}

// add folds one building into the aggregate.
func (a *Aggregate) add(b *registry.Building) {
	a.Buildings++
	a.Units += b.Units
	a.Members += b.MemberCount
	if b.IsVTU {
		a.VTU++
	}
}

// Viewport sums all non-filtered buildings whose marker lies inside the
// bounds. Recomputed on every map move, zoom, filter, or selection change.
func Viewport(reg *registry.Registry, bounds geo.Bounds) Aggregate {
	var agg Aggregate
	for _, b := range reg.Buildings {
		if b.Filtered() {
			continue
		}
		if !bounds.Contains(b.Marker.LatLng()) {
			continue
		}
		agg.add(b)
	}
	return agg
}

// Scope labels for table summaries.
const (
	ScopeSelected = "selected"
	ScopeVisible  = "visible"
)

// TableRow is the summary view of one table row.
type TableRow struct {
	Checked bool
	Hidden  bool
	Units   int
	Members int
	VTU     bool
}

// Table aggregates table rows: over checked rows labeled "selected" when any
// row is checked, otherwise over all currently-unhidden rows labeled
// "visible".
func Table(rows []TableRow) (Aggregate, string) {
	anyChecked := false
	for _, r := range rows {
		if r.Checked {
			anyChecked = true
			break
		}
	}

	var agg Aggregate
	for _, r := range rows {
		if anyChecked {
			if !r.Checked {
				continue
			}
		} else if r.Hidden {
			continue
		}
		agg.Buildings++
		agg.Units += r.Units
		agg.Members += r.Members
		if r.VTU {
			agg.VTU++
		}
	}

	if anyChecked {
		return agg, ScopeSelected
	}
	return agg, ScopeVisible
}
