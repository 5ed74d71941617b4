// Package visibility turns per-building filter verdicts into building, block,
// and owner visibility, enforcing the invariant that an aggregate entity is
// visible iff at least one contained building is visible.
package visibility

import (
	"github.com/Bubblbu/sica-mapping/internal/registry"
	"github.com/Bubblbu/sica-mapping/internal/selection"
)

// EntityRef identifies a selectable row.
type EntityRef struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
}

// Result is the outcome of a propagation pass.
type Result struct {
	BuildingVisible map[string]bool `json:"building_visible"`
	BlockVisible    map[string]bool `json:"block_visible"`
	OwnerVisible    map[string]bool `json:"owner_visible"`

	// Deselected lists checked rows that were forcibly cleared because
	// they are no longer visible. Filtering always wins over selection;
	// the edge unchecks the corresponding boxes.
	Deselected []EntityRef `json:"deselected,omitempty"`
}

// Propagator applies verdicts to the registry through the selection counter,
// which owns the filtered-state transition.
type Propagator struct {
	reg *registry.Registry
	sel *selection.Counter
}

// New creates a propagator.
func New(reg *registry.Registry, sel *selection.Counter) *Propagator {
	return &Propagator{reg: reg, sel: sel}
}

// Propagate computes visibility bottom-up from the verdicts and applies the
// filtered-state transitions. checked is the current set of checked rows;
// rows whose entity fell out of the visible set have their selection
// contribution removed and are reported in Result.Deselected. The caller
// must drop those refs from its checked set.
func (p *Propagator) Propagate(verdicts map[string]bool, checked map[EntityRef]bool) Result {
	res := Result{
		BuildingVisible: make(map[string]bool, len(p.reg.Buildings)),
		BlockVisible:    make(map[string]bool, len(p.reg.Blocks)),
		OwnerVisible:    make(map[string]bool, len(p.reg.Owners)),
	}

	for id := range p.reg.Buildings {
		res.BuildingVisible[id] = verdicts[id]
	}

	// A block with zero buildings is never visible.
	for id := range p.reg.Blocks {
		visible := false
		for _, bid := range p.reg.BlockBuildings[id] {
			if verdicts[bid] {
				visible = true
				break
			}
		}
		res.BlockVisible[id] = visible
	}

	for key, owner := range p.reg.Owners {
		visible := false
		for _, b := range owner.Buildings {
			if verdicts[b.ID] {
				visible = true
				break
			}
		}
		res.OwnerVisible[key] = visible
	}

	// Clear the selection contribution of checked rows that disappeared,
	// before the filtered transition zeroes counts underneath them. The
	// cascade must run while counts still reflect the selection.
	for ref, on := range checked {
		if !on {
			continue
		}
		if p.visibleRef(ref, res) {
			continue
		}
		p.sel.AdjustKind(ref.Kind, ref.ID, -1)
		res.Deselected = append(res.Deselected, ref)
	}

	// Apply filtered-state transitions through the counter, which owns
	// the filtered-forces-zero rule.
	for id, b := range p.reg.Buildings {
		p.sel.SetFiltered(b, !res.BuildingVisible[id])
	}
	for id, blk := range p.reg.Blocks {
		p.sel.SetFiltered(blk, !res.BlockVisible[id])
	}
	for key, owner := range p.reg.Owners {
		owner.MarkFiltered(!res.OwnerVisible[key])
	}

	return res
}

func (p *Propagator) visibleRef(ref EntityRef, res Result) bool {
	switch ref.Kind {
	case registry.KindBuilding:
		return res.BuildingVisible[ref.ID]
	case registry.KindBlock:
		return res.BlockVisible[ref.ID]
	case registry.KindOwner:
		return res.OwnerVisible[ref.ID]
	}
	return false
}
