// Package selection implements reference-counted highlight state for map
// entities. A single counter records every overlapping cause of emphasis
// (hover, row checkbox, owner/block cascade); highlight is purely a function
// of count > 0, so a hovered-and-also-selected entity stays highlighted after
// the pointer leaves.
package selection

import (
	"github.com/Bubblbu/sica-mapping/internal/registry"
)

// Entity is the counter's view of a building or block: a non-negative
// selection count plus the filtered flag that suppresses all visual effect.
type Entity interface {
	RefCount() int
	SetRefCount(int)
	Filtered() bool
	MarkFiltered(bool)
	Kind() string
	Ident() string
}

// Highlighter applies and removes the visual consequences of counter
// transitions. The style engine implements it.
type Highlighter interface {
	// Highlight applies the emphasis overlay. The implementation must
	// cache the entity's baseline before overlaying it.
	Highlight(Entity)
	// Unhighlight restores the cached baseline exactly.
	Unhighlight(Entity)
	// ApplyFiltered puts the entity into its hidden/neutral filtered style.
	ApplyFiltered(Entity)
	// RestoreBaseline returns a previously filtered entity to its
	// non-highlighted baseline.
	RestoreBaseline(Entity)
}

// Counter converts reference-count transitions into highlight on/off calls
// and owns the rule that filtering forces the count to zero.
type Counter struct {
	reg *registry.Registry
	hl  Highlighter
}

// NewCounter creates a counter over the registry, driving the highlighter.
func NewCounter(reg *registry.Registry, hl Highlighter) *Counter {
	return &Counter{reg: reg, hl: hl}
}

// Adjust changes the entity's count by delta, clamping the result to zero.
// Filtered entities record the adjustment but suppress any visual effect.
// Otherwise highlight is recomputed purely from count > 0.
func (c *Counter) Adjust(e Entity, delta int) {
	next := e.RefCount() + delta
	if next < 0 {
		next = 0
	}
	e.SetRefCount(next)

	if e.Filtered() {
		return
	}
	if next > 0 {
		c.hl.Highlight(e)
	} else {
		c.hl.Unhighlight(e)
	}
}

// SetFiltered transitions the entity's filtered state. Entering filtered
// forcibly zeroes the count and applies the filtered style; leaving restores
// the baseline style with the count still zero. Filter changes never preserve
// prior selection. No-op when the state is unchanged.
func (c *Counter) SetFiltered(e Entity, filtered bool) {
	if e.Filtered() == filtered {
		return
	}
	e.MarkFiltered(filtered)
	e.SetRefCount(0)
	if filtered {
		c.hl.ApplyFiltered(e)
	} else {
		c.hl.RestoreBaseline(e)
	}
}

// AdjustBuilding adjusts a single building's counter. Unknown ids are
// silently skipped to tolerate stale references.
func (c *Counter) AdjustBuilding(id string, delta int) {
	if b := c.reg.Buildings[id]; b != nil {
		c.Adjust(b, delta)
	}
}

// AdjustBlock adjusts the block's own counter and cascades the same delta to
// every building whose BlockID matches.
func (c *Counter) AdjustBlock(id string, delta int) {
	blk := c.reg.Blocks[id]
	if blk == nil {
		return
	}
	c.Adjust(blk, delta)
	for _, b := range c.reg.BuildingsOfBlock(id) {
		c.Adjust(b, delta)
	}
}

// AdjustOwner cascades the delta to every building owned by the owner.
// Owners carry no counter of their own; their rows derive emphasis from
// their buildings.
func (c *Counter) AdjustOwner(key string, delta int) {
	owner := c.reg.Owners[key]
	if owner == nil {
		return
	}
	for _, b := range owner.Buildings {
		c.Adjust(b, delta)
	}
}

// AdjustKind dispatches to the cascade matching the entity kind.
func (c *Counter) AdjustKind(kind, id string, delta int) {
	switch kind {
	case registry.KindBuilding:
		c.AdjustBuilding(id, delta)
	case registry.KindBlock:
		c.AdjustBlock(id, delta)
	case registry.KindOwner:
		c.AdjustOwner(id, delta)
	}
}
