// Package registry holds the three linked entity indices the map engine
// operates on: buildings, blocks, and owners. Entities are constructed once
// at initialization and persist for the process lifetime; they are only ever
// toggled filtered/visible, never removed.
package registry

import (
	"github.com/Bubblbu/sica-mapping/internal/layer"
)

// MembershipRecord is one historical tenant-organization affiliation entry.
type MembershipRecord struct {
	HasMemberTag         bool `json:"has_member_tag"`
	LatestMembershipYear *int `json:"latest_membership_year"`
}

// Building is a point entity backed by an externally-owned marker handle.
type Building struct {
	ID     string
	Marker layer.Marker

	// Style baseline, set once from metadata and overridden by the style
	// engine. BaselineStyle caches the last non-highlighted resolved style
	// so highlight removal can restore it exactly.
	BaseColor      string
	BaseOpacity    float64
	BaseRadius     float64
	ColorizedColor string
	NeutralColor   string
	BaselineStyle  layer.Style

	selectionRefCount int
	isFiltered        bool

	// PassesMembership is the filter-derived membership verdict, consumed
	// by the color mode rule.
	PassesMembership bool

	IsVTU       bool
	MemberCount int
	Units       int

	// OwnerKey and BlockID are optional links; empty means unlinked.
	OwnerKey string
	BlockID  string

	Neighbourhood     string
	Search            string
	MembershipRecords []MembershipRecord

	// Metrics maps a metric attr to this building's value. A missing key
	// means the value was absent or unparseable; absent data never
	// filters a building out.
	Metrics map[string]float64
}

// RefCount returns the current selection reference count.
func (b *Building) RefCount() int { return b.selectionRefCount }

// SetRefCount overwrites the reference count. Callers outside the selection
// counter must not use this; the counter owns all transitions.
func (b *Building) SetRefCount(n int) { b.selectionRefCount = n }

// Filtered reports whether the building is hidden by the current filter.
func (b *Building) Filtered() bool { return b.isFiltered }

// MarkFiltered sets the raw filtered flag. Owned by the selection counter.
func (b *Building) MarkFiltered(f bool) { b.isFiltered = f }

// Kind returns the entity kind discriminator.
func (b *Building) Kind() string { return KindBuilding }

// Ident returns the entity identity key.
func (b *Building) Ident() string { return b.ID }

// Block is an area cluster entity backed by a polygon layer handle.
type Block struct {
	ID      string
	Polygon layer.Polygon

	// TotalUnits feeds the choropleth ratio against the registry-wide
	// maximum recorded at build time.
	TotalUnits float64

	// BaseStyle is the last non-highlighted style, restored after
	// hover/selection ends.
	BaseStyle layer.Style

	selectionRefCount int
	isFiltered        bool
}

// RefCount returns the current selection reference count.
func (b *Block) RefCount() int { return b.selectionRefCount }

// SetRefCount overwrites the reference count. Owned by the selection counter.
func (b *Block) SetRefCount(n int) { b.selectionRefCount = n }

// Filtered reports whether the block is hidden by the current filter.
func (b *Block) Filtered() bool { return b.isFiltered }

// MarkFiltered sets the raw filtered flag. Owned by the selection counter.
func (b *Block) MarkFiltered(f bool) { b.isFiltered = f }

// Kind returns the entity kind discriminator.
func (b *Block) Kind() string { return KindBlock }

// Ident returns the entity identity key.
func (b *Block) Ident() string { return b.ID }

// Owner is an organization entity aggregating the buildings it controls.
// Owners hold weak references: the registry owns the buildings.
type Owner struct {
	Key       string
	Buildings []*Building

	isFiltered bool
}

// Filtered reports whether the owner row is hidden (no visible building).
func (o *Owner) Filtered() bool { return o.isFiltered }

// MarkFiltered sets the raw filtered flag. Owned by the visibility propagator.
func (o *Owner) MarkFiltered(f bool) { o.isFiltered = f }

// Entity kind discriminators, matching the data-type attribute vocabulary of
// the table rows.
const (
	KindBuilding = "building"
	KindBlock    = "block"
	KindOwner    = "owner"
)
