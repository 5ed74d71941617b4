package registry

import (
	"fmt"
	"log/slog"

	"github.com/Bubblbu/sica-mapping/internal/layer"
)

// DuplicateEntityError indicates two layers or metadata records claimed the
// same identity.
type DuplicateEntityError struct {
	Kind string
	ID   string
}

// Error implements the error interface.
func (e *DuplicateEntityError) Error() string {
	return fmt.Sprintf("duplicate %s id %q", e.Kind, e.ID)
}

// BuildingMeta is one marker metadata record from the startup resources.
type BuildingMeta struct {
	MarkerVar      string             `json:"marker_var"`
	BID            string             `json:"b_id"`
	Lat            float64            `json:"lat,omitempty"`
	Lng            float64            `json:"lng,omitempty"`
	Coords         string             `json:"coords,omitempty"`
	BaseColor      string             `json:"base_color,omitempty"`
	NeutralColor   string             `json:"neutral_color,omitempty"`
	BaseOpacity    float64            `json:"base_opacity,omitempty"`
	BaseRadius     float64            `json:"base_radius,omitempty"`
	IsVTU          bool               `json:"is_vtu,omitempty"`
	MemberCount    int                `json:"member_count,omitempty"`
	Units          int                `json:"units,omitempty"`
	OwnerKey       string             `json:"owner_key,omitempty"`
	BlockID        string             `json:"block_id,omitempty"`
	Neighbourhood  string             `json:"neighbourhood,omitempty"`
	Search         string             `json:"search,omitempty"`
	MembersPayload []MembershipRecord `json:"members_payload,omitempty"`
	Metrics        map[string]float64 `json:"metrics,omitempty"`
}

// MarkerResolver resolves a metadata marker_var reference to a live marker
// handle. A false return means the marker is not (yet) materialized; the
// record is skipped, not fatal, to tolerate partial or late-arriving data.
type MarkerResolver interface {
	Resolve(markerVar string) (layer.Marker, bool)
}

// MarkerResolverFunc adapts a function to the MarkerResolver interface.
type MarkerResolverFunc func(markerVar string) (layer.Marker, bool)

// Resolve implements MarkerResolver.
func (f MarkerResolverFunc) Resolve(markerVar string) (layer.Marker, bool) {
	return f(markerVar)
}

// Property keys expected on block polygon features.
const (
	PropBlockID    = "block_id"
	PropTotalUnits = "total_units"
)

// Registry is the fully linked set of entity indices.
type Registry struct {
	Buildings      map[string]*Building
	Blocks         map[string]*Block
	Owners         map[string]*Owner
	BlockBuildings map[string][]string

	// MaxBlockUnits is the registry-wide maximum of Block.TotalUnits,
	// recorded at build time for choropleth ratios.
	MaxBlockUnits float64
}

// Build links polygon layers and marker metadata into a Registry.
//
// Duplicate block or building ids fail with DuplicateEntityError. Metadata
// records whose marker cannot be resolved are skipped and logged. Layer
// handles are initialized in place with their baseline style; the
// initialization is idempotent and safe to repeat.
func Build(polys []layer.Polygon, metas []BuildingMeta, markers MarkerResolver, log *slog.Logger) (*Registry, error) {
	if log == nil {
		log = slog.Default()
	}

	reg := &Registry{
		Buildings:      make(map[string]*Building, len(metas)),
		Blocks:         make(map[string]*Block, len(polys)),
		Owners:         make(map[string]*Owner),
		BlockBuildings: make(map[string][]string, len(polys)),
	}

	for _, poly := range polys {
		props := poly.Properties()
		id := props.String(PropBlockID)
		if id == "" {
			log.Warn("block polygon without block_id property, skipping")
			continue
		}
		if _, exists := reg.Blocks[id]; exists {
			return nil, &DuplicateEntityError{Kind: KindBlock, ID: id}
		}
		units, _ := props.Float(PropTotalUnits)
		blk := &Block{ID: id, Polygon: poly, TotalUnits: units}
		reg.Blocks[id] = blk
		reg.BlockBuildings[id] = nil
		if units > reg.MaxBlockUnits {
			reg.MaxBlockUnits = units
		}
	}

	skipped := 0
	for _, meta := range metas {
		if _, exists := reg.Buildings[meta.BID]; exists {
			return nil, &DuplicateEntityError{Kind: KindBuilding, ID: meta.BID}
		}
		mk, ok := markers.Resolve(meta.MarkerVar)
		if !ok {
			// The metadata list may reference markers not yet
			// materialized; tolerate and move on.
			skipped++
			log.Debug("metadata references unresolvable marker, skipping",
				"marker_var", meta.MarkerVar,
				"b_id", meta.BID,
			)
			continue
		}

		b := &Building{
			ID:                meta.BID,
			Marker:            mk,
			BaseColor:         meta.BaseColor,
			BaseOpacity:       meta.BaseOpacity,
			BaseRadius:        meta.BaseRadius,
			ColorizedColor:    meta.BaseColor,
			NeutralColor:      meta.NeutralColor,
			IsVTU:             meta.IsVTU,
			MemberCount:       meta.MemberCount,
			Units:             meta.Units,
			OwnerKey:          meta.OwnerKey,
			BlockID:           meta.BlockID,
			Neighbourhood:     meta.Neighbourhood,
			Search:            meta.Search,
			MembershipRecords: meta.MembersPayload,
			Metrics:           meta.Metrics,
		}
		if b.NeutralColor == "" {
			b.NeutralColor = b.BaseColor
		}
		reg.Buildings[b.ID] = b

		if b.BlockID != "" {
			reg.BlockBuildings[b.BlockID] = append(reg.BlockBuildings[b.BlockID], b.ID)
		}
		if b.OwnerKey != "" {
			owner := reg.Owners[b.OwnerKey]
			if owner == nil {
				owner = &Owner{Key: b.OwnerKey}
				reg.Owners[b.OwnerKey] = owner
			}
			owner.Buildings = append(owner.Buildings, b)
		}
	}

	if skipped > 0 {
		log.Info("registry built with skipped metadata records",
			"buildings", len(reg.Buildings),
			"blocks", len(reg.Blocks),
			"owners", len(reg.Owners),
			"skipped", skipped,
		)
	}

	reg.ApplyBaselines()
	return reg, nil
}

// ApplyBaselines writes each entity's baseline style onto its layer handle.
// Idempotent: applying twice yields the same handle state.
func (r *Registry) ApplyBaselines() {
	for _, b := range r.Buildings {
		style := layer.Style{
			Color:       b.BaseColor,
			FillColor:   b.BaseColor,
			Opacity:     b.BaseOpacity,
			FillOpacity: b.BaseOpacity,
			Weight:      0,
		}
		b.BaselineStyle = style
		b.Marker.SetStyle(layer.Patch(style))
		if rs, ok := b.Marker.(layer.RadiusSetter); ok {
			rs.SetRadius(b.BaseRadius)
		}
	}
	for _, blk := range r.Blocks {
		if blk.BaseStyle == (layer.Style{}) {
			blk.BaseStyle = NeutralBlockStyle
		}
		blk.Polygon.SetStyle(layer.Patch(blk.BaseStyle))
	}
}

// NeutralBlockStyle is the flat style of a block with no choropleth shading.
var NeutralBlockStyle = layer.Style{
	Color:       "#b8b8b8",
	FillColor:   "#f7fcf5",
	Opacity:     1,
	FillOpacity: 0.35,
	Weight:      1,
}

// BuildingsOfBlock returns the buildings linked to the block, in insertion
// order. Returns nil for an unknown block.
func (r *Registry) BuildingsOfBlock(blockID string) []*Building {
	ids := r.BlockBuildings[blockID]
	if len(ids) == 0 {
		return nil
	}
	out := make([]*Building, 0, len(ids))
	for _, id := range ids {
		if b := r.Buildings[id]; b != nil {
			out = append(out, b)
		}
	}
	return out
}
