package loader

import (
	"context"
	"encoding/json"

	"github.com/Bubblbu/sica-mapping/internal/layer"
	"github.com/Bubblbu/sica-mapping/internal/registry"
	"github.com/Bubblbu/sica-mapping/internal/tracing"
)

// geoJSONFeature is the subset of a GeoJSON feature the block layer needs.
// Geometry is carried through untouched; only properties are inspected.
type geoJSONFeature struct {
	Properties map[string]any  `json:"properties"`
	Geometry   json.RawMessage `json:"geometry"`
}

type geoJSONCollection struct {
	Features []geoJSONFeature `json:"features"`
}

// LoadBlocks fetches a GeoJSON FeatureCollection of block polygons and
// returns one layer polygon per feature carrying a block_id property.
// Features without a block_id are skipped.
func (l *Loader) LoadBlocks(ctx context.Context, source string) (polys []layer.Polygon, err error) {
	ctx, endSpan := tracing.StartLoadSpan(ctx, ResourceBlocks)
	defer func() { endSpan(err) }()

	body, err := l.fetch(ctx, source)
	if err != nil {
		return nil, &LoadFailure{Resource: ResourceBlocks, Err: err}
	}

	var fc geoJSONCollection
	if err := json.Unmarshal(body, &fc); err != nil {
		return nil, &LoadFailure{Resource: ResourceBlocks, Err: err}
	}

	polys = make([]layer.Polygon, 0, len(fc.Features))
	for _, f := range fc.Features {
		props := layer.PropertyBag(f.Properties)
		if props.String(registry.PropBlockID) == "" {
			continue
		}
		polys = append(polys, layer.NewMemPolygon(props))
	}
	return polys, nil
}
