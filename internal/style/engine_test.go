package style

import (
	"log/slog"
	"testing"

	"github.com/Bubblbu/sica-mapping/internal/geo"
	"github.com/Bubblbu/sica-mapping/internal/layer"
	"github.com/Bubblbu/sica-mapping/internal/registry"
	"github.com/Bubblbu/sica-mapping/internal/selection"
)

type resolver map[string]*layer.MemMarker

func (r resolver) Resolve(v string) (layer.Marker, bool) {
	mk, ok := r[v]
	if !ok {
		return nil, false
	}
	return mk, true
}

func newFixture(t *testing.T) (*registry.Registry, resolver) {
	t.Helper()
	polys := []layer.Polygon{
		layer.NewMemPolygon(layer.PropertyBag{registry.PropBlockID: "blk-1", registry.PropTotalUnits: float64(50)}),
		layer.NewMemPolygon(layer.PropertyBag{registry.PropBlockID: "blk-2", registry.PropTotalUnits: float64(200)}),
	}
	metas := []registry.BuildingMeta{
		{
			MarkerVar: "m1", BID: "b1", BlockID: "blk-1",
			BaseColor: "#ed7953", NeutralColor: "#9e9e9e",
			BaseOpacity: 0.6, BaseRadius: 5,
			IsVTU: true,
		},
	}
	markers := resolver{"m1": layer.NewMemMarker(geo.LatLng{Lat: 49.28, Lng: -123.13})}
	reg, err := registry.Build(polys, metas, markers, slog.Default())
	if err != nil {
		t.Fatalf("registry.Build: %v", err)
	}
	return reg, markers
}

func TestZoomScaleClamped(t *testing.T) {
	tests := []struct {
		name string
		zoom float64
		want float64
	}{
		{"reference zoom is unity", 15, 1},
		{"deep zoom clamps high", 31, MaxZoomScale},
		{"far out clamps low", 2, MinZoomScale},
		{"negative zoom clamps low", -10, MinZoomScale},
		{"huge zoom clamps high", 120, MaxZoomScale},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ZoomScale(tt.zoom)
			if got < MinZoomScale || got > MaxZoomScale {
				t.Fatalf("ZoomScale(%v) = %v outside [%v, %v]", tt.zoom, got, MinZoomScale, MaxZoomScale)
			}
			if got != tt.want {
				t.Errorf("ZoomScale(%v) = %v, want %v", tt.zoom, got, tt.want)
			}
		})
	}
}

func TestApplyZoomScalesNonFilteredRadii(t *testing.T) {
	reg, markers := newFixture(t)
	e := New(reg)

	e.ApplyZoom(16) // scale 1.2
	want := 5 * 1.2
	if got := markers["m1"].Radius(); got != want {
		t.Errorf("radius after zoom 16 = %v, want %v", got, want)
	}

	// A filtered building keeps its hidden state; zoom does not touch it.
	b := reg.Buildings["b1"]
	b.MarkFiltered(true)
	e.ApplyZoom(18)
	if got := markers["m1"].Radius(); got != want {
		t.Errorf("filtered building radius changed on zoom: %v", got)
	}
}

func TestColorModeRule(t *testing.T) {
	reg, markers := newFixture(t)
	e := New(reg)
	b := reg.Buildings["b1"]

	tests := []struct {
		name             string
		colorize         bool
		vtu              bool
		passesMembership bool
		wantFill         string
	}{
		{"all conditions met renders colorized", true, true, true, "#ed7953"},
		{"toggle off renders neutral", false, true, true, "#9e9e9e"},
		{"non-vtu renders neutral", true, false, true, "#9e9e9e"},
		{"failing membership renders neutral", true, true, false, "#9e9e9e"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b.IsVTU = tt.vtu
			b.PassesMembership = tt.passesMembership
			e.SetColorize(tt.colorize)
			if got := markers["m1"].Style().FillColor; got != tt.wantFill {
				t.Errorf("fill = %q, want %q", got, tt.wantFill)
			}
		})
	}
}

func TestChoroplethBuckets(t *testing.T) {
	reg, _ := newFixture(t)
	e := New(reg)
	e.SetChoropleth(true)

	// blk-1: 50/200 = 0.25 lands in the second bucket.
	blk1 := reg.Blocks["blk-1"].Polygon.(*layer.MemPolygon)
	if got := blk1.Style().FillColor; got != "#e5f5e0" {
		t.Errorf("blk-1 fill = %q, want second bucket #e5f5e0", got)
	}
	// blk-2: 200/200 = 1.0 is the darkest bucket.
	blk2 := reg.Blocks["blk-2"].Polygon.(*layer.MemPolygon)
	if got := blk2.Style().FillColor; got != "#006d2c" {
		t.Errorf("blk-2 fill = %q, want darkest bucket #006d2c", got)
	}

	e.SetChoropleth(false)
	if got := blk1.Style(); got != registry.NeutralBlockStyle {
		t.Errorf("disabling choropleth should revert to neutral, got %+v", got)
	}
}

func TestChoroplethRatioClamped(t *testing.T) {
	// A block whose units exceed the recorded maximum still lands in the
	// darkest bucket rather than overflowing the palette.
	reg, _ := newFixture(t)
	reg.Blocks["blk-2"].TotalUnits = 500 // max recorded at build time was 200
	e := New(reg)
	e.SetChoropleth(true)
	blk2 := reg.Blocks["blk-2"].Polygon.(*layer.MemPolygon)
	if got := blk2.Style().FillColor; got != "#006d2c" {
		t.Errorf("overflowing ratio fill = %q, want darkest bucket", got)
	}
}

func TestHighlightPreservesFillAndRestoresBaseline(t *testing.T) {
	reg, markers := newFixture(t)
	e := New(reg)
	b := reg.Buildings["b1"]
	c := selection.NewCounter(reg, e)

	before := markers["m1"].Style()

	c.Adjust(b, 1)
	overlaid := markers["m1"].Style()
	if overlaid.Color != HighlightStroke {
		t.Errorf("overlay stroke = %q, want accent %q", overlaid.Color, HighlightStroke)
	}
	if overlaid.FillColor != before.FillColor {
		t.Errorf("overlay changed fill from %q to %q", before.FillColor, overlaid.FillColor)
	}
	if overlaid.Weight <= before.Weight {
		t.Error("overlay should increase stroke weight")
	}
	if markers["m1"].FrontRank() != 1 {
		t.Error("overlay should raise the entity above siblings")
	}

	c.Adjust(b, -1)
	if got := markers["m1"].Style(); got != before {
		t.Errorf("baseline not restored exactly: got %+v, want %+v", got, before)
	}
}

func TestBlockHighlightRestore(t *testing.T) {
	reg, _ := newFixture(t)
	e := New(reg)
	e.SetChoropleth(true)
	c := selection.NewCounter(reg, e)

	blk := reg.Blocks["blk-1"]
	poly := blk.Polygon.(*layer.MemPolygon)
	before := poly.Style()

	c.Adjust(blk, 1)
	if poly.Style().Color != HighlightStroke {
		t.Error("block overlay should force the accent stroke")
	}
	c.Adjust(blk, -1)
	if got := poly.Style(); got != before {
		t.Errorf("block baseline not restored exactly: got %+v, want %+v", got, before)
	}
}

func TestFilteredHidesAndRestores(t *testing.T) {
	reg, markers := newFixture(t)
	e := New(reg)
	e.SetColorize(false) // settle the color-mode baseline before filtering
	c := selection.NewCounter(reg, e)
	b := reg.Buildings["b1"]

	baseline := markers["m1"].Style()

	c.SetFiltered(b, true)
	hidden := markers["m1"].Style()
	if hidden.Opacity != 0 || hidden.FillOpacity != 0 {
		t.Errorf("filtered style should be hidden, got %+v", hidden)
	}

	c.SetFiltered(b, false)
	if got := markers["m1"].Style(); got != baseline {
		t.Errorf("restore after unfilter = %+v, want %+v", got, baseline)
	}
}
