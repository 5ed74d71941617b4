package engine

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/Bubblbu/sica-mapping/internal/filter"
	"github.com/Bubblbu/sica-mapping/internal/geo"
	"github.com/Bubblbu/sica-mapping/internal/layer"
	"github.com/Bubblbu/sica-mapping/internal/registry"
	"github.com/Bubblbu/sica-mapping/internal/summary"
)

type resolver map[string]*layer.MemMarker

func (r resolver) Resolve(v string) (layer.Marker, bool) {
	mk, ok := r[v]
	if !ok {
		return nil, false
	}
	return mk, true
}

func cityBounds() geo.Bounds {
	return geo.NewBounds(
		geo.LatLng{Lat: 49.20, Lng: -123.25},
		geo.LatLng{Lat: 49.32, Lng: -123.00},
	)
}

// fixture: two buildings on blk-1 owned by owner-a, one on blk-2 owned by
// owner-b. b2 is the only building matching the search text "oak".
func newEngine(t *testing.T, opts Options) *Engine {
	t.Helper()
	polys := []layer.Polygon{
		layer.NewMemPolygon(layer.PropertyBag{registry.PropBlockID: "blk-1", registry.PropTotalUnits: float64(140)}),
		layer.NewMemPolygon(layer.PropertyBag{registry.PropBlockID: "blk-2", registry.PropTotalUnits: float64(60)}),
	}
	year := 2019
	metas := []registry.BuildingMeta{
		{MarkerVar: "m1", BID: "b1", BlockID: "blk-1", OwnerKey: "owner-a",
			BaseColor: "#0d0887", NeutralColor: "#9e9e9e", BaseOpacity: 0.35, BaseRadius: 3.2,
			Units: 80, MemberCount: 10, IsVTU: true, Search: "100 main st", Neighbourhood: "West End",
			MembersPayload: []registry.MembershipRecord{{HasMemberTag: true, LatestMembershipYear: &year}}},
		{MarkerVar: "m2", BID: "b2", BlockID: "blk-1", OwnerKey: "owner-a",
			BaseColor: "#9e9e9e", BaseOpacity: 0.35, BaseRadius: 3.2,
			Units: 60, Search: "200 oak ave", Neighbourhood: "Strathcona"},
		{MarkerVar: "m3", BID: "b3", BlockID: "blk-2", OwnerKey: "owner-b",
			BaseColor: "#9e9e9e", BaseOpacity: 0.35, BaseRadius: 3.2,
			Units: 40, Search: "300 elm st", Neighbourhood: "Strathcona"},
	}
	markers := resolver{
		"m1": layer.NewMemMarker(geo.LatLng{Lat: 49.28, Lng: -123.13}),
		"m2": layer.NewMemMarker(geo.LatLng{Lat: 49.29, Lng: -123.12}),
		"m3": layer.NewMemMarker(geo.LatLng{Lat: 49.27, Lng: -123.11}),
	}
	reg, err := registry.Build(polys, metas, markers, slog.Default())
	if err != nil {
		t.Fatalf("registry.Build: %v", err)
	}

	view := layer.NewMemMap(15, cityBounds())
	view.SetReady(true)
	return New(reg, nil, view, slog.Default(), opts)
}

func markerByID(t *testing.T, u Update, id string) MarkerState {
	t.Helper()
	for _, m := range u.Markers {
		if m.ID == id {
			return m
		}
	}
	t.Fatalf("marker %q not in update", id)
	return MarkerState{}
}

func TestWaitReady(t *testing.T) {
	e := newEngine(t, Options{ReadyAttempts: 3, ReadyInterval: time.Millisecond})
	if err := e.WaitReady(context.Background()); err != nil {
		t.Fatalf("WaitReady: %v", err)
	}
}

func TestWaitReadyExhausted(t *testing.T) {
	e := newEngine(t, Options{ReadyAttempts: 3, ReadyInterval: time.Millisecond})
	e.view.SetReady(false)

	err := e.WaitReady(context.Background())
	if !errors.Is(err, ErrNotReady) {
		t.Fatalf("err = %v, want ErrNotReady", err)
	}
}

func TestWaitReadyCancelled(t *testing.T) {
	e := newEngine(t, Options{ReadyAttempts: 100, ReadyInterval: time.Hour})
	e.view.SetReady(false)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := e.WaitReady(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestApplyFilterHidesAndSummarizes(t *testing.T) {
	e := newEngine(t, Options{})
	ctx := context.Background()

	u := e.ApplyFilter(ctx, filter.Criteria{Search: "oak"})

	if m := markerByID(t, u, "b2"); !m.Visible {
		t.Error("b2 should stay visible")
	}
	for _, id := range []string{"b1", "b3"} {
		if m := markerByID(t, u, id); m.Visible {
			t.Errorf("%s should be hidden", id)
		}
	}

	// blk-1 keeps one visible member; blk-2 loses its only one.
	for _, b := range u.Blocks {
		want := b.ID == "blk-1"
		if b.Visible != want {
			t.Errorf("block %s visible = %v, want %v", b.ID, b.Visible, want)
		}
	}

	if u.Summary.Buildings != 1 || u.Summary.Units != 60 {
		t.Errorf("summary = %+v, want 1 building with 60 units", u.Summary)
	}

	// Clearing the filter restores everything.
	u = e.ApplyFilter(ctx, filter.Criteria{})
	for _, m := range u.Markers {
		if !m.Visible {
			t.Errorf("%s still hidden after clearing", m.ID)
		}
	}
	if u.Summary.Buildings != 3 || u.Summary.Units != 180 {
		t.Errorf("summary = %+v, want 3 buildings with 180 units", u.Summary)
	}
}

func TestApplyFilterForceDeselects(t *testing.T) {
	e := newEngine(t, Options{})
	ctx := context.Background()

	e.Select(ctx, registry.KindBuilding, "b1", true)

	u := e.ApplyFilter(ctx, filter.Criteria{Search: "oak"})
	if len(u.Deselected) != 1 || u.Deselected[0].ID != "b1" {
		t.Fatalf("Deselected = %+v, want b1", u.Deselected)
	}
	if len(u.Checked) != 0 {
		t.Errorf("Checked = %+v, want empty", u.Checked)
	}
	if got := e.reg.Buildings["b1"].RefCount(); got != 0 {
		t.Errorf("b1 refcount = %d, want 0", got)
	}
}

func TestApplyFilterNormalizesNeighbourhoods(t *testing.T) {
	e := newEngine(t, Options{})
	ctx := context.Background()

	// Client-sent names may differ from building names in case and
	// whitespace; both sides are canonicalized before the lookup.
	u := e.ApplyFilter(ctx, filter.Criteria{
		NeighbourhoodOptions: true,
		Neighbourhoods:       map[string]bool{"  WEST END ": true},
	})
	if m := markerByID(t, u, "b1"); !m.Visible {
		t.Error("b1 should be visible for its selected neighbourhood")
	}
	for _, id := range []string{"b2", "b3"} {
		if m := markerByID(t, u, id); m.Visible {
			t.Errorf("%s should be hidden", id)
		}
	}
}

func TestSelectIdempotent(t *testing.T) {
	e := newEngine(t, Options{})
	ctx := context.Background()

	e.Select(ctx, registry.KindBuilding, "b1", true)
	e.Select(ctx, registry.KindBuilding, "b1", true)
	if got := e.reg.Buildings["b1"].RefCount(); got != 1 {
		t.Fatalf("refcount after double select = %d, want 1", got)
	}

	u := e.Select(ctx, registry.KindBuilding, "b1", false)
	if got := e.reg.Buildings["b1"].RefCount(); got != 0 {
		t.Fatalf("refcount after deselect = %d, want 0", got)
	}
	if len(u.Checked) != 0 {
		t.Errorf("Checked = %+v, want empty", u.Checked)
	}
}

func TestHoverSwitchReleasesPrevious(t *testing.T) {
	e := newEngine(t, Options{})
	ctx := context.Background()

	e.Hover(ctx, registry.KindBuilding, "b1", true)
	if got := e.reg.Buildings["b1"].RefCount(); got != 1 {
		t.Fatalf("b1 refcount = %d, want 1", got)
	}

	// Moving the pointer to b2 without an off event for b1.
	e.Hover(ctx, registry.KindBuilding, "b2", true)
	if got := e.reg.Buildings["b1"].RefCount(); got != 0 {
		t.Errorf("b1 refcount = %d, want 0 after hover moved", got)
	}
	if got := e.reg.Buildings["b2"].RefCount(); got != 1 {
		t.Errorf("b2 refcount = %d, want 1", got)
	}

	e.Hover(ctx, registry.KindBuilding, "b2", false)
	if got := e.reg.Buildings["b2"].RefCount(); got != 0 {
		t.Errorf("b2 refcount = %d, want 0", got)
	}

	// A stale off event for an entity no longer hovered is a no-op.
	e.Hover(ctx, registry.KindBuilding, "b1", false)
	if got := e.reg.Buildings["b1"].RefCount(); got != 0 {
		t.Errorf("b1 refcount = %d after stale off", got)
	}
}

func TestHoverOutlastedBySelection(t *testing.T) {
	e := newEngine(t, Options{})
	ctx := context.Background()

	e.Select(ctx, registry.KindBuilding, "b1", true)
	e.Hover(ctx, registry.KindBuilding, "b1", true)
	e.Hover(ctx, registry.KindBuilding, "b1", false)

	if got := e.reg.Buildings["b1"].RefCount(); got != 1 {
		t.Fatalf("refcount = %d, want 1 while still selected", got)
	}
}

func TestSetViewportRescalesAndSummarizes(t *testing.T) {
	e := newEngine(t, Options{})
	ctx := context.Background()

	before := markerByID(t, e.Snapshot(), "b1").Radius

	// Tight bounds around b3 only, zoomed in.
	u := e.SetViewport(ctx, geo.NewBounds(
		geo.LatLng{Lat: 49.265, Lng: -123.115},
		geo.LatLng{Lat: 49.275, Lng: -123.105},
	), 17)

	if u.Zoom != 17 {
		t.Errorf("Zoom = %v, want 17", u.Zoom)
	}
	if u.Summary.Buildings != 1 || u.Summary.Units != 40 {
		t.Errorf("summary = %+v, want only b3", u.Summary)
	}
	after := markerByID(t, u, "b1").Radius
	if after <= before {
		t.Errorf("radius %v should grow past %v when zooming in", after, before)
	}
}

func TestTogglesReflectedInUpdate(t *testing.T) {
	e := newEngine(t, Options{})
	ctx := context.Background()

	if u := e.SetColorize(ctx, true); !u.Colorize {
		t.Error("Colorize not reflected")
	}
	if u := e.SetChoropleth(ctx, true); !u.Choropleth {
		t.Error("Choropleth not reflected")
	}
	if u := e.SetChoropleth(ctx, false); u.Choropleth {
		t.Error("Choropleth not cleared")
	}
}

func TestColorizeUsesMembershipVerdict(t *testing.T) {
	e := newEngine(t, Options{})
	ctx := context.Background()

	// Under empty criteria every building passes the membership sub-rule,
	// so the VTU building picks up its colorized fill immediately.
	u := e.SetColorize(ctx, true)
	if got := markerByID(t, u, "b1").Style.FillColor; got != "#0d0887" {
		t.Fatalf("b1 fill = %s, want colorized #0d0887", got)
	}
	// b2 is not a VTU building and stays neutral regardless of the toggle.
	if got := markerByID(t, u, "b2").Style.FillColor; got != "#9e9e9e" {
		t.Errorf("b2 fill = %s, want neutral #9e9e9e", got)
	}

	// A minimum year past b1's latest record flips its verdict and hides
	// it; clearing the filter restores the colorized fill, not a stale one.
	year := 2024
	u = e.ApplyFilter(ctx, filter.Criteria{MinYear: &year})
	if m := markerByID(t, u, "b1"); m.Visible {
		t.Error("b1 should be hidden when its membership records are too old")
	}

	u = e.ApplyFilter(ctx, filter.Criteria{})
	m := markerByID(t, u, "b1")
	if !m.Visible {
		t.Fatal("b1 should be visible after clearing the filter")
	}
	if m.Style.FillColor != "#0d0887" {
		t.Errorf("b1 fill = %s, want colorized #0d0887 restored", m.Style.FillColor)
	}

	// Disabling the color mode reverts to neutral.
	u = e.SetColorize(ctx, false)
	if got := markerByID(t, u, "b1").Style.FillColor; got != "#9e9e9e" {
		t.Errorf("b1 fill = %s, want neutral #9e9e9e with colorize off", got)
	}
}

func TestTableSummaryScopes(t *testing.T) {
	e := newEngine(t, Options{})
	ctx := context.Background()

	u := e.Snapshot()
	if u.TableScope != summary.ScopeVisible {
		t.Fatalf("scope = %s, want %s", u.TableScope, summary.ScopeVisible)
	}
	if u.TableSummary.Buildings != 3 || u.TableSummary.Units != 180 {
		t.Errorf("table summary = %+v, want all 3 buildings with 180 units", u.TableSummary)
	}

	// Checking a row narrows the summary to the checked set.
	u = e.Select(ctx, registry.KindBuilding, "b1", true)
	if u.TableScope != summary.ScopeSelected {
		t.Fatalf("scope = %s, want %s", u.TableScope, summary.ScopeSelected)
	}
	if u.TableSummary.Buildings != 1 || u.TableSummary.Units != 80 {
		t.Errorf("table summary = %+v, want only b1", u.TableSummary)
	}

	// Hidden rows drop out of the visible-scope summary.
	e.Select(ctx, registry.KindBuilding, "b1", false)
	u = e.ApplyFilter(ctx, filter.Criteria{Search: "oak"})
	if u.TableScope != summary.ScopeVisible || u.TableSummary.Buildings != 1 || u.TableSummary.Units != 60 {
		t.Errorf("table summary = %+v scope %s, want only b2 visible", u.TableSummary, u.TableScope)
	}
}

func TestSeqMonotonic(t *testing.T) {
	e := newEngine(t, Options{})
	ctx := context.Background()

	u1 := e.Snapshot()
	u2 := e.Hover(ctx, registry.KindBuilding, "b1", true)
	u3 := e.Snapshot()
	if !(u1.Seq < u2.Seq && u2.Seq < u3.Seq) {
		t.Errorf("seq not monotonic: %d %d %d", u1.Seq, u2.Seq, u3.Seq)
	}
}

func TestTotalsPassedThrough(t *testing.T) {
	totals := &summary.DatasetTotals{Buildings: 3200, Members: 4100}
	e := newEngine(t, Options{Totals: totals})

	u := e.Snapshot()
	if u.Totals == nil || u.Totals.Buildings != 3200 {
		t.Errorf("Totals = %+v", u.Totals)
	}
}

func TestMetricsCounted(t *testing.T) {
	m := NewMetrics()
	e := newEngine(t, Options{Metrics: m})
	ctx := context.Background()

	e.Hover(ctx, registry.KindBuilding, "b1", true)
	e.Select(ctx, registry.KindBuilding, "b1", true)
	e.ApplyFilter(ctx, filter.Criteria{})

	for _, eventType := range []string{EventHover, EventSelect, EventApplyFilter} {
		c, err := m.eventsTotal.GetMetricWithLabelValues(eventType)
		if err != nil {
			t.Fatalf("GetMetricWithLabelValues(%s): %v", eventType, err)
		}
		if got := testCounterValue(t, c); got != 1 {
			t.Errorf("%s count = %v, want 1", eventType, got)
		}
	}
}
