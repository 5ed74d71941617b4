package engine

import (
	"github.com/Bubblbu/sica-mapping/internal/layer"
	"github.com/Bubblbu/sica-mapping/internal/summary"
	"github.com/Bubblbu/sica-mapping/internal/visibility"
)

// EventSnapshot labels updates produced by Snapshot rather than an event.
const EventSnapshot = "snapshot"

// MarkerState is the serialized visual state of one building marker.
type MarkerState struct {
	ID        string      `json:"id"`
	Style     layer.Style `json:"style"`
	Radius    float64     `json:"radius"`
	FrontRank int         `json:"front_rank,omitempty"`
	Visible   bool        `json:"visible"`
}

// BlockState is the serialized visual state of one block polygon.
type BlockState struct {
	ID        string      `json:"id"`
	Style     layer.Style `json:"style"`
	FrontRank int         `json:"front_rank,omitempty"`
	Visible   bool        `json:"visible"`
}

// Update is the authoritative state emitted after each processed event.
// Clients repaint from it; the stream layer broadcasts it as-is.
type Update struct {
	Seq        uint64                 `json:"seq"`
	Event      string                 `json:"event"`
	Markers    []MarkerState          `json:"markers"`
	Blocks     []BlockState           `json:"blocks"`
	Checked    []visibility.EntityRef `json:"checked"`
	Deselected []visibility.EntityRef `json:"deselected,omitempty"`
	Summary    summary.Aggregate      `json:"summary"`

	// TableSummary aggregates the building table rows, scoped to the
	// checked rows when any are checked, otherwise to the unhidden ones.
	TableSummary summary.Aggregate `json:"table_summary"`
	TableScope   string           `json:"table_scope"`

	Totals     *summary.DatasetTotals `json:"totals,omitempty"`
	Colorize   bool                   `json:"colorize"`
	Choropleth bool                   `json:"choropleth"`
	Zoom       float64                `json:"zoom"`
}

// markerStateReader is the read side of the in-memory marker. Markers that
// do not expose state are serialized with identity only.
type markerStateReader interface {
	Style() layer.Style
	Radius() float64
	FrontRank() int
}

type polygonStateReader interface {
	Style() layer.Style
	FrontRank() int
}
