// Package engine is the single entry point for UI events. It owns the
// canonical interaction state (filter criteria, checked rows, hover target,
// viewport, display toggles) and drives the recomputation pipeline:
// filter evaluation, visibility propagation, style refresh, and viewport
// summary. Every event is processed atomically under one mutex, so observers
// never see a partially applied pass.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/Bubblbu/sica-mapping/internal/filter"
	"github.com/Bubblbu/sica-mapping/internal/geo"
	"github.com/Bubblbu/sica-mapping/internal/layer"
	"github.com/Bubblbu/sica-mapping/internal/registry"
	"github.com/Bubblbu/sica-mapping/internal/selection"
	"github.com/Bubblbu/sica-mapping/internal/style"
	"github.com/Bubblbu/sica-mapping/internal/summary"
	"github.com/Bubblbu/sica-mapping/internal/tracing"
	"github.com/Bubblbu/sica-mapping/internal/visibility"
)

// ErrNotReady is returned by WaitReady when the map view did not become
// ready within the configured attempt budget.
var ErrNotReady = errors.New("map view not ready")

// Options configures optional engine collaborators and the readiness retry
// budget. Zero values fall back to defaults.
type Options struct {
	Totals        *summary.DatasetTotals
	Metrics       *Metrics
	FilterMetrics *filter.Metrics
	ReadyAttempts int
	ReadyInterval time.Duration
}

const (
	defaultReadyAttempts = 20
	defaultReadyInterval = 250 * time.Millisecond
)

// Engine processes UI events against the entity registry.
type Engine struct {
	mu sync.Mutex

	log     *slog.Logger
	reg     *registry.Registry
	view    *layer.MemMap
	eval    *filter.Evaluator
	styler  *style.Engine
	counter *selection.Counter
	prop    *visibility.Propagator
	metrics *Metrics
	totals  *summary.DatasetTotals

	criteria filter.Criteria
	checked  map[visibility.EntityRef]bool
	hover    *visibility.EntityRef
	seq      uint64

	readyAttempts int
	readyInterval time.Duration
}

// New wires the engine over a built registry and map view. The style engine
// doubles as the selection highlighter.
func New(reg *registry.Registry, metricCfgs map[string]filter.MetricConfig, view *layer.MemMap, log *slog.Logger, opts Options) *Engine {
	if opts.ReadyAttempts <= 0 {
		opts.ReadyAttempts = defaultReadyAttempts
	}
	if opts.ReadyInterval <= 0 {
		opts.ReadyInterval = defaultReadyInterval
	}

	styler := style.New(reg)
	counter := selection.NewCounter(reg, styler)

	e := &Engine{
		log:           log,
		reg:           reg,
		view:          view,
		eval:          filter.NewEvaluator(metricCfgs, opts.FilterMetrics),
		styler:        styler,
		counter:       counter,
		prop:          visibility.New(reg, counter),
		metrics:       opts.Metrics,
		totals:        opts.Totals,
		checked:       make(map[visibility.EntityRef]bool),
		readyAttempts: opts.ReadyAttempts,
		readyInterval: opts.ReadyInterval,
	}

	// Seed the membership verdicts under the empty criteria and restyle, so
	// markers start from the color-mode rule rather than raw metadata.
	for _, b := range reg.Buildings {
		b.PassesMembership = e.eval.MembershipPasses(b, e.criteria)
		styler.RefreshBuilding(b)
	}
	return e
}

// WaitReady probes the map view until it reports ready, waiting the
// configured interval between attempts. Returns ErrNotReady once the attempt
// budget is exhausted, or the context error on cancellation.
func (e *Engine) WaitReady(ctx context.Context) error {
	for i := 0; i < e.readyAttempts; i++ {
		e.metrics.observeReadinessAttempt()
		if e.view.Ready() {
			return nil
		}
		e.log.Debug("map view not ready, retrying",
			"attempt", i+1,
			"max_attempts", e.readyAttempts,
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(e.readyInterval):
		}
	}
	return ErrNotReady
}

// ApplyFilter replaces the active criteria and runs the full pipeline:
// evaluate every building, propagate visibility, restyle, summarize.
func (e *Engine) ApplyFilter(ctx context.Context, c filter.Criteria) Update {
	start := time.Now()
	_, endSpan := tracing.StartSpan(ctx, "engine.apply_filter")
	defer endSpan(nil)

	e.mu.Lock()
	defer e.mu.Unlock()

	c.Neighbourhoods = filter.NormalizeSelection(c.Neighbourhoods)
	e.criteria = c
	e.refreshMembership()
	verdicts := e.eval.EvaluateAll(e.reg, c)
	res := e.prop.Propagate(verdicts, e.checked)
	for _, ref := range res.Deselected {
		delete(e.checked, ref)
	}
	if e.hover != nil && !hoverVisible(*e.hover, res) {
		// A hovered row that fell out of visibility had its counter
		// zeroed; forget the hover so a later off event is a no-op.
		e.hover = nil
	}

	u := e.update(EventApplyFilter)
	u.Deselected = res.Deselected
	e.metrics.observeEvent(EventApplyFilter, start)
	return u
}

// Hover adjusts the transient highlight for a row. A new hover target
// implicitly releases the previous one so stale off events cannot strand a
// count.
func (e *Engine) Hover(ctx context.Context, kind, id string, on bool) Update {
	start := time.Now()
	_, endSpan := tracing.StartSpan(ctx, "engine.hover")
	defer endSpan(nil)

	e.mu.Lock()
	defer e.mu.Unlock()

	ref := visibility.EntityRef{Kind: kind, ID: id}
	switch {
	case on:
		if e.hover != nil && *e.hover != ref {
			e.counter.AdjustKind(e.hover.Kind, e.hover.ID, -1)
		}
		if e.hover == nil || *e.hover != ref {
			e.counter.AdjustKind(kind, id, 1)
			e.hover = &ref
		}
	case e.hover != nil && *e.hover == ref:
		e.counter.AdjustKind(kind, id, -1)
		e.hover = nil
	}

	u := e.update(EventHover)
	e.metrics.observeEvent(EventHover, start)
	return u
}

// Select toggles a row's checkbox. Repeated events in the same direction are
// idempotent; the counter only moves on actual transitions.
func (e *Engine) Select(ctx context.Context, kind, id string, on bool) Update {
	start := time.Now()
	_, endSpan := tracing.StartSpan(ctx, "engine.select")
	defer endSpan(nil)

	e.mu.Lock()
	defer e.mu.Unlock()

	ref := visibility.EntityRef{Kind: kind, ID: id}
	switch {
	case on && !e.checked[ref]:
		e.counter.AdjustKind(kind, id, 1)
		e.checked[ref] = true
	case !on && e.checked[ref]:
		e.counter.AdjustKind(kind, id, -1)
		delete(e.checked, ref)
	}

	u := e.update(EventSelect)
	e.metrics.observeEvent(EventSelect, start)
	return u
}

// SetViewport records a map move or zoom and rescales marker radii.
func (e *Engine) SetViewport(ctx context.Context, bounds geo.Bounds, zoom float64) Update {
	start := time.Now()
	_, endSpan := tracing.StartSpan(ctx, "engine.set_viewport")
	defer endSpan(nil)

	e.mu.Lock()
	defer e.mu.Unlock()

	e.view.SetViewport(bounds, zoom)
	e.styler.ApplyZoom(zoom)

	u := e.update(EventSetViewport)
	e.metrics.observeEvent(EventSetViewport, start)
	return u
}

// SetColorize toggles membership-based marker coloring.
func (e *Engine) SetColorize(ctx context.Context, on bool) Update {
	start := time.Now()
	_, endSpan := tracing.StartSpan(ctx, "engine.set_colorize")
	defer endSpan(nil)

	e.mu.Lock()
	defer e.mu.Unlock()

	e.styler.SetColorize(on)

	u := e.update(EventSetColorize)
	e.metrics.observeEvent(EventSetColorize, start)
	return u
}

// SetChoropleth toggles the block density choropleth.
func (e *Engine) SetChoropleth(ctx context.Context, on bool) Update {
	start := time.Now()
	_, endSpan := tracing.StartSpan(ctx, "engine.set_choropleth")
	defer endSpan(nil)

	e.mu.Lock()
	defer e.mu.Unlock()

	e.styler.SetChoropleth(on)

	u := e.update(EventSetChoropleth)
	e.metrics.observeEvent(EventSetChoropleth, start)
	return u
}

// Snapshot returns the full current state without processing an event.
func (e *Engine) Snapshot() Update {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.update(EventSnapshot)
}

// Criteria returns a copy of the active filter criteria.
func (e *Engine) Criteria() filter.Criteria {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.criteria
}

// refreshMembership recomputes the membership sub-verdict that feeds the
// color-mode rule, restyling buildings whose verdict flipped. A building that
// stays visible across a criteria change still needs its fill recomputed.
// Callers hold e.mu.
func (e *Engine) refreshMembership() {
	for _, b := range e.reg.Buildings {
		pass := e.eval.MembershipPasses(b, e.criteria)
		if pass == b.PassesMembership {
			continue
		}
		b.PassesMembership = pass
		e.styler.RefreshBuilding(b)
	}
}

func hoverVisible(ref visibility.EntityRef, res visibility.Result) bool {
	switch ref.Kind {
	case registry.KindBlock:
		return res.BlockVisible[ref.ID]
	case registry.KindOwner:
		return res.OwnerVisible[ref.ID]
	default:
		return res.BuildingVisible[ref.ID]
	}
}

// update assembles the post-event state snapshot. Callers hold e.mu.
func (e *Engine) update(event string) Update {
	e.seq++

	u := Update{
		Seq:        e.seq,
		Event:      event,
		Colorize:   e.styler.Colorize(),
		Choropleth: e.styler.Choropleth(),
		Zoom:       e.view.Zoom(),
		Summary:    summary.Viewport(e.reg, e.view.Bounds()),
		Totals:     e.totals,
	}

	u.Markers = make([]MarkerState, 0, len(e.reg.Buildings))
	for id, b := range e.reg.Buildings {
		ms := MarkerState{ID: id, Visible: !b.Filtered()}
		if sr, ok := b.Marker.(markerStateReader); ok {
			ms.Style = sr.Style()
			ms.Radius = sr.Radius()
			ms.FrontRank = sr.FrontRank()
		}
		u.Markers = append(u.Markers, ms)
	}
	sort.Slice(u.Markers, func(i, j int) bool { return u.Markers[i].ID < u.Markers[j].ID })

	u.Blocks = make([]BlockState, 0, len(e.reg.Blocks))
	for id, blk := range e.reg.Blocks {
		bs := BlockState{ID: id, Visible: !blk.Filtered()}
		if sr, ok := blk.Polygon.(polygonStateReader); ok {
			bs.Style = sr.Style()
			bs.FrontRank = sr.FrontRank()
		}
		u.Blocks = append(u.Blocks, bs)
	}
	sort.Slice(u.Blocks, func(i, j int) bool { return u.Blocks[i].ID < u.Blocks[j].ID })

	u.Checked = make([]visibility.EntityRef, 0, len(e.checked))
	for ref := range e.checked {
		u.Checked = append(u.Checked, ref)
	}
	sort.Slice(u.Checked, func(i, j int) bool {
		if u.Checked[i].Kind != u.Checked[j].Kind {
			return u.Checked[i].Kind < u.Checked[j].Kind
		}
		return u.Checked[i].ID < u.Checked[j].ID
	})

	rows := make([]summary.TableRow, 0, len(e.reg.Buildings))
	for id, b := range e.reg.Buildings {
		rows = append(rows, summary.TableRow{
			Checked: e.checked[visibility.EntityRef{Kind: registry.KindBuilding, ID: id}],
			Hidden:  b.Filtered(),
			Units:   b.Units,
			Members: b.MemberCount,
			VTU:     b.IsVTU,
		})
	}
	u.TableSummary, u.TableScope = summary.Table(rows)

	return u
}
