package filter

import (
	"strconv"
	"strings"

	"github.com/Bubblbu/sica-mapping/internal/registry"
)

// Range is one metric's active constraint. Nil bounds mean no constraint on
// that side.
type Range struct {
	Min *float64 `json:"min"`
	Max *float64 `json:"max"`
}

// Criteria is the current UI filter state.
type Criteria struct {
	// RequireMembership narrows membership records to those tagged as
	// members before the verdict.
	RequireMembership bool `json:"require_membership"`

	// MinYear, when set, requires a membership record whose latest year is
	// at least this value. Records without a year fail the narrowing.
	MinYear *int `json:"min_year"`

	// NeighbourhoodOptions reports whether the UI exposes neighbourhood
	// checkboxes at all. When it does and none are selected, every
	// building fails: selecting nothing shows nothing.
	NeighbourhoodOptions bool            `json:"neighbourhood_options"`
	Neighbourhoods       map[string]bool `json:"neighbourhoods"`

	// MetricRanges maps metric id to its active range constraint.
	MetricRanges map[string]Range `json:"metric_ranges"`

	// Search is a free-text substring match against the building's
	// precomputed haystack, applied last.
	Search string `json:"search"`
}

// Evaluator computes pass/fail verdicts for buildings against criteria.
type Evaluator struct {
	metrics map[string]MetricConfig
	stats   *Metrics
}

// NewEvaluator creates an evaluator over the configured metrics. The stats
// collector may be nil.
func NewEvaluator(metrics map[string]MetricConfig, stats *Metrics) *Evaluator {
	return &Evaluator{metrics: metrics, stats: stats}
}

// Evaluate returns the conjunction of the membership, neighbourhood, metric,
// and search sub-rules for one building.
func (ev *Evaluator) Evaluate(b *registry.Building, c Criteria) bool {
	pass := membershipPasses(b, c) &&
		neighbourhoodPasses(b, c) &&
		ev.metricsPass(b, c) &&
		searchPasses(b, c)
	if ev.stats != nil {
		ev.stats.observeVerdict(pass)
	}
	return pass
}

// EvaluateAll computes verdicts for every building in the registry.
func (ev *Evaluator) EvaluateAll(reg *registry.Registry, c Criteria) map[string]bool {
	verdicts := make(map[string]bool, len(reg.Buildings))
	for id, b := range reg.Buildings {
		verdicts[id] = ev.Evaluate(b, c)
	}
	return verdicts
}

// MembershipPasses reports the membership sub-rule verdict alone; the style
// engine consumes it for the color mode.
func (ev *Evaluator) MembershipPasses(b *registry.Building, c Criteria) bool {
	return membershipPasses(b, c)
}

// membershipPasses: with no membership constraint the rule always passes.
// Otherwise the building needs at least one record surviving the narrowing
// chain: member tag first, then minimum year.
func membershipPasses(b *registry.Building, c Criteria) bool {
	if !c.RequireMembership && c.MinYear == nil {
		return true
	}
	if len(b.MembershipRecords) == 0 {
		return false
	}
	for _, rec := range b.MembershipRecords {
		if c.RequireMembership && !rec.HasMemberTag {
			continue
		}
		if c.MinYear != nil {
			if rec.LatestMembershipYear == nil || *rec.LatestMembershipYear < *c.MinYear {
				continue
			}
		}
		return true
	}
	return false
}

// neighbourhoodPasses: no exposed options means the rule always passes;
// exposed options with none selected fail everything; otherwise the
// building's neighbourhood must be in the selected set, compared
// case-insensitively after trimming.
func neighbourhoodPasses(b *registry.Building, c Criteria) bool {
	if !c.NeighbourhoodOptions {
		return true
	}
	selected := false
	for _, on := range c.Neighbourhoods {
		if on {
			selected = true
			break
		}
	}
	if !selected {
		return false
	}
	return c.Neighbourhoods[NormalizeNeighbourhood(b.Neighbourhood)]
}

// NormalizeNeighbourhood canonicalizes a neighbourhood name for comparison.
func NormalizeNeighbourhood(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// NormalizeSelection canonicalizes the keys of a neighbourhood selection so
// client-sent names compare against building neighbourhoods regardless of
// case or surrounding whitespace. Duplicate keys collapsing to the same
// canonical name stay selected if any of them was.
func NormalizeSelection(sel map[string]bool) map[string]bool {
	if len(sel) == 0 {
		return sel
	}
	out := make(map[string]bool, len(sel))
	for name, on := range sel {
		key := NormalizeNeighbourhood(name)
		out[key] = out[key] || on
	}
	return out
}

// metricsPass is the conjunction across all configured metrics. A missing or
// unparseable building value passes; a bound within half a step of the
// metric's global extreme is inactive, avoiding floating-point false
// restriction at the slider ends.
func (ev *Evaluator) metricsPass(b *registry.Building, c Criteria) bool {
	for id, rng := range c.MetricRanges {
		cfg, ok := ev.metrics[id]
		if !ok {
			continue
		}
		value, present := b.Metrics[cfg.Attr]
		if !present {
			continue
		}
		halfStep := cfg.EffectiveStep() / 2
		if rng.Min != nil && *rng.Min > cfg.Min+halfStep && value < *rng.Min {
			return false
		}
		if rng.Max != nil && *rng.Max < cfg.Max-halfStep && value > *rng.Max {
			return false
		}
	}
	return true
}

// searchPasses applies the free-text sub-rule last: a case-insensitive
// substring match against the precomputed haystack.
func searchPasses(b *registry.Building, c Criteria) bool {
	needle := strings.ToLower(strings.TrimSpace(c.Search))
	if needle == "" {
		return true
	}
	return strings.Contains(strings.ToLower(b.Search), needle)
}

// ParseNumber parses a numeric filter input. Malformed input degrades to
// "no constraint" (nil) rather than failing the whole filter pass.
func ParseNumber(s string) *float64 {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}
