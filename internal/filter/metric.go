// Package filter evaluates multi-criteria building filters: membership,
// neighbourhood, numeric metric ranges, and free-text search.
package filter

// Bin is one histogram bucket of a metric's value distribution, rendered
// behind the range slider in the filter panel.
type Bin struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Count int     `json:"count"`
}

// MetricConfig describes one configured numeric metric, as delivered by the
// filter-configuration resource.
type MetricConfig struct {
	Label    string  `json:"label,omitempty"`
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
	Step     float64 `json:"step,omitempty"`
	Type     string  `json:"type,omitempty"`
	Format   string  `json:"format,omitempty"`
	Decimals int     `json:"decimals,omitempty"`

	// UseLog explicitly forces or forbids logarithmic slider mapping,
	// overriding the eligibility heuristic. Nil means "decide".
	UseLog *bool `json:"use_log,omitempty"`

	// MinPositive is the smallest positive value observed; required for a
	// log mapping since log is undefined at zero.
	MinPositive *float64 `json:"min_positive,omitempty"`

	// Attr is the per-building value key this metric reads.
	Attr string `json:"attr"`

	Bins     []Bin `json:"bins,omitempty"`
	MaxCount int   `json:"max_count,omitempty"`
}

// Metric display formats.
const (
	FormatCurrency = "currency"
	FormatNumber   = "number"
	FormatRatio    = "ratio"
)

// logRatioThreshold is the max / min-positive spread above which a metric is
// considered log-scaled even without a currency format.
const logRatioThreshold = 25.0

// EffectiveStep returns the configured step, defaulting to 1 for integer
// metrics and 1/200 of the range otherwise.
func (m MetricConfig) EffectiveStep() float64 {
	if m.Step > 0 {
		return m.Step
	}
	if m.Type == "int" {
		return 1
	}
	if span := m.Max - m.Min; span > 0 {
		return span / 200
	}
	return 0.01
}

// Logarithmic reports whether this metric's slider uses a log mapping.
// An explicit UseLog wins; otherwise the heuristic applies: a log mapping
// needs a positive minimum and range spread, and is chosen for currency
// metrics or when max/min-positive is at least 25.
func (m MetricConfig) Logarithmic() bool {
	if m.UseLog != nil {
		return *m.UseLog && m.logCapable()
	}
	if !m.logCapable() {
		return false
	}
	if m.Format == FormatCurrency {
		return true
	}
	return m.Max/(*m.MinPositive) >= logRatioThreshold
}

// logCapable reports whether a log mapping is mathematically possible.
func (m MetricConfig) logCapable() bool {
	return m.MinPositive != nil && *m.MinPositive > 0 && m.Max > *m.MinPositive
}
