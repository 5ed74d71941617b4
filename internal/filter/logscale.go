package filter

import "math"

// Slider positions run 0..100 regardless of the metric's value domain.
const sliderMax = 100.0

// FromSlider maps a slider position to a metric value under the metric's log
// mapping: f(p) = exp(logMin + (p/100)·(logMax − logMin)). Positions are
// clamped to [0, 100]. Falls back to a linear mapping when the metric is not
// logarithmic.
func FromSlider(pos float64, m MetricConfig) float64 {
	if pos < 0 {
		pos = 0
	}
	if pos > sliderMax {
		pos = sliderMax
	}
	if !m.Logarithmic() {
		return m.Min + (pos/sliderMax)*(m.Max-m.Min)
	}
	logMin := math.Log(*m.MinPositive)
	logMax := math.Log(m.Max)
	return math.Exp(logMin + (pos/sliderMax)*(logMax-logMin))
}

// ToSlider maps a metric value back to a slider position, the inverse of
// FromSlider. Values at or below zero map to position 0 under a log mapping.
func ToSlider(value float64, m MetricConfig) float64 {
	if !m.Logarithmic() {
		span := m.Max - m.Min
		if span <= 0 {
			return 0
		}
		return clampPos((value - m.Min) / span * sliderMax)
	}
	if value <= 0 {
		return 0
	}
	logMin := math.Log(*m.MinPositive)
	logMax := math.Log(m.Max)
	if logMax <= logMin {
		return 0
	}
	return clampPos((math.Log(value) - logMin) / (logMax - logMin) * sliderMax)
}

func clampPos(p float64) float64 {
	if p < 0 {
		return 0
	}
	if p > sliderMax {
		return sliderMax
	}
	return p
}
