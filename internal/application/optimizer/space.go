// Package optimizer implements the walk-forward + Bayesian + Monte-Carlo
// search that produces versioned configurations and deploys them behind
// safety guards. It is invoked as a single-shot process on a schedule; it
// never runs inside the trading engine's address space.
package optimizer

// ParamRange is a closed, frozen search interval for one parameter.
type ParamRange struct {
	Min, Max float64
}

// ParameterSpace is the small, well-typed search space the Bayesian
// sampler explores. Ranges are frozen and documented here rather than
// left open-ended.
type ParameterSpace map[string]ParamRange

// DefaultSpace is the approximately 11-parameter space covering the
// signal, filter, and sizing knobs worth re-fitting.
func DefaultSpace() ParameterSpace {
	return ParameterSpace{
		"signal_power":         {Min: 0.5, Max: 2.5},
		"entry_zscore_min":     {Min: 0.2, Max: 1.5},
		"min_breadth_frac":     {Min: 0.1, Max: 0.6},
		"k_min":                {Min: 2, Max: 8},
		"k_max":                {Min: 6, Max: 20},
		"atr_mult_sl":          {Min: 1.0, Max: 4.0},
		"gross_leverage":       {Min: 0.5, Max: 2.0},
		"max_weight_per_asset": {Min: 0.1, Max: 0.4},
		"target_ann_vol":       {Min: 0.1, Max: 0.6},
		"kelly_fraction":       {Min: 0.1, Max: 1.0},
		"trail_atr_mult":       {Min: 1.0, Max: 4.0},
	}
}

// Clamp bounds v into [Min, Max].
func (r ParamRange) Clamp(v float64) float64 {
	if v < r.Min {
		return r.Min
	}
	if v > r.Max {
		return r.Max
	}
	return v
}

// Midpoint returns the center of the range.
func (r ParamRange) Midpoint() float64 {
	return (r.Min + r.Max) / 2
}
