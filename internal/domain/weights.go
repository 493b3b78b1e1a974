package domain

import "math"

// TargetWeight is a single instrument's signed fractional portfolio weight.
type TargetWeight struct {
	Symbol string
	Weight float64 // signed, fraction of equity
}

// TargetWeightMap is the sizing engine's output for one cycle. The invariants
// (gross leverage, per-asset cap, market-neutral epsilon) are
// enforced by the sizing engine before a map is returned to callers; Validate
// re-checks them so downstream consumers never act on a broken map.
type TargetWeightMap struct {
	Weights        []TargetWeight
	GrossLeverage  float64 // configured ceiling, Σ|w| must not exceed this
	MaxPerAsset    float64
	MarketNeutral  bool
	NeutralEpsilon float64
}

// GrossExposure returns Σ|w_i|.
func (m TargetWeightMap) GrossExposure() float64 {
	sum := 0.0
	for _, w := range m.Weights {
		sum += math.Abs(w.Weight)
	}
	return sum
}

// NetExposure returns Σ w_i.
func (m TargetWeightMap) NetExposure() float64 {
	sum := 0.0
	for _, w := range m.Weights {
		sum += w.Weight
	}
	return sum
}

// NonZeroCount returns the number of weights with a nonzero value.
func (m TargetWeightMap) NonZeroCount() int {
	n := 0
	for _, w := range m.Weights {
		if w.Weight != 0 {
			n++
		}
	}
	return n
}

// Validate checks the book's invariants: gross leverage,
// per-asset cap, and (if configured) market neutrality within epsilon.
func (m TargetWeightMap) Validate() error {
	const leverageSlack = 1e-6
	if gross := m.GrossExposure(); gross > m.GrossLeverage+leverageSlack {
		return NewInvariantError("gross exposure %.6f exceeds configured gross_leverage %.6f", gross, m.GrossLeverage)
	}
	for _, w := range m.Weights {
		if math.Abs(w.Weight) > m.MaxPerAsset+leverageSlack {
			return NewInvariantError("weight %.6f for %s exceeds max_weight_per_asset %.6f", w.Weight, w.Symbol, m.MaxPerAsset)
		}
	}
	if m.MarketNeutral {
		if net := math.Abs(m.NetExposure()); net > m.NeutralEpsilon {
			return NewInvariantError("net exposure %.6f exceeds market-neutral epsilon %.6f", net, m.NeutralEpsilon)
		}
	}
	return nil
}

// Lookup returns the weight for symbol, or 0 if absent.
func (m TargetWeightMap) Lookup(symbol string) float64 {
	for _, w := range m.Weights {
		if w.Symbol == symbol {
			return w.Weight
		}
	}
	return 0
}
