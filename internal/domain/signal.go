package domain

import "sort"

// SignalRow is one instrument's signal computation for a single cycle.
// Lifetime is exactly one cycle; it is never persisted across cycles.
type SignalRow struct {
	Symbol        string
	RawReturn     float64 // weighted multi-lookback return r_i
	ZScore        float64 // cross-sectional z-score
	Amplified     float64 // sign(z)*|z|^p, zero if filtered out
	PassesFilters bool
	FilterReason  string // which filter zeroed it, empty if none
	Volatility    float64 // trailing return volatility
	ATR           float64
}

// SignalTable is the full cross-section produced by one cycle.
type SignalTable struct {
	Rows    []SignalRow
	Breadth float64 // fraction of universe with |amplified|>0 and above entry threshold
}

// ByAmplifiedDesc returns a copy of rows sorted by Amplified descending.
func (t SignalTable) ByAmplifiedDesc() []SignalRow {
	out := make([]SignalRow, len(t.Rows))
	copy(out, t.Rows)
	sort.Slice(out, func(i, j int) bool { return out[i].Amplified > out[j].Amplified })
	return out
}
