// Package signals computes the cross-sectional momentum signal table for
// one cycle: weighted multi-lookback returns, cross-sectional z-scores
// via gonum/stat, nonlinear amplification, and the ordered filter chain
// for cross-sectional momentum scoring.
package signals

import (
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/StaithValanthis/xsmom-bot/internal/domain"
)

// Lookback is one configured (bars, weight) pair in the weighted
// multi-lookback return. Weights are frozen at standard values, not
// optimized.
type Lookback struct {
	Bars   int
	Weight float64
}

// Config holds the signals-section parameters consumed by Compute.
type Config struct {
	Lookbacks      []Lookback
	SignalPower    float64 // p in s_i = sign(z_i)*|z_i|^p
	EntryZScoreMin float64
	MinBreadthFrac float64
	VolLookback    int
}

// BarSeries is one instrument's recent bars, ascending by time, used to
// compute returns, volatility, and ATR.
type BarSeries struct {
	Symbol string
	Bars   []domain.Bar
}

// Compute runs the momentum scoring steps (weighted return, z-score, amplification)
// and the breadth check; filters are applied separately by ApplyFilterChain
// so each filter stays independently testable.
func Compute(cfg Config, series []BarSeries) domain.SignalTable {
	rows := make([]domain.SignalRow, 0, len(series))
	for _, s := range series {
		r := weightedReturn(cfg.Lookbacks, s.Bars)
		vol := trailingVolatility(s.Bars, cfg.VolLookback)
		atr := AverageTrueRange(s.Bars, 14)
		rows = append(rows, domain.SignalRow{
			Symbol:     s.Symbol,
			RawReturn:  r,
			Volatility: vol,
			ATR:        atr,
		})
	}

	raw := make([]float64, len(rows))
	for i, r := range rows {
		raw[i] = r.RawReturn
	}
	mean, std := stat.MeanStdDev(raw, nil)
	const epsilon = 1e-9
	if std < epsilon {
		std = epsilon
	}

	above := 0
	for i := range rows {
		z := (rows[i].RawReturn - mean) / std
		rows[i].ZScore = z
		rows[i].Amplified = amplify(z, cfg.SignalPower)
		rows[i].PassesFilters = true
		if math.Abs(rows[i].Amplified) > 0 && math.Abs(z) >= cfg.EntryZScoreMin {
			above++
		}
	}

	breadth := 0.0
	if len(rows) > 0 {
		breadth = float64(above) / float64(len(rows))
	}

	table := domain.SignalTable{Rows: rows, Breadth: breadth}
	if breadth < cfg.MinBreadthFrac {
		for i := range table.Rows {
			table.Rows[i].Amplified = 0
			table.Rows[i].PassesFilters = false
			table.Rows[i].FilterReason = "breadth_below_minimum"
		}
	}
	return table
}

func amplify(z, power float64) float64 {
	if z == 0 {
		return 0
	}
	sign := 1.0
	if z < 0 {
		sign = -1.0
	}
	return sign * math.Pow(math.Abs(z), power)
}

// weightedReturn computes r_i = Σ_k w_k * (close_t/close_{t-L_k} - 1).
func weightedReturn(lookbacks []Lookback, bars []domain.Bar) float64 {
	if len(bars) == 0 {
		return 0
	}
	last := bars[len(bars)-1].Close
	if last <= 0 {
		return 0
	}

	sum := 0.0
	for _, lb := range lookbacks {
		idx := len(bars) - 1 - lb.Bars
		if idx < 0 {
			continue
		}
		prior := bars[idx].Close
		if prior <= 0 {
			continue
		}
		sum += lb.Weight * (last/prior - 1)
	}
	return sum
}

// trailingVolatility is the standard deviation of per-bar log returns
// over the trailing lookback window.
func trailingVolatility(bars []domain.Bar, lookback int) float64 {
	if lookback <= 0 || len(bars) < lookback+1 {
		lookback = len(bars) - 1
	}
	if lookback <= 0 {
		return 0
	}
	start := len(bars) - 1 - lookback
	returns := make([]float64, 0, lookback)
	for i := start + 1; i < len(bars); i++ {
		returns = append(returns, domain.LogReturn(bars[i-1], bars[i]))
	}
	if len(returns) < 2 {
		return 0
	}
	_, std := stat.MeanStdDev(returns, nil)
	return std
}

// AverageTrueRange computes a simple-moving-average ATR over the
// trailing `period` bars.
func AverageTrueRange(bars []domain.Bar, period int) float64 {
	if len(bars) < 2 {
		return 0
	}
	if period > len(bars)-1 {
		period = len(bars) - 1
	}
	if period <= 0 {
		return 0
	}

	trs := make([]float64, 0, period)
	start := len(bars) - period
	for i := start; i < len(bars); i++ {
		if i == 0 {
			continue
		}
		prevClose := bars[i-1].Close
		hl := bars[i].High - bars[i].Low
		hc := math.Abs(bars[i].High - prevClose)
		lc := math.Abs(bars[i].Low - prevClose)
		tr := math.Max(hl, math.Max(hc, lc))
		trs = append(trs, tr)
	}
	if len(trs) == 0 {
		return 0
	}
	sum := 0.0
	for _, tr := range trs {
		sum += tr
	}
	return sum / float64(len(trs))
}

// EMA computes the exponential moving average of closes over the given
// length, returning one value per bar (same length as input, with the
// first value seeded to the first close).
func EMA(bars []domain.Bar, length int) []float64 {
	out := make([]float64, len(bars))
	if len(bars) == 0 || length <= 0 {
		return out
	}
	alpha := 2.0 / (float64(length) + 1)
	out[0] = bars[0].Close
	for i := 1; i < len(bars); i++ {
		out[i] = alpha*bars[i].Close + (1-alpha)*out[i-1]
	}
	return out
}

// SlopeBpsPerDay returns the EMA's slope over the trailing window,
// normalized to basis points per day, for the regime filter.
func SlopeBpsPerDay(bars []domain.Bar, emaLen int, tf domain.Timeframe) float64 {
	ema := EMA(bars, emaLen)
	if len(ema) < 2 {
		return 0
	}
	first, last := ema[0], ema[len(ema)-1]
	if first <= 0 {
		return 0
	}
	elapsed := tf.Duration() * time.Duration(len(ema)-1)
	days := elapsed.Hours() / 24
	if days <= 0 {
		return 0
	}
	return (last/first - 1) * 10000 / days
}
