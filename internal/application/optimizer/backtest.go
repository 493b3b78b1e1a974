package optimizer

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/StaithValanthis/xsmom-bot/internal/application/signals"
	"github.com/StaithValanthis/xsmom-bot/internal/application/sizing"
	"github.com/StaithValanthis/xsmom-bot/internal/domain"
)

// SimResult summarizes one parameterized backtest run over a bar window.
type SimResult struct {
	Sharpe       float64
	CAGR         float64
	Calmar       float64
	Turnover     float64
	MaxDrawdown  float64
	DailyReturns []float64
}

// SimConfig carries the fixed (non-searched) backtest parameters:
// lookbacks, volatility lookback, cost model, and bars per year. It
// carries no filter chain; Simulate applies no signal filters.
type SimConfig struct {
	Lookbacks    []signals.Lookback
	VolLookback  int
	FeeBps       float64
	SlippageBps  float64
	BarsPerYear  float64
}

// Simulate steps forward one bar at a time across series, recomputing the
// signal table and target weights from params at each step, and
// accumulates the portfolio return stream implied by holding those
// weights into the next bar. This approximates the trading engine's
// cycle without exchange I/O, state persistence, or the fast exit
// monitor's intra-cycle exits, which the optimizer does not model.
func Simulate(cfg SimConfig, series []signals.BarSeries, params map[string]float64) SimResult {
	n := 0
	for _, s := range series {
		if len(s.Bars) > n {
			n = len(s.Bars)
		}
	}
	if n < 10 {
		return SimResult{}
	}

	sigCfg := signals.Config{
		Lookbacks:      cfg.Lookbacks,
		SignalPower:    params["signal_power"],
		EntryZScoreMin: params["entry_zscore_min"],
		MinBreadthFrac: params["min_breadth_frac"],
		VolLookback:    cfg.VolLookback,
	}
	sizeCfg := sizing.Config{
		KMin: int(params["k_min"]), KMax: int(params["k_max"]),
		Mode: sizing.ModeInverseVolatility, VolLookback: cfg.VolLookback,
		GrossLeverage: params["gross_leverage"], MaxWeightPerAsset: params["max_weight_per_asset"],
		VolTargetEnabled: true, TargetAnnVol: params["target_ann_vol"], MinScale: 0.3, MaxScale: 2.0,
		KellyEnabled: false,
	}
	if sizeCfg.KMin < 1 {
		sizeCfg.KMin = 1
	}
	if sizeCfg.KMax < sizeCfg.KMin {
		sizeCfg.KMax = sizeCfg.KMin
	}

	costFrac := (cfg.FeeBps + cfg.SlippageBps) / 10000

	var portfolioReturns []float64
	var turnoverSum float64
	prevWeights := make(map[string]float64)

	minLookback := 20
	for t := minLookback; t < n-1; t++ {
		window := make([]signals.BarSeries, 0, len(series))
		for _, s := range series {
			if len(s.Bars) <= t {
				continue
			}
			window = append(window, signals.BarSeries{Symbol: s.Symbol, Bars: s.Bars[:t+1]})
		}
		if len(window) < 2 {
			continue
		}

		table := signals.Compute(sigCfg, window)
		returns := make(map[string][]float64, len(window))
		for _, s := range window {
			rs := make([]float64, 0, len(s.Bars))
			for i := 1; i < len(s.Bars); i++ {
				rs = append(rs, domain.LogReturn(s.Bars[i-1], s.Bars[i]))
			}
			returns[s.Symbol] = rs
		}
		weights := sizing.Compute(sizeCfg, table, sizing.Inputs{Equity: 1, ReturnsBySymbol: returns})

		turnover := 0.0
		barReturn := 0.0
		seen := make(map[string]bool)
		for _, w := range weights.Weights {
			seen[w.Symbol] = true
			prev := prevWeights[w.Symbol]
			turnover += math.Abs(w.Weight - prev)

			var nextBar, curBar *domain.Bar
			for _, s := range series {
				if s.Symbol == w.Symbol && len(s.Bars) > t+1 {
					curBar = &s.Bars[t]
					nextBar = &s.Bars[t+1]
				}
			}
			if nextBar != nil && curBar != nil && curBar.Close > 0 {
				assetReturn := nextBar.Close/curBar.Close - 1
				barReturn += w.Weight * assetReturn
			}
		}
		for sym, prev := range prevWeights {
			if !seen[sym] {
				turnover += math.Abs(prev)
			}
		}
		barReturn -= turnover * costFrac

		newWeights := make(map[string]float64)
		for _, w := range weights.Weights {
			newWeights[w.Symbol] = w.Weight
		}
		prevWeights = newWeights

		portfolioReturns = append(portfolioReturns, barReturn)
		turnoverSum += turnover
	}

	return summarize(portfolioReturns, turnoverSum, cfg.BarsPerYear)
}

func summarize(returns []float64, turnoverSum float64, barsPerYear float64) SimResult {
	if len(returns) == 0 {
		return SimResult{}
	}
	mean, std := stat.MeanStdDev(returns, nil)
	if std == 0 {
		std = 1e-9
	}
	sharpe := mean / std * math.Sqrt(barsPerYear)

	equity := 1.0
	peak := 1.0
	maxDD := 0.0
	for _, r := range returns {
		equity *= (1 + r)
		if equity > peak {
			peak = equity
		}
		dd := (peak - equity) / peak
		if dd > maxDD {
			maxDD = dd
		}
	}
	years := float64(len(returns)) / barsPerYear
	cagr := 0.0
	if years > 0 && equity > 0 {
		cagr = math.Pow(equity, 1/years) - 1
	}
	calmar := 0.0
	if maxDD > 0 {
		calmar = cagr / maxDD
	}

	return SimResult{
		Sharpe: sharpe, CAGR: cagr, Calmar: calmar,
		Turnover: turnoverSum / float64(len(returns)), MaxDrawdown: maxDD,
		DailyReturns: returns,
	}
}

// Objective computes the weighted scalar score:
// w_sharpe*Sharpe + w_cagr*AnnReturn + w_calmar*Calmar - lambda*Turnover.
func Objective(r SimResult, wSharpe, wCagr, wCalmar, lambdaTurnover float64) float64 {
	return wSharpe*r.Sharpe + wCagr*r.CAGR + wCalmar*r.Calmar - lambdaTurnover*r.Turnover
}
