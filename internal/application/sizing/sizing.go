// Package sizing implements the position sizing engine: top-K selection,
// inverse-volatility or fixed-risk sizing, market-neutral centering,
// gross-leverage normalization, caps, vol targeting, Kelly scaling,
// volatility-regime scaling, a gonum/stat correlation limiter, and the
// hard position-count cap.
package sizing

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/StaithValanthis/xsmom-bot/internal/domain"
)

// Mode selects the raw-weight sizing formula.
type Mode int

const (
	ModeInverseVolatility Mode = iota
	ModeFixedRiskPerTrade
)

// Config bundles the sizing engine's tunable parameters.
type Config struct {
	KMin, KMax            int
	DynamicK              bool
	Mode                  Mode
	VolLookback           int
	RiskPerTradePct       float64
	ATRMultSL             float64
	MarketNeutral         bool
	NeutralEpsilon        float64
	GrossLeverage         float64
	MaxWeightPerAsset     float64
	NotionalCapUSDT       float64
	ADVPercentCap         float64
	VolTargetEnabled      bool
	TargetAnnVol          float64
	MinScale, MaxScale    float64
	KellyEnabled          bool
	KellyFraction         float64
	HighVolMult           float64
	MaxScaleDown          float64
	CorrelationEnabled    bool
	MaxAllowedCorr        float64
	MaxHighCorrPositions  int
	LookbackHours         int
	MaxOpenPositionsHard  int
}

// Inputs carries the per-cycle data the sizing engine needs beyond the
// signal table.
type Inputs struct {
	Equity          float64
	ReturnsBySymbol map[string][]float64 // aligned recent per-bar returns, for vol targeting and correlation
	ADV24hUSD       map[string]float64
	BTCProxyATRNow  float64
	BTCProxyATRBase float64
	WinRateBySymbol map[string]float64
	AvgWinLossRatio map[string]float64
}

// Compute runs the full sizing pipeline and returns a domain.TargetWeightMap
// whose invariants are guaranteed to hold.
func Compute(cfg Config, table domain.SignalTable, in Inputs) domain.TargetWeightMap {
	selected := topKSelect(cfg, table)
	raw := rawWeights(cfg, selected, in)

	if cfg.MarketNeutral {
		raw = centerMarketNeutral(raw)
	}

	raw = normalizeGrossLeverage(raw, cfg.GrossLeverage)
	raw = applyPerAssetCaps(cfg, raw, in)

	if cfg.VolTargetEnabled {
		raw = applyVolTarget(cfg, raw, in)
	}
	if cfg.KellyEnabled {
		raw = applyKelly(cfg, raw, in)
	}
	raw = applyVolatilityRegimeScale(cfg, raw, in)

	if cfg.CorrelationEnabled {
		raw = applyCorrelationLimiter(cfg, raw, in)
	}
	raw = applyHardPositionCap(cfg, raw)

	// The per-asset cap, vol target, Kelly, correlation limiter, and hard
	// position cap all run after centerMarketNeutral and can each
	// reintroduce a non-zero net; re-center once more and re-clip so the
	// market-neutral and per-asset invariants both still hold on exit.
	if cfg.MarketNeutral {
		raw = centerMarketNeutral(raw)
		raw = applyPerAssetCaps(cfg, raw, in)
	}

	weights := make([]domain.TargetWeight, 0, len(raw))
	for sym, w := range raw {
		weights = append(weights, domain.TargetWeight{Symbol: sym, Weight: w})
	}
	sort.Slice(weights, func(i, j int) bool { return weights[i].Symbol < weights[j].Symbol })

	return domain.TargetWeightMap{
		Weights:        weights,
		GrossLeverage:  cfg.GrossLeverage,
		MaxPerAsset:    cfg.MaxWeightPerAsset,
		MarketNeutral:  cfg.MarketNeutral,
		NeutralEpsilon: cfg.NeutralEpsilon,
	}
}

// ReapplyCaps re-runs the gross-leverage and per-asset caps on a weight
// map assembled outside Compute's own pipeline (the carry-sleeve blend),
// so a blend that breaches either cap is re-capped rather than left to
// fail domain.TargetWeightMap.Validate and abort the cycle.
func ReapplyCaps(cfg Config, weights map[string]float64) map[string]float64 {
	weights = normalizeGrossLeverage(weights, cfg.GrossLeverage)
	weights = applyPerAssetCaps(cfg, weights, Inputs{})
	return weights
}

// topKSelect picks the top K longs and top K shorts by
// amplified score. K is dynamic (mapped from median(|z|) into
// [KMin,KMax]) or fixed.
func topKSelect(cfg Config, table domain.SignalTable) []domain.SignalRow {
	candidates := make([]domain.SignalRow, 0, len(table.Rows))
	for _, r := range table.Rows {
		if r.PassesFilters && r.Amplified != 0 {
			candidates = append(candidates, r)
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	k := cfg.KMax
	if cfg.DynamicK {
		k = dynamicK(cfg, candidates)
	}
	if k <= 0 {
		k = 1
	}

	sorted := make([]domain.SignalRow, len(candidates))
	copy(sorted, candidates)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Amplified > sorted[j].Amplified })

	var out []domain.SignalRow
	longCount := 0
	for _, r := range sorted {
		if r.Amplified > 0 && longCount < k {
			out = append(out, r)
			longCount++
		}
	}
	shortCount := 0
	for i := len(sorted) - 1; i >= 0; i-- {
		r := sorted[i]
		if r.Amplified < 0 && shortCount < k {
			out = append(out, r)
			shortCount++
		}
	}
	return out
}

func dynamicK(cfg Config, rows []domain.SignalRow) int {
	abs := make([]float64, len(rows))
	for i, r := range rows {
		abs[i] = math.Abs(r.ZScore)
	}
	sort.Float64s(abs)
	median := stat.Quantile(0.5, stat.Empirical, abs, nil)

	// Linear map of the dispersion statistic into [KMin, KMax]; higher
	// dispersion (more confident cross-section) permits more names.
	const dispersionCeiling = 3.0
	frac := median / dispersionCeiling
	if frac > 1 {
		frac = 1
	}
	if frac < 0 {
		frac = 0
	}
	k := cfg.KMin + int(math.Round(frac*float64(cfg.KMax-cfg.KMin)))
	if k < cfg.KMin {
		k = cfg.KMin
	}
	if k > cfg.KMax {
		k = cfg.KMax
	}
	return k
}

// rawWeights computes the unnormalized per-symbol weight.
func rawWeights(cfg Config, rows []domain.SignalRow, in Inputs) map[string]float64 {
	out := make(map[string]float64, len(rows))
	for _, r := range rows {
		sign := 1.0
		if r.Amplified < 0 {
			sign = -1.0
		}
		switch cfg.Mode {
		case ModeFixedRiskPerTrade:
			stopDistance := cfg.ATRMultSL * r.ATR
			if stopDistance <= 0 || in.Equity <= 0 {
				out[r.Symbol] = 0
				continue
			}
			lossBudget := cfg.RiskPerTradePct * in.Equity
			out[r.Symbol] = sign * (lossBudget / stopDistance) / in.Equity
		default: // ModeInverseVolatility
			vol := r.Volatility
			if vol <= 0 {
				vol = 1e-6
			}
			out[r.Symbol] = sign / vol
		}
	}
	return out
}

// centerMarketNeutral re-centers the book to market-neutral.
func centerMarketNeutral(raw map[string]float64) map[string]float64 {
	if len(raw) == 0 {
		return raw
	}
	sum := 0.0
	for _, w := range raw {
		sum += w
	}
	mean := sum / float64(len(raw))
	out := make(map[string]float64, len(raw))
	for sym, w := range raw {
		out[sym] = w - mean
	}
	return out
}

// normalizeGrossLeverage scales so Σ|w| equals
// grossLeverage.
func normalizeGrossLeverage(raw map[string]float64, grossLeverage float64) map[string]float64 {
	gross := 0.0
	for _, w := range raw {
		gross += math.Abs(w)
	}
	if gross <= 0 {
		return raw
	}
	scale := grossLeverage / gross
	out := make(map[string]float64, len(raw))
	for sym, w := range raw {
		out[sym] = w * scale
	}
	return out
}

// applyPerAssetCaps clips by max_weight_per_asset,
// notional_cap_usdt/equity, and an ADV-percent cap.
func applyPerAssetCaps(cfg Config, raw map[string]float64, in Inputs) map[string]float64 {
	out := make(map[string]float64, len(raw))
	for sym, w := range raw {
		limit := cfg.MaxWeightPerAsset
		if in.Equity > 0 && cfg.NotionalCapUSDT > 0 {
			limit = math.Min(limit, cfg.NotionalCapUSDT/in.Equity)
		}
		if cfg.ADVPercentCap > 0 {
			if adv, ok := in.ADV24hUSD[sym]; ok && in.Equity > 0 {
				limit = math.Min(limit, cfg.ADVPercentCap*adv/in.Equity)
			}
		}
		out[sym] = clip(w, limit)
	}
	return out
}

func clip(w, limit float64) float64 {
	if limit <= 0 {
		return 0
	}
	if w > limit {
		return limit
	}
	if w < -limit {
		return -limit
	}
	return w
}

// applyVolTarget scales the book toward a target annualized volatility.
func applyVolTarget(cfg Config, raw map[string]float64, in Inputs) map[string]float64 {
	realized := realizedPortfolioVol(raw, in.ReturnsBySymbol)
	if realized <= 0 {
		return raw
	}
	scale := cfg.TargetAnnVol / realized
	if scale < cfg.MinScale {
		scale = cfg.MinScale
	}
	if scale > cfg.MaxScale {
		scale = cfg.MaxScale
	}
	out := make(map[string]float64, len(raw))
	for sym, w := range raw {
		out[sym] = w * scale
	}
	return out
}

func realizedPortfolioVol(weights map[string]float64, returns map[string][]float64) float64 {
	n := 0
	for _, rs := range returns {
		if len(rs) > n {
			n = len(rs)
		}
	}
	if n == 0 {
		return 0
	}
	portfolioReturns := make([]float64, n)
	for sym, w := range weights {
		rs, ok := returns[sym]
		if !ok {
			continue
		}
		offset := n - len(rs)
		for i, r := range rs {
			portfolioReturns[offset+i] += w * r
		}
	}
	_, std := stat.MeanStdDev(portfolioReturns, nil)
	const barsPerYear = 24 * 365 // hourly bars
	return std * math.Sqrt(barsPerYear)
}

// applyKelly applies fractional-Kelly scaling from
// rolling win rate and average win/loss ratio.
func applyKelly(cfg Config, raw map[string]float64, in Inputs) map[string]float64 {
	out := make(map[string]float64, len(raw))
	for sym, w := range raw {
		winRate, ok := in.WinRateBySymbol[sym]
		if !ok {
			out[sym] = w
			continue
		}
		wlRatio := in.AvgWinLossRatio[sym]
		if wlRatio <= 0 {
			out[sym] = w
			continue
		}
		kelly := winRate - (1-winRate)/wlRatio
		if kelly < 0 {
			kelly = 0
		}
		out[sym] = w * kelly * cfg.KellyFraction
	}
	return out
}

// applyVolatilityRegimeScale down-scales the book in high-volatility regimes.
func applyVolatilityRegimeScale(cfg Config, raw map[string]float64, in Inputs) map[string]float64 {
	if in.BTCProxyATRBase <= 0 {
		return raw
	}
	ratio := in.BTCProxyATRNow / in.BTCProxyATRBase
	if ratio < cfg.HighVolMult {
		return raw
	}
	// Linear interpolation down to MaxScaleDown as ratio grows past
	// HighVolMult; ratio == 2*HighVolMult maps to MaxScaleDown.
	t := (ratio - cfg.HighVolMult) / cfg.HighVolMult
	if t > 1 {
		t = 1
	}
	scale := 1 - t*(1-cfg.MaxScaleDown)
	if scale < cfg.MaxScaleDown {
		scale = cfg.MaxScaleDown
	}
	out := make(map[string]float64, len(raw))
	for sym, w := range raw {
		out[sym] = w * scale
	}
	return out
}

// applyCorrelationLimiter trims correlated exposure using a gonum/stat/mat
// correlation matrix over the configured lookback.
func applyCorrelationLimiter(cfg Config, raw map[string]float64, in Inputs) map[string]float64 {
	symbols := make([]string, 0, len(raw))
	for sym := range raw {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	n := len(symbols)
	if n < 2 {
		return raw
	}

	barCount := 0
	for _, sym := range symbols {
		if len(in.ReturnsBySymbol[sym]) > barCount {
			barCount = len(in.ReturnsBySymbol[sym])
		}
	}
	if barCount < 2 {
		return raw
	}

	data := mat.NewDense(barCount, n, nil)
	for j, sym := range symbols {
		rs := in.ReturnsBySymbol[sym]
		offset := barCount - len(rs)
		for i := 0; i < barCount; i++ {
			if i < offset {
				continue
			}
			data.Set(i, j, rs[i-offset])
		}
	}

	var corr mat.SymDense
	stat.CorrelationMatrix(&corr, data, nil)

	keep := make(map[string]bool, n)
	for _, sym := range symbols {
		keep[sym] = true
	}

	kept := 0
	for i := 0; i < n; i++ {
		if kept >= cfg.MaxHighCorrPositions {
			break
		}
		highlyCorrelated := false
		for j := 0; j < i; j++ {
			if !keep[symbols[j]] {
				continue
			}
			if math.Abs(corr.At(i, j)) > cfg.MaxAllowedCorr {
				highlyCorrelated = true
				break
			}
		}
		if highlyCorrelated {
			// Keep the higher |w| of the pair; drop this one if it is smaller.
			if math.Abs(raw[symbols[i]]) <= maxAbsAmongKept(raw, keep, symbols, i) {
				keep[symbols[i]] = false
				continue
			}
		}
		kept++
	}

	out := make(map[string]float64, n)
	for sym, w := range raw {
		if keep[sym] {
			out[sym] = w
		}
	}
	return out
}

func maxAbsAmongKept(raw map[string]float64, keep map[string]bool, symbols []string, upTo int) float64 {
	m := 0.0
	for j := 0; j < upTo; j++ {
		if keep[symbols[j]] {
			if a := math.Abs(raw[symbols[j]]); a > m {
				m = a
			}
		}
	}
	return m
}

// applyHardPositionCap caps the number of positions: when more than
// MaxOpenPositionsHard weights remain, only that many with the largest
// absolute weight are kept.
func applyHardPositionCap(cfg Config, raw map[string]float64) map[string]float64 {
	if cfg.MaxOpenPositionsHard <= 0 || len(raw) <= cfg.MaxOpenPositionsHard {
		return raw
	}
	type kv struct {
		sym string
		w   float64
	}
	list := make([]kv, 0, len(raw))
	for sym, w := range raw {
		list = append(list, kv{sym, w})
	}
	sort.Slice(list, func(i, j int) bool { return math.Abs(list[i].w) > math.Abs(list[j].w) })
	out := make(map[string]float64, cfg.MaxOpenPositionsHard)
	for i := 0; i < cfg.MaxOpenPositionsHard; i++ {
		out[list[i].sym] = list[i].w
	}
	return out
}
