package optimizer

import (
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// MCConfig bounds the Monte-Carlo stress test's perturbation.
type MCConfig struct {
	Iterations    int
	BlockSize     int
	FeeMultMin    float64
	FeeMultMax    float64
	SlippageRange float64 // additive bps noise, +/- this amount
}

// MCResult summarizes the stress test's drawdown distribution.
type MCResult struct {
	P95Drawdown   float64
	P99Drawdown   float64
	TailDrawdown  float64 // worst single path
}

// Stress block-bootstraps the OOS return sequence to preserve
// autocorrelation, perturbs each resampled path by a random fee/slippage
// multiplier within cfg's bounds, and collects the resulting drawdown
// distribution.
func Stress(returns []float64, cfg MCConfig, rng *rand.Rand) MCResult {
	if len(returns) == 0 || cfg.Iterations <= 0 {
		return MCResult{}
	}
	blockSize := cfg.BlockSize
	if blockSize <= 0 || blockSize > len(returns) {
		blockSize = len(returns)
	}

	drawdowns := make([]float64, 0, cfg.Iterations)
	for i := 0; i < cfg.Iterations; i++ {
		path := blockBootstrap(returns, blockSize, len(returns), rng)
		feeMult := cfg.FeeMultMin + rng.Float64()*(cfg.FeeMultMax-cfg.FeeMultMin)
		slipNoise := (rng.Float64()*2 - 1) * cfg.SlippageRange / 10000

		equity, peak, maxDD := 1.0, 1.0, 0.0
		for _, r := range path {
			adjusted := r*feeMult - slipNoise
			equity *= (1 + adjusted)
			if equity > peak {
				peak = equity
			}
			dd := (peak - equity) / peak
			if dd > maxDD {
				maxDD = dd
			}
		}
		drawdowns = append(drawdowns, maxDD)
	}

	sortedCopy := append([]float64(nil), drawdowns...)
	sort.Float64s(sortedCopy)
	p95 := stat.Quantile(0.95, stat.Empirical, sortedCopy, nil)
	p99 := stat.Quantile(0.99, stat.Empirical, sortedCopy, nil)
	tail := 0.0
	for _, dd := range drawdowns {
		tail = math.Max(tail, dd)
	}

	return MCResult{P95Drawdown: p95, P99Drawdown: p99, TailDrawdown: tail}
}

// blockBootstrap resamples overlapping blocks of length blockSize from
// returns until a path of length n is assembled.
func blockBootstrap(returns []float64, blockSize, n int, rng *rand.Rand) []float64 {
	out := make([]float64, 0, n)
	for len(out) < n {
		start := rng.Intn(len(returns))
		for i := 0; i < blockSize && len(out) < n; i++ {
			out = append(out, returns[(start+i)%len(returns)])
		}
	}
	return out
}
