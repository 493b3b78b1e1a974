package signals

import "github.com/StaithValanthis/xsmom-bot/internal/domain"

// ADX returns a directional-strength reading (nominally period 14, for the
// optional ADX filter): a single DX value built from plain sums of +DM, -DM
// and true range over the trailing `period` bars. It applies no Wilder
// smoothing and does not average DX over time.
func ADX(bars []domain.Bar, period int) float64 {
	if period <= 0 || len(bars) < period+1 {
		return 0
	}

	n := len(bars)
	plusDM := make([]float64, 0, n-1)
	minusDM := make([]float64, 0, n-1)
	tr := make([]float64, 0, n-1)

	for i := 1; i < n; i++ {
		upMove := bars[i].High - bars[i-1].High
		downMove := bars[i-1].Low - bars[i].Low

		pdm, mdm := 0.0, 0.0
		if upMove > downMove && upMove > 0 {
			pdm = upMove
		}
		if downMove > upMove && downMove > 0 {
			mdm = downMove
		}
		plusDM = append(plusDM, pdm)
		minusDM = append(minusDM, mdm)

		hl := bars[i].High - bars[i].Low
		hc := absF(bars[i].High - bars[i-1].Close)
		lc := absF(bars[i].Low - bars[i-1].Close)
		tr = append(tr, maxF(hl, maxF(hc, lc)))
	}

	sumTR := sumTail(tr, period)
	sumPlusDM := sumTail(plusDM, period)
	sumMinusDM := sumTail(minusDM, period)
	if sumTR <= 0 {
		return 0
	}

	plusDI := 100 * sumPlusDM / sumTR
	minusDI := 100 * sumMinusDM / sumTR
	diSum := plusDI + minusDI
	if diSum <= 0 {
		return 0
	}
	dx := 100 * absF(plusDI-minusDI) / diSum
	return dx
}

func sumTail(vals []float64, n int) float64 {
	if n > len(vals) {
		n = len(vals)
	}
	sum := 0.0
	for _, v := range vals[len(vals)-n:] {
		sum += v
	}
	return sum
}

func maxF(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
