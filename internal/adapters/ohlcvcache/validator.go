package ohlcvcache

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/StaithValanthis/xsmom-bot/internal/domain"
)

// Validator implements ports.Validator's three sanity checks: OHLC
// sanity, gap detection, and log-return spike detection against a
// rolling window.
type Validator struct{}

func NewValidator() Validator { return Validator{} }

// ValidateSanity returns one error per bar that violates the OHLC
// invariant; callers log these as non-fatal warnings.
func (Validator) ValidateSanity(bars []domain.Bar) []error {
	var errs []error
	for _, b := range bars {
		if err := b.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// DetectGaps returns timeframe-aligned timestamps missing from bars
// within [from, to]. bars is assumed already sorted ascending.
func (Validator) DetectGaps(bars []domain.Bar, tf domain.Timeframe, from, to time.Time) []time.Time {
	present := make(map[int64]bool, len(bars))
	for _, b := range bars {
		present[b.Timestamp.UnixMilli()] = true
	}
	step := tf.Duration()
	if step <= 0 {
		return nil
	}
	var gaps []time.Time
	for t := from; !t.After(to); t = t.Add(step) {
		if !present[t.UnixMilli()] {
			gaps = append(gaps, t)
		}
	}
	return gaps
}

// DetectSpikes flags bars whose log return's z-score against a trailing
// window of `lookback` prior returns exceeds zThreshold in magnitude.
func (Validator) DetectSpikes(bars []domain.Bar, lookback int, zThreshold float64) []domain.Bar {
	if len(bars) < lookback+2 {
		return nil
	}

	returns := make([]float64, 0, len(bars)-1)
	for i := 1; i < len(bars); i++ {
		returns = append(returns, domain.LogReturn(bars[i-1], bars[i]))
	}

	var flagged []domain.Bar
	for i := lookback; i < len(returns); i++ {
		window := returns[i-lookback : i]
		mean, std := stat.MeanStdDev(window, nil)
		if std < 1e-12 {
			std = 1e-12
		}
		z := (returns[i] - mean) / std
		if z < 0 {
			z = -z
		}
		if z >= zThreshold {
			flagged = append(flagged, bars[i+1])
		}
	}
	return flagged
}

// FormatWarning renders a structured-tag warning string for logging,
// tagged so callers can log them as structured warnings.
func FormatWarning(symbol string, kind string, detail string) string {
	return fmt.Sprintf("validation_tag=%s symbol=%s detail=%s", kind, symbol, detail)
}
