package ohlcvcache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/StaithValanthis/xsmom-bot/internal/domain"
)

func hourlyBar(symbol string, t time.Time, close float64) domain.Bar {
	return domain.Bar{
		Symbol: symbol, Timeframe: domain.Timeframe1h, Timestamp: t,
		Open: close, High: close + 1, Low: close - 1, Close: close, Volume: 10,
	}
}

func TestValidator_ValidateSanity_FlagsOnlyBrokenBars(t *testing.T) {
	v := NewValidator()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	good := hourlyBar("BTCUSDT", start, 100)
	bad := domain.Bar{Symbol: "BTCUSDT", Timeframe: domain.Timeframe1h, Timestamp: start.Add(time.Hour),
		Open: 100, High: 90, Low: 80, Close: 100, Volume: 10}

	errs := v.ValidateSanity([]domain.Bar{good, bad})
	assert.Len(t, errs, 1)
}

func TestValidator_DetectGaps_FindsMissingHour(t *testing.T) {
	v := NewValidator()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := []domain.Bar{
		hourlyBar("BTCUSDT", start, 100),
		hourlyBar("BTCUSDT", start.Add(2*time.Hour), 101),
	}

	gaps := v.DetectGaps(bars, domain.Timeframe1h, start, start.Add(2*time.Hour))
	assert.Equal(t, []time.Time{start.Add(time.Hour)}, gaps)
}

func TestValidator_DetectGaps_NoGapsWhenContiguous(t *testing.T) {
	v := NewValidator()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := []domain.Bar{
		hourlyBar("BTCUSDT", start, 100),
		hourlyBar("BTCUSDT", start.Add(time.Hour), 101),
		hourlyBar("BTCUSDT", start.Add(2*time.Hour), 102),
	}
	gaps := v.DetectGaps(bars, domain.Timeframe1h, start, start.Add(2*time.Hour))
	assert.Empty(t, gaps)
}

func TestValidator_DetectSpikes_FlagsOutlierReturn(t *testing.T) {
	v := NewValidator()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var bars []domain.Bar
	price := 100.0
	for i := 0; i < 30; i++ {
		bars = append(bars, hourlyBar("BTCUSDT", start.Add(time.Duration(i)*time.Hour), price))
		price *= 1.001
	}
	// inject a violent spike
	bars = append(bars, hourlyBar("BTCUSDT", start.Add(30*time.Hour), price*2))

	flagged := v.DetectSpikes(bars, 10, 3.0)
	assert.NotEmpty(t, flagged)
	assert.Equal(t, bars[len(bars)-1].Timestamp, flagged[len(flagged)-1].Timestamp)
}

func TestValidator_DetectSpikes_InsufficientHistoryReturnsNil(t *testing.T) {
	v := NewValidator()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := []domain.Bar{hourlyBar("BTCUSDT", start, 100), hourlyBar("BTCUSDT", start.Add(time.Hour), 101)}
	assert.Nil(t, v.DetectSpikes(bars, 10, 3.0))
}

func TestFormatWarning_IncludesTagSymbolAndDetail(t *testing.T) {
	msg := FormatWarning("BTCUSDT", "gap", "missing 1 bar")
	assert.Contains(t, msg, "validation_tag=gap")
	assert.Contains(t, msg, "symbol=BTCUSDT")
	assert.Contains(t, msg, "detail=missing 1 bar")
}
