package exchange

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/StaithValanthis/xsmom-bot/internal/domain"
)

func TestBybitInterval_MapsKnownTimeframes(t *testing.T) {
	assert.Equal(t, "1", bybitInterval(domain.Timeframe1m))
	assert.Equal(t, "60", bybitInterval(domain.Timeframe1h))
	assert.Equal(t, "D", bybitInterval(domain.Timeframe1d))
}

func TestBybitInterval_UnknownTimeframeFallsBackToHourly(t *testing.T) {
	assert.Equal(t, "60", bybitInterval(domain.Timeframe("3m")))
}

func TestParseFloatOrZero_ParsesValidNumber(t *testing.T) {
	assert.InDelta(t, 123.45, parseFloatOrZero("123.45"), 1e-9)
}

func TestParseFloatOrZero_InvalidStringReturnsZero(t *testing.T) {
	assert.Equal(t, 0.0, parseFloatOrZero("not-a-number"))
}

func TestParseBybitKlineRow_ValidRowProducesBar(t *testing.T) {
	row := []string{"1700000000000", "100", "101", "99", "100.5", "42"}
	bar, err := parseBybitKlineRow("BTCUSDT", domain.Timeframe1h, row)
	require.NoError(t, err)
	assert.Equal(t, "BTCUSDT", bar.Symbol)
	assert.InDelta(t, 100, bar.Open, 1e-9)
	assert.InDelta(t, 100.5, bar.Close, 1e-9)
	assert.Equal(t, time.UnixMilli(1700000000000).UTC(), bar.Timestamp)
}

func TestParseBybitKlineRow_TooFewFieldsErrors(t *testing.T) {
	_, err := parseBybitKlineRow("BTCUSDT", domain.Timeframe1h, []string{"1", "2"})
	assert.Error(t, err)
}

func TestParseBybitKlineRow_BrokenOHLCErrors(t *testing.T) {
	row := []string{"1700000000000", "100", "90", "80", "100", "42"} // high < open
	_, err := parseBybitKlineRow("BTCUSDT", domain.Timeframe1h, row)
	assert.Error(t, err)
}

func TestSortedBars_OrdersByTimestampAscending(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	seen := map[int64]domain.Bar{
		t0.Add(2 * time.Hour).UnixMilli(): {Timestamp: t0.Add(2 * time.Hour)},
		t0.UnixMilli():                    {Timestamp: t0},
		t0.Add(time.Hour).UnixMilli():     {Timestamp: t0.Add(time.Hour)},
	}
	out := sortedBars(seen)
	require.Len(t, out, 3)
	assert.True(t, out[0].Timestamp.Before(out[1].Timestamp))
	assert.True(t, out[1].Timestamp.Before(out[2].Timestamp))
}
