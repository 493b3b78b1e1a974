package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBar_Validate_OK(t *testing.T) {
	b := Bar{Symbol: "BTCUSDT", Open: 100, High: 105, Low: 98, Close: 102, Volume: 10}
	assert.NoError(t, b.Validate())
}

func TestBar_Validate_HighBelowClose(t *testing.T) {
	b := Bar{Symbol: "BTCUSDT", Open: 100, High: 101, Low: 98, Close: 102, Volume: 10}
	assert.Error(t, b.Validate())
}

func TestBar_Validate_NegativeVolume(t *testing.T) {
	b := Bar{Symbol: "BTCUSDT", Open: 100, High: 105, Low: 98, Close: 102, Volume: -1}
	assert.Error(t, b.Validate())
}

func TestBar_AlignedTimestamp(t *testing.T) {
	b := Bar{Timeframe: Timeframe1h, Timestamp: time.Unix(0, 0).UTC()}
	assert.True(t, b.AlignedTimestamp())

	b2 := Bar{Timeframe: Timeframe1h, Timestamp: time.Unix(0, 0).UTC().Add(90 * time.Second)}
	assert.False(t, b2.AlignedTimestamp())
}

func TestLogReturn_Basic(t *testing.T) {
	prev := Bar{Close: 100}
	cur := Bar{Close: 110}
	r := LogReturn(prev, cur)
	assert.Greater(t, r, 0.0)
}

func TestLogReturn_ZeroPrevClose(t *testing.T) {
	assert.Equal(t, 0.0, LogReturn(Bar{Close: 0}, Bar{Close: 110}))
}
