package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRiskState_RolloverIfNewDay_FirstObservation(t *testing.T) {
	var r RiskState
	now := time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC)
	changed := r.RolloverIfNewDay(now, 1000)
	assert.True(t, changed)
	assert.Equal(t, "2026-03-05", r.CurrentUTCDate)
	assert.Equal(t, 1000.0, r.DayStartEquity)
}

func TestRiskState_RolloverIfNewDay_SameDayNoChange(t *testing.T) {
	r := RiskState{CurrentUTCDate: "2026-03-05", DayStartEquity: 1000, DayHighEquity: 1050}
	now := time.Date(2026, 3, 5, 23, 59, 0, 0, time.UTC)
	changed := r.RolloverIfNewDay(now, 900)
	assert.False(t, changed)
	assert.Equal(t, 1000.0, r.DayStartEquity)
}

func TestRiskState_RolloverIfNewDay_UTCMidnightBoundary(t *testing.T) {
	r := RiskState{CurrentUTCDate: "2026-03-05", DayStartEquity: 1000, DayHighEquity: 1100}
	now := time.Date(2026, 3, 6, 0, 0, 1, 0, time.UTC)
	changed := r.RolloverIfNewDay(now, 1080)
	assert.True(t, changed)
	assert.Equal(t, "2026-03-06", r.CurrentUTCDate)
	assert.Equal(t, 1080.0, r.DayStartEquity)
	assert.Equal(t, 1080.0, r.DayHighEquity)
}

func TestRiskState_ObserveEquity_TracksHighWater(t *testing.T) {
	r := RiskState{DayHighEquity: 1000}
	r.ObserveEquity(1050)
	assert.Equal(t, 1050.0, r.DayHighEquity)
	r.ObserveEquity(1020)
	assert.Equal(t, 1050.0, r.DayHighEquity)
}

func TestRiskState_Disabled_UntilNextUTCMidnight(t *testing.T) {
	now := time.Date(2026, 3, 5, 14, 30, 0, 0, time.UTC)
	r := RiskState{DisabledUntil: NextUTCMidnight(now)}
	assert.True(t, r.Disabled(now))
	assert.True(t, r.Disabled(now.Add(9*time.Hour)))
	assert.False(t, r.Disabled(NextUTCMidnight(now).Add(time.Second)))
}
