package risk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/StaithValanthis/xsmom-bot/internal/domain"
)

func TestEvaluate_DailyLossGate_TripsAndDisablesUntilMidnight(t *testing.T) {
	cfg := Config{MaxDailyLossPct: 0.05}
	now := time.Date(2026, 3, 5, 14, 0, 0, 0, time.UTC)
	risk := &domain.RiskState{CurrentUTCDate: "2026-03-05", DayStartEquity: 1000, DayHighEquity: 1000}
	breaker := &domain.APICircuitBreaker{}

	decision := Evaluate(cfg, now, risk, breaker, 940, 0, 0, domain.EquityHistory{}, false)

	assert.True(t, decision.Paused)
	assert.True(t, decision.NewEntriesBlocked)
	assert.Equal(t, "daily_loss_limit", decision.Reason)
	assert.Equal(t, domain.NextUTCMidnight(now), risk.DisabledUntil)
}

func TestEvaluate_DailyLossGate_StaysDisabledUntilNextDay(t *testing.T) {
	cfg := Config{MaxDailyLossPct: 0.05}
	now := time.Date(2026, 3, 5, 14, 0, 0, 0, time.UTC)
	risk := &domain.RiskState{
		CurrentUTCDate: "2026-03-05", DayStartEquity: 1000, DayHighEquity: 1000,
		DisabledUntil: domain.NextUTCMidnight(now),
	}
	breaker := &domain.APICircuitBreaker{}

	decision := Evaluate(cfg, now.Add(2*time.Hour), risk, breaker, 1000, 0, 0, domain.EquityHistory{}, false)
	assert.True(t, decision.Paused)
	assert.Equal(t, "disabled_until_active", decision.Reason)

	after := domain.NextUTCMidnight(now).Add(time.Minute)
	decision2 := Evaluate(cfg, after, risk, breaker, 1000, 0, 0, domain.EquityHistory{}, false)
	assert.False(t, decision2.Paused)
}

func TestEvaluate_NoLossNoPause(t *testing.T) {
	cfg := Config{MaxDailyLossPct: 0.05}
	now := time.Date(2026, 3, 5, 14, 0, 0, 0, time.UTC)
	risk := &domain.RiskState{CurrentUTCDate: "2026-03-05", DayStartEquity: 1000, DayHighEquity: 1000}
	breaker := &domain.APICircuitBreaker{}

	decision := Evaluate(cfg, now, risk, breaker, 990, 0, 0, domain.EquityHistory{}, false)
	assert.False(t, decision.Paused)
	assert.False(t, decision.NewEntriesBlocked)
}

func TestEvaluate_CircuitBreakerOpen_BlocksNewEntriesWithoutPausing(t *testing.T) {
	cfg := Config{MaxDailyLossPct: 0.5}
	now := time.Date(2026, 3, 5, 14, 0, 0, 0, time.UTC)
	risk := &domain.RiskState{CurrentUTCDate: "2026-03-05", DayStartEquity: 1000, DayHighEquity: 1000}
	breaker := &domain.APICircuitBreaker{}
	for i := 0; i < 5; i++ {
		breaker.RecordFailure(now.Add(time.Duration(i)*time.Second), 300, 5, 60)
	}

	decision := Evaluate(cfg, now.Add(5*time.Second), risk, breaker, 1000, 0, 0, domain.EquityHistory{}, false)
	assert.False(t, decision.Paused)
	assert.True(t, decision.NewEntriesBlocked)
	assert.Equal(t, "circuit_breaker_open", decision.Reason)
}

func TestEvaluate_MarginHardLimit_LiquidateAction(t *testing.T) {
	cfg := Config{MaxDailyLossPct: 0.5, MarginHardLimitPct: 0.9, MarginAction: MarginActionLiquidate}
	now := time.Date(2026, 3, 5, 14, 0, 0, 0, time.UTC)
	risk := &domain.RiskState{CurrentUTCDate: "2026-03-05", DayStartEquity: 1000, DayHighEquity: 1000}
	breaker := &domain.APICircuitBreaker{}

	decision := Evaluate(cfg, now, risk, breaker, 1000, 950, 0.95, domain.EquityHistory{}, false)
	assert.False(t, decision.Paused)
	assert.True(t, decision.NewEntriesBlocked)
	assert.Equal(t, "margin_hard_limit_liquidate", decision.Reason)
}

func TestEvaluate_MarginHardLimit_PauseAction(t *testing.T) {
	cfg := Config{MaxDailyLossPct: 0.5, MarginHardLimitPct: 0.9, MarginAction: MarginActionPause}
	now := time.Date(2026, 3, 5, 14, 0, 0, 0, time.UTC)
	risk := &domain.RiskState{CurrentUTCDate: "2026-03-05", DayStartEquity: 1000, DayHighEquity: 1000}
	breaker := &domain.APICircuitBreaker{}

	decision := Evaluate(cfg, now, risk, breaker, 1000, 950, 0.95, domain.EquityHistory{}, false)
	assert.True(t, decision.Paused)
	assert.Equal(t, "margin_hard_limit_pause", decision.Reason)
}

func TestEvaluate_EmergencyStopFile_BlocksEntries(t *testing.T) {
	cfg := Config{MaxDailyLossPct: 0.5}
	now := time.Date(2026, 3, 5, 14, 0, 0, 0, time.UTC)
	risk := &domain.RiskState{CurrentUTCDate: "2026-03-05", DayStartEquity: 1000, DayHighEquity: 1000}
	breaker := &domain.APICircuitBreaker{}

	decision := Evaluate(cfg, now, risk, breaker, 1000, 0, 0, domain.EquityHistory{}, true)
	assert.True(t, decision.NewEntriesBlocked)
	assert.Equal(t, "emergency_stop_file", decision.Reason)
}
