package exitmonitor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/StaithValanthis/xsmom-bot/internal/domain"
)

func TestEvaluate_InitialStopTriggersFullCloseOnCross(t *testing.T) {
	m := &Monitor{}
	now := time.Now().UTC()
	pos := domain.Position{
		Symbol: "AAA", State: domain.PositionOpen, Size: 1,
		EntryPrice: 100, StopPrice: 90, InitialR: 10, HighWater: 100,
	}
	_, action := m.evaluate(pos, 89, 5, now)
	assert.NotNil(t, action)
	assert.True(t, action.closeFull)
	assert.Equal(t, domain.CooldownPostStop, action.reason)
}

func TestEvaluate_NoStopTriggerAboveStopPrice(t *testing.T) {
	m := &Monitor{}
	now := time.Now().UTC()
	pos := domain.Position{
		Symbol: "AAA", State: domain.PositionOpen, Size: 1,
		EntryPrice: 100, StopPrice: 90, InitialR: 10, HighWater: 100,
	}
	_, action := m.evaluate(pos, 95, 5, now)
	assert.Nil(t, action)
}

func TestEvaluate_CatastrophicStopFiresBeforeInitialStop(t *testing.T) {
	m := &Monitor{cfg: Config{CatastrophicATRMult: 3}}
	now := time.Now().UTC()
	pos := domain.Position{
		Symbol: "AAA", State: domain.PositionOpen, Size: 1,
		EntryPrice: 100, StopPrice: 90, InitialR: 10, HighWater: 100,
	}
	// adverse move of 20 >= 3*ATR(5)=15, well past the initial stop too,
	// but the catastrophic gate should be the one that fires.
	_, action := m.evaluate(pos, 80, 5, now)
	assert.NotNil(t, action)
	assert.True(t, action.closeFull)
}

func TestEvaluate_TrailingStopProgressesMonotonicallyOnlyFavorably(t *testing.T) {
	m := &Monitor{cfg: Config{TrailingEnabled: true, TrailATRMult: 1}}
	now := time.Now().UTC()
	pos := domain.Position{
		Symbol: "AAA", State: domain.PositionOpen, Size: 1,
		EntryPrice: 90, StopPrice: 85, InitialR: 5, HighWater: 90,
	}
	const atr = 3.0
	marks := []float64{95, 105, 105, 107, 107}
	var stops []float64
	for _, mark := range marks {
		updated, action := m.evaluate(pos, mark, atr, now)
		assert.Nil(t, action)
		stops = append(stops, updated.StopPrice)
		pos = updated
	}
	// stop must never move backwards
	for i := 1; i < len(stops); i++ {
		assert.GreaterOrEqual(t, stops[i], stops[i-1])
	}
	// and must have advanced at least once as price made new highs
	assert.Greater(t, stops[len(stops)-1], 85.0)
}

func TestEvaluate_BreakevenMovesStopToEntry(t *testing.T) {
	m := &Monitor{cfg: Config{BreakevenAfterR: 1.0}}
	now := time.Now().UTC()
	pos := domain.Position{
		Symbol: "AAA", State: domain.PositionOpen, Size: 1,
		EntryPrice: 100, StopPrice: 95, InitialR: 5, HighWater: 100,
	}
	updated, action := m.evaluate(pos, 106, 0, now)
	assert.Nil(t, action)
	assert.True(t, updated.BreakevenSet)
	assert.Equal(t, 100.0, updated.StopPrice)
}

func TestEvaluate_ProfitLadderTakesPartialAndRecordsLevel(t *testing.T) {
	m := &Monitor{cfg: Config{ProfitLadder: []ProfitLevel{{RMultiple: 1.5, ExitPct: 0.5}}}}
	now := time.Now().UTC()
	pos := domain.Position{
		Symbol: "AAA", State: domain.PositionOpen, Size: 1,
		EntryPrice: 100, StopPrice: 95, InitialR: 5, HighWater: 100,
	}
	updated, action := m.evaluate(pos, 107.5, 0, now) // r = 7.5/5 = 1.5
	assert.NotNil(t, action)
	assert.False(t, action.closeFull)
	assert.Equal(t, 0.5, action.closePct)
	assert.True(t, updated.HasTakenLevel(1.5))
}

func TestEvaluate_ProfitLadderDoesNotDoubleFireSameLevel(t *testing.T) {
	m := &Monitor{cfg: Config{ProfitLadder: []ProfitLevel{{RMultiple: 1.5, ExitPct: 0.5}}}}
	now := time.Now().UTC()
	pos := domain.Position{
		Symbol: "AAA", State: domain.PositionOpen, Size: 1,
		EntryPrice: 100, StopPrice: 95, InitialR: 5, HighWater: 100,
		Partials: []domain.ProfitTargetHit{{RMultiple: 1.5, ExitPct: 0.5}},
	}
	_, action := m.evaluate(pos, 107.5, 0, now)
	assert.Nil(t, action)
}

func TestEvaluate_TimeBasedExitFiresPastMaxHours(t *testing.T) {
	m := &Monitor{cfg: Config{MaxHoursInTrade: 24}}
	now := time.Now().UTC()
	pos := domain.Position{
		Symbol: "AAA", State: domain.PositionOpen, Size: 1,
		EntryPrice: 100, StopPrice: 95, InitialR: 5, HighWater: 100,
		EntryTime: now.Add(-25 * time.Hour),
	}
	_, action := m.evaluate(pos, 101, 0, now)
	assert.NotNil(t, action)
	assert.True(t, action.closeFull)
}

func TestEvaluate_NoProgressExitFiresWhenFlatAfterMinHold(t *testing.T) {
	m := &Monitor{cfg: Config{NoProgressEnabled: true, MinHoldMinutes: 60, NoProgressRThreshold: 0.2}}
	now := time.Now().UTC()
	pos := domain.Position{
		Symbol: "AAA", State: domain.PositionOpen, Size: 1,
		EntryPrice: 100, StopPrice: 90, InitialR: 10, HighWater: 100,
		EntryTime: now.Add(-90 * time.Minute),
	}
	_, action := m.evaluate(pos, 100.5, 0, now) // r = 0.05, well under threshold
	assert.NotNil(t, action)
	assert.True(t, action.closeFull)
}
