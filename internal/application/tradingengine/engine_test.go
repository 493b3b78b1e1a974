package tradingengine

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/StaithValanthis/xsmom-bot/internal/application/risk"
	"github.com/StaithValanthis/xsmom-bot/internal/application/signals"
	"github.com/StaithValanthis/xsmom-bot/internal/application/sizing"
	"github.com/StaithValanthis/xsmom-bot/internal/domain"
	"github.com/StaithValanthis/xsmom-bot/internal/ports"
)

func baseEngineConfig() Config {
	return Config{
		Timeframe:        domain.Timeframe1h,
		CandlesLimit:     10,
		MaxSpreadBps:     50,
		PostOnly:         true,
		StaleOrderMaxAge: time.Hour,
		Signals: signals.Config{
			Lookbacks: []signals.Lookback{{Bars: 5, Weight: 1}},
		},
		Sizing: sizing.Config{KMin: 1, KMax: 5, GrossLeverage: 1.0, MaxWeightPerAsset: 1.0},
		Risk: risk.Config{
			MaxDailyLossPct:    0.05,
			MarginSoftLimitPct: 0.7,
			MarginHardLimitPct: 0.9,
		},
	}
}

func TestRunOnce_DailyLossGateTripped_ReconcilesWithoutPlacingOrders(t *testing.T) {
	now := time.Now().UTC()

	doc := newDoc()
	doc.Risk.CurrentUTCDate = now.Format("2006-01-02")
	doc.Risk.DayStartEquity = 1000

	exchange := &fakeExchange{
		equity:     ports.EquityAndMargin{Equity: 900},
		openOrders: []domain.OpenOrder{{ID: "o1", Symbol: "BTCUSDT"}},
	}
	store := &fakeStore{doc: doc}
	notifier := &fakeNotifier{}

	eng := New(exchange, &fakeCache{bars: map[string][]domain.Bar{}}, store, notifier,
		baseEngineConfig(), nil, nil, zerolog.Nop())

	result, err := eng.RunOnce(context.Background())
	require.NoError(t, err)

	assert.True(t, result.Paused)
	assert.Equal(t, "daily_loss_limit", result.PauseReason)
	assert.Equal(t, 1, result.OrdersCancelled)
	assert.Equal(t, []string{"o1"}, exchange.cancelledOrders)
	assert.Equal(t, 0, exchange.placedOrders)
	assert.Equal(t, 1, store.saved)
	assert.Equal(t, 1, store.heartbeats)
	assert.Empty(t, notifier.summaries, "notifier is not called while the cycle is paused")
}

func TestRunOnce_HealthyCycle_PersistsStateAndNotifies(t *testing.T) {
	now := time.Now().UTC()

	insts := []domain.Instrument{
		{Symbol: "BTCUSDT", QuoteCurrency: "USDT", TickSize: 0.1, LotSize: 0.001, IsPerpetual: true, Active: true},
		{Symbol: "ETHUSDT", QuoteCurrency: "USDT", TickSize: 0.01, LotSize: 0.01, IsPerpetual: true, Active: true},
	}
	start := now.Add(-10 * time.Hour).Truncate(time.Hour)
	makeSeries := func(symbol string, drift float64) []domain.Bar {
		var bars []domain.Bar
		price := 100.0
		for i := 0; i < 10; i++ {
			bars = append(bars, domain.Bar{
				Symbol: symbol, Timeframe: domain.Timeframe1h,
				Timestamp: start.Add(time.Duration(i) * time.Hour),
				Open: price, High: price + 1, Low: price - 1, Close: price, Volume: 100,
			})
			price *= 1 + drift
		}
		return bars
	}
	barsBySymbol := map[string][]domain.Bar{
		"BTCUSDT": makeSeries("BTCUSDT", 0.01),
		"ETHUSDT": makeSeries("ETHUSDT", -0.005),
	}

	exchange := &fakeExchange{
		instruments: insts,
		bars:        barsBySymbol,
		equity:      ports.EquityAndMargin{Equity: 1000, MarginRatio: 0.1},
		ticker:      ports.Ticker{Bid: 100, Ask: 100.1, Last: 100, SpreadBps: 10},
	}
	cache := &fakeCache{bars: barsBySymbol}
	store := &fakeStore{doc: newDoc()}
	notifier := &fakeNotifier{}

	eng := New(exchange, cache, store, notifier, baseEngineConfig(), nil, nil, zerolog.Nop())

	result, err := eng.RunOnce(context.Background())
	require.NoError(t, err)

	assert.False(t, result.Paused)
	assert.InDelta(t, 1000, result.Equity, 1e-9)
	assert.Equal(t, 1, store.saved)
	assert.Equal(t, 1, store.heartbeats)
	require.Len(t, notifier.summaries, 1)
	assert.InDelta(t, 1000, notifier.summaries[0].Equity, 1e-9)
	assert.Len(t, store.doc.Equity.Points, 1)
}
