// Package tradingengine orchestrates the main trading cycle: risk gates,
// universe+data refresh, signals+sizing, optional carry-sleeve blend,
// position translation, anti-churn, order reconciliation, placement,
// fill detection, and state persistence.
package tradingengine

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/StaithValanthis/xsmom-bot/internal/application/risk"
	"github.com/StaithValanthis/xsmom-bot/internal/application/signals"
	"github.com/StaithValanthis/xsmom-bot/internal/application/sizing"
	"github.com/StaithValanthis/xsmom-bot/internal/domain"
	"github.com/StaithValanthis/xsmom-bot/internal/ports"
)

// Config holds the execution parameters plus the
// signal/sizing/risk sub-configs each cycle needs.
type Config struct {
	Timeframe            domain.Timeframe
	CandlesLimit         int
	RebalanceMinute      int
	PollSeconds          int
	PostOnly             bool
	MinNotionalUSDT      float64
	MinRebalanceDeltaBps float64
	MaxSpreadBps         float64
	MinOBI               float64
	MinTopOfBookDepthUSD float64
	BaseOffsetBps        float64
	PerSpreadCoeff       float64
	MaxOffsetBps         float64
	StaleOrderMaxAge     time.Duration
	RepriceIfFarBps      float64
	CarryBudgetFrac      float64

	Signals signals.Config
	Filters signals.FilterChainConfig
	Sizing  sizing.Config
	Risk    risk.Config
}

// CycleResult summarizes one completed cycle for logging and metrics.
type CycleResult struct {
	CycleAt      time.Time
	Paused       bool
	PauseReason  string
	OrdersPlaced int
	OrdersCancelled int
	Fills        int
	Equity       float64
	Warnings     []string
}

// CarrySource optionally supplies a second target-weight map (funding-
// and basis-based), blended into the momentum weights.
type CarrySource interface {
	CarryWeights(ctx context.Context, universe domain.UniverseSnapshot) (domain.TargetWeightMap, error)
}

// MetaLabeler is an optional pluggable scoring hook.
type MetaLabeler func(symbol string, features map[string]float64) bool

// Engine runs the main trading cycle.
type Engine struct {
	exchange ports.Exchange
	cache    ports.OHLCVCache
	store    ports.StateStore
	notifier ports.Notifier

	cfg   Config
	carry CarrySource
	label MetaLabeler

	log zerolog.Logger
}

// New builds a trading Engine. carry and label may be nil.
func New(exchange ports.Exchange, cache ports.OHLCVCache, store ports.StateStore, notifier ports.Notifier,
	cfg Config, carry CarrySource, label MetaLabeler, log zerolog.Logger) *Engine {
	return &Engine{
		exchange: exchange,
		cache:    cache,
		store:    store,
		notifier: notifier,
		cfg:      cfg,
		carry:    carry,
		label:    label,
		log:      log,
	}
}

// RunOnce executes one trading cycle to completion.
func (e *Engine) RunOnce(ctx context.Context) (CycleResult, error) {
	now := time.Now().UTC()
	result := CycleResult{CycleAt: now}

	// 1. Load config snapshot (immutable for the cycle: e.cfg is set once
	// in New and never reassigned, so no further action needed here).

	doc, err := e.store.Load(ctx)
	if err != nil {
		return result, err
	}

	equityAndMargin, err := e.exchange.FetchEquityAndMargin(ctx)
	if err != nil {
		e.log.Warn().Err(err).Msg("cycle: fetch equity/margin failed")
	}
	result.Equity = equityAndMargin.Equity

	// 2. Evaluate risk gates.
	decision := risk.Evaluate(e.cfg.Risk, now, &doc.Risk, &doc.Breaker, equityAndMargin.Equity,
		equityAndMargin.UsedMargin, equityAndMargin.MarginRatio, doc.Equity, e.store.EmergencyStopActive())
	result.Paused = decision.Paused
	result.PauseReason = decision.Reason
	result.Warnings = decision.Warnings

	if decision.Paused {
		cancelled, err := e.reconcileOrdersOnly(ctx)
		result.OrdersCancelled = cancelled
		if err != nil {
			e.log.Warn().Err(err).Msg("cycle: reconciliation during pause failed")
		}
		e.finalizeCycle(ctx, &doc, result, now)
		return result, nil
	}

	// 3. Refresh universe snapshot and fetch bars.
	universe, err := e.exchange.ListInstruments(ctx)
	if err != nil {
		return result, domain.NewExchangeFatalError(err, "", "list instruments: %v", err)
	}
	snapshot := domain.UniverseSnapshot{Instruments: universe, AsOf: now}

	series, warnings := e.loadBars(ctx, snapshot)
	result.Warnings = append(result.Warnings, warnings...)

	// 4. Compute signals and target weights.
	table := signals.Compute(e.cfg.Signals, series)
	weights := sizing.Compute(e.cfg.Sizing, table, e.sizingInputs(equityAndMargin.Equity, series))

	// 5. Optional carry sleeve blend.
	if e.carry != nil && e.cfg.CarryBudgetFrac > 0 {
		carryWeights, err := e.carry.CarryWeights(ctx, snapshot)
		if err != nil {
			e.log.Warn().Err(err).Msg("cycle: carry sleeve failed, using momentum only")
		} else {
			weights = blendCarry(weights, carryWeights, e.cfg.CarryBudgetFrac, e.cfg.Sizing)
		}
	}

	if err := weights.Validate(); err != nil {
		return result, err
	}

	// 6-9: translate to desired positions, anti-churn, reconcile orders,
	// and place new limit orders; no symbol is newly opened while the
	// risk controller has new entries blocked.
	placed, cancelled, err := e.placeOrders(ctx, weights, doc, now, decision.NewEntriesBlocked)
	result.OrdersPlaced = placed
	result.OrdersCancelled += cancelled
	if err != nil {
		e.log.Error().Err(err).Msg("cycle: order placement encountered errors")
	}

	// 10. Detect fills via fetch_positions delta.
	atrBySymbol := make(map[string]float64, len(table.Rows))
	for _, r := range table.Rows {
		atrBySymbol[r.Symbol] = r.ATR
	}
	fills, err := e.detectFills(ctx, &doc, now, atrBySymbol, e.cfg.Sizing.ATRMultSL)
	result.Fills = fills
	if err != nil {
		e.log.Warn().Err(err).Msg("cycle: fill detection failed")
	}

	// 11. Update equity history, heartbeat, persist state.
	doc.Equity.Append(domain.EquityPoint{Timestamp: now, Equity: equityAndMargin.Equity})
	e.finalizeCycle(ctx, &doc, result, now)

	if e.notifier != nil {
		_ = e.notifier.Notify(ctx, ports.CycleSummary{
			CycleAt: now.Format(time.RFC3339), Equity: result.Equity,
			OrdersPlaced: result.OrdersPlaced, Fills: result.Fills,
			Paused: result.Paused, PauseReason: result.PauseReason,
		})
	}

	return result, nil
}

func (e *Engine) finalizeCycle(ctx context.Context, doc *ports.StateDocument, result CycleResult, now time.Time) {
	if err := e.store.Save(ctx, *doc); err != nil {
		e.log.Error().Err(err).Msg("cycle: state persistence failed, heartbeat not advanced")
		return
	}
	if err := e.store.Heartbeat(ctx, now); err != nil {
		e.log.Error().Err(err).Msg("cycle: heartbeat write failed")
	}
}

// loadBars fetches bars for every instrument in the universe, consulting
// the OHLCV cache first and asking the exchange only for gaps.
func (e *Engine) loadBars(ctx context.Context, universe domain.UniverseSnapshot) ([]signals.BarSeries, []string) {
	var warnings []string
	out := make([]signals.BarSeries, 0, len(universe.Instruments))

	to := universe.AsOf
	from := to.Add(-time.Duration(e.cfg.CandlesLimit) * e.cfg.Timeframe.Duration())

	for _, inst := range universe.Instruments {
		cached, err := e.cache.GetRange(ctx, inst.Symbol, e.cfg.Timeframe, from, to)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("cache read failed for %s: %v", inst.Symbol, err))
			continue
		}

		missing, err := e.cache.MissingTimestamps(ctx, inst.Symbol, e.cfg.Timeframe, from, to)
		if err == nil && len(missing) > 0 {
			fetched, err := e.exchange.FetchBars(ctx, inst.Symbol, e.cfg.Timeframe, e.cfg.CandlesLimit)
			if err != nil {
				warnings = append(warnings, fmt.Sprintf("fetch bars failed for %s: %v", inst.Symbol, err))
			} else {
				if err := e.cache.PutBars(ctx, fetched); err != nil {
					warnings = append(warnings, fmt.Sprintf("cache write failed for %s: %v", inst.Symbol, err))
				}
				cached = fetched
			}
		}

		out = append(out, signals.BarSeries{Symbol: inst.Symbol, Bars: cached})
	}
	return out, warnings
}

func (e *Engine) sizingInputs(equity float64, series []signals.BarSeries) sizing.Inputs {
	returns := make(map[string][]float64, len(series))
	for _, s := range series {
		rs := make([]float64, 0, len(s.Bars))
		for i := 1; i < len(s.Bars); i++ {
			rs = append(rs, domain.LogReturn(s.Bars[i-1], s.Bars[i]))
		}
		returns[s.Symbol] = rs
	}
	return sizing.Inputs{Equity: equity, ReturnsBySymbol: returns}
}

func blendCarry(momentum, carry domain.TargetWeightMap, carryBudgetFrac float64, sizingCfg sizing.Config) domain.TargetWeightMap {
	combined := make(map[string]float64)
	for _, w := range momentum.Weights {
		combined[w.Symbol] += (1 - carryBudgetFrac) * w.Weight
	}
	for _, w := range carry.Weights {
		combined[w.Symbol] += carryBudgetFrac * w.Weight
	}
	// Blending two already-capped maps can breach gross leverage or the
	// per-asset cap again; re-apply both rather than let Validate abort
	// the cycle over it.
	combined = sizing.ReapplyCaps(sizingCfg, combined)

	weights := make([]domain.TargetWeight, 0, len(combined))
	for sym, w := range combined {
		weights = append(weights, domain.TargetWeight{Symbol: sym, Weight: w})
	}
	return domain.TargetWeightMap{
		Weights:        weights,
		GrossLeverage:  momentum.GrossLeverage,
		MaxPerAsset:    momentum.MaxPerAsset,
		MarketNeutral:  momentum.MarketNeutral,
		NeutralEpsilon: momentum.NeutralEpsilon,
	}
}
