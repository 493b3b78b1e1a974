package tradingengine

import (
	"context"
	"time"

	"github.com/StaithValanthis/xsmom-bot/internal/domain"
	"github.com/StaithValanthis/xsmom-bot/internal/ports"
)

// reconcileOrdersOnly cancels every resting order without placing new ones,
// used while the risk controller has the cycle paused.
func (e *Engine) reconcileOrdersOnly(ctx context.Context) (int, error) {
	open, err := e.exchange.FetchOpenOrders(ctx, "")
	if err != nil {
		return 0, err
	}
	cancelled := 0
	for _, o := range open {
		if err := e.exchange.Cancel(ctx, o.ID); err != nil {
			e.log.Warn().Err(err).Str("order_id", o.ID).Msg("cancel during pause failed")
			continue
		}
		cancelled++
	}
	return cancelled, nil
}

// placeOrders translates target weights into desired notional per symbol,
// applies the anti-churn delta-bps check and cooldown gate, cancels stale
// resting orders, then posts new limit orders (post-only when configured)
// at a spread-aware offset from the book. Every order is sent with
// reduceOnly=false, including orders that shrink a position, and symbols
// whose target weight is zero are skipped, so no closing order is placed
// for them here. When blockNewEntries is set (the
// circuit breaker is open, the emergency-stop file is present, the margin
// soft limit is hit, or reconciliation has failed), stale-order cancels
// still run but no symbol that is currently flat is allowed to open.
func (e *Engine) placeOrders(ctx context.Context, weights domain.TargetWeightMap, doc ports.StateDocument, now time.Time, blockNewEntries bool) (placed, cancelled int, err error) {
	open, ferr := e.exchange.FetchOpenOrders(ctx, "")
	if ferr != nil {
		return 0, 0, ferr
	}
	byOrderSymbol := make(map[string][]domain.OpenOrder, len(open))
	for _, o := range open {
		byOrderSymbol[o.Symbol] = append(byOrderSymbol[o.Symbol], o)
	}

	for _, w := range weights.Weights {
		if w.Weight == 0 {
			continue
		}
		if cd, ok := doc.Cooldowns[w.Symbol]; ok && cd.Active(now) {
			continue
		}

		ticker, terr := e.exchange.FetchTicker(ctx, w.Symbol)
		if terr != nil {
			e.log.Warn().Err(terr).Str("symbol", w.Symbol).Msg("ticker fetch failed, skipping symbol")
			continue
		}
		if ticker.SpreadBps > e.cfg.MaxSpreadBps {
			continue
		}

		side := domain.OrderSideBuy
		if w.Weight < 0 {
			side = domain.OrderSideSell
		}
		target := e.entryPrice(ticker, side)

		current := byOrderSymbol[w.Symbol]
		for _, o := range current {
			if o.Stale(now, e.cfg.StaleOrderMaxAge, target, e.cfg.RepriceIfFarBps) {
				if err := e.exchange.Cancel(ctx, o.ID); err != nil {
					e.log.Warn().Err(err).Str("order_id", o.ID).Msg("cancel stale order failed")
					continue
				}
				cancelled++
			}
		}

		existingPosition := doc.Positions[w.Symbol]
		if blockNewEntries && existingPosition.Size == 0 {
			continue
		}
		desiredNotional := w.Weight * doc.Risk.DayStartEquity
		deltaBps := rebalanceDeltaBps(existingPosition, desiredNotional, ticker.Last)
		if deltaBps < e.cfg.MinRebalanceDeltaBps {
			continue
		}

		size := desiredNotional / target
		if size == 0 {
			continue
		}

		_, perr := e.exchange.PlaceLimit(ctx, w.Symbol, side, target, absF(size), e.cfg.PostOnly, false)
		if perr != nil {
			e.log.Warn().Err(perr).Str("symbol", w.Symbol).Msg("place limit failed")
			continue
		}
		placed++
	}

	return placed, cancelled, nil
}

// entryPrice offsets from the near-touch price by base_offset_bps plus a
// spread-proportional term, capped at max_offset_bps.
func (e *Engine) entryPrice(t ports.Ticker, side domain.OrderSide) float64 {
	offsetBps := e.cfg.BaseOffsetBps + e.cfg.PerSpreadCoeff*t.SpreadBps
	if offsetBps > e.cfg.MaxOffsetBps {
		offsetBps = e.cfg.MaxOffsetBps
	}
	offset := offsetBps / 10000
	if side == domain.OrderSideBuy {
		return t.Bid * (1 - offset)
	}
	return t.Ask * (1 + offset)
}

func rebalanceDeltaBps(pos domain.Position, desiredNotional, mark float64) float64 {
	currentNotional := pos.Size * mark
	if currentNotional == 0 && desiredNotional == 0 {
		return 0
	}
	denom := absF(currentNotional)
	if denom == 0 {
		denom = absF(desiredNotional)
	}
	if denom == 0 {
		return 0
	}
	return absF(desiredNotional-currentNotional) / denom * 10000
}

// detectFills diffs the exchange's own position list against the locally
// held state and folds any newly observed size into a Position, creating
// one on first fill with a stop derived from ATR-at-entry: entry price,
// ATR at entry, and initial stop distance are all recorded up front so
// the fast exit monitor's R-multiple logic (breakeven, profit ladder,
// no-progress) and initial-stop check have a non-zero basis to work
// from, the same contract cmd/trader's startup reconciliation follows.
func (e *Engine) detectFills(ctx context.Context, doc *ports.StateDocument, now time.Time, atrBySymbol map[string]float64, atrMultSL float64) (int, error) {
	exchangePositions, err := e.exchange.FetchPositions(ctx)
	if err != nil {
		return 0, err
	}

	fills := 0
	seen := make(map[string]bool, len(exchangePositions))
	for _, ep := range exchangePositions {
		seen[ep.Symbol] = true
		local, existed := doc.Positions[ep.Symbol]

		if ep.Size == 0 {
			if existed && local.State == domain.PositionOpen {
				delete(doc.Positions, ep.Symbol)
				fills++
			}
			continue
		}

		if !existed || local.State == domain.PositionFlat {
			atr := atrBySymbol[ep.Symbol]
			stop := entryStop(ep.EntryPrice, atr, atrMultSL, ep.Size < 0)
			doc.Positions[ep.Symbol] = domain.Position{
				Symbol:     ep.Symbol,
				State:      domain.PositionOpen,
				Size:       ep.Size,
				EntryPrice: ep.EntryPrice,
				EntryTime:  now,
				ATRAtEntry: atr,
				StopPrice:  stop,
				InitialR:   absF(ep.EntryPrice - stop),
				HighWater:  ep.EntryPrice,
				LowWater:   ep.EntryPrice,
			}
			fills++
			continue
		}

		if local.Size != ep.Size {
			local.Size = ep.Size
			doc.Positions[ep.Symbol] = local
			fills++
		}
	}

	for symbol, local := range doc.Positions {
		if !seen[symbol] && local.State == domain.PositionOpen {
			delete(doc.Positions, symbol)
			fills++
		}
	}

	return fills, nil
}

func absF(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// entryStop derives the initial stop price, ATR-mult distance below entry
// for longs and above for shorts, per the initial-stop invariant that the
// stop sits strictly on the loss side of entry.
func entryStop(entry, atr, atrMultSL float64, short bool) float64 {
	distance := atrMultSL * atr
	if short {
		return entry + distance
	}
	return entry - distance
}
