package main

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/StaithValanthis/xsmom-bot/internal/application/signals"
	"github.com/StaithValanthis/xsmom-bot/internal/domain"
	"github.com/StaithValanthis/xsmom-bot/internal/ports"
)

// reconcileOnStartup clears any stored position the exchange now reports
// flat, and re-adopts any exchange position the stored state doesn't
// know about, deriving a synthetic entry and an ATR-based stop, per the
// state store's startup-reconciliation contract.
func reconcileOnStartup(ctx context.Context, ex ports.Exchange, store ports.StateStore, log zerolog.Logger) error {
	doc, err := store.Load(ctx)
	if err != nil {
		return err
	}

	exchangePositions, err := ex.FetchPositions(ctx)
	if err != nil {
		return err
	}
	onExchange := make(map[string]ports.ExchangePosition, len(exchangePositions))
	for _, ep := range exchangePositions {
		onExchange[ep.Symbol] = ep
	}

	changed := false
	for symbol, local := range doc.Positions {
		if local.State != domain.PositionOpen {
			continue
		}
		if _, ok := onExchange[symbol]; !ok {
			delete(doc.Positions, symbol)
			changed = true
			log.Warn().Str("symbol", symbol).Msg("startup reconciliation: stored position flat on exchange, cleared")
		}
	}

	for symbol, ep := range onExchange {
		if ep.Size == 0 {
			continue
		}
		if _, known := doc.Positions[symbol]; known {
			continue
		}

		bars, berr := ex.FetchBars(ctx, symbol, domain.Timeframe1h, 30)
		atr := 0.0
		mark := ep.EntryPrice
		if berr == nil && len(bars) > 0 {
			atr = signals.AverageTrueRange(bars, 14)
			mark = bars[len(bars)-1].Close
		}
		entry := ep.EntryPrice
		if entry == 0 {
			entry = mark
		}
		stop := entry - 2*atr
		if ep.Size < 0 {
			stop = entry + 2*atr
		}

		doc.Positions[symbol] = domain.Position{
			Symbol: symbol, State: domain.PositionOpen, Size: ep.Size,
			EntryPrice: entry, ATRAtEntry: atr, StopPrice: stop,
			InitialR: absF(entry - stop), HighWater: entry, LowWater: entry,
		}
		changed = true
		log.Warn().Str("symbol", symbol).Float64("size", ep.Size).Msg("startup reconciliation: adopted untracked exchange position")
	}

	if changed {
		return store.Save(ctx, doc)
	}
	return nil
}

func absF(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
