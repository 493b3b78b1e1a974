// Package exitmonitor implements the fast, high-frequency exit loop: a
// concurrent cycle that checks every open position against catastrophic
// stops, initial stops, a trailing stop, breakeven, an R-multiple profit
// ladder, a time-based exit, and an optional no-progress exit, then issues
// reduce-only orders through the exchange adapter. It never opens a
// position or touches target weights; the trading engine owns those.
package exitmonitor

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/StaithValanthis/xsmom-bot/internal/application/signals"
	"github.com/StaithValanthis/xsmom-bot/internal/domain"
	"github.com/StaithValanthis/xsmom-bot/internal/ports"
)

// ProfitLevel is one rung of the R-multiple profit ladder.
type ProfitLevel struct {
	RMultiple float64
	ExitPct   float64
}

// Config bundles the exit-monitor parameters.
type Config struct {
	FastCheckInterval    time.Duration
	StopTimeframe        domain.Timeframe
	CatastrophicATRMult  float64
	TrailingEnabled      bool
	TrailATRMult         float64
	BreakevenAfterR      float64
	ProfitLadder         []ProfitLevel
	MaxHoursInTrade      float64
	NoProgressEnabled    bool
	MinHoldMinutes       float64
	NoProgressRThreshold float64

	PostExitCooldown     time.Duration
	PostStopCooldown     time.Duration
	StreakPauseAfter     int
	StreakPauseDuration  time.Duration
}

// exitAction is the outcome of evaluating one position this tick.
type exitAction struct {
	closeFull bool
	closePct  float64
	reason    domain.CooldownReason
}

// Monitor runs the fast exit loop. It holds its own mutex over the
// position map it is handed each tick; the trading engine and the
// monitor never mutate a Position concurrently without it.
type Monitor struct {
	exchange ports.Exchange
	store    ports.StateStore
	cfg      Config
	mu       sync.Mutex
	log      zerolog.Logger
}

// New builds a Monitor.
func New(exchange ports.Exchange, store ports.StateStore, cfg Config, log zerolog.Logger) *Monitor {
	return &Monitor{exchange: exchange, store: store, cfg: cfg, log: log}
}

// Run blocks, ticking every FastCheckInterval until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.cfg.FastCheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := m.Tick(ctx); err != nil {
				m.log.Warn().Err(err).Msg("exit monitor tick failed")
			}
		}
	}
}

// Tick evaluates every open position once against fresh candles.
func (m *Monitor) Tick(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, err := m.store.Load(ctx)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	changed := false

	for symbol, pos := range doc.Positions {
		if pos.State != domain.PositionOpen {
			continue
		}

		bars, err := m.exchange.FetchBars(ctx, symbol, m.cfg.StopTimeframe, 64)
		if err != nil || len(bars) == 0 {
			m.log.Warn().Err(err).Str("symbol", symbol).Msg("exit monitor: candle fetch failed")
			continue
		}
		mark := bars[len(bars)-1].Close
		atr := signals.AverageTrueRange(bars, 14)

		before := pos
		updated, action := m.evaluate(pos, mark, atr, now)
		if action != nil {
			if err := m.executeExit(ctx, updated, *action, mark); err != nil {
				m.log.Error().Err(err).Str("symbol", symbol).Msg("exit monitor: order placement failed")
				continue
			}
			stats := doc.SymbolStats[symbol]
			pnl := updated.UnrealizedR(mark) * updated.InitialR
			stats.RecordTrade(pnl, 0.2)
			doc.SymbolStats[symbol] = stats

			if action.closeFull {
				delete(doc.Positions, symbol)
				doc.Cooldowns[symbol] = m.cooldownFor(symbol, action.reason, now)
			} else {
				doc.Positions[symbol] = updated
			}

			if stats.ConsecutiveLosses >= m.cfg.StreakPauseAfter && m.cfg.StreakPauseAfter > 0 {
				doc.Cooldowns[symbol] = domain.CooldownEntry{
					Symbol: symbol, NotBefore: now.Add(m.cfg.StreakPauseDuration), Reason: domain.CooldownLossStreak,
				}
			}
			changed = true
		} else {
			doc.Positions[symbol] = updated
			if updated.StopPrice != before.StopPrice || updated.HighWater != before.HighWater ||
				updated.LowWater != before.LowWater || updated.BreakevenSet != before.BreakevenSet {
				changed = true
			}
		}
	}

	if changed {
		return m.store.Save(ctx, doc)
	}
	return nil
}

// evaluate runs the ordered checklist against one position and returns its
// (possibly mutated) copy plus a non-nil exitAction if an exit fired.
func (m *Monitor) evaluate(pos domain.Position, mark, atr float64, now time.Time) (domain.Position, *exitAction) {
	if pos.IsLong() {
		if mark > pos.HighWater {
			pos.HighWater = mark
		}
	} else {
		if pos.LowWater == 0 || mark < pos.LowWater {
			pos.LowWater = mark
		}
	}

	// 1. Catastrophic stop.
	if m.cfg.CatastrophicATRMult > 0 && atr > 0 {
		adverseDistance := pos.EntryPrice - mark
		if pos.IsShort() {
			adverseDistance = mark - pos.EntryPrice
		}
		if adverseDistance >= m.cfg.CatastrophicATRMult*atr {
			return pos, &exitAction{closeFull: true, closePct: 1, reason: domain.CooldownPostStop}
		}
	}

	// 2. Initial stop.
	if pos.StopPrice > 0 {
		crossed := (pos.IsLong() && mark <= pos.StopPrice) || (pos.IsShort() && mark >= pos.StopPrice)
		if crossed {
			return pos, &exitAction{closeFull: true, closePct: 1, reason: domain.CooldownPostStop}
		}
	}

	// 3. Trailing stop: move monotonically toward the favorable side only.
	if m.cfg.TrailingEnabled && atr > 0 {
		if pos.IsLong() {
			trail := pos.HighWater - m.cfg.TrailATRMult*atr
			if trail > pos.StopPrice {
				pos.StopPrice = trail
			}
		} else {
			trail := pos.LowWater + m.cfg.TrailATRMult*atr
			if pos.StopPrice == 0 || trail < pos.StopPrice {
				pos.StopPrice = trail
			}
		}
	}

	// 4. Breakeven move.
	r := pos.UnrealizedR(mark)
	if !pos.BreakevenSet && m.cfg.BreakevenAfterR > 0 && r >= m.cfg.BreakevenAfterR {
		if pos.IsLong() && pos.EntryPrice > pos.StopPrice {
			pos.StopPrice = pos.EntryPrice
		} else if pos.IsShort() && (pos.StopPrice == 0 || pos.EntryPrice < pos.StopPrice) {
			pos.StopPrice = pos.EntryPrice
		}
		pos.BreakevenSet = true
	}

	// 5. R-multiple profit ladder.
	for _, level := range m.cfg.ProfitLadder {
		if pos.HasTakenLevel(level.RMultiple) {
			continue
		}
		if r >= level.RMultiple {
			pos.Partials = append(pos.Partials, domain.ProfitTargetHit{
				RMultiple: level.RMultiple, ExitPct: level.ExitPct, TakenAt: now,
			})
			return pos, &exitAction{closeFull: false, closePct: level.ExitPct, reason: domain.CooldownPostExit}
		}
	}

	// 6. Time-based exit.
	if m.cfg.MaxHoursInTrade > 0 && now.Sub(pos.EntryTime).Hours() > m.cfg.MaxHoursInTrade {
		return pos, &exitAction{closeFull: true, closePct: 1, reason: domain.CooldownPostExit}
	}

	// 7. No-progress exit.
	if m.cfg.NoProgressEnabled {
		heldMinutes := now.Sub(pos.EntryTime).Minutes()
		if heldMinutes > m.cfg.MinHoldMinutes && absF(r) < m.cfg.NoProgressRThreshold {
			return pos, &exitAction{closeFull: true, closePct: 1, reason: domain.CooldownPostExit}
		}
	}

	return pos, nil
}

func (m *Monitor) executeExit(ctx context.Context, pos domain.Position, action exitAction, mark float64) error {
	side := domain.OrderSideSell
	if pos.IsShort() {
		side = domain.OrderSideBuy
	}
	size := absF(pos.Size) * action.closePct
	_, err := m.exchange.PlaceLimit(ctx, pos.Symbol, side, mark, size, false, true)
	return err
}

func (m *Monitor) cooldownFor(symbol string, reason domain.CooldownReason, now time.Time) domain.CooldownEntry {
	duration := m.cfg.PostExitCooldown
	if reason == domain.CooldownPostStop {
		duration = m.cfg.PostStopCooldown
	}
	return domain.CooldownEntry{Symbol: symbol, NotBefore: now.Add(duration), Reason: reason}
}

func absF(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
