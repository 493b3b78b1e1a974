package domain

// SymbolStats holds rolling, EMA-smoothed performance counters for one
// instrument, consumed by the symbol filter to drop or downweight
// chronically losing symbols and to accumulate loss-streak bans.
type SymbolStats struct {
	Symbol            string
	TradeCount        int
	Wins              int
	Losses            int
	PnLSum            float64
	ConsecutiveLosses int
	EMAWinRate        float64 // smoothed win rate in [0,1]
	EMAProfitFactor   float64 // smoothed gross-profit / gross-loss
}

// RecordTrade folds a closed trade's PnL into the rolling stats. alpha is
// the EMA smoothing factor for the win-rate and profit-factor estimates.
func (s *SymbolStats) RecordTrade(pnl float64, alpha float64) {
	s.TradeCount++
	s.PnLSum += pnl
	outcome := 0.0
	if pnl > 0 {
		s.Wins++
		s.ConsecutiveLosses = 0
		outcome = 1.0
	} else if pnl < 0 {
		s.Losses++
		s.ConsecutiveLosses++
	}
	if s.TradeCount == 1 {
		s.EMAWinRate = outcome
	} else {
		s.EMAWinRate = alpha*outcome + (1-alpha)*s.EMAWinRate
	}

	pf := 0.0
	switch {
	case pnl > 0:
		pf = 1.0
	case pnl < 0:
		pf = 0.0
	default:
		pf = s.EMAProfitFactor
	}
	if s.TradeCount == 1 {
		s.EMAProfitFactor = pf
	} else {
		s.EMAProfitFactor = alpha*pf + (1-alpha)*s.EMAProfitFactor
	}
}

// PassesSymbolFilter reports whether the symbol still qualifies for new
// entries given the configured minimum win rate, profit factor, and the
// loss-streak threshold that triggers a ban (the ban itself is recorded
// as a CooldownEntry by the caller, not here).
func (s SymbolStats) PassesSymbolFilter(minWinRate, minProfitFactor float64, streakPauseAfterLosses int) bool {
	if s.TradeCount == 0 {
		return true
	}
	if s.ConsecutiveLosses >= streakPauseAfterLosses && streakPauseAfterLosses > 0 {
		return false
	}
	if s.EMAWinRate < minWinRate {
		return false
	}
	if s.EMAProfitFactor < minProfitFactor {
		return false
	}
	return true
}
