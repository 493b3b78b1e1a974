// Package risk implements the risk controller: the gates evaluated
// before the trading engine places any order. Each gate returns a
// GateDecision; "pause this cycle" is a first-class value, not
// an absorbed exception.
package risk

import (
	"time"

	"github.com/StaithValanthis/xsmom-bot/internal/domain"
)

// MarginAction selects what happens when the hard margin limit is breached.
type MarginAction string

const (
	MarginActionPause     MarginAction = "pause"
	MarginActionLiquidate MarginAction = "liquidate"
)

// Config bundles the risk controller's tunable parameters.
type Config struct {
	MaxDailyLossPct        float64
	DailyLossUseTrailing   bool // use day-high instead of day-start as the loss reference
	PortfolioDDWindowDays  int
	MaxPortfolioDrawdownPct float64
	RecoveryFraction       float64 // resume only once recovered to this fraction of the threshold
	LongTermDDWarnDays     []int
	LongTermDDWarnPct      float64
	MarginSoftLimitPct     float64
	MarginHardLimitPct     float64
	MarginAction           MarginAction
	APIWindowSeconds       int
	APIMaxErrors           int
	APICooldownSeconds     int
}

// GateDecision is the outcome of evaluating all gates for one cycle.
type GateDecision struct {
	Paused            bool
	Reason            string
	NewEntriesBlocked bool // distinct from Paused: true even when reduce-only/exits still run
	Warnings          []string
}

// Evaluate runs every risk gate and returns a single decision. equity
// and margin are the latest readings; equityHistory supplies the
// portfolio-drawdown and long-term-drawdown windows.
func Evaluate(cfg Config, now time.Time, risk *domain.RiskState, breaker *domain.APICircuitBreaker,
	equity float64, usedMargin, marginRatio float64,
	equityHistory domain.EquityHistory, emergencyStop bool) GateDecision {

	risk.RolloverIfNewDay(now, equity)
	risk.ObserveEquity(equity)

	decision := GateDecision{}

	if reason, paused := dailyLossGate(cfg, *risk, equity); paused {
		risk.DisabledUntil = domain.NextUTCMidnight(now)
		decision.Paused = true
		decision.NewEntriesBlocked = true
		decision.Reason = reason
		return decision
	}

	if risk.Disabled(now) {
		decision.Paused = true
		decision.NewEntriesBlocked = true
		decision.Reason = "disabled_until_active"
		return decision
	}

	if reason, paused := portfolioDrawdownGate(cfg, equityHistory, now, equity); paused {
		decision.Paused = true
		decision.NewEntriesBlocked = true
		decision.Reason = reason
		return decision
	}

	decision.Warnings = append(decision.Warnings, longTermDrawdownWarnings(cfg, equityHistory, now, equity)...)

	if cfg.MarginHardLimitPct > 0 && marginRatio >= cfg.MarginHardLimitPct {
		if cfg.MarginAction == MarginActionLiquidate {
			decision.Reason = "margin_hard_limit_liquidate"
		} else {
			decision.Paused = true
			decision.Reason = "margin_hard_limit_pause"
		}
		decision.NewEntriesBlocked = true
		return decision
	}
	if cfg.MarginSoftLimitPct > 0 && marginRatio >= cfg.MarginSoftLimitPct {
		decision.NewEntriesBlocked = true
		decision.Reason = "margin_soft_limit"
	}

	if breaker.Open(now) {
		decision.NewEntriesBlocked = true
		decision.Reason = "circuit_breaker_open"
	}

	if risk.ReconciliationFailed {
		decision.NewEntriesBlocked = true
		decision.Reason = "reconciliation_failed"
	}

	if emergencyStop {
		decision.NewEntriesBlocked = true
		decision.Reason = "emergency_stop_file"
	}

	return decision
}

func dailyLossGate(cfg Config, risk domain.RiskState, equity float64) (string, bool) {
	reference := risk.DayStartEquity
	if cfg.DailyLossUseTrailing {
		reference = risk.DayHighEquity
	}
	if reference <= 0 {
		return "", false
	}
	threshold := reference * (1 - cfg.MaxDailyLossPct)
	if equity < threshold {
		return "daily_loss_limit", true
	}
	return "", false
}

func portfolioDrawdownGate(cfg Config, history domain.EquityHistory, now time.Time, equity float64) (string, bool) {
	since := now.AddDate(0, 0, -cfg.PortfolioDDWindowDays)
	dd := history.DrawdownSince(since, equity)
	if dd > cfg.MaxPortfolioDrawdownPct {
		return "portfolio_drawdown_limit", true
	}
	return "", false
}

func longTermDrawdownWarnings(cfg Config, history domain.EquityHistory, now time.Time, equity float64) []string {
	var warnings []string
	for _, days := range cfg.LongTermDDWarnDays {
		since := now.AddDate(0, 0, -days)
		dd := history.DrawdownSince(since, equity)
		if dd > cfg.LongTermDDWarnPct {
			warnings = append(warnings, "long_term_drawdown_warning")
		}
	}
	return warnings
}
