package domain

import "time"

// RiskState is the risk controller's bookkeeping: day-start/day-high
// equity for the daily-loss gate, the disabled-until pause horizon, and
// the reconciliation flag that
// blocks new entries until fetch_positions succeeds again.
type RiskState struct {
	DayStartEquity       float64
	DayHighEquity        float64
	CurrentUTCDate       string // YYYY-MM-DD, the date DayStartEquity/DayHighEquity belong to
	DisabledUntil        time.Time
	ReconciliationFailed bool
}

// RolloverIfNewDay resets day-start/day-high equity at UTC midnight per
// the UTC-midnight rollover boundary. Returns true if a rollover occurred.
func (r *RiskState) RolloverIfNewDay(now time.Time, currentEquity float64) bool {
	date := now.UTC().Format("2006-01-02")
	if date == r.CurrentUTCDate {
		return false
	}
	r.CurrentUTCDate = date
	r.DayStartEquity = currentEquity
	r.DayHighEquity = currentEquity
	return true
}

// ObserveEquity folds a fresh equity reading into the day-high tracker.
func (r *RiskState) ObserveEquity(equity float64) {
	if equity > r.DayHighEquity {
		r.DayHighEquity = equity
	}
}

// Disabled reports whether trading is currently paused.
func (r RiskState) Disabled(now time.Time) bool {
	return now.Before(r.DisabledUntil)
}

// NextUTCMidnight returns the next UTC midnight strictly after now, used
// as the resume horizon when the daily-loss gate trips.
func NextUTCMidnight(now time.Time) time.Time {
	u := now.UTC()
	next := time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
	return next
}
