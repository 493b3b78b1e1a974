package ports

import "context"

// CycleSummary is the digest handed to a Notifier after each trading
// cycle; formatting (Discord embeds, daily reports) is an external
// collaborator's concern — this port only carries the numbers.
type CycleSummary struct {
	CycleAt      string
	Equity       float64
	OrdersPlaced int
	Fills        int
	Paused       bool
	PauseReason  string
}

// Notifier delivers fire-and-forget notifications and must never block
// the trading loop.
type Notifier interface {
	Notify(ctx context.Context, summary CycleSummary) error
}

// MetaLabeler is an optional pluggable scoring hook: a predicate that may
// veto an otherwise-qualifying signal. The CORE does not train or own
// the model, and no implementation of this interface ships with it.
type MetaLabeler interface {
	Keep(symbol string, features map[string]float64) bool
}
