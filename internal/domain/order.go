package domain

import "time"

// OrderSide is buy or sell.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// OrderType mirrors the exchange's order-type vocabulary; the CORE only
// ever places limit orders (entries post-only, exits reduce-only).
type OrderType string

const (
	OrderTypeLimit  OrderType = "limit"
	OrderTypeMarket OrderType = "market"
)

// OpenOrder is a live resting order as tracked by the trading engine for
// reconciliation. Stale orders (older than stale_orders.max_age_sec, or
// repriced too far from target) are cancelled each cycle.
type OpenOrder struct {
	ID         string
	Symbol     string
	Side       OrderSide
	Type       OrderType
	Price      float64
	Size       float64
	CreatedAt  time.Time
	ReduceOnly bool
	PostOnly   bool
}

// Age returns how long the order has been resting as of now.
func (o OpenOrder) Age(now time.Time) time.Duration {
	return now.Sub(o.CreatedAt)
}

// PriceDeviationBps returns the absolute deviation of the order's price
// from target, in basis points of target.
func (o OpenOrder) PriceDeviationBps(target float64) float64 {
	if target == 0 {
		return 0
	}
	dev := (o.Price - target) / target
	if dev < 0 {
		dev = -dev
	}
	return dev * 10000
}

// Stale reports whether the order should be cancelled this cycle per
// Stale if older than maxAge, or repriced further than repriceFarBps
// from the current target price.
func (o OpenOrder) Stale(now time.Time, maxAge time.Duration, target float64, repriceFarBps float64) bool {
	if o.Age(now) > maxAge {
		return true
	}
	return o.PriceDeviationBps(target) > repriceFarBps
}
