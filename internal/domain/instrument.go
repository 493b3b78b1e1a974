package domain

import "time"

// Instrument is a single tradable perpetual-futures market on the exchange.
type Instrument struct {
	Symbol          string // exchange-native symbol, e.g. "BTCUSDT"
	QuoteCurrency   string
	TickSize        float64 // minimum price increment
	LotSize         float64 // minimum size increment
	MinNotional     float64
	IsPerpetual     bool
	Active          bool
	Volume24hUSD    float64
	LastPrice       float64
}

// RoundPrice rounds a price to the nearest multiple of the tick size.
func (i Instrument) RoundPrice(price float64) float64 {
	return roundToStep(price, i.TickSize)
}

// RoundSize rounds a size to the nearest multiple of the lot size.
func (i Instrument) RoundSize(size float64) float64 {
	return roundToStep(size, i.LotSize)
}

func roundToStep(v, step float64) float64 {
	if step <= 0 {
		return v
	}
	n := float64(int64(v/step + 0.5))
	return n * step
}

// UniverseSnapshot is the ordered, filtered set of instruments considered
// for signal generation in a single cycle.
type UniverseSnapshot struct {
	Instruments []Instrument
	AsOf        time.Time
}

// Symbols returns the bare symbol list, preserving order.
func (u UniverseSnapshot) Symbols() []string {
	out := make([]string, len(u.Instruments))
	for i, inst := range u.Instruments {
		out[i] = inst.Symbol
	}
	return out
}
