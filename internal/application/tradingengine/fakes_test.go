package tradingengine

import (
	"context"
	"time"

	"github.com/StaithValanthis/xsmom-bot/internal/domain"
	"github.com/StaithValanthis/xsmom-bot/internal/ports"
)

// fakeExchange is a minimal in-memory ports.Exchange for cycle tests.
type fakeExchange struct {
	instruments     []domain.Instrument
	bars            map[string][]domain.Bar
	positions       []ports.ExchangePosition
	openOrders      []domain.OpenOrder
	ticker          ports.Ticker
	equity          ports.EquityAndMargin
	cancelledOrders []string
	placedOrders    int
}

func (f *fakeExchange) ListInstruments(ctx context.Context) ([]domain.Instrument, error) {
	return f.instruments, nil
}

func (f *fakeExchange) FetchBars(ctx context.Context, symbol string, tf domain.Timeframe, limit int) ([]domain.Bar, error) {
	return f.bars[symbol], nil
}

func (f *fakeExchange) FetchBarsRange(ctx context.Context, symbol string, tf domain.Timeframe, start, end time.Time) ([]domain.Bar, error) {
	return f.bars[symbol], nil
}

func (f *fakeExchange) FetchPositions(ctx context.Context) ([]ports.ExchangePosition, error) {
	return f.positions, nil
}

func (f *fakeExchange) FetchOpenOrders(ctx context.Context, symbol string) ([]domain.OpenOrder, error) {
	return f.openOrders, nil
}

func (f *fakeExchange) FetchTicker(ctx context.Context, symbol string) (ports.Ticker, error) {
	return f.ticker, nil
}

func (f *fakeExchange) FetchFundingRate(ctx context.Context, symbol string) (float64, error) {
	return 0, nil
}

func (f *fakeExchange) PlaceLimit(ctx context.Context, symbol string, side domain.OrderSide, price, size float64, postOnly, reduceOnly bool) (string, error) {
	f.placedOrders++
	return "order-1", nil
}

func (f *fakeExchange) Cancel(ctx context.Context, orderID string) error {
	f.cancelledOrders = append(f.cancelledOrders, orderID)
	return nil
}

func (f *fakeExchange) FetchEquityAndMargin(ctx context.Context) (ports.EquityAndMargin, error) {
	return f.equity, nil
}

// fakeCache is a minimal in-memory ports.OHLCVCache.
type fakeCache struct {
	bars map[string][]domain.Bar
}

func (f *fakeCache) GetRange(ctx context.Context, symbol string, tf domain.Timeframe, from, to time.Time) ([]domain.Bar, error) {
	return f.bars[symbol], nil
}

func (f *fakeCache) MissingTimestamps(ctx context.Context, symbol string, tf domain.Timeframe, from, to time.Time) ([]time.Time, error) {
	return nil, nil
}

func (f *fakeCache) PutBars(ctx context.Context, bars []domain.Bar) error { return nil }
func (f *fakeCache) Close() error                                        { return nil }

// fakeStore is a minimal in-memory ports.StateStore.
type fakeStore struct {
	doc             ports.StateDocument
	saved           int
	heartbeats      int
	emergencyStop   bool
}

func (f *fakeStore) Load(ctx context.Context) (ports.StateDocument, error) { return f.doc, nil }

func (f *fakeStore) Save(ctx context.Context, doc ports.StateDocument) error {
	f.saved++
	f.doc = doc
	return nil
}

func (f *fakeStore) Heartbeat(ctx context.Context, at time.Time) error {
	f.heartbeats++
	return nil
}

func (f *fakeStore) EmergencyStopActive() bool { return f.emergencyStop }

// fakeNotifier is a minimal in-memory ports.Notifier.
type fakeNotifier struct {
	summaries []ports.CycleSummary
}

func (f *fakeNotifier) Notify(ctx context.Context, summary ports.CycleSummary) error {
	f.summaries = append(f.summaries, summary)
	return nil
}

func newDoc() ports.StateDocument {
	return ports.StateDocument{
		Positions:   make(map[string]domain.Position),
		Cooldowns:   make(map[string]domain.CooldownEntry),
		SymbolStats: make(map[string]domain.SymbolStats),
	}
}
