package ports

import (
	"context"
	"time"

	"github.com/StaithValanthis/xsmom-bot/internal/domain"
)

// Ticker is a point-in-time quote snapshot for one instrument.
type Ticker struct {
	Bid       float64
	Ask       float64
	Last      float64
	SpreadBps float64
}

// EquityAndMargin is the account-level balance snapshot used by the risk
// controller's margin gate.
type EquityAndMargin struct {
	Equity      float64
	UsedMargin  float64
	MarginRatio float64
}

// ExchangePosition is the exchange's own view of a held position, used at
// startup to reconcile against the local Position state.
type ExchangePosition struct {
	Symbol     string
	Size       float64
	EntryPrice float64
}

// Exchange es la superficie uniforme de lectura/escritura sobre el
// exchange REST. La interfaz no lleva ningún contador de llamadas;
// todo fallo se devuelve como error clasificado
// (domain.KindExchangeTransient o domain.KindExchangeFatal).
type Exchange interface {
	// ListInstruments devuelve el universo filtrado por quote currency,
	// solo perpetuos, volumen/precio mínimos, truncado a max_symbols.
	ListInstruments(ctx context.Context) ([]domain.Instrument, error)

	// FetchBars pagina automáticamente hacia atrás o hacia delante cuando
	// limit supera el máximo por request del exchange. Nunca trunca en
	// silencio: o entrega el rango pedido o devuelve error. Si el exchange
	// no tiene más historia, devuelve los bars disponibles.
	FetchBars(ctx context.Context, symbol string, tf domain.Timeframe, limit int) ([]domain.Bar, error)

	// FetchBarsRange pagina hacia delante desde start hasta end.
	FetchBarsRange(ctx context.Context, symbol string, tf domain.Timeframe, start, end time.Time) ([]domain.Bar, error)

	FetchPositions(ctx context.Context) ([]ExchangePosition, error)
	FetchOpenOrders(ctx context.Context, symbol string) ([]domain.OpenOrder, error)
	FetchTicker(ctx context.Context, symbol string) (Ticker, error)
	FetchFundingRate(ctx context.Context, symbol string) (float64, error)

	PlaceLimit(ctx context.Context, symbol string, side domain.OrderSide, price, size float64, postOnly, reduceOnly bool) (string, error)
	Cancel(ctx context.Context, orderID string) error

	FetchEquityAndMargin(ctx context.Context) (EquityAndMargin, error)
}
