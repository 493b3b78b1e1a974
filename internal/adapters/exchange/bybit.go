package exchange

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/StaithValanthis/xsmom-bot/internal/domain"
	"github.com/StaithValanthis/xsmom-bot/internal/ports"
)

const maxBarsPerRequest = 1000

// UniverseFilter configures the list_instruments screen.
type UniverseFilter struct {
	QuoteCurrency    string
	MaxSymbols       int
	MinUSDVolume24h  float64
	MinPrice         float64
	MaxPagination    int
	ThrottleDelay    time.Duration
}

type instrumentDTO struct {
	Symbol      string  `json:"symbol"`
	QuoteCoin   string  `json:"quoteCoin"`
	TickSize    float64 `json:"tickSize"`
	LotSize     float64 `json:"lotSize"`
	MinNotional float64 `json:"minNotionalValue"`
	Status      string  `json:"status"`
	Turnover24h float64 `json:"turnover24h"`
	LastPrice   float64 `json:"lastPrice"`
}

// Bybit implements ports.Exchange over Bybit's v5 USDT-perpetual REST API.
type Bybit struct {
	client *Client
	filter UniverseFilter
	log    zerolog.Logger
}

// NewBybit builds a ports.Exchange backed by a Bybit v5 REST client.
func NewBybit(client *Client, filter UniverseFilter, log zerolog.Logger) *Bybit {
	return &Bybit{client: client, filter: filter, log: log}
}

func (b *Bybit) ListInstruments(ctx context.Context) ([]domain.Instrument, error) {
	var raw struct {
		Result struct {
			List []instrumentDTO `json:"list"`
		} `json:"result"`
	}
	if err := b.client.get(ctx, ClassMarketData, "/v5/market/instruments-info?category=linear", &raw); err != nil {
		return nil, err
	}

	out := make([]domain.Instrument, 0, len(raw.Result.List))
	for _, dto := range raw.Result.List {
		if b.filter.QuoteCurrency != "" && dto.QuoteCoin != b.filter.QuoteCurrency {
			continue
		}
		if dto.Status != "Trading" {
			continue
		}
		if dto.Turnover24h < b.filter.MinUSDVolume24h {
			continue
		}
		if dto.LastPrice < b.filter.MinPrice {
			continue
		}
		out = append(out, domain.Instrument{
			Symbol:        dto.Symbol,
			QuoteCurrency: dto.QuoteCoin,
			TickSize:      dto.TickSize,
			LotSize:       dto.LotSize,
			MinNotional:   dto.MinNotional,
			IsPerpetual:   true,
			Active:        true,
			Volume24hUSD:  dto.Turnover24h,
			LastPrice:     dto.LastPrice,
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Volume24hUSD > out[j].Volume24hUSD })
	if b.filter.MaxSymbols > 0 && len(out) > b.filter.MaxSymbols {
		out = out[:b.filter.MaxSymbols]
	}
	return out, nil
}

// FetchBars implements the pagination rule: for N <= max per
// request, a single call suffices; for N > max, fetch the latest chunk
// first, then walk backward using the oldest-seen timestamp minus one
// timeframe, deduplicating, until N bars are collected or
// max_pagination_requests is hit. Hitting max_pagination_requests with
// fewer than N bars returns a data-quality error; if the exchange runs out
// of older history first, the bars it has are returned.
func (b *Bybit) FetchBars(ctx context.Context, symbol string, tf domain.Timeframe, limit int) ([]domain.Bar, error) {
	seen := make(map[int64]domain.Bar)
	end := time.Now().UTC()
	requests := 0
	maxReq := b.filter.MaxPagination
	if maxReq <= 0 {
		maxReq = 50
	}

	for len(seen) < limit && requests < maxReq {
		chunk := limit - len(seen)
		if chunk > maxBarsPerRequest {
			chunk = maxBarsPerRequest
		}
		bars, err := b.fetchKlinePage(ctx, symbol, tf, chunk, end)
		if err != nil {
			return nil, err
		}
		requests++
		if len(bars) == 0 {
			break
		}
		oldest := bars[0].Timestamp
		for _, bar := range bars {
			seen[bar.Timestamp.UnixMilli()] = bar
			if bar.Timestamp.Before(oldest) {
				oldest = bar.Timestamp
			}
		}
		nextEnd := oldest.Add(-tf.Duration())
		if !nextEnd.Before(end) {
			break
		}
		end = nextEnd
		if b.filter.ThrottleDelay > 0 {
			select {
			case <-time.After(b.filter.ThrottleDelay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}

	if len(seen) < limit && requests >= maxReq {
		return nil, domain.NewDataQualityError(symbol, "fetched %d of %d bars after %d requests", len(seen), limit, requests)
	}
	return sortedBars(seen), nil
}

// FetchBarsRange walks forward from start to end, paginating as needed.
func (b *Bybit) FetchBarsRange(ctx context.Context, symbol string, tf domain.Timeframe, start, end time.Time) ([]domain.Bar, error) {
	seen := make(map[int64]domain.Bar)
	cursor := start
	requests := 0
	maxReq := b.filter.MaxPagination
	if maxReq <= 0 {
		maxReq = 50
	}

	for cursor.Before(end) && requests < maxReq {
		bars, err := b.fetchKlineForward(ctx, symbol, tf, cursor, maxBarsPerRequest)
		if err != nil {
			return nil, err
		}
		requests++
		if len(bars) == 0 {
			break
		}
		var newest time.Time
		for _, bar := range bars {
			seen[bar.Timestamp.UnixMilli()] = bar
			if bar.Timestamp.After(newest) {
				newest = bar.Timestamp
			}
		}
		nextCursor := newest.Add(tf.Duration())
		if !nextCursor.After(cursor) {
			break
		}
		cursor = nextCursor
		if b.filter.ThrottleDelay > 0 {
			select {
			case <-time.After(b.filter.ThrottleDelay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}

	return sortedBars(seen), nil
}

func sortedBars(seen map[int64]domain.Bar) []domain.Bar {
	out := make([]domain.Bar, 0, len(seen))
	for _, bar := range seen {
		out = append(out, bar)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}

func (b *Bybit) fetchKlinePage(ctx context.Context, symbol string, tf domain.Timeframe, limit int, end time.Time) ([]domain.Bar, error) {
	url := fmt.Sprintf("/v5/market/kline?category=linear&symbol=%s&interval=%s&limit=%d&end=%d",
		symbol, bybitInterval(tf), limit, end.UnixMilli())
	return b.doFetchKline(ctx, symbol, tf, url)
}

func (b *Bybit) fetchKlineForward(ctx context.Context, symbol string, tf domain.Timeframe, start time.Time, limit int) ([]domain.Bar, error) {
	url := fmt.Sprintf("/v5/market/kline?category=linear&symbol=%s&interval=%s&limit=%d&start=%d",
		symbol, bybitInterval(tf), limit, start.UnixMilli())
	return b.doFetchKline(ctx, symbol, tf, url)
}

func (b *Bybit) doFetchKline(ctx context.Context, symbol string, tf domain.Timeframe, url string) ([]domain.Bar, error) {
	var raw struct {
		Result struct {
			List [][]string `json:"list"`
		} `json:"result"`
	}
	if err := b.client.get(ctx, ClassMarketData, url, &raw); err != nil {
		return nil, err
	}

	bars := make([]domain.Bar, 0, len(raw.Result.List))
	for _, row := range raw.Result.List {
		bar, err := parseBybitKlineRow(symbol, tf, row)
		if err != nil {
			return nil, domain.NewDataQualityError(symbol, "malformed kline row: %v", err)
		}
		bars = append(bars, bar)
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Timestamp.Before(bars[j].Timestamp) })
	return bars, nil
}

func (b *Bybit) FetchPositions(ctx context.Context) ([]ports.ExchangePosition, error) {
	var raw struct {
		Result struct {
			List []struct {
				Symbol     string `json:"symbol"`
				Size       string `json:"size"`
				Side       string `json:"side"`
				EntryPrice string `json:"avgPrice"`
			} `json:"list"`
		} `json:"result"`
	}
	if err := b.client.get(ctx, ClassAccount, "/v5/position/list?category=linear&settleCoin=USDT", &raw); err != nil {
		return nil, err
	}
	out := make([]ports.ExchangePosition, 0, len(raw.Result.List))
	for _, p := range raw.Result.List {
		size := parseFloatOrZero(p.Size)
		if p.Side == "Sell" {
			size = -size
		}
		if size == 0 {
			continue
		}
		out = append(out, ports.ExchangePosition{
			Symbol:     p.Symbol,
			Size:       size,
			EntryPrice: parseFloatOrZero(p.EntryPrice),
		})
	}
	return out, nil
}

func (b *Bybit) FetchOpenOrders(ctx context.Context, symbol string) ([]domain.OpenOrder, error) {
	url := "/v5/order/realtime?category=linear&settleCoin=USDT"
	if symbol != "" {
		url = fmt.Sprintf("/v5/order/realtime?category=linear&symbol=%s", symbol)
	}
	var raw struct {
		Result struct {
			List []struct {
				OrderID      string `json:"orderId"`
				Symbol       string `json:"symbol"`
				Side         string `json:"side"`
				OrderType    string `json:"orderType"`
				Price        string `json:"price"`
				Qty          string `json:"qty"`
				CreatedTime  string `json:"createdTime"`
				ReduceOnly   bool   `json:"reduceOnly"`
			} `json:"list"`
		} `json:"result"`
	}
	if err := b.client.get(ctx, ClassAccount, url, &raw); err != nil {
		return nil, err
	}
	out := make([]domain.OpenOrder, 0, len(raw.Result.List))
	for _, o := range raw.Result.List {
		side := domain.OrderSideBuy
		if o.Side == "Sell" {
			side = domain.OrderSideSell
		}
		createdMs := int64(parseFloatOrZero(o.CreatedTime))
		out = append(out, domain.OpenOrder{
			ID:         o.OrderID,
			Symbol:     o.Symbol,
			Side:       side,
			Type:       domain.OrderTypeLimit,
			Price:      parseFloatOrZero(o.Price),
			Size:       parseFloatOrZero(o.Qty),
			CreatedAt:  time.UnixMilli(createdMs).UTC(),
			ReduceOnly: o.ReduceOnly,
		})
	}
	return out, nil
}

func (b *Bybit) FetchTicker(ctx context.Context, symbol string) (ports.Ticker, error) {
	var raw struct {
		Result struct {
			List []struct {
				Bid1Price string `json:"bid1Price"`
				Ask1Price string `json:"ask1Price"`
				LastPrice string `json:"lastPrice"`
			} `json:"list"`
		} `json:"result"`
	}
	url := fmt.Sprintf("/v5/market/tickers?category=linear&symbol=%s", symbol)
	if err := b.client.get(ctx, ClassMarketData, url, &raw); err != nil {
		return ports.Ticker{}, err
	}
	if len(raw.Result.List) == 0 {
		return ports.Ticker{}, domain.NewDataQualityError(symbol, "empty ticker response")
	}
	t := raw.Result.List[0]
	bid := parseFloatOrZero(t.Bid1Price)
	ask := parseFloatOrZero(t.Ask1Price)
	mid := (bid + ask) / 2
	spreadBps := 0.0
	if mid > 0 {
		spreadBps = (ask - bid) / mid * 10000
	}
	return ports.Ticker{Bid: bid, Ask: ask, Last: parseFloatOrZero(t.LastPrice), SpreadBps: spreadBps}, nil
}

func (b *Bybit) FetchFundingRate(ctx context.Context, symbol string) (float64, error) {
	var raw struct {
		Result struct {
			List []struct {
				FundingRate string `json:"fundingRate"`
			} `json:"list"`
		} `json:"result"`
	}
	url := fmt.Sprintf("/v5/market/tickers?category=linear&symbol=%s", symbol)
	if err := b.client.get(ctx, ClassMarketData, url, &raw); err != nil {
		return 0, err
	}
	if len(raw.Result.List) == 0 {
		return 0, domain.NewDataQualityError(symbol, "empty funding response")
	}
	return parseFloatOrZero(raw.Result.List[0].FundingRate), nil
}

func (b *Bybit) PlaceLimit(ctx context.Context, symbol string, side domain.OrderSide, price, size float64, postOnly, reduceOnly bool) (string, error) {
	sideStr := "Buy"
	if side == domain.OrderSideSell {
		sideStr = "Sell"
	}
	timeInForce := "GTC"
	if postOnly {
		timeInForce = "PostOnly"
	}
	body := map[string]any{
		"category":    "linear",
		"symbol":      symbol,
		"side":        sideStr,
		"orderType":   "Limit",
		"price":       fmt.Sprintf("%v", price),
		"qty":         fmt.Sprintf("%v", size),
		"timeInForce": timeInForce,
		"reduceOnly":  reduceOnly,
	}
	var raw struct {
		Result struct {
			OrderID string `json:"orderId"`
		} `json:"result"`
	}
	if err := b.client.post(ctx, ClassTrading, "/v5/order/create", body, &raw); err != nil {
		return "", err
	}
	return raw.Result.OrderID, nil
}

func (b *Bybit) Cancel(ctx context.Context, orderID string) error {
	body := map[string]any{"category": "linear", "orderId": orderID}
	return b.client.post(ctx, ClassTrading, "/v5/order/cancel", body, &struct{}{})
}

func (b *Bybit) FetchEquityAndMargin(ctx context.Context) (ports.EquityAndMargin, error) {
	var raw struct {
		Result struct {
			List []struct {
				TotalEquity    string `json:"totalEquity"`
				TotalMargin    string `json:"totalUsedMargin"`
				AccountIMRate  string `json:"accountIMRate"`
			} `json:"list"`
		} `json:"result"`
	}
	if err := b.client.get(ctx, ClassAccount, "/v5/account/wallet-balance?accountType=UNIFIED", &raw); err != nil {
		return ports.EquityAndMargin{}, err
	}
	if len(raw.Result.List) == 0 {
		return ports.EquityAndMargin{}, domain.NewDataQualityError("", "empty wallet-balance response")
	}
	acct := raw.Result.List[0]
	return ports.EquityAndMargin{
		Equity:      parseFloatOrZero(acct.TotalEquity),
		UsedMargin:  parseFloatOrZero(acct.TotalMargin),
		MarginRatio: parseFloatOrZero(acct.AccountIMRate),
	}, nil
}

func bybitInterval(tf domain.Timeframe) string {
	switch tf {
	case domain.Timeframe1m:
		return "1"
	case domain.Timeframe5m:
		return "5"
	case domain.Timeframe15m:
		return "15"
	case domain.Timeframe1h:
		return "60"
	case domain.Timeframe4h:
		return "240"
	case domain.Timeframe1d:
		return "D"
	default:
		return "60"
	}
}

func parseBybitKlineRow(symbol string, tf domain.Timeframe, row []string) (domain.Bar, error) {
	if len(row) < 6 {
		return domain.Bar{}, fmt.Errorf("expected 6+ fields, got %d", len(row))
	}
	startMs := int64(parseFloatOrZero(row[0]))
	bar := domain.Bar{
		Symbol:    symbol,
		Timeframe: tf,
		Timestamp: time.UnixMilli(startMs).UTC(),
		Open:      parseFloatOrZero(row[1]),
		High:      parseFloatOrZero(row[2]),
		Low:       parseFloatOrZero(row[3]),
		Close:     parseFloatOrZero(row[4]),
		Volume:    parseFloatOrZero(row[5]),
	}
	return bar, bar.Validate()
}

func parseFloatOrZero(s string) float64 {
	var f float64
	_, err := fmt.Sscanf(s, "%g", &f)
	if err != nil {
		return 0
	}
	return f
}
