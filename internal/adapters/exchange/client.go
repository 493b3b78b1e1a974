// Package exchange implements the uniform REST adapter over a CCXT-style
// perpetual-futures exchange (Bybit USDT-perps by default). It owns
// rate limiting, retries, transport-level circuit breaking, and the
// pagination/error-classification contract.
package exchange

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/StaithValanthis/xsmom-bot/internal/domain"
)

// EndpointClass buckets exchange endpoints so each category gets its own
// token-bucket limiter, matching the exchange's own per-endpoint limits.
type EndpointClass int

const (
	ClassMarketData EndpointClass = iota
	ClassAccount
	ClassTrading
)

const (
	maxRetries    = 3
	baseRetryWait = 250 * time.Millisecond
)

// Config configures the client's base URL, credentials, and per-class
// rate limits.
type Config struct {
	BaseURL         string
	APIKey          string
	APISecret       string
	Timeout         time.Duration
	MarketDataRPS   float64
	AccountRPS      float64
	TradingRPS      float64
	BreakerMaxFails uint32
	BreakerTimeout  time.Duration
}

// Client is the HTTP client with rate limiting, retries, and a
// transport-level gobreaker.CircuitBreaker wrapping every call. This is
// distinct from the business-level domain.APICircuitBreaker consulted by
// the risk controller: that one gates order placement across cycles;
// this one protects the process from hammering a degraded exchange
// within a single call.
type Client struct {
	http    *http.Client
	baseURL string
	apiKey  string
	secret  string

	limiters map[EndpointClass]*rate.Limiter
	breaker  *gobreaker.CircuitBreaker

	log zerolog.Logger

	// onFailure is invoked for every classified failure so callers can
	// feed it to the business-level circuit breaker; nil (no callback)
	// unless OnFailure is called.
	onFailure func(category domain.Kind)
}

// NewClient builds a Client from cfg. log should already be bound with
// component=exchange.
func NewClient(cfg Config, log zerolog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.BreakerMaxFails == 0 {
		cfg.BreakerMaxFails = 5
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = 30 * time.Second
	}

	breakerSettings := gobreaker.Settings{
		Name:    "exchange-transport",
		Timeout: cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerMaxFails
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("transport circuit breaker state change")
		},
	}

	return &Client{
		http:    &http.Client{Timeout: cfg.Timeout},
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		secret:  cfg.APISecret,
		limiters: map[EndpointClass]*rate.Limiter{
			ClassMarketData: rate.NewLimiter(rate.Limit(nonZero(cfg.MarketDataRPS, 10)), 20),
			ClassAccount:    rate.NewLimiter(rate.Limit(nonZero(cfg.AccountRPS, 5)), 10),
			ClassTrading:    rate.NewLimiter(rate.Limit(nonZero(cfg.TradingRPS, 5)), 10),
		},
		breaker: gobreaker.NewCircuitBreaker(breakerSettings),
		log:     log,
	}
}

// OnFailure registers a callback invoked whenever a call is classified as
// a failure, so the owner can feed its business-level circuit breaker.
func (c *Client) OnFailure(fn func(category domain.Kind)) {
	c.onFailure = fn
}

func nonZero(v, fallback float64) float64 {
	if v <= 0 {
		return fallback
	}
	return v
}

func (c *Client) get(ctx context.Context, class EndpointClass, url string, out any) error {
	return c.doWithRetry(ctx, class, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		return c.http.Do(req)
	}, out)
}

func (c *Client) post(ctx context.Context, class EndpointClass, url string, body, out any) error {
	return c.doWithRetry(ctx, class, func() (*http.Response, error) {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal body: %w", err)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+url, bytes.NewReader(b))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		return c.http.Do(req)
	}, out)
}

// doWithRetry runs fn with rate limiting, exponential backoff with
// jitter, transport-breaker protection, and error classification.
func (c *Client) doWithRetry(ctx context.Context, class EndpointClass, fn func() (*http.Response, error), out any) error {
	limiter := c.limiters[class]

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := limiter.Wait(ctx); err != nil {
			return domain.NewExchangeTransientError(err, "", "rate limiter wait: %v", err)
		}

		_, err := c.breaker.Execute(func() (any, error) {
			resp, err := fn()
			if err != nil {
				return nil, err
			}
			return c.classify(resp, out)
		})

		if err == nil {
			return nil
		}
		lastErr = err

		if gobreaker.ErrOpenState == err || gobreaker.ErrTooManyRequests == err {
			return domain.NewExchangeTransientError(err, "", "transport circuit breaker open")
		}

		if fatal, ok := err.(*domain.Error); ok && fatal.Kind == domain.KindExchangeFatal {
			return fatal
		}

		c.notifyFailure(domain.KindExchangeTransient)
		if attempt == maxRetries {
			break
		}
		c.sleep(ctx, attempt)
	}
	return domain.NewExchangeTransientError(lastErr, "", "exhausted %d retries: %v", maxRetries, lastErr)
}

func (c *Client) classify(resp *http.Response, out any) (any, error) {
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("rate limited: %d", resp.StatusCode)
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("server error: %d", resp.StatusCode)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		body, _ := io.ReadAll(resp.Body)
		c.notifyFailure(domain.KindExchangeFatal)
		return nil, domain.NewExchangeFatalError(nil, "", "auth error %d: %s", resp.StatusCode, string(body))
	case resp.StatusCode >= 400:
		body, _ := io.ReadAll(resp.Body)
		c.notifyFailure(domain.KindExchangeFatal)
		return nil, domain.NewExchangeFatalError(nil, "", "client error %d: %s", resp.StatusCode, string(body))
	}

	if out == nil {
		return nil, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return nil, nil
}

func (c *Client) notifyFailure(kind domain.Kind) {
	if c.onFailure != nil {
		c.onFailure(kind)
	}
}

func (c *Client) sleep(ctx context.Context, attempt int) {
	wait := time.Duration(math.Pow(2, float64(attempt))) * baseRetryWait
	jitter := time.Duration(rand.Int63n(int64(baseRetryWait)))
	select {
	case <-time.After(wait + jitter):
	case <-ctx.Done():
	}
}
