package pricing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/liamashdown/cryptoguard/internal/config"
	"github.com/liamashdown/cryptoguard/internal/metrics"
	"github.com/liamashdown/cryptoguard/internal/ratelimit"
	"golang.org/x/sync/errgroup"
)

const (
	apiName     = "binance"
	maxInFlight = 4
)

// stablecoins are valued at one unit of the quote without a lookup
var stablecoins = map[string]bool{
	"USDT": true, "USDC": true, "BUSD": true, "FDUSD": true, "DAI": true, "TUSD": true,
}

// Ticker is the Binance /api/v3/ticker/price response
type Ticker struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

// Client fetches spot prices from the Binance public API
type Client struct {
	baseURL    string
	quote      string
	httpClient *http.Client
	limiter    *ratelimit.Limiter
}

// NewClient creates a price client
func NewClient(cfg *config.Config) *Client {
	return &Client{
		baseURL:    strings.TrimRight(cfg.PriceAPIBaseURL, "/"),
		quote:      cfg.PriceQuote,
		httpClient: &http.Client{Timeout: cfg.PriceTimeout},
		limiter:    ratelimit.New(cfg.PriceRPS),
	}
}

// Price fetches the quote price of one token symbol
func (c *Client) Price(ctx context.Context, symbol string) (float64, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == c.quote || (stablecoins[symbol] && stablecoins[c.quote]) {
		return 1, nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return 0, fmt.Errorf("rate limit wait: %w", err)
	}

	start := time.Now()
	price, err := c.fetch(ctx, symbol+c.quote)
	metrics.RecordAPIRequest(apiName, "ticker_price", time.Since(start), err)
	return price, err
}

// Prices looks up several symbols concurrently. Symbols that fail are left
// out of the map and reported together in the returned error.
func (c *Client) Prices(ctx context.Context, symbols []string) (map[string]float64, error) {
	var (
		mu     sync.Mutex
		prices = make(map[string]float64, len(symbols))
		errs   []error
	)

	var g errgroup.Group
	g.SetLimit(maxInFlight)
	for _, symbol := range symbols {
		symbol := strings.ToUpper(symbol)
		g.Go(func() error {
			price, err := c.Price(ctx, symbol)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", symbol, err))
				return nil
			}
			prices[symbol] = price
			return nil
		})
	}
	_ = g.Wait()

	return prices, errors.Join(errs...)
}

func (c *Client) fetch(ctx context.Context, pair string) (float64, error) {
	u, err := url.Parse(c.baseURL + "/api/v3/ticker/price")
	if err != nil {
		return 0, fmt.Errorf("parse URL: %w", err)
	}
	q := u.Query()
	q.Set("symbol", pair)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, "GET", u.String(), nil)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var ticker Ticker
	if err := json.NewDecoder(resp.Body).Decode(&ticker); err != nil {
		return 0, fmt.Errorf("decode response: %w", err)
	}

	price, err := strconv.ParseFloat(ticker.Price, 64)
	if err != nil {
		return 0, fmt.Errorf("parse price %q: %w", ticker.Price, err)
	}
	return price, nil
}
