package explorer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common/math"
	"github.com/liamashdown/cryptoguard/internal/config"
	"github.com/liamashdown/cryptoguard/internal/metrics"
	"github.com/liamashdown/cryptoguard/internal/ratelimit"
	"github.com/sony/gobreaker"
)

var (
	// ErrCircuitOpen is returned without calling the explorer while the breaker is open
	ErrCircuitOpen = errors.New("explorer circuit open")
	// ErrNotFound is returned when the explorer has no record for the address
	ErrNotFound = errors.New("explorer record not found")
)

const apiName = "explorer"

// Client talks to an Etherscan-compatible block explorer API
type Client struct {
	baseURL    string
	apiKey     string
	chainID    int
	txLimit    int
	httpClient *http.Client
	limiter    *ratelimit.Limiter
	breaker    *gobreaker.CircuitBreaker
}

// NewClient creates an explorer client for the configured chain
func NewClient(cfg *config.Config) *Client {
	chain := cfg.ActiveChain()
	name := "explorer_" + cfg.Chain

	settings := gobreaker.Settings{
		Name:     name,
		Interval: 60 * time.Second,
		Timeout:  30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.ExplorerMaxFailures
		},
		// Errors the explorer reports about a specific address say nothing
		// about upstream health.
		IsSuccessful: func(err error) bool {
			var apiErr *APIError
			return err == nil || errors.As(err, &apiErr) || errors.Is(err, ErrNotFound)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.BreakerState.WithLabelValues(name).Set(float64(to))
		},
	}

	return &Client{
		baseURL:    chain.Explorer.BaseURL,
		apiKey:     chain.Explorer.APIKey,
		chainID:    chain.ChainID,
		txLimit:    cfg.ExplorerTxLimit,
		httpClient: &http.Client{Timeout: cfg.ExplorerTimeout},
		limiter:    ratelimit.New(cfg.ExplorerRPS),
		breaker:    gobreaker.NewCircuitBreaker(settings),
	}
}

// GetSourceCode fetches verified source for a contract. Unverified
// contracts return an empty SourceCode, not an error.
func (c *Client) GetSourceCode(ctx context.Context, address string) (*SourceCode, error) {
	params := url.Values{}
	params.Set("module", "contract")
	params.Set("action", "getsourcecode")
	params.Set("address", address)

	result, err := c.call(ctx, params)
	if err != nil {
		return nil, err
	}

	var sources []SourceCode
	if err := json.Unmarshal(result, &sources); err != nil {
		return nil, fmt.Errorf("decode getsourcecode result: %w", err)
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("getsourcecode %s: %w", address, ErrNotFound)
	}

	source := sources[0]
	source.SourceCode = flattenSources(source.SourceCode)
	return &source, nil
}

// GetABI fetches the raw ABI JSON text for a contract
func (c *Client) GetABI(ctx context.Context, address string) (string, error) {
	params := url.Values{}
	params.Set("module", "contract")
	params.Set("action", "getabi")
	params.Set("address", address)

	result, err := c.call(ctx, params)
	if err != nil {
		return "", err
	}

	// The ABI arrives as a JSON string containing JSON
	var abiText string
	if err := json.Unmarshal(result, &abiText); err != nil {
		return "", fmt.Errorf("decode getabi result: %w", err)
	}
	return abiText, nil
}

// GetBalance fetches the native balance in wei
func (c *Client) GetBalance(ctx context.Context, address string) (*big.Int, error) {
	params := url.Values{}
	params.Set("module", "account")
	params.Set("action", "balance")
	params.Set("address", address)
	params.Set("tag", "latest")

	result, err := c.call(ctx, params)
	if err != nil {
		return nil, err
	}

	var raw string
	if err := json.Unmarshal(result, &raw); err != nil {
		return nil, fmt.Errorf("decode balance result: %w", err)
	}
	balance, ok := math.ParseBig256(raw)
	if !ok {
		return nil, fmt.Errorf("invalid balance %q", raw)
	}
	return balance, nil
}

// GetTransactionList fetches normal transactions, newest first
func (c *Client) GetTransactionList(ctx context.Context, address string, blocks BlockRange) ([]Transaction, error) {
	params := url.Values{}
	params.Set("module", "account")
	params.Set("action", "txlist")
	params.Set("address", address)
	params.Set("startblock", strconv.FormatInt(blocks.Start, 10))
	params.Set("endblock", strconv.FormatInt(blocks.End, 10))
	params.Set("page", "1")
	params.Set("offset", strconv.Itoa(c.txLimit))
	params.Set("sort", "desc")

	result, err := c.call(ctx, params)
	if err != nil {
		return nil, err
	}

	var txs []Transaction
	if err := json.Unmarshal(result, &txs); err != nil {
		return nil, fmt.Errorf("decode txlist result: %w", err)
	}
	return txs, nil
}

// GetTokenTransfers fetches BEP-20/ERC-20 transfers, newest first
func (c *Client) GetTokenTransfers(ctx context.Context, address string) ([]TokenTransfer, error) {
	params := url.Values{}
	params.Set("module", "account")
	params.Set("action", "tokentx")
	params.Set("address", address)
	params.Set("page", "1")
	params.Set("offset", strconv.Itoa(c.txLimit))
	params.Set("sort", "desc")

	result, err := c.call(ctx, params)
	if err != nil {
		return nil, err
	}

	var transfers []TokenTransfer
	if err := json.Unmarshal(result, &transfers); err != nil {
		return nil, fmt.Errorf("decode tokentx result: %w", err)
	}
	return transfers, nil
}

// call performs one rate-limited, breaker-guarded request and returns the
// envelope's result field
func (c *Client) call(ctx context.Context, params url.Values) (json.RawMessage, error) {
	action := params.Get("action")

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	start := time.Now()
	out, err := c.breaker.Execute(func() (interface{}, error) {
		return c.do(ctx, action, params)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		err = fmt.Errorf("%s: %w", action, ErrCircuitOpen)
	}
	metrics.RecordAPIRequest(apiName, action, time.Since(start), err)
	if err != nil {
		return nil, err
	}
	return out.(json.RawMessage), nil
}

func (c *Client) do(ctx context.Context, action string, params url.Values) (json.RawMessage, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse URL: %w", err)
	}

	q := u.Query()
	for key, values := range params {
		for _, v := range values {
			q.Set(key, v)
		}
	}
	if c.chainID > 0 {
		q.Set("chainid", strconv.Itoa(c.chainID))
	}
	if c.apiKey != "" {
		q.Set("apikey", c.apiKey)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, "GET", u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var envelope Response
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if envelope.Status != "1" {
		// Empty history is reported as a failure with a descriptive message
		if strings.HasPrefix(envelope.Message, "No transactions found") ||
			strings.HasPrefix(envelope.Message, "No token transfers found") ||
			strings.HasPrefix(envelope.Message, "No records found") {
			return json.RawMessage("[]"), nil
		}
		var detail string
		if err := json.Unmarshal(envelope.Result, &detail); err != nil {
			detail = string(envelope.Result)
		}
		return nil, &APIError{Action: action, Message: envelope.Message, Result: detail}
	}

	return envelope.Result, nil
}

// flattenSources turns a standard-json multi-file submission into one text
// so substring heuristics see every file. Plain single-file source is
// returned unchanged.
func flattenSources(source string) string {
	trimmed := strings.TrimSpace(source)
	if !strings.HasPrefix(trimmed, "{") {
		return source
	}
	// Standard JSON input is wrapped in an extra pair of braces
	if strings.HasPrefix(trimmed, "{{") && strings.HasSuffix(trimmed, "}}") {
		trimmed = trimmed[1 : len(trimmed)-1]
	}

	var doc struct {
		Sources map[string]struct {
			Content string `json:"content"`
		} `json:"sources"`
	}
	if err := json.Unmarshal([]byte(trimmed), &doc); err != nil || len(doc.Sources) == 0 {
		return source
	}

	paths := make([]string, 0, len(doc.Sources))
	for path := range doc.Sources {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	var b strings.Builder
	for i, path := range paths {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(doc.Sources[path].Content)
	}
	return b.String()
}
