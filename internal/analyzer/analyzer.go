// Package analyzer runs the contract and wallet pipelines end to end: it
// fetches chain data, falls back to neutral values when a fetch fails, scores
// the result, and handles caching, history and alerting around it.
package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/liamashdown/cryptoguard/internal/address"
	"github.com/liamashdown/cryptoguard/internal/alerts"
	"github.com/liamashdown/cryptoguard/internal/cache"
	"github.com/liamashdown/cryptoguard/internal/config"
	"github.com/liamashdown/cryptoguard/internal/explorer"
	"github.com/liamashdown/cryptoguard/internal/metrics"
	"github.com/liamashdown/cryptoguard/internal/risk"
	"github.com/liamashdown/cryptoguard/internal/storage"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// Fetcher supplies raw chain data. explorer.Client implements it.
type Fetcher interface {
	GetSourceCode(ctx context.Context, address string) (*explorer.SourceCode, error)
	GetABI(ctx context.Context, address string) (string, error)
	GetBalance(ctx context.Context, address string) (*big.Int, error)
	GetTransactionList(ctx context.Context, address string, blocks explorer.BlockRange) ([]explorer.Transaction, error)
	GetTokenTransfers(ctx context.Context, address string) ([]explorer.TokenTransfer, error)
}

// PriceSource values token symbols in USD. pricing.Client implements it.
type PriceSource interface {
	Prices(ctx context.Context, symbols []string) (map[string]float64, error)
}

// Store persists analysis history and alert cooldown state. storage.DB
// implements it.
type Store interface {
	InsertAnalysis(ctx context.Context, record *storage.AnalysisRecord) error
	InsertAlert(ctx context.Context, alert *storage.AlertRecord) (string, error)
	GetLastAlertForAddress(ctx context.Context, address string) (*storage.AlertRecord, error)
}

// Analysis kinds, used in cache keys, metrics and stored records
const (
	KindContract = "contract"
	KindWallet   = "wallet"
)

// Analysis outcomes for metrics
const (
	statusSuccess  = "success"
	statusDegraded = "degraded"
	statusInvalid  = "invalid"
	statusError    = "error"
)

const defaultAnalysisTimeout = 30 * time.Second

// ContractReport is the result of a contract analysis
type ContractReport struct {
	ID           string `json:"id"`
	Address      string `json:"address"`
	Chain        string `json:"chain"`
	ContractName string `json:"contractName"`
	risk.ContractAssessment
	Warnings   []string  `json:"warnings"`
	Cached     bool      `json:"cached"`
	AnalyzedAt time.Time `json:"analyzedAt"`
}

// WalletReport is the result of a wallet analysis
type WalletReport struct {
	ID            string  `json:"id"`
	Address       string  `json:"address"`
	Chain         string  `json:"chain"`
	NativeSymbol  string  `json:"nativeSymbol"`
	BalanceNative float64 `json:"balance"`
	risk.WalletAnalysis
	Warnings   []string  `json:"warnings"`
	Cached     bool      `json:"cached"`
	AnalyzedAt time.Time `json:"analyzedAt"`
}

// Analyzer handles analysis requests
type Analyzer struct {
	cfg         *config.Config
	chain       config.ChainConfig
	fetcher     Fetcher
	prices      PriceSource
	cache       cache.Cache
	store       Store
	alertSender alerts.Sender
	workerPool  chan struct{}
	group       singleflight.Group
	timeout     time.Duration
	log         *logrus.Logger
	now         func() time.Time

	// used for cooldown when no store is configured
	mu         sync.Mutex
	lastAlerts map[string]time.Time
}

// New creates a new analyzer. prices, c and store may be nil.
func New(
	cfg *config.Config,
	fetcher Fetcher,
	prices PriceSource,
	c cache.Cache,
	store Store,
	alertSender alerts.Sender,
	log *logrus.Logger,
) *Analyzer {
	workers := cfg.AnalysisConcurrency
	if workers <= 0 {
		workers = 1
	}
	workerPool := make(chan struct{}, workers)
	for i := 0; i < workers; i++ {
		workerPool <- struct{}{}
	}

	// one analysis waits on a worker slot and then a couple of explorer round trips
	timeout := 3 * cfg.ExplorerTimeout
	if timeout <= 0 {
		timeout = defaultAnalysisTimeout
	}

	return &Analyzer{
		cfg:         cfg,
		chain:       cfg.ActiveChain(),
		fetcher:     fetcher,
		prices:      prices,
		cache:       c,
		store:       store,
		alertSender: alertSender,
		workerPool:  workerPool,
		timeout:     timeout,
		log:         log,
		now:         func() time.Time { return time.Now().UTC() },
		lastAlerts:  make(map[string]time.Time),
	}
}

// acquire takes a worker slot, giving up when ctx is done
func (a *Analyzer) acquire(ctx context.Context) (func(), error) {
	select {
	case <-a.workerPool:
		return func() { a.workerPool <- struct{}{} }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// share runs fn once per key for all concurrent callers. fn gets a context
// detached from any single caller and bounded by the analysis timeout; each
// caller stops waiting when its own ctx is done.
func (a *Analyzer) share(ctx context.Context, key string, fn func(context.Context) (interface{}, error)) (interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ch := a.group.DoChan(key, func() (interface{}, error) {
		shared, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.timeout)
		defer cancel()
		return fn(shared)
	})

	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// parse validates raw input and records rejected requests
func (a *Analyzer) parse(kind, raw string) (address.Address, error) {
	addr, err := address.Parse(raw)
	if err != nil {
		metrics.RecordAnalysis(kind, statusInvalid, 0)
		return "", err
	}
	return addr, nil
}

// cached loads a stored report into dst. Cache errors count as misses.
func (a *Analyzer) cached(ctx context.Context, key string, dst interface{}) bool {
	if a.cache == nil {
		return false
	}
	data, found, err := a.cache.Get(ctx, key)
	if err != nil {
		a.log.WithError(err).WithField("key", key).Warn("Cache lookup failed")
		return false
	}
	if !found {
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		a.log.WithError(err).WithField("key", key).Warn("Discarding undecodable cache entry")
		return false
	}
	return true
}

func (a *Analyzer) remember(ctx context.Context, key string, report interface{}) {
	if a.cache == nil || a.cfg.CacheTTL <= 0 {
		return
	}
	data, err := json.Marshal(report)
	if err != nil {
		a.log.WithError(err).Warn("Failed to encode report for cache")
		return
	}
	if err := a.cache.Set(ctx, key, data, a.cfg.CacheTTL); err != nil {
		a.log.WithError(err).WithField("key", key).Warn("Cache store failed")
	}
}

// record appends a report to the analysis history when storage is enabled
func (a *Analyzer) record(ctx context.Context, kind, addr string, score int, grade string, degraded bool, report interface{}) {
	if a.store == nil {
		return
	}
	data, err := json.Marshal(report)
	if err != nil {
		a.log.WithError(err).Warn("Failed to encode report for history")
		return
	}
	rec := &storage.AnalysisRecord{
		Kind:      kind,
		Chain:     a.cfg.Chain,
		Address:   addr,
		Score:     score,
		Grade:     grade,
		Degraded:  degraded,
		Report:    string(data),
		CreatedTS: a.now().Unix(),
	}
	if err := a.store.InsertAnalysis(ctx, rec); err != nil {
		a.log.WithError(err).WithField("address", addr).Error("Failed to store analysis")
	}
}

// fallback logs a failed fetch and returns the warning to attach to the report
func (a *Analyzer) fallback(source, addr string, err error) string {
	metrics.RecordFallback(source)
	a.log.WithError(err).WithFields(logrus.Fields{
		"source":  source,
		"address": addr,
	}).Warn("Fetch failed, using fallback")
	return fmt.Sprintf("%s unavailable: %v", source, err)
}

func status(warnings []string) string {
	if len(warnings) > 0 {
		return statusDegraded
	}
	return statusSuccess
}
