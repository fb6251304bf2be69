package analyzer

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/liamashdown/cryptoguard/internal/address"
	"github.com/liamashdown/cryptoguard/internal/cache"
	"github.com/liamashdown/cryptoguard/internal/explorer"
	"github.com/liamashdown/cryptoguard/internal/metrics"
	"github.com/liamashdown/cryptoguard/internal/risk"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// AnalyzeWallet scores the externally-owned account at raw. Like
// AnalyzeContract it only fails on invalid input or cancellation.
func (a *Analyzer) AnalyzeWallet(ctx context.Context, raw string) (*WalletReport, error) {
	addr, err := a.parse(KindWallet, raw)
	if err != nil {
		return nil, err
	}

	key := cache.Key(KindWallet, a.cfg.Chain, addr)
	var hit WalletReport
	if a.cached(ctx, key, &hit) {
		hit.Cached = true
		return &hit, nil
	}

	v, err := a.share(ctx, key, func(ctx context.Context) (interface{}, error) {
		return a.analyzeWallet(ctx, addr, key)
	})
	if err != nil {
		return nil, err
	}
	return v.(*WalletReport), nil
}

func (a *Analyzer) analyzeWallet(ctx context.Context, addr address.Address, key string) (*WalletReport, error) {
	start := time.Now()

	release, err := a.acquire(ctx)
	if err != nil {
		metrics.RecordAnalysis(KindWallet, statusError, time.Since(start))
		return nil, fmt.Errorf("wait for worker: %w", err)
	}
	defer release()

	var (
		balance                 *big.Int
		txs                     []explorer.Transaction
		transfers               []explorer.TokenTransfer
		balErr, txErr, transErr error
		g                       errgroup.Group
	)
	blocks := explorer.BlockRange{Start: a.cfg.ExplorerStartBlock, End: a.cfg.ExplorerEndBlock}

	g.Go(func() error {
		balance, balErr = a.fetcher.GetBalance(ctx, addr.String())
		return nil
	})
	g.Go(func() error {
		txs, txErr = a.fetcher.GetTransactionList(ctx, addr.String(), blocks)
		return nil
	})
	g.Go(func() error {
		transfers, transErr = a.fetcher.GetTokenTransfers(ctx, addr.String())
		return nil
	})
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		metrics.RecordAnalysis(KindWallet, statusError, time.Since(start))
		return nil, err
	}

	var warnings []string
	if balErr != nil || balance == nil {
		if balErr != nil {
			warnings = append(warnings, a.fallback("balance", addr.String(), balErr))
		}
		balance = new(big.Int)
	}
	if txErr != nil {
		warnings = append(warnings, a.fallback("txlist", addr.String(), txErr))
		txs = nil
	}
	if transErr != nil {
		warnings = append(warnings, a.fallback("tokentx", addr.String(), transErr))
		transfers = nil
	}

	riskTransfers := explorer.ToRiskTokenTransfers(transfers)
	prices := map[string]float64{}
	if symbols := risk.TokenSymbols(riskTransfers); a.prices != nil && len(symbols) > 0 {
		got, err := a.prices.Prices(ctx, symbols)
		if err != nil {
			warnings = append(warnings, a.fallback("prices", addr.String(), err))
		}
		for symbol, price := range got {
			prices[symbol] = price
		}
	}

	analysis := risk.AnalyzeWallet(risk.WalletInput{
		Address:        addr.String(),
		Balance:        balance,
		Transactions:   explorer.ToRiskTransactions(txs),
		TokenTransfers: riskTransfers,
		Prices:         prices,
		Now:            a.now(),
	})

	report := &WalletReport{
		ID:             uuid.NewString(),
		Address:        addr.String(),
		Chain:          a.cfg.Chain,
		NativeSymbol:   a.chain.NativeSymbol,
		BalanceNative:  risk.WeiToNative(balance),
		WalletAnalysis: analysis,
		Warnings:       nonNilStrings(warnings),
		AnalyzedAt:     a.now(),
	}

	metrics.RecordWalletScore(analysis.RiskScore)
	metrics.RecordAnalysis(KindWallet, status(warnings), time.Since(start))

	a.log.WithFields(logrus.Fields{
		"address":  addr.Short(),
		"chain":    a.cfg.Chain,
		"balance":  report.BalanceNative,
		"txs":      len(txs),
		"score":    analysis.RiskScore,
		"tags":     analysis.Tags,
		"warnings": len(warnings),
		"duration": time.Since(start).String(),
	}).Info("Wallet analyzed")

	a.record(ctx, KindWallet, addr.String(), analysis.RiskScore, "", len(warnings) > 0, report)
	a.remember(ctx, key, report)
	a.alertWallet(ctx, report)

	return report, nil
}
