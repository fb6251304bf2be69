package analyzer

import (
	"context"
	"fmt"
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

// AnalyzeContract scores the contract deployed at raw. The only error for a
// well-formed address is context cancellation; upstream failures degrade the
// report and are listed in its Warnings.
func (a *Analyzer) AnalyzeContract(ctx context.Context, raw string) (*ContractReport, error) {
	addr, err := a.parse(KindContract, raw)
	if err != nil {
		return nil, err
	}

	key := cache.Key(KindContract, a.cfg.Chain, addr)
	var hit ContractReport
	if a.cached(ctx, key, &hit) {
		hit.Cached = true
		return &hit, nil
	}

	v, err := a.share(ctx, key, func(ctx context.Context) (interface{}, error) {
		return a.analyzeContract(ctx, addr, key)
	})
	if err != nil {
		return nil, err
	}
	return v.(*ContractReport), nil
}

func (a *Analyzer) analyzeContract(ctx context.Context, addr address.Address, key string) (*ContractReport, error) {
	start := time.Now()

	release, err := a.acquire(ctx)
	if err != nil {
		metrics.RecordAnalysis(KindContract, statusError, time.Since(start))
		return nil, fmt.Errorf("wait for worker: %w", err)
	}
	defer release()

	var (
		source         *explorer.SourceCode
		rawABI         string
		srcErr, abiErr error
		g              errgroup.Group
	)
	g.Go(func() error {
		source, srcErr = a.fetcher.GetSourceCode(ctx, addr.String())
		return nil
	})
	g.Go(func() error {
		rawABI, abiErr = a.fetcher.GetABI(ctx, addr.String())
		return nil
	})
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		metrics.RecordAnalysis(KindContract, statusError, time.Since(start))
		return nil, err
	}

	var warnings []string
	if srcErr != nil || source == nil {
		if srcErr == nil {
			srcErr = explorer.ErrNotFound
		}
		warnings = append(warnings, a.fallback("source", addr.String(), srcErr))
		source = &explorer.SourceCode{}
	}
	if abiErr != nil {
		// Unverified contracts have no ABI either, which is expected.
		if source.SourceCode != "" {
			warnings = append(warnings, a.fallback("abi", addr.String(), abiErr))
		} else {
			metrics.RecordFallback("abi")
		}
		rawABI = ""
	}

	artifact := risk.NewSourceArtifact(source.SourceCode, source.ContractName)
	assessment := risk.AssessContract(artifact.SourceCode, risk.ParseABI(rawABI))

	report := &ContractReport{
		ID:                 uuid.NewString(),
		Address:            addr.String(),
		Chain:              a.cfg.Chain,
		ContractName:       artifact.ContractName,
		ContractAssessment: assessment,
		Warnings:           nonNilStrings(warnings),
		AnalyzedAt:         a.now(),
	}

	v := assessment.Vulnerabilities
	metrics.RecordContractScore(assessment.Score, string(assessment.Grade), v.Critical, v.High, v.Medium, v.Low)
	metrics.RecordAnalysis(KindContract, status(warnings), time.Since(start))

	a.log.WithFields(logrus.Fields{
		"address":  addr.Short(),
		"chain":    a.cfg.Chain,
		"verified": assessment.Features.Verified,
		"score":    assessment.Score,
		"grade":    assessment.Grade,
		"findings": v.Total(),
		"warnings": len(warnings),
		"duration": time.Since(start).String(),
	}).Info("Contract analyzed")

	a.record(ctx, KindContract, addr.String(), assessment.Score, string(assessment.Grade), len(warnings) > 0, report)
	a.remember(ctx, key, report)
	a.alertContract(ctx, report)

	return report, nil
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
