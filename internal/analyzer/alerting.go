package analyzer

import (
	"context"
	"fmt"
	"time"

	"github.com/liamashdown/cryptoguard/internal/address"
	"github.com/liamashdown/cryptoguard/internal/alerts"
	"github.com/liamashdown/cryptoguard/internal/metrics"
	"github.com/liamashdown/cryptoguard/internal/risk"
	"github.com/liamashdown/cryptoguard/internal/storage"
)

// contractSeverity maps a contract report onto an alert level. INFO means
// nothing is sent.
func (a *Analyzer) contractSeverity(r *ContractReport) alerts.Severity {
	if r.Grade == risk.GradeF || r.Vulnerabilities.Critical > 0 {
		return alerts.SeverityAlert
	}
	if r.Score < a.cfg.ContractWarnScore {
		return alerts.SeverityWarn
	}
	return alerts.SeverityInfo
}

func (a *Analyzer) walletSeverity(r *WalletReport) alerts.Severity {
	if r.RiskScore >= a.cfg.WalletAlertScore {
		return alerts.SeverityAlert
	}
	if r.RiskScore >= a.cfg.WalletWarnScore {
		return alerts.SeverityWarn
	}
	return alerts.SeverityInfo
}

func (a *Analyzer) alertContract(ctx context.Context, r *ContractReport) {
	severity := a.contractSeverity(r)
	if severity == alerts.SeverityInfo {
		return
	}
	v := r.Vulnerabilities
	payload := &alerts.AlertPayload{
		Severity:     severity,
		Kind:         alerts.KindContract,
		Chain:        r.Chain,
		Address:      r.Address,
		AddressShort: address.Address(r.Address).Short(),
		ContractName: r.ContractName,
		Score:        r.Score,
		Grade:        string(r.Grade),
		Findings:     alerts.Findings{Critical: v.Critical, High: v.High, Medium: v.Medium, Low: v.Low},
		Reasons:      r.Recommendations,
		ReportID:     r.ID,
		Timestamp:    r.AnalyzedAt,
		Environment:  a.cfg.Environment,
	}
	a.sendAlert(ctx, payload, fmt.Sprintf("score %d grade %s", r.Score, r.Grade))
}

func (a *Analyzer) alertWallet(ctx context.Context, r *WalletReport) {
	severity := a.walletSeverity(r)
	if severity == alerts.SeverityInfo {
		return
	}
	payload := &alerts.AlertPayload{
		Severity:     severity,
		Kind:         alerts.KindWallet,
		Chain:        r.Chain,
		Address:      r.Address,
		AddressShort: address.Address(r.Address).Short(),
		Score:        r.RiskScore,
		Tags:         r.Tags,
		ReportID:     r.ID,
		Timestamp:    r.AnalyzedAt,
		Environment:  a.cfg.Environment,
	}
	a.sendAlert(ctx, payload, fmt.Sprintf("risk %d tags %v", r.RiskScore, r.Tags))
}

// sendAlert applies the per-address cooldown, records the alert and sends it.
// Failures are logged; they never fail the analysis.
func (a *Analyzer) sendAlert(ctx context.Context, payload *alerts.AlertPayload, summary string) {
	if a.alertSender == nil {
		return
	}
	log := a.log.WithField("address", payload.AddressShort)

	if a.inCooldown(ctx, payload.Address) {
		log.Info("Alert suppressed (cooldown)")
		metrics.RecordAlert(string(payload.Severity), nil, true)
		return
	}

	if a.store != nil {
		rec := &storage.AlertRecord{
			Kind:      payload.Kind,
			Severity:  string(payload.Severity),
			Chain:     payload.Chain,
			Address:   payload.Address,
			Score:     payload.Score,
			Summary:   summary,
			CreatedTS: a.now().Unix(),
		}
		if _, err := a.store.InsertAlert(ctx, rec); err != nil {
			log.WithError(err).Error("Failed to store alert")
		}
	} else {
		a.mu.Lock()
		a.lastAlerts[payload.Address] = a.now()
		a.mu.Unlock()
	}

	err := a.alertSender.Send(ctx, payload)
	metrics.RecordAlert(string(payload.Severity), err, false)
	if err != nil {
		log.WithError(err).Error("Failed to send alert")
	}
}

func (a *Analyzer) inCooldown(ctx context.Context, addr string) bool {
	cooldown := time.Duration(a.cfg.AlertCooldownMins) * time.Minute
	if cooldown <= 0 {
		return false
	}

	if a.store == nil {
		a.mu.Lock()
		last, ok := a.lastAlerts[addr]
		a.mu.Unlock()
		return ok && a.now().Sub(last) < cooldown
	}

	lastAlert, err := a.store.GetLastAlertForAddress(ctx, addr)
	if err != nil {
		a.log.WithError(err).Warn("Failed to get last alert")
		return false
	}
	return lastAlert != nil && a.now().Unix()-lastAlert.CreatedTS < int64(cooldown/time.Second)
}
