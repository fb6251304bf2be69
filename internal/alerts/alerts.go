package alerts

import (
	"context"
	"time"
)

// Severity represents alert severity
type Severity string

const (
	SeverityInfo  Severity = "INFO"
	SeverityWarn  Severity = "WARN"
	SeverityAlert Severity = "ALERT"
)

// Subject kinds
const (
	KindContract = "contract"
	KindWallet   = "wallet"
)

// Findings counts vulnerability hits by severity
type Findings struct {
	Critical int
	High     int
	Medium   int
	Low      int
}

// AlertPayload contains all information for an alert
type AlertPayload struct {
	Severity     Severity
	Kind         string
	Chain        string
	Address      string
	AddressShort string // Shortened for display
	ContractName string
	Score        int
	Grade        string // contracts only
	Findings     Findings
	Tags         []string // wallets only
	Reasons      []string
	ReportID     string
	Timestamp    time.Time
	Environment  string
}

// Sender defines the interface for alert senders
type Sender interface {
	Send(ctx context.Context, payload *AlertPayload) error
}

// Title is the one-line headline shared by all senders
func (p *AlertPayload) Title() string {
	subject := "Risky wallet"
	if p.Kind == KindContract {
		subject = "Risky contract"
		if p.ContractName != "" {
			subject += " " + p.ContractName
		}
	}
	return subject + " (" + string(p.Severity) + ")"
}
