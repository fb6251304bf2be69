package alerts

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"time"
)

// SMTPSender sends alerts via email
type SMTPSender struct {
	host     string
	port     int
	user     string
	password string
	from     string
	to       []string
}

// NewSMTPSender creates a new SMTP sender
func NewSMTPSender(host string, port int, user, password, from string, to []string) *SMTPSender {
	return &SMTPSender{
		host:     host,
		port:     port,
		user:     user,
		password: password,
		from:     from,
		to:       to,
	}
}

// Send sends the alert via email
func (s *SMTPSender) Send(ctx context.Context, payload *AlertPayload) error {
	if len(s.to) == 0 {
		return fmt.Errorf("no recipients configured")
	}

	subject := fmt.Sprintf("[%s] %s %s", payload.Severity, payload.Title(), payload.AddressShort)

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", s.from)
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(s.to, ", "))
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(buildEmailBody(payload))

	auth := smtp.PlainAuth("", s.user, s.password, s.host)
	addr := fmt.Sprintf("%s:%d", s.host, s.port)

	if err := smtp.SendMail(addr, auth, s.from, s.to, []byte(msg.String())); err != nil {
		return fmt.Errorf("send email: %w", err)
	}

	return nil
}

func buildEmailBody(payload *AlertPayload) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CRYPTOGUARD %s\n", payload.Title())
	b.WriteString("═══════════════════════════════════════\n\n")
	fmt.Fprintf(&b, "Address:        %s\n", payload.Address)
	fmt.Fprintf(&b, "Chain:          %s\n", payload.Chain)

	if payload.Kind == KindContract {
		fmt.Fprintf(&b, "Score:          %d/100 (grade %s)\n", payload.Score, payload.Grade)
		fmt.Fprintf(&b, "Findings:       critical %d, high %d, medium %d, low %d\n",
			payload.Findings.Critical, payload.Findings.High, payload.Findings.Medium, payload.Findings.Low)
	} else {
		fmt.Fprintf(&b, "Risk:           %d/100\n", payload.Score)
		fmt.Fprintf(&b, "Tags:           %s\n", strings.Join(payload.Tags, ", "))
	}

	if len(payload.Reasons) > 0 {
		b.WriteString("\nRECOMMENDATIONS\n")
		b.WriteString("─────────────────────────────────────\n")
		for _, r := range payload.Reasons {
			fmt.Fprintf(&b, "- %s\n", r)
		}
	}

	b.WriteString("\n═══════════════════════════════════════\n")
	fmt.Fprintf(&b, "Report:      %s\n", payload.ReportID)
	fmt.Fprintf(&b, "Environment: %s\n", payload.Environment)
	fmt.Fprintf(&b, "Generated:   %s\n", payload.Timestamp.UTC().Format(time.RFC3339))
	b.WriteString("\nNote: scores are heuristic and are not a security audit.\n")

	return b.String()
}
