package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// DiscordSender sends alerts to Discord via webhook
type DiscordSender struct {
	webhookURL string
	httpClient *http.Client
}

// NewDiscordSender creates a new Discord sender
func NewDiscordSender(webhookURL string) *DiscordSender {
	return &DiscordSender{
		webhookURL: webhookURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Send sends the alert to Discord
func (s *DiscordSender) Send(ctx context.Context, payload *AlertPayload) error {
	webhookPayload := map[string]interface{}{
		"embeds": []interface{}{buildEmbed(payload)},
	}

	body, err := json.Marshal(webhookPayload)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	return nil
}

func buildEmbed(payload *AlertPayload) map[string]interface{} {
	var color int
	switch payload.Severity {
	case SeverityAlert:
		color = 0xFF0000 // Red
	case SeverityWarn:
		color = 0xFFA500 // Orange
	default:
		color = 0x0099FF // Blue
	}

	fields := []map[string]interface{}{
		{
			"name":   "Address",
			"value":  fmt.Sprintf("`%s`", payload.Address),
			"inline": false,
		},
		{
			"name":   "Chain",
			"value":  payload.Chain,
			"inline": true,
		},
	}

	var description string
	if payload.Kind == KindContract {
		description = fmt.Sprintf("Security score **%d/100**, grade **%s**", payload.Score, payload.Grade)
		fields = append(fields, map[string]interface{}{
			"name": "Findings",
			"value": fmt.Sprintf("critical %d • high %d • medium %d • low %d",
				payload.Findings.Critical, payload.Findings.High, payload.Findings.Medium, payload.Findings.Low),
			"inline": true,
		})
	} else {
		description = fmt.Sprintf("Wallet risk **%d/100**", payload.Score)
		tags := "none"
		if len(payload.Tags) > 0 {
			tags = strings.Join(payload.Tags, ", ")
		}
		fields = append(fields, map[string]interface{}{
			"name":   "Tags",
			"value":  truncate(tags, 200),
			"inline": true,
		})
	}

	if len(payload.Reasons) > 0 {
		fields = append(fields, map[string]interface{}{
			"name":   "Recommendations",
			"value":  truncate("• "+strings.Join(payload.Reasons, "\n• "), 1000),
			"inline": false,
		})
	}

	footer := map[string]interface{}{
		"text": fmt.Sprintf("CryptoGuard • %s • %s", payload.Environment, payload.Timestamp.UTC().Format("2006-01-02 15:04:05 UTC")),
	}

	return map[string]interface{}{
		"title":       payload.Title(),
		"description": description,
		"color":       color,
		"fields":      fields,
		"footer":      footer,
		"timestamp":   payload.Timestamp.Format(time.RFC3339),
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
