package main

import (
	"github.com/liamashdown/cryptoguard/internal/alerts"
	"github.com/liamashdown/cryptoguard/internal/config"
	"github.com/sirupsen/logrus"
)

// createAlertSender builds one sender per configured ALERT_MODE entry
func createAlertSender(cfg *config.Config, log *logrus.Logger) alerts.Sender {
	senders := []alerts.Sender{}

	for _, mode := range cfg.AlertModes() {
		switch mode {
		case "log":
			senders = append(senders, alerts.NewLogSender(log))
		case "discord":
			if len(cfg.DiscordWebhookURLs) == 0 {
				log.Warn("Discord mode specified but DISCORD_WEBHOOK_URLS not set")
				continue
			}
			for _, url := range cfg.DiscordWebhookURLs {
				senders = append(senders, alerts.NewDiscordSender(url))
			}
		case "smtp":
			if cfg.SMTPHost == "" {
				log.Warn("SMTP mode specified but SMTP_HOST not set")
				continue
			}
			senders = append(senders, alerts.NewSMTPSender(
				cfg.SMTPHost,
				cfg.SMTPPort,
				cfg.SMTPUser,
				cfg.SMTPPassword,
				cfg.SMTPFrom,
				cfg.SMTPTo,
			))
		default:
			log.WithField("mode", mode).Warn("Unknown alert mode, skipping")
		}
	}

	switch len(senders) {
	case 0:
		log.Warn("No valid alert senders configured, using log")
		return alerts.NewLogSender(log)
	case 1:
		return senders[0]
	default:
		return alerts.NewMultiSender(senders...)
	}
}
