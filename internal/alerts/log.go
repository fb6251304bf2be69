package alerts

import (
	"context"

	"github.com/sirupsen/logrus"
)

// LogSender sends alerts to the logger
type LogSender struct {
	log *logrus.Logger
}

// NewLogSender creates a new log sender
func NewLogSender(log *logrus.Logger) *LogSender {
	return &LogSender{log: log}
}

// Send logs the alert
func (s *LogSender) Send(ctx context.Context, payload *AlertPayload) error {
	fields := logrus.Fields{
		"severity": payload.Severity,
		"kind":     payload.Kind,
		"chain":    payload.Chain,
		"address":  payload.AddressShort,
		"score":    payload.Score,
		"report":   payload.ReportID,
	}
	if payload.Kind == KindContract {
		fields["grade"] = payload.Grade
		fields["critical"] = payload.Findings.Critical
		fields["high"] = payload.Findings.High
	} else {
		fields["tags"] = payload.Tags
	}
	s.log.WithFields(fields).Warn("Alert generated")
	return nil
}
