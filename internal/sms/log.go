package sms

import (
	"context"
	"log/slog"
)

// LogSender writes messages to the log instead of delivering them. It is
// used in development when Twilio is not configured.
type LogSender struct {
	Logger *slog.Logger
}

func (s LogSender) Send(_ context.Context, to, body string) error {
	s.Logger.Info("sms not sent, twilio not configured", "component", "sms", "to", to, "body", body)
	return nil
}
