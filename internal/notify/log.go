package notify

import (
	"context"
	"log/slog"
)

// LogProvider logs emails instead of sending them.
type LogProvider struct {
	logger *slog.Logger
}

func NewLogProvider(logger *slog.Logger) *LogProvider {
	return &LogProvider{logger: logger}
}

func (p *LogProvider) Send(_ context.Context, to, subject, htmlBody string) error {
	p.logger.Info("MOCK EMAIL",
		"to", to,
		"subject", subject,
		"body_length", len(htmlBody),
	)
	return nil
}
