package notify

import (
	"context"
	"fmt"
	"log/slog"

	"channel_digest/internal/domain"
)

// Provider sends one rendered email.
type Provider interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// EmailNotifier renders an artifact as an HTML email and hands it to a
// Provider.
type EmailNotifier struct {
	provider Provider
	logger   *slog.Logger
}

func NewEmailNotifier(provider Provider, logger *slog.Logger) *EmailNotifier {
	return &EmailNotifier{
		provider: provider,
		logger:   logger.With("component", "email_notifier"),
	}
}

func (n *EmailNotifier) Send(ctx context.Context, artifact *domain.Artifact, recipient string) error {
	subject := artifact.Title
	if subject == "" {
		subject = artifact.VideoTitle
	}

	body, err := renderArtifact(artifact)
	if err != nil {
		return fmt.Errorf("render email: %w", err)
	}

	n.logger.Info("sending artifact email",
		"to", recipient,
		"subject", subject,
		"source_id", artifact.SourceID,
	)

	return n.provider.Send(ctx, recipient, subject, body)
}
