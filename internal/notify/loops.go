package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"channel_digest/internal/domain"
)

const defaultLoopsURL = "https://app.loops.so/api/v1"

type LoopsConfig struct {
	APIKey    string
	EventName string
	BaseURL   string
	Timeout   time.Duration
	Retry     RetryConfig
}

// LoopsNotifier triggers a Loops event per recipient; the email itself is
// designed in Loops and fed from the event properties.
type LoopsNotifier struct {
	apiKey    string
	eventName string
	endpoint  string
	retry     RetryConfig
	client    *http.Client
	now       func() time.Time
	logger    *slog.Logger
}

func NewLoopsNotifier(cfg LoopsConfig, logger *slog.Logger) *LoopsNotifier {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultLoopsURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &LoopsNotifier{
		apiKey:    cfg.APIKey,
		eventName: cfg.EventName,
		endpoint:  strings.TrimSuffix(baseURL, "/") + "/events/send",
		retry:     cfg.Retry,
		client:    &http.Client{Timeout: timeout},
		now:       time.Now,
		logger:    logger.With("provider", "loops"),
	}
}

type loopsEvent struct {
	Email           string         `json:"email"`
	EventName       string         `json:"eventName"`
	EventProperties map[string]any `json:"eventProperties"`
}

func (l *LoopsNotifier) Send(ctx context.Context, artifact *domain.Artifact, recipient string) error {
	payload, err := json.Marshal(loopsEvent{
		Email:           recipient,
		EventName:       l.eventName,
		EventProperties: l.eventProperties(artifact),
	})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	return doWithRetry(ctx, l.retry, l.logger, "loops", func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.endpoint, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+l.apiKey)

		resp, err := l.client.Do(req)
		if err != nil {
			l.logger.Warn("loops request failed", "to", recipient, "error", err)
			return err
		}
		defer resp.Body.Close()

		if err := checkStatus("loops", resp.StatusCode); err != nil {
			l.logger.Warn("loops returned non-2xx status", "to", recipient, "status_code", resp.StatusCode)
			return err
		}

		l.logger.Info("loops event sent",
			"to", recipient,
			"event", l.eventName,
			"source_id", artifact.SourceID,
		)
		return nil
	})
}

// eventProperties flattens an artifact; Loops only accepts scalar values.
func (l *LoopsNotifier) eventProperties(a *domain.Artifact) map[string]any {
	props := map[string]any{
		"title":            a.Summary.Title,
		"overview":         a.Summary.Overview,
		"marketUpdate":     a.Summary.MarketUpdate,
		"technicalCorner":  a.Summary.TechnicalCorner,
		"projectSpotlight": a.Summary.ProjectSpotlight,
		"keyTakeaway":      a.Summary.KeyTakeaway,
		"disclaimer":       a.Summary.Disclaimer,
		"videoId":          a.SourceID,
		"videoTitle":       a.VideoTitle,
		"channelName":      a.ChannelName,
		"sourceUrl":        a.SourceURL,
		"timestamp":        l.now().UTC().Format(time.RFC3339),
	}
	if a.ThumbnailURL != nil {
		props["thumbnailUrl"] = *a.ThumbnailURL
	}
	if tokens := mentionedTokens(a.Summary.MentionedTokens); tokens != "" {
		props["mentionedTokens"] = tokens
	}
	return props
}
