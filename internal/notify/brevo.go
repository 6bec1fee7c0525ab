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
)

const defaultBrevoURL = "https://api.brevo.com/v3"

type BrevoConfig struct {
	APIKey   string
	FromAddr string
	FromName string
	BaseURL  string
	Timeout  time.Duration
	Retry    RetryConfig
}

// BrevoProvider sends emails through the Brevo transactional API.
type BrevoProvider struct {
	apiKey   string
	fromAddr string
	fromName string
	endpoint string
	retry    RetryConfig
	client   *http.Client
	logger   *slog.Logger
}

func NewBrevoProvider(cfg BrevoConfig, logger *slog.Logger) *BrevoProvider {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBrevoURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &BrevoProvider{
		apiKey:   cfg.APIKey,
		fromAddr: cfg.FromAddr,
		fromName: cfg.FromName,
		endpoint: strings.TrimSuffix(baseURL, "/") + "/smtp/email",
		retry:    cfg.Retry,
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With("provider", "brevo"),
	}
}

type brevoSendRequest struct {
	Sender  brevoContact   `json:"sender"`
	To      []brevoContact `json:"to"`
	Subject string         `json:"subject"`
	HTML    string         `json:"htmlContent"`
}

type brevoContact struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

func (b *BrevoProvider) Send(ctx context.Context, to, subject, htmlBody string) error {
	payload, err := json.Marshal(brevoSendRequest{
		Sender:  brevoContact{Email: b.fromAddr, Name: b.fromName},
		To:      []brevoContact{{Email: to}},
		Subject: subject,
		HTML:    htmlBody,
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	return doWithRetry(ctx, b.retry, b.logger, "brevo", func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		req.Header.Set("api-key", b.apiKey)

		start := time.Now()
		resp, err := b.client.Do(req)
		if err != nil {
			b.logger.Warn("brevo request failed", "to", to, "error", err)
			return err
		}
		defer resp.Body.Close()

		if err := checkStatus("brevo", resp.StatusCode); err != nil {
			b.logger.Warn("brevo returned non-2xx status", "to", to, "status_code", resp.StatusCode)
			return err
		}

		b.logger.Info("brevo email sent",
			"to", to,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return nil
	})
}
